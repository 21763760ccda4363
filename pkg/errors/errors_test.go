package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_IsAndUnwrap(t *testing.T) {
	err := fmt.Errorf("load order: %w", NotFound("order"))

	assert.True(t, Is(err, ErrNotFound))
	assert.False(t, Is(err, ErrConflict))

	var appErr *AppError
	assert.True(t, As(err, &appErr))
	assert.Equal(t, http.StatusNotFound, appErr.StatusCode)
	assert.Equal(t, "order not found: resource not found", appErr.Error())
}

func TestValidation_CarriesDetails(t *testing.T) {
	err := Validation(map[string]string{"license_id": "must match REG-NNNNN"})

	assert.Equal(t, CodeValidation, err.Code)
	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	assert.Equal(t, "must match REG-NNNNN", err.Details["license_id"])
}

func TestWithDetail(t *testing.T) {
	err := New("TEAPOT", "short and stout", http.StatusTeapot).WithDetail("a", "b").WithDetail("c", "d")

	assert.Equal(t, "short and stout", err.Error())
	assert.Nil(t, err.Unwrap())
	assert.Equal(t, map[string]string{"a": "b", "c": "d"}, err.Details)
}

func TestPayloadTooLarge(t *testing.T) {
	err := PayloadTooLarge("prescription", 1024)
	assert.Equal(t, "prescription exceeds 1024 bytes", err.Message)
	assert.Equal(t, CodePayloadTooLarge, err.Code)
	assert.Equal(t, http.StatusRequestEntityTooLarge, err.StatusCode)
	assert.True(t, Is(err, ErrPayloadTooLarge))

	assert.Equal(t, "request body too large", PayloadTooLarge("request body", 0).Message)
}

func TestAsAppError(t *testing.T) {
	appErr, ok := AsAppError(fmt.Errorf("upsert: %w", Conflict("duplicate license")))
	require.True(t, ok)
	assert.Equal(t, http.StatusConflict, appErr.StatusCode)

	appErr, ok = AsAppError(fmt.Errorf("plain"))
	assert.False(t, ok)
	assert.Nil(t, appErr)

	_, ok = AsAppError(nil)
	assert.False(t, ok)
}
