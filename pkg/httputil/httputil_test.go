package httputil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nanba/pharmacy-backend/pkg/errors"
	"github.com/nanba/pharmacy-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestError_AppError(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, errors.NotFound("order"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decode(t, rec)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
	assert.Equal(t, "order not found", resp.Error.Message)
}

func TestError_PlainErrorIsHidden(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, fmt.Errorf("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
	assert.NotContains(t, rec.Body.String(), "pq:")
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	t.Run("generates when absent", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
	})

	t.Run("propagates incoming header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "abc-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, "abc-123", seen)
	})

	t.Run("replaces unsafe header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "abc 123\nforged=1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.NotContains(t, seen, "forged")
		assert.Len(t, seen, 36)
	})

	t.Run("replaces oversized header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", strings.Repeat("a", 65))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Len(t, seen, 36)
	})
}

func TestLogger(t *testing.T) {
	serve := func(t *testing.T, status int) map[string]any {
		t.Helper()
		var buf bytes.Buffer
		log := logger.NewWithWriter("order-service", "production", &buf)

		h := RequestID(Logger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithUser(r.Context(), "user-1", []string{"orders:read"})
			assert.Equal(t, "user-1", GetUserID(ctx))
			logger.FromContext(ctx, nil).Info().Msg("inside handler")
			w.WriteHeader(status)
			w.Write([]byte("ok"))
		})))

		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		req.Header.Set("X-Request-ID", "req-42")
		h.ServeHTTP(httptest.NewRecorder(), req)

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 2)

		var inner map[string]any
		require.NoError(t, json.Unmarshal([]byte(lines[0]), &inner))
		assert.Equal(t, "req-42", inner["request_id"])

		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(lines[1]), &entry))
		return entry
	}

	entry := serve(t, http.StatusOK)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "user-1", entry["user_id"])
	assert.Equal(t, float64(2), entry["bytes"])
	assert.Equal(t, "req-42", entry["request_id"])

	assert.Equal(t, "warn", serve(t, http.StatusNotFound)["level"])
	assert.Equal(t, "error", serve(t, http.StatusBadGateway)["level"])
}

func TestRecoverer(t *testing.T) {
	h := Recoverer(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRecoverer_ReraisesAbort(t *testing.T) {
	h := Recoverer(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestValidate(t *testing.T) {
	type body struct {
		LicenseID string  `json:"license_id" validate:"required,license_id"`
		Total     float64 `json:"total_amount" validate:"gt=0"`
	}

	err := Validate(body{LicenseID: "REG-12345", Total: 1})
	assert.NoError(t, err)

	err = Validate(body{LicenseID: "REG-1234", Total: 0})
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "must match REG-NNNNN", appErr.Details["license_id"])
	assert.Equal(t, "must be greater than 0", appErr.Details["total_amount"])
}

func TestPagination(t *testing.T) {
	tests := []struct {
		query       string
		wantPage    int
		wantPerPage int
	}{
		{"", 1, 20},
		{"page=3&per_page=5", 3, 5},
		{"page=-1&per_page=500", 1, 100},
		{"page=x&per_page=y", 1, 20},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
			page, perPage := Pagination(r, 20, 100)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantPerPage, perPage)
		})
	}
}

func TestNewMeta(t *testing.T) {
	meta := NewMeta(2, 10, 21)
	assert.Equal(t, 3, meta.TotalPages)
}
