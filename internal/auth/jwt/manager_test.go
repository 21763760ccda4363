package jwt

import (
	"net/http"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanba/pharmacy-backend/pkg/config"
	"github.com/nanba/pharmacy-backend/pkg/errors"
)

func newManager() *Manager {
	return NewManager(&config.JWTConfig{
		Secret:       "test-secret",
		AccessExpiry: 15 * time.Minute,
		Issuer:       "pharmacy-auth",
	})
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	return appErr.StatusCode
}

func TestGenerateAndValidate(t *testing.T) {
	m := newManager()

	token, expiry, err := m.GenerateAccessToken(&UserInfo{
		ID:          "user-1",
		Email:       "asha@example.com",
		Role:        "customer",
		Permissions: []string{"orders.create", "orders.read"},
	})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiry, 5*time.Second)

	claims, err := m.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "asha@example.com", claims.Email)
	assert.Equal(t, "customer", claims.Role)
	assert.Equal(t, []string{"orders.create", "orders.read"}, claims.Permissions)
}

func TestValidate_Expired(t *testing.T) {
	m := NewManager(&config.JWTConfig{Secret: "test-secret", AccessExpiry: -time.Minute})

	token, _, err := m.GenerateAccessToken(&UserInfo{ID: "user-1"})
	require.NoError(t, err)

	_, err = m.ValidateAccessToken(token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTokenExpired))
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
}

func TestValidate_WrongSecret(t *testing.T) {
	other := NewManager(&config.JWTConfig{Secret: "other", AccessExpiry: time.Minute, Issuer: "pharmacy-auth"})
	token, _, err := other.GenerateAccessToken(&UserInfo{ID: "user-1"})
	require.NoError(t, err)

	_, err = newManager().ValidateAccessToken(token)
	assert.True(t, errors.Is(err, errors.ErrTokenInvalid))
}

func TestValidate_WrongIssuer(t *testing.T) {
	other := NewManager(&config.JWTConfig{Secret: "test-secret", AccessExpiry: time.Minute, Issuer: "someone-else"})
	token, _, err := other.GenerateAccessToken(&UserInfo{ID: "user-1"})
	require.NoError(t, err)

	_, err = newManager().ValidateAccessToken(token)
	assert.True(t, errors.Is(err, errors.ErrTokenInvalid))
}

func TestValidate_RejectsNoneAlgorithm(t *testing.T) {
	token := gojwt.NewWithClaims(gojwt.SigningMethodNone, Claims{UserID: "user-1"})
	signed, err := token.SignedString(gojwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newManager().ValidateAccessToken(signed)
	assert.True(t, errors.Is(err, errors.ErrTokenInvalid))
}

func TestValidate_SubjectFallback(t *testing.T) {
	now := time.Now()
	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.RegisteredClaims{
		Subject:   "user-7",
		Issuer:    "pharmacy-auth",
		ExpiresAt: gojwt.NewNumericDate(now.Add(time.Minute)),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	claims, err := newManager().ValidateAccessToken(signed)
	require.NoError(t, err)
	assert.Equal(t, "user-7", claims.UserID)
}

func TestValidate_Garbage(t *testing.T) {
	_, err := newManager().ValidateAccessToken("not.a.token")
	assert.True(t, errors.Is(err, errors.ErrTokenInvalid))
}
