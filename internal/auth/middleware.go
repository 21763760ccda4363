// Package auth authenticates requests carrying access tokens from the auth
// service and enforces permission checks on routes.
package auth

import (
	"net/http"
	"strings"

	"github.com/nanba/pharmacy-backend/internal/auth/jwt"
	"github.com/nanba/pharmacy-backend/pkg/actor"
	"github.com/nanba/pharmacy-backend/pkg/errors"
	"github.com/nanba/pharmacy-backend/pkg/httputil"
	"github.com/nanba/pharmacy-backend/pkg/logger"
	"github.com/nanba/pharmacy-backend/pkg/permissions"
)

// Middleware validates bearer tokens
type Middleware struct {
	tokens *jwt.Manager
	logger *logger.Logger
}

// NewMiddleware creates a new auth middleware
func NewMiddleware(tokens *jwt.Manager, log *logger.Logger) *Middleware {
	return &Middleware{tokens: tokens, logger: log}
}

// Authenticate validates the bearer token and adds user context
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httputil.Error(w, errors.Unauthorized("missing authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			httputil.Error(w, errors.Unauthorized("invalid authorization header format"))
			return
		}

		claims, err := m.tokens.ValidateAccessToken(parts[1])
		if err != nil {
			m.logger.Debug().Err(err).Msg("token validation failed")
			httputil.Error(w, err)
			return
		}

		ctx := httputil.WithUser(r.Context(), claims.UserID, claims.Permissions)
		ctx = actor.WithActor(ctx, &actor.Actor{
			ID:       claims.UserID,
			Email:    claims.Email,
			RoleName: claims.Role,
		})

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission rejects callers whose token lacks perm
func RequirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !permissions.HasPermission(httputil.GetPermissions(r.Context()), perm) {
				httputil.Error(w, errors.Forbidden("missing permission "+perm))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Can reports whether the caller holds perm
func Can(r *http.Request, perm string) bool {
	return permissions.HasPermission(httputil.GetPermissions(r.Context()), perm)
}
