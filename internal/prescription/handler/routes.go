package handler

import (
	"github.com/go-chi/chi/v5"

	"github.com/nanba/pharmacy-backend/internal/auth"
	"github.com/nanba/pharmacy-backend/pkg/permissions"
)

// RegisterRoutes mounts the registry and preview endpoints under /api/v1/admin
func RegisterRoutes(r chi.Router, mw *auth.Middleware, prescribers *PrescriberHandler, verify *VerifyHandler) {
	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(mw.Authenticate)

		r.Route("/prescribers", func(r chi.Router) {
			r.With(auth.RequirePermission(permissions.PrescribersRead)).Get("/", prescribers.List)
			r.With(auth.RequirePermission(permissions.PrescribersRead)).Get("/{licenseId}", prescribers.Get)
			r.With(auth.RequirePermission(permissions.PrescribersWrite)).Put("/{licenseId}", prescribers.Upsert)
			r.With(auth.RequirePermission(permissions.PrescribersWrite)).Delete("/{licenseId}", prescribers.Delete)
		})

		r.With(auth.RequirePermission(permissions.PrescriptionsVerify)).Post("/prescriptions/verify", verify.Preview)
	})
}
