package handler

import (
	"github.com/go-chi/chi/v5"

	"github.com/nanba/pharmacy-backend/internal/auth"
	"github.com/nanba/pharmacy-backend/pkg/permissions"
)

// RegisterRoutes mounts the order endpoints under /api/v1
func (h *OrderHandler) RegisterRoutes(r chi.Router, mw *auth.Middleware) {
	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Use(mw.Authenticate)

		r.With(auth.RequirePermission(permissions.OrdersCreate)).Post("/", h.Checkout)
		r.With(auth.RequirePermission(permissions.OrdersRead)).Get("/", h.ListMine)
		r.With(auth.RequirePermission(permissions.OrdersRead)).Get("/{id}", h.Get)
		r.With(auth.RequirePermission(permissions.OrdersRead)).Get("/{id}/invoice", h.Invoice)
	})

	r.Route("/api/v1/admin/orders", func(r chi.Router) {
		r.Use(mw.Authenticate)

		r.With(auth.RequirePermission(permissions.OrdersReadAll)).Get("/", h.ListAll)
		r.With(auth.RequirePermission(permissions.OrdersVerificationOverride)).Put("/{id}/verification", h.OverrideVerification)
	})
}
