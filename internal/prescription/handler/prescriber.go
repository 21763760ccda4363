package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nanba/pharmacy-backend/internal/prescription/domain"
	"github.com/nanba/pharmacy-backend/internal/prescription/service"
	"github.com/nanba/pharmacy-backend/pkg/httputil"
	"github.com/nanba/pharmacy-backend/pkg/logger"
)

// PrescriberHandler handles prescriber registry endpoints
type PrescriberHandler struct {
	service *service.RegistryService
	logger  *logger.Logger
}

// NewPrescriberHandler creates a new prescriber handler
func NewPrescriberHandler(svc *service.RegistryService, log *logger.Logger) *PrescriberHandler {
	return &PrescriberHandler{
		service: svc,
		logger:  log,
	}
}

// List lists registry entries
func (h *PrescriberHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.Pagination(r, 50, 200)

	records, total, err := h.service.List(r.Context(), r.URL.Query().Get("status"), page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, records, httputil.NewMeta(page, perPage, total))
}

// Get gets a registry entry by license number
func (h *PrescriberHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.Get(r.Context(), chi.URLParam(r, "licenseId"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, rec)
}

// Upsert creates or replaces a registry entry
func (h *PrescriberHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req domain.UpsertPrescriberRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	rec, err := h.service.Upsert(r.Context(), chi.URLParam(r, "licenseId"), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, rec)
}

// Delete removes a registry entry
func (h *PrescriberHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "licenseId")); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
