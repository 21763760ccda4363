package handler

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nanba/pharmacy-backend/internal/auth"
	"github.com/nanba/pharmacy-backend/internal/order/domain"
	"github.com/nanba/pharmacy-backend/internal/order/invoice"
	"github.com/nanba/pharmacy-backend/internal/order/service"
	"github.com/nanba/pharmacy-backend/pkg/errors"
	"github.com/nanba/pharmacy-backend/pkg/httputil"
	"github.com/nanba/pharmacy-backend/pkg/logger"
	"github.com/nanba/pharmacy-backend/pkg/permissions"
)

// OrderHandler handles checkout and order endpoints
type OrderHandler struct {
	service       *service.OrderService
	maxUploadSize int64
	logger        *logger.Logger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(svc *service.OrderService, maxUploadSize int64, log *logger.Logger) *OrderHandler {
	return &OrderHandler{
		service:       svc,
		maxUploadSize: maxUploadSize,
		logger:        log,
	}
}

func caller(r *http.Request) service.Caller {
	return service.Caller{
		UserID:  httputil.GetUserID(r.Context()),
		ReadAll: auth.Can(r, permissions.OrdersReadAll),
	}
}

// Checkout handles POST /orders
// Accepts multipart form with:
// - full_name, address, phone
// - payment_method: one of cod, upi, card
// - total_amount: finite decimal greater than zero, at most domain.MaxTotalAmount
// - prescription: optional png, jpg, jpeg or pdf
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	if err := httputil.ParseMultipart(w, r, h.maxUploadSize); err != nil {
		httputil.Error(w, err)
		return
	}

	req := domain.CreateOrderRequest{
		FullName:      strings.TrimSpace(r.FormValue("full_name")),
		Address:       strings.TrimSpace(r.FormValue("address")),
		Phone:         strings.TrimSpace(r.FormValue("phone")),
		PaymentMethod: domain.PaymentMethod(strings.ToLower(strings.TrimSpace(r.FormValue("payment_method")))),
	}

	if raw := strings.TrimSpace(r.FormValue("total_amount")); raw != "" {
		amount, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsInf(amount, 0) || math.IsNaN(amount) {
			httputil.Error(w, errors.Validation(map[string]string{"total_amount": "must be a number"}))
			return
		}
		req.TotalAmount = amount
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	file, header, err := httputil.OptionalFile(r, "prescription")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var rxFile *service.Prescription
	if file != nil {
		defer file.Close()
		rxFile = &service.Prescription{Filename: header.Filename, Body: file}
	}

	order, err := h.service.Checkout(r.Context(), httputil.GetUserID(r.Context()), &req, rxFile)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, order)
}

// ListMine lists the caller's orders
func (h *OrderHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.Pagination(r, 20, 100)

	orders, total, err := h.service.ListMine(r.Context(), httputil.GetUserID(r.Context()), page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, orders, httputil.NewMeta(page, perPage, total))
}

// ListAll lists every order for staff
func (h *OrderHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.Pagination(r, 20, 100)

	orders, total, err := h.service.ListAll(r.Context(), r.URL.Query().Get("status"), page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, orders, httputil.NewMeta(page, perPage, total))
}

// Get gets an order by ID
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.Get(r.Context(), chi.URLParam(r, "id"), caller(r))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, order)
}

// Invoice serves the order's PDF invoice
func (h *OrderHandler) Invoice(w http.ResponseWriter, r *http.Request) {
	data, order, err := h.service.Invoice(r.Context(), chi.URLParam(r, "id"), caller(r))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", invoice.Filename(order)))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// OverrideVerification replaces an order's verdict
func (h *OrderHandler) OverrideVerification(w http.ResponseWriter, r *http.Request) {
	var req domain.OverrideRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	order, err := h.service.Override(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, order)
}
