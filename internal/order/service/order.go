package service

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/nanba/pharmacy-backend/internal/order/domain"
	"github.com/nanba/pharmacy-backend/internal/order/events"
	"github.com/nanba/pharmacy-backend/internal/order/invoice"
	rx "github.com/nanba/pharmacy-backend/internal/prescription/domain"
	"github.com/nanba/pharmacy-backend/internal/prescription/upload"
	"github.com/nanba/pharmacy-backend/pkg/actor"
	"github.com/nanba/pharmacy-backend/pkg/errors"
	"github.com/nanba/pharmacy-backend/pkg/logger"
)

// OrderStore is the order persistence used by OrderService
type OrderStore interface {
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, filter domain.ListFilter) ([]*domain.Order, int64, error)
	OverrideVerification(ctx context.Context, id string, verdict rx.Verdict, reason, actorID string) (rx.Verdict, *domain.Order, error)
}

// Intake accepts prescription uploads
type Intake interface {
	Accept(ctx context.Context, filename string, r io.Reader) (*upload.Upload, error)
}

// Verifier runs the prescription pipeline on an accepted upload
type Verifier interface {
	VerifyUpload(ctx context.Context, up *upload.Upload) rx.Attempt
}

// Prescription is the optional file part of a checkout
type Prescription struct {
	Filename string
	Body     io.Reader
}

// Caller identifies who is reading orders
type Caller struct {
	UserID string

	// ReadAll lets staff see every customer's orders
	ReadAll bool
}

// OrderService handles checkout and order history
type OrderService struct {
	store     OrderStore
	intake    Intake
	verifier  Verifier
	publisher *events.OrderEventPublisher
	clock     func() time.Time
	logger    *logger.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	store OrderStore,
	intake Intake,
	verifier Verifier,
	publisher *events.OrderEventPublisher,
	log *logger.Logger,
) *OrderService {
	return &OrderService{
		store:     store,
		intake:    intake,
		verifier:  verifier,
		publisher: publisher,
		clock:     time.Now,
		logger:    log.WithComponent("orders"),
	}
}

// SetClock overrides time.Now for invoice dates
func (s *OrderService) SetClock(clock func() time.Time) {
	s.clock = clock
}

// Checkout places an order. An accepted prescription is verified before the
// order is written; verification outcomes never fail the checkout.
func (s *OrderService) Checkout(ctx context.Context, userID string, req *domain.CreateOrderRequest, rxFile *Prescription) (*domain.Order, error) {
	order := &domain.Order{
		ID:            uuid.NewString(),
		UserID:        userID,
		FullName:      req.FullName,
		Address:       req.Address,
		Phone:         req.Phone,
		PaymentMethod: req.PaymentMethod,
		TotalAmount:   req.TotalAmount,
	}

	var up *upload.Upload
	if rxFile != nil {
		var err error
		up, err = s.intake.Accept(ctx, rxFile.Filename, rxFile.Body)
		if err != nil {
			if appErr, ok := errors.AsAppError(err); ok {
				return nil, appErr
			}
			s.log(ctx).Error().Err(err).Str("user_id", userID).Msg("failed to store prescription")
			return nil, errors.Internal("failed to store prescription")
		}
	}

	if up == nil {
		order.ApplyOutcome(rx.NoPrescription())
	} else {
		attempt := s.verifier.VerifyUpload(ctx, up)
		order.ApplyOutcome(attempt.Outcome)
		order.PrescriptionRef = &attempt.SourceRef
		verifiedAt := attempt.VerifiedAt
		order.VerifiedAt = &verifiedAt
	}

	if err := s.store.Create(ctx, order); err != nil {
		if appErr, ok := errors.AsAppError(err); ok {
			return nil, appErr
		}
		s.log(ctx).Error().Err(err).Str("user_id", userID).Msg("failed to create order")
		return nil, errors.Internal("failed to create order")
	}

	s.publisher.PublishOrderCreated(ctx, order)
	s.publisher.PublishVerificationCompleted(ctx, order)

	s.log(ctx).Info().
		Str("order_id", order.ID).
		Str("user_id", userID).
		Str("verdict", string(order.VerificationStatus)).
		Str("reason", order.FlagReason).
		Bool("follow_up", order.NeedsFollowUp()).
		Msg("order placed")

	return order, nil
}

// Get returns an order visible to caller
func (s *OrderService) Get(ctx context.Context, id string, caller Caller) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.NotFound("order")
	}

	order, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, err
		}
		s.log(ctx).Error().Err(err).Str("order_id", id).Msg("failed to load order")
		return nil, errors.Internal("failed to load order")
	}

	// Other customers' orders are reported as missing
	if !caller.ReadAll && order.UserID != caller.UserID {
		return nil, errors.NotFound("order")
	}

	return order, nil
}

// ListMine lists the caller's own orders, newest first
func (s *OrderService) ListMine(ctx context.Context, userID string, page, perPage int) ([]*domain.Order, int64, error) {
	return s.list(ctx, domain.ListFilter{UserID: userID, Limit: perPage, Offset: (page - 1) * perPage})
}

// ListAll lists every order for staff, optionally by verdict
func (s *OrderService) ListAll(ctx context.Context, status string, page, perPage int) ([]*domain.Order, int64, error) {
	filter := domain.ListFilter{Limit: perPage, Offset: (page - 1) * perPage}
	if status != "" {
		filter.Status = rx.Verdict(status)
		if !filter.Status.Valid() {
			return nil, 0, errors.Validation(map[string]string{
				"status": "must be one of: Pending, Approved, Flagged, Blocked, ManualReview, Error",
			})
		}
	}
	return s.list(ctx, filter)
}

func (s *OrderService) list(ctx context.Context, filter domain.ListFilter) ([]*domain.Order, int64, error) {
	orders, total, err := s.store.List(ctx, filter)
	if err != nil {
		s.log(ctx).Error().Err(err).Msg("failed to list orders")
		return nil, 0, errors.Internal("failed to list orders")
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	return orders, total, nil
}

// Override replaces an order's verdict after staff review. The acting staff
// member is taken from ctx.
func (s *OrderService) Override(ctx context.Context, id string, req *domain.OverrideRequest) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.NotFound("order")
	}

	by := actor.OrSystem(ctx)

	previous, order, err := s.store.OverrideVerification(ctx, id, req.Verdict, req.Reason, by.ID)
	if err != nil {
		if appErr, ok := errors.AsAppError(err); ok {
			return nil, appErr
		}
		s.log(ctx).Error().Err(err).Str("order_id", id).Msg("failed to override verification")
		return nil, errors.Internal("failed to override verification")
	}

	s.publisher.PublishVerificationOverridden(ctx, order, string(previous), by)

	s.log(ctx).Info().
		Str("order_id", id).
		Str("actor", by.String()).
		Str("from", string(previous)).
		Str("to", string(order.VerificationStatus)).
		Msg("verification overridden")

	return order, nil
}

// Invoice renders the PDF invoice for an order visible to caller
func (s *OrderService) Invoice(ctx context.Context, id string, caller Caller) ([]byte, *domain.Order, error) {
	order, err := s.Get(ctx, id, caller)
	if err != nil {
		return nil, nil, err
	}

	data, err := invoice.Render(order, s.clock())
	if err != nil {
		s.log(ctx).Error().Err(err).Str("order_id", id).Msg("failed to render invoice")
		return nil, nil, errors.Internal("failed to render invoice")
	}

	return data, order, nil
}

// log prefers the request-scoped logger so entries carry the request ID
func (s *OrderService) log(ctx context.Context) *logger.Logger {
	return logger.FromContext(ctx, s.logger)
}
