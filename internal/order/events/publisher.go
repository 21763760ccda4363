package events

import (
	"context"

	"github.com/nanba/pharmacy-backend/internal/order/domain"
	"github.com/nanba/pharmacy-backend/pkg/actor"
	"github.com/nanba/pharmacy-backend/pkg/logger"
	"github.com/nanba/pharmacy-backend/pkg/messaging"
)

// OrderEventPublisher publishes order-related events. Events about one
// order share the order ID as correlation ID unless the caller set one.
type OrderEventPublisher struct {
	publisher messaging.EventPublisher
	logger    *logger.Logger
}

// NewOrderEventPublisher creates a new order event publisher
func NewOrderEventPublisher(publisher messaging.EventPublisher, log *logger.Logger) *OrderEventPublisher {
	return &OrderEventPublisher{
		publisher: publisher,
		logger:    log,
	}
}

// PublishOrderCreated publishes an order created event
func (p *OrderEventPublisher) PublishOrderCreated(ctx context.Context, o *domain.Order) {
	if p == nil || p.publisher == nil {
		return
	}

	data := messaging.OrderCreatedEvent{
		OrderID:            o.ID,
		UserID:             o.UserID,
		PaymentMethod:      string(o.PaymentMethod),
		TotalAmount:        o.TotalAmount,
		HasPrescription:    o.HasPrescription(),
		VerificationStatus: string(o.VerificationStatus),
	}

	if err := p.publisher.Publish(messaging.EnsureCorrelationID(ctx, o.ID), messaging.EventOrderCreated, data); err != nil {
		p.logger.Error().Err(err).Str("order_id", o.ID).Msg("failed to publish order created event")
	}
}

// PublishVerificationCompleted publishes the pipeline verdict for an order
// that carried a prescription
func (p *OrderEventPublisher) PublishVerificationCompleted(ctx context.Context, o *domain.Order) {
	if p == nil || p.publisher == nil || !o.HasPrescription() {
		return
	}

	data := messaging.OrderVerificationCompletedEvent{
		OrderID:         o.ID,
		Verdict:         string(o.VerificationStatus),
		Reason:          o.FlagReason,
		DetectedLicense: o.DoctorLicenseDetected,
		PrescriptionRef: *o.PrescriptionRef,
	}
	if o.VerifiedAt != nil {
		data.VerifiedAt = *o.VerifiedAt
	}

	if err := p.publisher.Publish(messaging.EnsureCorrelationID(ctx, o.ID), messaging.EventOrderVerificationCompleted, data); err != nil {
		p.logger.Error().Err(err).Str("order_id", o.ID).Msg("failed to publish verification completed event")
	}
}

// PublishVerificationOverridden publishes a staff override
func (p *OrderEventPublisher) PublishVerificationOverridden(ctx context.Context, o *domain.Order, previous string, by *actor.Actor) {
	if p == nil || p.publisher == nil {
		return
	}

	data := messaging.OrderVerificationOverriddenEvent{
		OrderID:    o.ID,
		ActorID:    by.ID,
		ActorEmail: by.Email,
		OldVerdict: previous,
		NewVerdict: string(o.VerificationStatus),
		Reason:     o.FlagReason,
	}

	if err := p.publisher.Publish(messaging.EnsureCorrelationID(ctx, o.ID), messaging.EventOrderVerificationOverridden, data); err != nil {
		p.logger.Error().Err(err).Str("order_id", o.ID).Msg("failed to publish verification overridden event")
	}
}
