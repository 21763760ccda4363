package events

import (
	"context"

	"github.com/nanba/pharmacy-backend/internal/prescription/domain"
	"github.com/nanba/pharmacy-backend/pkg/logger"
	"github.com/nanba/pharmacy-backend/pkg/messaging"
)

// RegistryEventPublisher publishes prescriber registry events
type RegistryEventPublisher struct {
	publisher messaging.EventPublisher
	logger    *logger.Logger
}

// NewRegistryEventPublisher creates a new registry event publisher
func NewRegistryEventPublisher(publisher messaging.EventPublisher, log *logger.Logger) *RegistryEventPublisher {
	return &RegistryEventPublisher{
		publisher: publisher,
		logger:    log,
	}
}

// PublishPrescriberUpserted publishes a prescriber upserted event
func (p *RegistryEventPublisher) PublishPrescriberUpserted(ctx context.Context, rec *domain.PrescriberRecord) {
	if p == nil || p.publisher == nil {
		return
	}

	data := messaging.PrescriberUpsertedEvent{
		LicenseID:  rec.LicenseID,
		Name:       rec.Name,
		Status:     string(rec.Status),
		ExpiryDate: rec.ExpiryDate.Format(domain.DateLayout),
	}

	if err := p.publisher.Publish(ctx, messaging.EventPrescriberUpserted, data); err != nil {
		p.logger.Error().Err(err).Str("license_id", rec.LicenseID).Msg("failed to publish prescriber upserted event")
	}
}

// PublishPrescriberDeleted publishes a prescriber deleted event
func (p *RegistryEventPublisher) PublishPrescriberDeleted(ctx context.Context, licenseID string) {
	if p == nil || p.publisher == nil {
		return
	}

	data := messaging.PrescriberDeletedEvent{LicenseID: licenseID}

	if err := p.publisher.Publish(ctx, messaging.EventPrescriberDeleted, data); err != nil {
		p.logger.Error().Err(err).Str("license_id", licenseID).Msg("failed to publish prescriber deleted event")
	}
}
