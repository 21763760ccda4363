package events

import (
	"context"

	"github.com/nanba/pharmacy-backend/pkg/logger"
	"github.com/nanba/pharmacy-backend/pkg/messaging"
)

// RegistryQueue is the queue each replica drains for registry changes
const RegistryQueue = "order-service.registry"

// Invalidator drops cached registry entries
type Invalidator interface {
	Invalidate(ctx context.Context, licenseID string) error
}

// RegistryEventConsumer keeps the prescriber cache in step with registry writes
type RegistryEventConsumer struct {
	consumer *messaging.Consumer
	cache    Invalidator
	logger   *logger.Logger
}

// NewRegistryEventConsumer creates a new registry event consumer
func NewRegistryEventConsumer(rmq *messaging.RabbitMQ, cache Invalidator, log *logger.Logger) (*RegistryEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, RegistryQueue, log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangePharmacyEvents, "prescriber.*"); err != nil {
		return nil, err
	}

	c := &RegistryEventConsumer{
		consumer: consumer,
		cache:    cache,
		logger:   log,
	}
	c.register(consumer)

	return c, nil
}

func (c *RegistryEventConsumer) register(consumer *messaging.Consumer) {
	consumer.RegisterHandler(messaging.EventPrescriberUpserted, c.handlePrescriberUpserted)
	consumer.RegisterHandler(messaging.EventPrescriberDeleted, c.handlePrescriberDeleted)
}

// Start starts consuming messages
func (c *RegistryEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

func (c *RegistryEventConsumer) handlePrescriberUpserted(ctx context.Context, event *messaging.Event) error {
	var data messaging.PrescriberUpsertedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("license_id", data.LicenseID).
		Str("status", data.Status).
		Msg("received prescriber upserted event")

	return c.cache.Invalidate(ctx, data.LicenseID)
}

func (c *RegistryEventConsumer) handlePrescriberDeleted(ctx context.Context, event *messaging.Event) error {
	var data messaging.PrescriberDeletedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("license_id", data.LicenseID).
		Msg("received prescriber deleted event")

	return c.cache.Invalidate(ctx, data.LicenseID)
}
