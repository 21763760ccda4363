package service

import (
	"context"

	"github.com/nanba/pharmacy-backend/internal/prescription/domain"
	"github.com/nanba/pharmacy-backend/internal/prescription/events"
	"github.com/nanba/pharmacy-backend/internal/prescription/license"
	"github.com/nanba/pharmacy-backend/internal/prescription/repository"
	"github.com/nanba/pharmacy-backend/pkg/errors"
	"github.com/nanba/pharmacy-backend/pkg/logger"
)

// PrescriberStore is the registry persistence used by RegistryService
type PrescriberStore interface {
	license.Lookup
	List(ctx context.Context, filter repository.ListFilter) ([]*domain.PrescriberRecord, int64, error)
	Upsert(ctx context.Context, rec *domain.PrescriberRecord) error
	Delete(ctx context.Context, licenseID string) error
}

// RegistryService manages the prescriber registry for staff
type RegistryService struct {
	store     PrescriberStore
	cache     events.Invalidator
	publisher *events.RegistryEventPublisher
	logger    *logger.Logger
}

// NewRegistryService creates a new registry service. cache may be nil when
// lookups are not cached.
func NewRegistryService(store PrescriberStore, cache events.Invalidator, publisher *events.RegistryEventPublisher, log *logger.Logger) *RegistryService {
	return &RegistryService{
		store:     store,
		cache:     cache,
		publisher: publisher,
		logger:    log,
	}
}

func invalidLicenseID() error {
	return errors.Validation(map[string]string{"license_id": "must match REG-NNNNN"})
}

// List lists registry entries, optionally filtered by status
func (s *RegistryService) List(ctx context.Context, status string, page, perPage int) ([]*domain.PrescriberRecord, int64, error) {
	filter := repository.ListFilter{
		Limit:  perPage,
		Offset: (page - 1) * perPage,
	}
	if status != "" {
		filter.Status = domain.PrescriberStatus(status)
		if !filter.Status.Valid() {
			return nil, 0, errors.Validation(map[string]string{"status": "must be one of: Active Suspended"})
		}
	}

	records, total, err := s.store.List(ctx, filter)
	if err != nil {
		s.log(ctx).Error().Err(err).Msg("failed to list prescribers")
		return nil, 0, errors.Internal("failed to list prescribers")
	}
	if records == nil {
		records = []*domain.PrescriberRecord{}
	}
	return records, total, nil
}

// Get returns one registry entry
func (s *RegistryService) Get(ctx context.Context, licenseID string) (*domain.PrescriberRecord, error) {
	if !license.Valid(licenseID) {
		return nil, invalidLicenseID()
	}

	rec, err := s.store.FindByLicenseID(ctx, licenseID)
	if err != nil {
		s.log(ctx).Error().Err(err).Str("license_id", licenseID).Msg("failed to load prescriber")
		return nil, errors.Internal("failed to load prescriber")
	}
	if rec == nil {
		return nil, errors.NotFound("prescriber")
	}
	return rec, nil
}

// Upsert creates or replaces the entry for licenseID
func (s *RegistryService) Upsert(ctx context.Context, licenseID string, req *domain.UpsertPrescriberRequest) (*domain.PrescriberRecord, error) {
	if !license.Valid(licenseID) {
		return nil, invalidLicenseID()
	}

	rec, err := req.Record(licenseID)
	if err != nil {
		return nil, errors.Validation(map[string]string{"expiry_date": "must be a date formatted as " + domain.DateLayout})
	}

	if err := s.store.Upsert(ctx, rec); err != nil {
		if appErr, ok := errors.AsAppError(err); ok {
			return nil, appErr
		}
		s.log(ctx).Error().Err(err).Str("license_id", licenseID).Msg("failed to upsert prescriber")
		return nil, errors.Internal("failed to save prescriber")
	}

	s.invalidate(ctx, licenseID)
	s.publisher.PublishPrescriberUpserted(ctx, rec)

	s.log(ctx).Info().
		Str("license_id", rec.LicenseID).
		Str("status", string(rec.Status)).
		Msg("prescriber saved")

	return rec, nil
}

// Delete removes the entry for licenseID
func (s *RegistryService) Delete(ctx context.Context, licenseID string) error {
	if !license.Valid(licenseID) {
		return invalidLicenseID()
	}

	if err := s.store.Delete(ctx, licenseID); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return err
		}
		s.log(ctx).Error().Err(err).Str("license_id", licenseID).Msg("failed to delete prescriber")
		return errors.Internal("failed to delete prescriber")
	}

	s.invalidate(ctx, licenseID)
	s.publisher.PublishPrescriberDeleted(ctx, licenseID)

	s.log(ctx).Info().Str("license_id", licenseID).Msg("prescriber deleted")
	return nil
}

// invalidate drops this replica's cached entry; other replicas follow the event
func (s *RegistryService) invalidate(ctx context.Context, licenseID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, licenseID); err != nil {
		s.log(ctx).Warn().Err(err).Str("license_id", licenseID).Msg("failed to invalidate prescriber cache")
	}
}

// log prefers the request-scoped logger so entries carry the request ID
func (s *RegistryService) log(ctx context.Context) *logger.Logger {
	return logger.FromContext(ctx, s.logger)
}
