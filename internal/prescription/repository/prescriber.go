package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nanba/pharmacy-backend/internal/prescription/domain"
	"github.com/nanba/pharmacy-backend/pkg/database"
	apperrors "github.com/nanba/pharmacy-backend/pkg/errors"
)

const prescriberColumns = `license_id, name, status, expiry_date, created_at, updated_at`

// ListFilter narrows prescriber listings
type ListFilter struct {
	Status domain.PrescriberStatus
	Limit  int
	Offset int
}

// PrescriberRepository handles prescriber registry persistence
type PrescriberRepository struct {
	db *database.DB
}

// NewPrescriberRepository creates a new prescriber repository
func NewPrescriberRepository(db *database.DB) *PrescriberRepository {
	return &PrescriberRepository{db: db}
}

// FindByLicenseID returns the record with the exact license number, or
// (nil, nil) when there is none.
func (r *PrescriberRepository) FindByLicenseID(ctx context.Context, licenseID string) (*domain.PrescriberRecord, error) {
	var rec domain.PrescriberRecord
	query := `SELECT ` + prescriberColumns + ` FROM prescribers WHERE license_id = $1`

	if err := r.db.GetContext(ctx, &rec, query, licenseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find prescriber: %w", err)
	}

	return &rec, nil
}

// List returns prescribers ordered by license number, with the total count
func (r *PrescriberRepository) List(ctx context.Context, filter ListFilter) ([]*domain.PrescriberRecord, int64, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}

	where := ""
	args := []interface{}{}
	if filter.Status != "" {
		where = ` WHERE status = $1`
		args = append(args, filter.Status)
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM prescribers`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count prescribers: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM prescribers%s ORDER BY license_id LIMIT $%d OFFSET $%d`,
		prescriberColumns, where, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	var records []*domain.PrescriberRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list prescribers: %w", err)
	}

	return records, total, nil
}

// Upsert creates or replaces the record keyed by license number
func (r *PrescriberRepository) Upsert(ctx context.Context, rec *domain.PrescriberRecord) error {
	query := `
		INSERT INTO prescribers (license_id, name, status, expiry_date)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (license_id) DO UPDATE SET
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			expiry_date = EXCLUDED.expiry_date,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query, rec.LicenseID, rec.Name, rec.Status, rec.ExpiryDate).
		Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return fmt.Errorf("upsert prescriber: %w", err)
	}

	return nil
}

// Delete removes a record
func (r *PrescriberRepository) Delete(ctx context.Context, licenseID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM prescribers WHERE license_id = $1`, licenseID)
	if err != nil {
		return fmt.Errorf("delete prescriber: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete prescriber: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("prescriber")
	}

	return nil
}
