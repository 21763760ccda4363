package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/nanba/pharmacy-backend/internal/order/domain"
	rx "github.com/nanba/pharmacy-backend/internal/prescription/domain"
	"github.com/nanba/pharmacy-backend/pkg/database"
	apperrors "github.com/nanba/pharmacy-backend/pkg/errors"
)

const orderColumns = `id, user_id, full_name, address, phone, payment_method, total_amount,
	prescription_ref, verification_status, flag_reason, doctor_license_detected,
	verified_at, overridden_by, created_at, updated_at`

// OrderRepository handles order persistence
type OrderRepository struct {
	db *database.DB
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *database.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts a new order. The caller assigns the ID.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) error {
	query := `
		INSERT INTO orders (
			id, user_id, full_name, address, phone, payment_method, total_amount,
			prescription_ref, verification_status, flag_reason, doctor_license_detected, verified_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		o.ID, o.UserID, o.FullName, o.Address, o.Phone, o.PaymentMethod, o.TotalAmount,
		o.PrescriptionRef, o.VerificationStatus, o.FlagReason, o.DoctorLicenseDetected, o.VerifiedAt,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return fmt.Errorf("create order: %w", err)
	}

	return nil
}

// GetByID returns an order by ID
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	var o domain.Order
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	if err := r.db.GetContext(ctx, &o, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("order")
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	return &o, nil
}

// List returns orders newest first, with the total count
func (r *OrderRepository) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Order, int64, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}

	where := " WHERE 1=1"
	args := []interface{}{}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(" AND verification_status = $%d", len(args))
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM orders`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	var orders []*domain.Order
	if err := r.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}

	return orders, total, nil
}

// OverrideVerification replaces the verdict and reason under a row lock and
// returns the previous verdict with the updated order. The detected license
// is left as the pipeline recorded it.
func (r *OrderRepository) OverrideVerification(ctx context.Context, id string, verdict rx.Verdict, reason, actorID string) (rx.Verdict, *domain.Order, error) {
	var (
		previous rx.Verdict
		updated  domain.Order
	)

	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &previous,
			`SELECT verification_status FROM orders WHERE id = $1 FOR UPDATE`, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperrors.NotFound("order")
			}
			return fmt.Errorf("lock order: %w", err)
		}

		query := `
			UPDATE orders SET
				verification_status = $2,
				flag_reason = $3,
				overridden_by = $4,
				updated_at = NOW()
			WHERE id = $1
			RETURNING ` + orderColumns

		if err := tx.GetContext(ctx, &updated, query,
			id, verdict, reason, actorID); err != nil {
			if appErr := database.MapPQError(err); appErr != nil {
				return appErr
			}
			return fmt.Errorf("update order verification: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", nil, err
	}

	return previous, &updated, nil
}
