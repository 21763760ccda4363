package database

import (
	"strings"

	"github.com/lib/pq"
	"github.com/nanba/pharmacy-backend/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error or the code is not mapped.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return errors.Conflict(formatConstraintMessage(pqErr))

	// Foreign key violation (23503)
	case "23503":
		return errors.BadRequest("referenced record does not exist")

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	// Numeric value out of range (22003)
	case "22003":
		col := pqErr.Column
		if col == "" {
			col = "value"
		}
		return errors.Validation(map[string]string{
			col: "out of range",
		})

	// Invalid text representation (22P02)
	case "22P02":
		return errors.BadRequest("invalid input value")

	default:
		return nil
	}
}

func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "license_format"):
		return errors.Validation(map[string]string{
			"license_id": "must match REG-NNNNN",
		})

	case strings.Contains(constraint, "prescribers_status_valid"):
		return errors.Validation(map[string]string{
			"status": "must be one of: Active, Suspended",
		})

	case strings.Contains(constraint, "orders_status_valid"):
		return errors.Validation(map[string]string{
			"verification_status": "must be one of: Pending, Approved, Flagged, Blocked, ManualReview, Error",
		})

	case strings.Contains(constraint, "total_positive"):
		return errors.Validation(map[string]string{
			"total_amount": "must be greater than zero",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

func formatConstraintMessage(pqErr *pq.Error) string {
	switch {
	case strings.Contains(pqErr.Constraint, "prescribers_pkey"):
		return "a prescriber with this license number already exists"
	case strings.Contains(pqErr.Constraint, "orders_pkey"):
		return "an order with this id already exists"
	default:
		return "a record with these values already exists"
	}
}
