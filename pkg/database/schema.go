package database

import (
	"context"
	"fmt"
)

// Schema is the order service's DDL. Statements are idempotent so Migrate can
// run on every start and inside test containers.
const Schema = `
CREATE TABLE IF NOT EXISTS prescribers (
	license_id  VARCHAR(9) PRIMARY KEY,
	name        VARCHAR(255) NOT NULL,
	status      VARCHAR(16) NOT NULL,
	expiry_date DATE NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT prescribers_license_format CHECK (license_id ~ '^REG-[0-9]{5}$'),
	CONSTRAINT prescribers_status_valid CHECK (status IN ('Active', 'Suspended'))
);

CREATE TABLE IF NOT EXISTS orders (
	id                      UUID PRIMARY KEY,
	user_id                 VARCHAR(64) NOT NULL,
	full_name               VARCHAR(100) NOT NULL,
	address                 VARCHAR(500) NOT NULL,
	phone                   VARCHAR(20) NOT NULL,
	payment_method          VARCHAR(20) NOT NULL,
	total_amount            NUMERIC(12, 2) NOT NULL,
	prescription_ref        VARCHAR(255),
	verification_status     VARCHAR(16) NOT NULL,
	flag_reason             TEXT NOT NULL,
	doctor_license_detected VARCHAR(32) NOT NULL,
	verified_at             TIMESTAMPTZ,
	overridden_by           VARCHAR(64),
	created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT orders_total_positive CHECK (total_amount > 0),
	CONSTRAINT orders_status_valid CHECK (verification_status IN
		('Pending', 'Approved', 'Flagged', 'Blocked', 'ManualReview', 'Error'))
);

CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_orders_verification_status ON orders(verification_status);
`

// Migrate applies Schema
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
