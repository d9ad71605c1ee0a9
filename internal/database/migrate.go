package database

import (
	"context"
	"database/sql"
	"fmt"
)

// The partial unique index is what enforces order-level idempotency: at most
// one pending-or-paid link per order, regardless of how many expired or
// cancelled attempts exist.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS payment_links (
	id         BIGSERIAL PRIMARY KEY,
	token      TEXT NOT NULL UNIQUE,
	order_id   TEXT NOT NULL,
	email      TEXT NOT NULL,
	amount     NUMERIC(12,2) NOT NULL CHECK (amount > 0),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	status     TEXT NOT NULL DEFAULT 'pending'
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_payment_links_active_order
	ON payment_links (order_id)
	WHERE status IN ('pending', 'paid');

CREATE INDEX IF NOT EXISTS idx_payment_links_order_status
	ON payment_links (order_id, status);

CREATE INDEX IF NOT EXISTS idx_payment_links_created_at
	ON payment_links (created_at DESC);
`

// Migrate applies the payment_links schema. Safe to run on every startup.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
