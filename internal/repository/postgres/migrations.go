package postgres

import (
	"context"
	"database/sql"
)

// RunMigrations applies the receipt schema. Safe to run on every startup.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	stmts := []string{

		`CREATE TABLE IF NOT EXISTS receipts (
			reference TEXT PRIMARY KEY,
			original_reference TEXT NOT NULL DEFAULT '',
			transaction_id TEXT NOT NULL DEFAULT '',
			checkout_request_id TEXT NOT NULL DEFAULT '',
			merchant_request_id TEXT NOT NULL DEFAULT '',
			transaction_code TEXT NOT NULL DEFAULT '',
			amount BIGINT NOT NULL,
			loan_amount TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			customer_name TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			status_note TEXT NOT NULL DEFAULT '',
			recorded_at TIMESTAMPTZ NOT NULL,
			is_retry BOOLEAN NOT NULL DEFAULT FALSE
		);`,

		`CREATE INDEX IF NOT EXISTS idx_receipts_phone_recorded_at
			ON receipts (phone, recorded_at DESC);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	return nil
}
