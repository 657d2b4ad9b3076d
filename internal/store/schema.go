package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ddl is valid for both PostgreSQL and SQLite
var ddl = []string{
	`CREATE TABLE IF NOT EXISTS operators (
		registry_id TEXT PRIMARY KEY,
		tax_id TEXT NOT NULL,
		legal_name TEXT NOT NULL DEFAULT '',
		trade_name TEXT NOT NULL DEFAULT '',
		modality TEXT NOT NULL DEFAULT '',
		street TEXT NOT NULL DEFAULT '',
		number TEXT NOT NULL DEFAULT '',
		complement TEXT NOT NULL DEFAULT '',
		district TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		region TEXT NOT NULL DEFAULT '',
		zip_code TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		registration_date TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_operators_tax_id ON operators (tax_id)`,
	`CREATE INDEX IF NOT EXISTS idx_operators_region ON operators (region)`,
	`CREATE TABLE IF NOT EXISTS consolidated_expenses (
		registry_id TEXT NOT NULL,
		entity_name TEXT NOT NULL DEFAULT '',
		year INTEGER NOT NULL,
		quarter INTEGER NOT NULL,
		summed_amount NUMERIC(18, 2) NOT NULL,
		PRIMARY KEY (registry_id, year, quarter)
	)`,
	`CREATE TABLE IF NOT EXISTS aggregated_expenses (
		legal_name TEXT NOT NULL,
		region TEXT NOT NULL,
		total NUMERIC(18, 2) NOT NULL,
		mean DOUBLE PRECISION NOT NULL,
		std_dev DOUBLE PRECISION,
		count INTEGER NOT NULL,
		PRIMARY KEY (legal_name, region)
	)`,
	`CREATE TABLE IF NOT EXISTS pipeline_runs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		rows_read INTEGER NOT NULL DEFAULT 0,
		rows_retained INTEGER NOT NULL DEFAULT 0,
		rows_consolidated INTEGER NOT NULL DEFAULT 0,
		rows_quarantined INTEGER NOT NULL DEFAULT 0,
		error_message TEXT NOT NULL DEFAULT ''
	)`,
}

// Migrate creates the tables when they do not exist yet
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range ddl {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
