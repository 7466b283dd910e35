package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
)

// schemaStatements are safe to run on every boot
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS contractors (
		id SERIAL PRIMARY KEY,
		name TEXT,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS leads (
		id SERIAL PRIMARY KEY,
		project_type TEXT NOT NULL,
		budget TEXT NOT NULL,
		timeline TEXT NOT NULL,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		phone TEXT,
		zip TEXT,
		score INT NOT NULL DEFAULT 0,
		summary TEXT,
		contractor_id INT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`ALTER TABLE leads ADD COLUMN IF NOT EXISTS contractor_id INT`,
	`ALTER TABLE leads ADD COLUMN IF NOT EXISTS transcript TEXT`,
	`CREATE INDEX IF NOT EXISTS idx_leads_contractor_created ON leads (contractor_id, created_at DESC)`,
}

// EnsureSchema creates the contractors and leads tables if they are missing
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d failed: %w", i+1, err)
		}
	}
	log.Info().Int("statements", len(schemaStatements)).Msg("Database schema ready")
	return nil
}
