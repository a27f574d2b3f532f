package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// Migrate runs all schema migrations. Statements are idempotent and re-run
// on every open.
func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			// Tolerate "duplicate column name" errors from ALTER TABLE
			// since the migration system re-runs all statements.
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

var migrations = []string{
	// Cached immutable attributes from the external system of record.
	`CREATE TABLE IF NOT EXISTS piano_records (
		id                      TEXT PRIMARY KEY,
		serial                  TEXT,
		make                    TEXT NOT NULL DEFAULT '',
		model                   TEXT NOT NULL DEFAULT '',
		location                TEXT NOT NULL DEFAULT '',
		type                    TEXT NOT NULL DEFAULT 'upright'
		                        CHECK(type IN ('grand','digital_grand','upright')),
		last_service_date       TEXT,
		next_service_date       TEXT,
		service_interval_months INTEGER NOT NULL DEFAULT 0,
		tags                    TEXT NOT NULL DEFAULT '[]',
		stale                   INTEGER NOT NULL DEFAULT 0,
		last_seen_at            TEXT NOT NULL
	)`,

	// Local workflow overlay. No foreign key to piano_records: overlays are
	// keyed by the external id on their own and outlive catalog churn.
	`CREATE TABLE IF NOT EXISTS piano_overlays (
		piano_id                 TEXT PRIMARY KEY,
		status                   TEXT NOT NULL DEFAULT 'normal'
		                         CHECK(status IN ('normal','proposed','top','completed')),
		usage                    TEXT
		                         CHECK(usage IS NULL OR usage IN ('piano','accompaniment','practice','concert','teaching','leisure')),
		assignment_note          TEXT NOT NULL DEFAULT '',
		work_note                TEXT NOT NULL DEFAULT '',
		observations             TEXT NOT NULL DEFAULT '',
		completed_in_campaign_id TEXT,
		completed_at             TEXT,
		is_hidden                INTEGER NOT NULL DEFAULT 0,
		updated_at               TEXT NOT NULL,
		updated_by               TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_piano_overlays_status ON piano_overlays(status)`,

	`CREATE TABLE IF NOT EXISTS campaigns (
		id                     TEXT PRIMARY KEY,
		name                   TEXT NOT NULL CHECK(length(trim(name)) > 0),
		start_date             TEXT NOT NULL,
		end_date               TEXT NOT NULL,
		status                 TEXT NOT NULL DEFAULT 'planned'
		                       CHECK(status IN ('planned','active','archived','completed')),
		institution            TEXT NOT NULL DEFAULT '',
		responsible_technician TEXT,
		notes                  TEXT,
		created_at             TEXT NOT NULL,
		updated_at             TEXT NOT NULL,
		created_by             TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_campaigns_institution_status ON campaigns(institution, status)`,

	`CREATE TABLE IF NOT EXISTS campaign_pianos (
		campaign_id TEXT NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
		piano_id    TEXT NOT NULL,
		is_top      INTEGER NOT NULL DEFAULT 0,
		position    INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (campaign_id, piano_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_campaign_pianos_piano ON campaign_pianos(piano_id)`,

	`CREATE TABLE IF NOT EXISTS campaign_assistants (
		campaign_id TEXT NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
		technician  TEXT NOT NULL,
		PRIMARY KEY (campaign_id, technician)
	)`,
}
