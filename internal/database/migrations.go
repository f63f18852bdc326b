// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package database

import (
	"context"
	"fmt"
	"time"
)

// Migration represents a versioned database migration.
type Migration struct {
	Version     int       // Unique version number (monotonically increasing)
	Name        string    // Human-readable migration name
	Description string    // Description of what this migration does
	SQL         string    // SQL statement to execute
	AppliedAt   time.Time // When the migration was applied (populated on query)
}

// schemaMigrationsTable creates the migration tracking table
const schemaMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT,
	applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// migrations is the ordered schema history. Append only: never modify or
// remove a migration once databases carry it.
var migrations = []Migration{
	{
		Version:     1,
		Name:        "create_travelers",
		Description: "Traveler accounts with the email used for account merging",
		SQL: `CREATE TABLE IF NOT EXISTS travelers (
	id TEXT PRIMARY KEY,
	email TEXT,
	name TEXT,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`,
	},
	{
		Version:     2,
		Name:        "create_bookings",
		Description: "Booking history mirror",
		SQL: `CREATE TABLE IF NOT EXISTS bookings (
	id TEXT PRIMARY KEY,
	traveler_id TEXT NOT NULL,
	airline TEXT NOT NULL DEFAULT '',
	flight_number TEXT,
	price DOUBLE NOT NULL DEFAULT 0,
	currency TEXT,
	departure_date DATE NOT NULL,
	departure_time TEXT NOT NULL DEFAULT '12:00',
	duration_hours DOUBLE NOT NULL DEFAULT 0,
	direct BOOLEAN NOT NULL DEFAULT false,
	state TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`,
	},
	{
		Version:     3,
		Name:        "create_model_artifacts",
		Description: "Versioned ranking model artifacts",
		SQL: `CREATE TABLE IF NOT EXISTS model_artifacts (
	id TEXT PRIMARY KEY,
	version INTEGER NOT NULL,
	strategy TEXT NOT NULL,
	unknown_policy TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT false,
	trained_at TIMESTAMP NOT NULL,
	sample_size INTEGER NOT NULL,
	feature_count INTEGER NOT NULL,
	metrics TEXT,
	training_duration_ms BIGINT NOT NULL DEFAULT 0,
	checksum TEXT NOT NULL,
	size_bytes BIGINT NOT NULL,
	encoder BLOB NOT NULL,
	scaler BLOB NOT NULL,
	model BLOB NOT NULL
);`,
	},
	{
		Version:     4,
		Name:        "index_bookings_traveler",
		Description: "Per-traveler booking reads",
		SQL:         `CREATE INDEX IF NOT EXISTS idx_bookings_traveler ON bookings(traveler_id);`,
	},
	{
		Version:     5,
		Name:        "index_bookings_created",
		Description: "Time-bounded booking reads for training and profile refresh",
		SQL:         `CREATE INDEX IF NOT EXISTS idx_bookings_created ON bookings(created_at);`,
	},
}

// getMigrations returns all versioned migrations in order.
func (db *DB) getMigrations() []Migration {
	return migrations
}

// createMigrationsTable creates the schema_migrations table if it doesn't exist
func (db *DB) createMigrationsTable(ctx context.Context) error {
	_, err := db.conn.ExecContext(ctx, schemaMigrationsTable)
	return err
}

// getAppliedMigrations returns a map of version -> Migration for all applied migrations
func (db *DB) getAppliedMigrations(ctx context.Context) (map[int]Migration, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT version, name, description, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer closeWithLog(rows, db.logger, "migration rows")

	applied := make(map[int]Migration)
	for rows.Next() {
		var m Migration
		if err := rows.Scan(&m.Version, &m.Name, &m.Description, &m.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[m.Version] = m
	}
	return applied, rows.Err()
}

// runVersionedMigrations executes the migrations not yet applied, each in
// its own transaction together with its schema_migrations row.
func (db *DB) runVersionedMigrations() error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := db.createMigrationsTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := db.getAppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	newMigrations := 0
	for _, m := range db.getMigrations() {
		if _, exists := applied[m.Version]; exists {
			continue
		}

		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration v%d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			_ = tx.Rollback() //nolint:errcheck // rollback error is secondary
			return fmt.Errorf("failed to execute migration v%d (%s): %w", m.Version, m.Name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, name, description) VALUES (?, ?, ?)`,
			m.Version, m.Name, m.Description); err != nil {
			_ = tx.Rollback() //nolint:errcheck // rollback error is secondary
			return fmt.Errorf("failed to record migration v%d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration v%d: %w", m.Version, err)
		}
		newMigrations++
	}

	if newMigrations > 0 {
		db.logger.Info().Int("applied", newMigrations).Msg("Applied database migrations")
	}
	return nil
}

// GetCurrentSchemaVersion returns the highest applied migration version
func (db *DB) GetCurrentSchemaVersion(ctx context.Context) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var version int
	err := db.conn.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
