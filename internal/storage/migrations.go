package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 2

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS locations (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					latitude REAL NOT NULL,
					longitude REAL NOT NULL,
					accuracy REAL,
					altitude REAL,
					address TEXT,
					city TEXT,
					region TEXT,
					country TEXT,
					postal_code TEXT,
					source TEXT NOT NULL DEFAULT 'MANUAL',
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_locations_name ON locations(name)`,

				`CREATE TABLE IF NOT EXISTS tasks (
					id TEXT PRIMARY KEY,
					title TEXT NOT NULL,
					notes TEXT,
					completed BOOLEAN NOT NULL DEFAULT 0,
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL
				)`,

				`CREATE TABLE IF NOT EXISTS geofence_config (
					id INTEGER PRIMARY KEY CHECK (id = 1),
					enabled BOOLEAN NOT NULL,
					default_radius INTEGER NOT NULL CHECK (default_radius BETWEEN 50 AND 1000),
					accuracy_threshold REAL NOT NULL,
					auto_refresh_seconds INTEGER NOT NULL,
					power_mode TEXT NOT NULL,
					notify_when_outside BOOLEAN NOT NULL,
					updated_at DATETIME NOT NULL
				)`,

				`CREATE TABLE IF NOT EXISTS geofence_locations (
					id TEXT PRIMARY KEY,
					location_id TEXT NOT NULL UNIQUE,
					custom_radius INTEGER CHECK (custom_radius IS NULL OR custom_radius BETWEEN 50 AND 1000),
					is_frequent BOOLEAN NOT NULL DEFAULT 0,
					usage_count INTEGER NOT NULL DEFAULT 0,
					last_used DATETIME,
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL,
					FOREIGN KEY (location_id) REFERENCES locations(id) ON DELETE CASCADE
				)`,

				`CREATE TABLE IF NOT EXISTS task_geofences (
					id TEXT PRIMARY KEY,
					task_id TEXT NOT NULL UNIQUE,
					geofence_location_id TEXT NOT NULL,
					radius INTEGER NOT NULL CHECK (radius > 0),
					enabled BOOLEAN NOT NULL DEFAULT 1,
					last_check_result TEXT,
					last_check_distance REAL,
					last_check_latitude REAL,
					last_check_longitude REAL,
					last_check_time DATETIME,
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL,
					FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE,
					FOREIGN KEY (geofence_location_id) REFERENCES geofence_locations(id) ON DELETE CASCADE
				)`,
				`CREATE INDEX idx_task_geofences_location ON task_geofences(geofence_location_id, enabled)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add monthly geofence statistics and history",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`ALTER TABLE geofence_locations ADD COLUMN monthly_check_count INTEGER NOT NULL DEFAULT 0`,
				`ALTER TABLE geofence_locations ADD COLUMN monthly_hit_count INTEGER NOT NULL DEFAULT 0`,
				`ALTER TABLE geofence_locations ADD COLUMN last_statistics_reset_month TEXT`,

				`CREATE TABLE IF NOT EXISTS geofence_location_statistics_history (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					geofence_location_id TEXT NOT NULL,
					month TEXT NOT NULL,
					check_count INTEGER NOT NULL,
					hit_count INTEGER NOT NULL,
					hit_rate REAL NOT NULL,
					archived_at DATETIME NOT NULL,
					UNIQUE (geofence_location_id, month),
					FOREIGN KEY (geofence_location_id) REFERENCES geofence_locations(id) ON DELETE CASCADE
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
}

// SchemaVersion returns the schema version recorded in the database.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	currentVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	finalVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
