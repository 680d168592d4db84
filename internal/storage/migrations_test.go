package storage

import (
	"context"
	"testing"
)

func TestMigrate_SchemaVersion(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	version, err := store.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if version != ExpectedSchemaVersion {
		t.Errorf("SchemaVersion() = %d, want %d", version, ExpectedSchemaVersion)
	}

	// Running again is a no-op.
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrate_CreatesTables(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	tables := []string{
		"locations",
		"tasks",
		"geofence_config",
		"geofence_locations",
		"task_geofences",
		"geofence_location_statistics_history",
	}

	for _, table := range tables {
		t.Run(table, func(t *testing.T) {
			var count int
			err := store.db.QueryRow(`
				SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name = ?
			`, table).Scan(&count)
			if err != nil {
				t.Fatalf("Failed to query sqlite_master: %v", err)
			}
			if count != 1 {
				t.Errorf("table %s was not created", table)
			}
		})
	}
}

func TestMigrate_ForeignKeysEnabled(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	var enabled int
	if err := store.db.QueryRow(`PRAGMA foreign_keys`).Scan(&enabled); err != nil {
		t.Fatalf("Failed to read foreign_keys pragma: %v", err)
	}
	if enabled != 1 {
		t.Error("foreign keys are not enforced; cascading deletes would silently break")
	}
}
