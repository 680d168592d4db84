// Package testutil provides test helpers for whereabouts: an isolated
// in-memory database and builders for places, tasks, and their geofences.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/whereabouts/internal/model"
	"github.com/Veraticus/whereabouts/internal/storage"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a new in-memory test database.
// It automatically handles migrations and cleanup.
//
// Example:
//
//	db := testutil.SetupTestDB(t)
//	_, gl := db.AddPlace(testutil.Alexanderplatz, nil)
//	tg := db.AttachTask("Buy flowers", gl, true)
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{
		Storage: store,
		t:       t,
	}
}

// AddPlace stores a location built from the fixture and opts it into
// geofencing with the given radius override.
func (db *TestDB) AddPlace(place Place, customRadius *int) (*model.Location, *model.GeofenceLocation) {
	db.t.Helper()
	ctx := context.Background()

	location := &model.Location{
		Name:      place.Name,
		Latitude:  place.Latitude,
		Longitude: place.Longitude,
	}
	if err := db.Storage.CreateLocation(ctx, location); err != nil {
		db.t.Fatalf("failed to seed location %q: %v", place.Name, err)
	}

	gl := &model.GeofenceLocation{LocationID: location.ID, CustomRadius: customRadius}
	if err := db.Storage.CreateGeofenceLocation(ctx, gl); err != nil {
		db.t.Fatalf("failed to seed geofence location %q: %v", place.Name, err)
	}
	return location, gl
}

// AttachTask creates a task and binds it to gl, snapshotting gl's
// effective radius under the stored configuration.
func (db *TestDB) AttachTask(title string, gl *model.GeofenceLocation, enabled bool) *model.TaskGeofence {
	db.t.Helper()
	ctx := context.Background()

	cfg, err := db.Storage.GetGeofenceConfig(ctx)
	if err != nil {
		db.t.Fatalf("failed to load geofence config: %v", err)
	}

	task := &model.Task{Title: title}
	if err := db.Storage.CreateTask(ctx, task); err != nil {
		db.t.Fatalf("failed to seed task %q: %v", title, err)
	}

	tg := &model.TaskGeofence{
		TaskID:             task.ID,
		GeofenceLocationID: gl.ID,
		Radius:             gl.EffectiveRadius(*cfg),
		Enabled:            enabled,
	}
	if err := db.Storage.CreateTaskGeofence(ctx, tg); err != nil {
		db.t.Fatalf("failed to seed task geofence %q: %v", title, err)
	}
	return tg
}

// MustGetTaskGeofence returns the stored geofence of a task or fails the test.
func (db *TestDB) MustGetTaskGeofence(taskID string) *model.TaskGeofence {
	db.t.Helper()
	tg, err := db.Storage.GetTaskGeofence(context.Background(), taskID)
	if err != nil {
		db.t.Fatalf("failed to get task geofence %s: %v", taskID, err)
	}
	return tg
}

// MustGetGeofenceLocation returns a stored geofence location or fails the test.
func (db *TestDB) MustGetGeofenceLocation(id string) *model.GeofenceLocation {
	db.t.Helper()
	gl, err := db.Storage.GetGeofenceLocation(context.Background(), id)
	if err != nil {
		db.t.Fatalf("failed to get geofence location %s: %v", id, err)
	}
	return gl
}
