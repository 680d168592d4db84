package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Veraticus/whereabouts/internal/common"
	"github.com/Veraticus/whereabouts/internal/model"
)

func TestGeofenceLocation_CreateAndGet(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	radius := 250
	location, gl := seedGeofenceLocation(t, store, "Grocery", &radius)

	got, err := store.GetGeofenceLocation(ctx, gl.ID)
	if err != nil {
		t.Fatalf("GetGeofenceLocation() error = %v", err)
	}
	if got.LocationID != location.ID {
		t.Errorf("LocationID = %q, want %q", got.LocationID, location.ID)
	}
	if got.CustomRadius == nil || *got.CustomRadius != 250 {
		t.Errorf("CustomRadius = %v, want 250", got.CustomRadius)
	}
	if got.LastUsed != nil || got.UsageCount != 0 || got.IsFrequent {
		t.Errorf("new geofence location has usage state: %+v", got)
	}
	if got.LastStatisticsResetMonth != "" {
		t.Errorf("LastStatisticsResetMonth = %q, want empty", got.LastStatisticsResetMonth)
	}

	byLocation, err := store.GetGeofenceLocationByLocationID(ctx, location.ID)
	if err != nil {
		t.Fatalf("GetGeofenceLocationByLocationID() error = %v", err)
	}
	if byLocation.ID != gl.ID {
		t.Errorf("GetGeofenceLocationByLocationID() id = %q, want %q", byLocation.ID, gl.ID)
	}

	if _, err := store.GetGeofenceLocation(ctx, "missing"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("GetGeofenceLocation(missing) error = %v, want ErrNotFound", err)
	}
}

func TestGeofenceLocation_OnePerLocation(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	location, _ := seedGeofenceLocation(t, store, "Gym", nil)

	err := store.CreateGeofenceLocation(ctx, &model.GeofenceLocation{LocationID: location.ID})
	if !errors.Is(err, common.ErrDuplicateEntry) {
		t.Errorf("second CreateGeofenceLocation() error = %v, want ErrDuplicateEntry", err)
	}
}

func TestGeofenceLocation_MissingLocation(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	err := store.CreateGeofenceLocation(context.Background(), &model.GeofenceLocation{LocationID: "nowhere"})
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("CreateGeofenceLocation() error = %v, want ErrNotFound", err)
	}
}

func TestGeofenceLocation_RadiusBounds(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	location := &model.Location{Name: "Park", Latitude: 1, Longitude: 1}
	if err := store.CreateLocation(ctx, location); err != nil {
		t.Fatalf("CreateLocation() error = %v", err)
	}

	for _, radius := range []int{49, 1001} {
		r := radius
		err := store.CreateGeofenceLocation(ctx, &model.GeofenceLocation{LocationID: location.ID, CustomRadius: &r})
		if !errors.Is(err, ErrInvalidRadius) {
			t.Errorf("CreateGeofenceLocation(radius=%d) error = %v, want ErrInvalidRadius", radius, err)
		}
	}
}

func TestGeofenceLocation_Update(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	_, gl := seedGeofenceLocation(t, store, "Library", nil)

	used := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	radius := 400
	gl.CustomRadius = &radius
	gl.UsageCount = 3
	gl.IsFrequent = true
	gl.LastUsed = &used
	if err := store.UpdateGeofenceLocation(ctx, gl); err != nil {
		t.Fatalf("UpdateGeofenceLocation() error = %v", err)
	}

	got, err := store.GetGeofenceLocation(ctx, gl.ID)
	if err != nil {
		t.Fatalf("GetGeofenceLocation() error = %v", err)
	}
	if got.UsageCount != 3 || !got.IsFrequent || *got.CustomRadius != 400 {
		t.Errorf("GetGeofenceLocation() = %+v", got)
	}
	if got.LastUsed == nil || !got.LastUsed.Equal(used) {
		t.Errorf("LastUsed = %v, want %v", got.LastUsed, used)
	}

	gl.ID = "missing"
	if err := store.UpdateGeofenceLocation(ctx, gl); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("UpdateGeofenceLocation(missing) error = %v, want ErrNotFound", err)
	}
}

func TestGeofenceLocation_OrderedByUsage(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	_, rare := seedGeofenceLocation(t, store, "Rare", nil)
	_, busy := seedGeofenceLocation(t, store, "Busy", nil)
	busy.UsageCount = 7
	if err := store.UpdateGeofenceLocation(ctx, busy); err != nil {
		t.Fatalf("UpdateGeofenceLocation() error = %v", err)
	}

	all, err := store.GetGeofenceLocations(ctx)
	if err != nil {
		t.Fatalf("GetGeofenceLocations() error = %v", err)
	}
	if len(all) != 2 || all[0].ID != busy.ID || all[1].ID != rare.ID {
		t.Errorf("GetGeofenceLocations() order = %+v", all)
	}
}

func TestGeofenceLocation_CascadeFromLocation(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	location, gl := seedGeofenceLocation(t, store, "Pharmacy", nil)
	tg := seedTaskGeofence(t, store, "Pick up prescription", gl, true)

	jan := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 2, 10, 0, 0, 0, time.UTC)
	if _, err := store.RecordGeofenceCheck(ctx, gl.ID, true, jan); err != nil {
		t.Fatalf("RecordGeofenceCheck() error = %v", err)
	}
	if _, err := store.RecordGeofenceCheck(ctx, gl.ID, false, feb); err != nil {
		t.Fatalf("RecordGeofenceCheck() error = %v", err)
	}

	if err := store.DeleteLocation(ctx, location.ID); err != nil {
		t.Fatalf("DeleteLocation() error = %v", err)
	}

	if _, err := store.GetGeofenceLocation(ctx, gl.ID); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("geofence location survived location delete: %v", err)
	}
	if _, err := store.GetTaskGeofence(ctx, tg.TaskID); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("task geofence survived location delete: %v", err)
	}

	var historyRows int
	if err := store.db.QueryRow(`SELECT COUNT(*) FROM geofence_location_statistics_history`).Scan(&historyRows); err != nil {
		t.Fatalf("Failed to count history: %v", err)
	}
	if historyRows != 0 {
		t.Errorf("statistics history rows = %d, want 0", historyRows)
	}

	// The task itself is untouched.
	if _, err := store.GetTask(ctx, tg.TaskID); err != nil {
		t.Errorf("GetTask() after location delete error = %v", err)
	}
}

func TestDeleteGeofenceLocation(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	location, gl := seedGeofenceLocation(t, store, "Hardware store", nil)
	tg := seedTaskGeofence(t, store, "Buy screws", gl, true)
	_, other := seedGeofenceLocation(t, store, "Post office", nil)
	otherTG := seedTaskGeofence(t, store, "Send parcel", other, true)

	jan := time.Date(2024, 1, 9, 10, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 9, 10, 0, 0, 0, time.UTC)
	for _, id := range []string{gl.ID, other.ID} {
		if _, err := store.RecordGeofenceCheck(ctx, id, true, jan); err != nil {
			t.Fatalf("RecordGeofenceCheck() error = %v", err)
		}
		if _, err := store.RecordGeofenceCheck(ctx, id, false, feb); err != nil {
			t.Fatalf("RecordGeofenceCheck() error = %v", err)
		}
	}

	if err := store.DeleteGeofenceLocation(ctx, gl.ID); err != nil {
		t.Fatalf("DeleteGeofenceLocation() error = %v", err)
	}

	if _, err := store.GetGeofenceLocation(ctx, gl.ID); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("GetGeofenceLocation() after delete error = %v, want ErrNotFound", err)
	}
	if _, err := store.GetTaskGeofence(ctx, tg.TaskID); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("task geofence survived geofence location delete: %v", err)
	}

	var historyRows int
	if err := store.db.QueryRow(
		`SELECT COUNT(*) FROM geofence_location_statistics_history WHERE geofence_location_id = ?`, gl.ID,
	).Scan(&historyRows); err != nil {
		t.Fatalf("Failed to count history: %v", err)
	}
	if historyRows != 0 {
		t.Errorf("statistics history rows = %d, want 0", historyRows)
	}

	// The location, the task and the other geofence are untouched.
	if _, err := store.GetLocation(ctx, location.ID); err != nil {
		t.Errorf("GetLocation() after geofence delete error = %v", err)
	}
	if _, err := store.GetTask(ctx, tg.TaskID); err != nil {
		t.Errorf("GetTask() after geofence delete error = %v", err)
	}
	if _, err := store.GetTaskGeofence(ctx, otherTG.TaskID); err != nil {
		t.Errorf("other task geofence error = %v", err)
	}
	history, err := store.GetStatisticsHistory(ctx, other.ID)
	if err != nil {
		t.Fatalf("GetStatisticsHistory() error = %v", err)
	}
	if len(history) != 1 {
		t.Errorf("other history length = %d, want 1", len(history))
	}

	if err := store.DeleteGeofenceLocation(ctx, gl.ID); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("second DeleteGeofenceLocation() error = %v, want ErrNotFound", err)
	}
	if err := store.DeleteGeofenceLocation(ctx, ""); err == nil {
		t.Error("DeleteGeofenceLocation(\"\") error = nil")
	}
}
