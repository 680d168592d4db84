package geofence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/whereabouts/internal/model"
	"github.com/Veraticus/whereabouts/internal/service"
	"github.com/Veraticus/whereabouts/internal/testutil"
)

func newTestHandler(storage service.Storage, notifier service.Notifier, now *time.Time) *TransitionHandler {
	usage := NewUsageUpdater(storage, RecencyCurrentUse)
	stats := NewStatisticsUpdater(storage)
	h := NewTransitionHandler(storage, usage, stats, notifier)
	if now != nil {
		usage.now = fixedClock(now)
		stats.now = fixedClock(now)
		h.now = fixedClock(now)
	}
	return h
}

func TestTransitionHandler_EnterUpdatesAllTasksAndCountsOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	_, gl := db.AddPlace(testutil.Alexanderplatz, nil)
	first := db.AttachTask("Buy flowers", gl, true)
	second := db.AttachTask("Pick up keys", gl, true)

	now := time.Date(2024, 2, 10, 18, 0, 0, 0, time.UTC)
	h := newTestHandler(db.Storage, nil, &now)

	result := h.Handle(context.Background(), model.TransitionEvent{
		Timestamp:  now,
		Transition: model.TransitionEnter,
		RegionIDs:  []string{gl.ID},
	})

	assert.False(t, result.Dropped)
	assert.Equal(t, 1, result.Regions)
	assert.Equal(t, 2, result.TasksUpdated)
	assert.Zero(t, result.Failed)

	for _, tg := range []*model.TaskGeofence{first, second} {
		got := db.MustGetTaskGeofence(tg.TaskID)
		assert.Equal(t, model.InsideGeofence, got.LastCheckResult)
		assert.Nil(t, got.LastCheckDistance)
		assert.Nil(t, got.LastCheckLatitude)
		assert.Nil(t, got.LastCheckLongitude)
		require.NotNil(t, got.LastCheckTime)
		assert.True(t, got.LastCheckTime.Equal(now))
	}

	stored := db.MustGetGeofenceLocation(gl.ID)
	assert.Equal(t, 1, stored.MonthlyCheckCount)
	assert.Equal(t, 1, stored.MonthlyHitCount)
	assert.Equal(t, "2024-02", stored.LastStatisticsResetMonth)
	assert.Equal(t, 1, stored.UsageCount)
}

func TestTransitionHandler_ExitMarksOutside(t *testing.T) {
	db := testutil.SetupTestDB(t)
	_, gl := db.AddPlace(testutil.BrandenburgGate, nil)
	tg := db.AttachTask("Return library book", gl, true)

	h := newTestHandler(db.Storage, nil, nil)
	result := h.Handle(context.Background(), model.TransitionEvent{
		Transition: model.TransitionExit,
		RegionIDs:  []string{gl.ID},
	})
	assert.Equal(t, 1, result.TasksUpdated)

	got := db.MustGetTaskGeofence(tg.TaskID)
	assert.Equal(t, model.OutsideGeofence, got.LastCheckResult)
	require.NotNil(t, got.LastCheckTime)

	stored := db.MustGetGeofenceLocation(gl.ID)
	assert.Equal(t, 1, stored.MonthlyCheckCount)
	assert.Zero(t, stored.MonthlyHitCount)
	assert.Zero(t, stored.UsageCount, "exit does not count as a use")
}

func TestTransitionHandler_DisabledTasksUntouched(t *testing.T) {
	db := testutil.SetupTestDB(t)
	_, gl := db.AddPlace(testutil.CentralPark, nil)
	tg := db.AttachTask("Feed ducks", gl, false)

	h := newTestHandler(db.Storage, nil, nil)
	result := h.Handle(context.Background(), model.TransitionEvent{
		Transition: model.TransitionEnter,
		RegionIDs:  []string{gl.ID},
	})
	assert.Zero(t, result.TasksUpdated)

	got := db.MustGetTaskGeofence(tg.TaskID)
	assert.Equal(t, model.CheckResultUnknown, got.LastCheckResult)

	stored := db.MustGetGeofenceLocation(gl.ID)
	assert.Zero(t, stored.MonthlyCheckCount)
	assert.Equal(t, 1, stored.UsageCount, "enter still records a use")
}

func TestTransitionHandler_DropsInvalidEvents(t *testing.T) {
	db := testutil.SetupTestDB(t)
	_, gl := db.AddPlace(testutil.Alexanderplatz, nil)
	tg := db.AttachTask("Buy flowers", gl, true)

	tests := []struct {
		name  string
		event model.TransitionEvent
	}{
		{name: "host error", event: model.TransitionEvent{ErrorCode: 1000, Transition: model.TransitionEnter, RegionIDs: []string{gl.ID}}},
		{name: "no regions", event: model.TransitionEvent{Transition: model.TransitionEnter}},
		{name: "unknown transition", event: model.TransitionEvent{Transition: "DWELL", RegionIDs: []string{gl.ID}}},
	}

	h := newTestHandler(db.Storage, nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := h.Handle(context.Background(), tt.event)
			assert.True(t, result.Dropped)
			assert.Zero(t, result.TasksUpdated)
		})
	}

	assert.Equal(t, model.CheckResultUnknown, db.MustGetTaskGeofence(tg.TaskID).LastCheckResult)
	assert.Zero(t, db.MustGetGeofenceLocation(gl.ID).UsageCount)
}

func TestTransitionHandler_UnknownRegionIsSkipped(t *testing.T) {
	db := testutil.SetupTestDB(t)
	_, gl := db.AddPlace(testutil.Alexanderplatz, nil)
	tg := db.AttachTask("Buy flowers", gl, true)

	h := newTestHandler(db.Storage, nil, nil)
	result := h.Handle(context.Background(), model.TransitionEvent{
		Transition: model.TransitionEnter,
		RegionIDs:  []string{"deleted-after-registration", gl.ID},
	})

	assert.Equal(t, 2, result.Regions)
	assert.Zero(t, result.Failed)
	assert.Equal(t, 1, result.TasksUpdated)
	assert.Equal(t, model.InsideGeofence, db.MustGetTaskGeofence(tg.TaskID).LastCheckResult)
}

func TestTransitionHandler_RegionFailuresAreIsolated(t *testing.T) {
	db := testutil.SetupTestDB(t)
	_, healthy := db.AddPlace(testutil.Alexanderplatz, nil)
	_, panics := db.AddPlace(testutil.BrandenburgGate, nil)
	_, fails := db.AddPlace(testutil.CentralPark, nil)
	tg := db.AttachTask("Buy flowers", healthy, true)
	db.AttachTask("Photograph the gate", panics, true)
	db.AttachTask("Feed ducks", fails, true)

	storage := &failingStorage{
		Storage: &panickingStorage{Storage: db.Storage, panicOn: panics.ID},
		failOn:  fails.ID,
	}
	h := newTestHandler(storage, nil, nil)

	result := h.Handle(context.Background(), model.TransitionEvent{
		Transition: model.TransitionEnter,
		RegionIDs:  []string{panics.ID, fails.ID, healthy.ID},
	})

	assert.Equal(t, 3, result.Regions)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, 1, result.TasksUpdated)
	assert.Equal(t, model.InsideGeofence, db.MustGetTaskGeofence(tg.TaskID).LastCheckResult)
}

func TestTransitionHandler_Notifications(t *testing.T) {
	tests := []struct {
		name          string
		transition    model.Transition
		notifyOutside bool
		wantReminders int
	}{
		{name: "enter", transition: model.TransitionEnter, wantReminders: 2},
		{name: "exit without opt-in", transition: model.TransitionExit, wantReminders: 0},
		{name: "exit with opt-in", transition: model.TransitionExit, notifyOutside: true, wantReminders: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.SetupTestDB(t)
			ctx := context.Background()

			cfg, err := db.Storage.GetGeofenceConfig(ctx)
			require.NoError(t, err)
			cfg.NotifyWhenOutside = tt.notifyOutside
			require.NoError(t, db.Storage.SaveGeofenceConfig(ctx, cfg))

			location, gl := db.AddPlace(testutil.Alexanderplatz, nil)
			db.AttachTask("Buy flowers", gl, true)
			db.AttachTask("Pick up keys", gl, true)

			notifier := &recordingNotifier{}
			h := newTestHandler(db.Storage, notifier, nil)
			h.Handle(ctx, model.TransitionEvent{Transition: tt.transition, RegionIDs: []string{gl.ID}})

			reminders := notifier.Reminders()
			require.Len(t, reminders, tt.wantReminders)
			for _, r := range reminders {
				assert.Equal(t, location.Name, r.LocationName)
				assert.Equal(t, tt.transition, r.Transition)
				assert.NotEmpty(t, r.TaskTitle)
			}
		})
	}
}
