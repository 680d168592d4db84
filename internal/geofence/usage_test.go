package geofence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/whereabouts/internal/testutil"
)

var day = 24 * time.Hour

func TestUsageUpdater_BecomesFrequentWithinWindow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	_, gl := db.AddPlace(testutil.Alexanderplatz, nil)

	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	u := NewUsageUpdater(db.Storage, RecencyCurrentUse)
	u.now = fixedClock(&now)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		got, err := u.UpdateUsage(ctx, gl.ID)
		require.NoError(t, err)
		assert.False(t, got.IsFrequent, "use %d", i+1)
		now = now.Add(5 * day)
	}

	got, err := u.UpdateUsage(ctx, gl.ID)
	require.NoError(t, err)
	assert.True(t, got.IsFrequent)
	assert.Equal(t, 3, got.UsageCount)

	stored := db.MustGetGeofenceLocation(gl.ID)
	assert.True(t, stored.IsFrequent)
	assert.Equal(t, 3, stored.UsageCount)
	require.NotNil(t, stored.LastUsed)
	assert.True(t, stored.LastUsed.Equal(now))
}

func TestUsageUpdater_RecencyPolicies(t *testing.T) {
	tests := []struct {
		name   string
		policy RecencyPolicy
		want   bool
	}{
		// The use being recorded is always inside the window.
		{name: "current use", policy: RecencyCurrentUse, want: true},
		// The previous use is 31 days old, outside the window.
		{name: "previous use", policy: RecencyPreviousUse, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.SetupTestDB(t)
			_, gl := db.AddPlace(testutil.BrandenburgGate, nil)

			first := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
			now := first
			u := NewUsageUpdater(db.Storage, tt.policy)
			u.now = fixedClock(&now)
			ctx := context.Background()

			_, err := u.UpdateUsage(ctx, gl.ID)
			require.NoError(t, err)
			_, err = u.UpdateUsage(ctx, gl.ID)
			require.NoError(t, err)

			now = first.Add(31 * day)
			got, err := u.UpdateUsage(ctx, gl.ID)
			require.NoError(t, err)

			assert.Equal(t, 3, got.UsageCount)
			assert.Equal(t, tt.want, got.IsFrequent)
		})
	}
}

func TestUsageUpdater_PreviousUseWithinWindow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	_, gl := db.AddPlace(testutil.CentralPark, nil)

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	u := NewUsageUpdater(db.Storage, RecencyPreviousUse)
	u.now = fixedClock(&now)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := u.UpdateUsage(ctx, gl.ID)
		require.NoError(t, err)
		now = now.Add(10 * day)
	}
	assert.True(t, db.MustGetGeofenceLocation(gl.ID).IsFrequent)
}

func TestUsageUpdater_MissingLocation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	u := NewUsageUpdater(db.Storage, RecencyCurrentUse)

	_, err := u.UpdateUsage(context.Background(), "missing")
	require.Error(t, err)
}

func TestUsageUpdater_RepairFrequentFlags(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	stale := now.Add(-40 * day)
	recent := now.Add(-2 * day)

	// Flagged frequent but last used 40 days ago.
	_, expired := db.AddPlace(testutil.Alexanderplatz, nil)
	expired.UsageCount, expired.LastUsed, expired.IsFrequent = 5, &stale, true
	require.NoError(t, db.Storage.UpdateGeofenceLocation(ctx, expired))

	// Qualifies but never flagged.
	_, missed := db.AddPlace(testutil.BrandenburgGate, nil)
	missed.UsageCount, missed.LastUsed = 3, &recent
	require.NoError(t, db.Storage.UpdateGeofenceLocation(ctx, missed))

	// Already correct.
	_, steady := db.AddPlace(testutil.CentralPark, nil)
	steady.UsageCount, steady.LastUsed, steady.IsFrequent = 9, &recent, true
	require.NoError(t, db.Storage.UpdateGeofenceLocation(ctx, steady))

	u := NewUsageUpdater(db.Storage, RecencyCurrentUse)
	u.now = fixedClock(&now)

	calls := 0
	changed, err := u.RepairFrequentFlags(ctx, func(_, _ int) { calls++ })
	require.NoError(t, err)
	assert.Equal(t, 2, changed)
	assert.Equal(t, 3, calls)

	assert.False(t, db.MustGetGeofenceLocation(expired.ID).IsFrequent)
	assert.True(t, db.MustGetGeofenceLocation(missed.ID).IsFrequent)
	assert.True(t, db.MustGetGeofenceLocation(steady.ID).IsFrequent)
}

func TestParseRecencyPolicy(t *testing.T) {
	p, err := ParseRecencyPolicy("previous")
	require.NoError(t, err)
	assert.Equal(t, RecencyPreviousUse, p)

	p, err = ParseRecencyPolicy("")
	require.NoError(t, err)
	assert.Equal(t, RecencyCurrentUse, p)

	_, err = ParseRecencyPolicy("sometimes")
	assert.Error(t, err)
}
