package geofence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/whereabouts/internal/model"
	"github.com/Veraticus/whereabouts/internal/service"
)

// RecencyPolicy selects which use must fall inside the recency window for a
// location to count as frequent.
type RecencyPolicy int

// Recency policies.
const (
	// RecencyCurrentUse evaluates the use being recorded, so recording a use
	// always satisfies the window.
	RecencyCurrentUse RecencyPolicy = iota
	// RecencyPreviousUse requires the use before the one being recorded to
	// fall inside the window.
	RecencyPreviousUse
)

// ParseRecencyPolicy maps a configuration value onto a policy.
func ParseRecencyPolicy(s string) (RecencyPolicy, error) {
	switch s {
	case "", "current":
		return RecencyCurrentUse, nil
	case "previous":
		return RecencyPreviousUse, nil
	default:
		return RecencyCurrentUse, fmt.Errorf("unknown recency policy %q", s)
	}
}

// IsFrequent applies the frequent-location predicate: enough uses, and the
// reference use inside the recency window ending at now.
func IsFrequent(usageCount int, reference *time.Time, now time.Time) bool {
	if usageCount < model.FrequentUsageThreshold || reference == nil {
		return false
	}
	return now.Sub(*reference) <= model.FrequentRecencyWindow
}

// UsageUpdater maintains usage counts and the frequent flag of geofence locations.
type UsageUpdater struct {
	storage service.Storage
	now     func() time.Time
	policy  RecencyPolicy
}

// NewUsageUpdater creates a UsageUpdater.
func NewUsageUpdater(storage service.Storage, policy RecencyPolicy) *UsageUpdater {
	return &UsageUpdater{
		storage: storage,
		policy:  policy,
		now:     time.Now,
	}
}

// UpdateUsage records one use of a geofence location.
func (u *UsageUpdater) UpdateUsage(ctx context.Context, geofenceLocationID string) (*model.GeofenceLocation, error) {
	gl, err := u.storage.GetGeofenceLocation(ctx, geofenceLocationID)
	if err != nil {
		return nil, err
	}

	now := u.now()
	previous := gl.LastUsed

	gl.UsageCount++
	gl.LastUsed = &now

	reference := gl.LastUsed
	if u.policy == RecencyPreviousUse {
		reference = previous
	}
	wasFrequent := gl.IsFrequent
	gl.IsFrequent = IsFrequent(gl.UsageCount, reference, now)

	if err := u.storage.UpdateGeofenceLocation(ctx, gl); err != nil {
		return nil, fmt.Errorf("failed to update usage: %w", err)
	}

	if gl.IsFrequent != wasFrequent {
		slog.Info("Geofence location frequency changed",
			"geofence_location_id", gl.ID,
			"frequent", gl.IsFrequent,
			"usage_count", gl.UsageCount)
	}
	return gl, nil
}

// RepairFrequentFlags re-evaluates the frequent flag of every geofence
// location against now and persists only the flags that changed.
// It returns the number of locations updated.
func (u *UsageUpdater) RepairFrequentFlags(ctx context.Context, progress func(done, total int)) (int, error) {
	locations, err := u.storage.GetGeofenceLocations(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load geofence locations: %w", err)
	}

	now := u.now()
	changed := 0
	for i := range locations {
		gl := &locations[i]
		frequent := IsFrequent(gl.UsageCount, gl.LastUsed, now)
		if frequent != gl.IsFrequent {
			gl.IsFrequent = frequent
			if err := u.storage.UpdateGeofenceLocation(ctx, gl); err != nil {
				return changed, fmt.Errorf("failed to repair %s: %w", gl.ID, err)
			}
			changed++
		}
		if progress != nil {
			progress(i+1, len(locations))
		}
	}

	slog.Info("Repaired frequent flags", "checked", len(locations), "changed", changed)
	return changed, nil
}
