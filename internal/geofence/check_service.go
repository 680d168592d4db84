package geofence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/whereabouts/internal/common"
	"github.com/Veraticus/whereabouts/internal/model"
	"github.com/Veraticus/whereabouts/internal/service"
)

// CheckConfig holds configuration options for the CheckService.
type CheckConfig struct {
	// CacheTTL is how long an acquired fix is reused across calls.
	CacheTTL time.Duration
}

// DefaultCheckConfig returns the default configuration.
func DefaultCheckConfig() CheckConfig {
	return CheckConfig{CacheTTL: 30 * time.Second}
}

// CheckService answers pull-based "is the user at this task's place" queries.
type CheckService struct {
	cachedAt    time.Time
	storage     service.Storage
	permissions service.PermissionChecker
	locations   service.LocationProvider
	stats       *StatisticsUpdater
	now         func() time.Time
	cachedFix   *model.Fix
	cacheTTL    time.Duration
	mu          sync.Mutex
}

// NewCheckService creates a CheckService with the default configuration.
func NewCheckService(storage service.Storage, permissions service.PermissionChecker, locations service.LocationProvider, stats *StatisticsUpdater) *CheckService {
	return NewCheckServiceWithConfig(storage, permissions, locations, stats, DefaultCheckConfig())
}

// NewCheckServiceWithConfig creates a CheckService with custom configuration.
func NewCheckServiceWithConfig(storage service.Storage, permissions service.PermissionChecker, locations service.LocationProvider, stats *StatisticsUpdater, config CheckConfig) *CheckService {
	return &CheckService{
		storage:     storage,
		permissions: permissions,
		locations:   locations,
		stats:       stats,
		cacheTTL:    config.CacheTTL,
		now:         time.Now,
	}
}

// CalculateDistance returns the Haversine distance in meters between two points.
func (s *CheckService) CalculateDistance(lat1, lon1, lat2, lon2 float64) float64 {
	return CalculateDistance(lat1, lon1, lat2, lon2)
}

// ClearLocationCache forces the next check to acquire a fresh fix.
func (s *CheckService) ClearLocationCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cachedFix = nil
	s.cachedAt = time.Time{}
}

// CheckTaskGeofence evaluates one task's geofence against the current fix.
func (s *CheckService) CheckTaskGeofence(ctx context.Context, taskID string) (model.GeofenceStatus, error) {
	statuses, err := s.CheckMultipleTaskGeofences(ctx, []string{taskID})
	if err != nil {
		return model.GeofenceStatus{}, err
	}
	return statuses[taskID], nil
}

// CheckMultipleTaskGeofences evaluates several tasks. At most one fix is
// acquired per call, and only if some task needs it.
func (s *CheckService) CheckMultipleTaskGeofences(ctx context.Context, taskIDs []string) (map[string]model.GeofenceStatus, error) {
	start := time.Now()
	defer func() { checkDuration.Observe(time.Since(start).Seconds()) }()

	cfg, err := s.storage.GetGeofenceConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load geofence config: %w", err)
	}

	var (
		fix      *model.Fix
		fixErr   error
		acquired bool
	)
	sharedFix := func() (*model.Fix, error) {
		if !acquired {
			fix, fixErr = s.currentFix(ctx)
			acquired = true
		}
		return fix, fixErr
	}

	statuses := make(map[string]model.GeofenceStatus, len(taskIDs))
	for _, taskID := range taskIDs {
		if _, done := statuses[taskID]; done {
			continue
		}
		status, err := s.check(ctx, taskID, cfg, sharedFix)
		if err != nil {
			return nil, fmt.Errorf("failed to check task %s: %w", taskID, err)
		}
		checksTotal.WithLabelValues(status.Result.String()).Inc()
		statuses[taskID] = status
	}
	return statuses, nil
}

func (s *CheckService) check(ctx context.Context, taskID string, cfg *model.GeofenceConfig, sharedFix func() (*model.Fix, error)) (model.GeofenceStatus, error) {
	status := model.GeofenceStatus{TaskID: taskID, CheckedAt: s.now()}

	tg, err := s.storage.GetTaskGeofence(ctx, taskID)
	if errors.Is(err, common.ErrNotFound) {
		status.Result = model.GeofenceDisabled
		return status, nil
	}
	if err != nil {
		return status, err
	}
	status.Radius = tg.Radius

	if !tg.Enabled || !cfg.Enabled {
		status.Result = model.GeofenceDisabled
		return status, nil
	}
	if !s.permissions.HasFineLocation() {
		status.Result = model.PermissionDenied
		return status, nil
	}

	fix, err := sharedFix()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return status, ctxErr
		}
		slog.Debug("No location fix for geofence check", "task_id", taskID, "error", err)
		status.Result = model.LocationUnavailable
		return status, nil
	}
	if fix.Accuracy > cfg.AccuracyThreshold {
		slog.Debug("Location fix too inaccurate",
			"task_id", taskID,
			"accuracy", fix.Accuracy,
			"threshold", cfg.AccuracyThreshold)
		status.Result = model.LocationUnavailable
		return status, nil
	}

	gl, err := s.storage.GetGeofenceLocation(ctx, tg.GeofenceLocationID)
	if err != nil {
		return status, err
	}
	location, err := s.storage.GetLocation(ctx, gl.LocationID)
	if err != nil {
		return status, err
	}

	radius := tg.Radius
	if radius <= 0 {
		radius = gl.EffectiveRadius(*cfg)
		status.Radius = radius
	}

	distance := CalculateDistance(fix.Latitude, fix.Longitude, location.Latitude, location.Longitude)
	status.Distance = &distance
	if distance <= float64(radius) {
		status.Result = model.InsideGeofence
	} else {
		status.Result = model.OutsideGeofence
	}

	lat, lon := fix.Latitude, fix.Longitude
	record := model.CheckRecord{
		CheckedAt: status.CheckedAt,
		Distance:  &distance,
		Latitude:  &lat,
		Longitude: &lon,
		Result:    status.Result,
	}
	if err := s.storage.UpdateTaskGeofenceCheck(ctx, taskID, record); err != nil {
		common.LogError(err, "Failed to cache geofence check", common.Fields{"task_id": taskID})
	}
	if s.stats != nil {
		if _, err := s.stats.RecordCheck(ctx, gl.ID, status.Result.IsHit()); err != nil {
			common.LogError(err, "Failed to record geofence check", common.Fields{"task_id": taskID})
		}
	}
	return status, nil
}

// currentFix returns the cached fix while it is fresh, otherwise acquires one.
func (s *CheckService) currentFix(ctx context.Context) (*model.Fix, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.cachedFix != nil && now.Sub(s.cachedAt) < s.cacheTTL {
		return s.cachedFix, nil
	}

	fix, err := s.locations.CurrentFix(ctx)
	if err != nil {
		return nil, err
	}
	if fix == nil {
		return nil, common.ErrLocationUnavailable
	}
	s.cachedFix = fix
	s.cachedAt = now
	return fix, nil
}
