package geofence

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/whereabouts/internal/model"
	"github.com/Veraticus/whereabouts/internal/service"
)

// StatisticsUpdater counts geofence checks per calendar month.
type StatisticsUpdater struct {
	storage service.Storage
	now     func() time.Time
}

// NewStatisticsUpdater creates a StatisticsUpdater.
func NewStatisticsUpdater(storage service.Storage) *StatisticsUpdater {
	return &StatisticsUpdater{storage: storage, now: time.Now}
}

// RecordCheck counts one check, archiving the previous month on rollover.
func (s *StatisticsUpdater) RecordCheck(ctx context.Context, geofenceLocationID string, isHit bool) (*model.GeofenceLocation, error) {
	gl, err := s.storage.RecordGeofenceCheck(ctx, geofenceLocationID, isHit, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to record geofence check: %w", err)
	}
	return gl, nil
}

// ResetMonthlyStatistics zeroes every location's counters for the current
// month and returns how many were reset.
func (s *StatisticsUpdater) ResetMonthlyStatistics(ctx context.Context) (int, error) {
	return s.storage.ResetMonthlyStatistics(ctx, s.now())
}

// GetStatisticsHistory returns a location's archived months, newest first.
func (s *StatisticsUpdater) GetStatisticsHistory(ctx context.Context, geofenceLocationID string) ([]model.StatisticsHistory, error) {
	return s.storage.GetStatisticsHistory(ctx, geofenceLocationID)
}
