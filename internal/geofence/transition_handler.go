package geofence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/whereabouts/internal/common"
	"github.com/Veraticus/whereabouts/internal/model"
	"github.com/Veraticus/whereabouts/internal/service"
)

// HandleResult summarizes the processing of one transition event.
type HandleResult struct {
	Regions      int
	TasksUpdated int
	Failed       int
	Dropped      bool
}

// TransitionHandler applies host transition events to task geofences.
// Each event is processed to completion; nothing about it is persisted
// beyond its effects.
type TransitionHandler struct {
	storage  service.Storage
	usage    *UsageUpdater
	stats    *StatisticsUpdater
	notifier service.Notifier
	now      func() time.Time
}

// NewTransitionHandler creates a TransitionHandler. notifier may be nil.
func NewTransitionHandler(storage service.Storage, usage *UsageUpdater, stats *StatisticsUpdater, notifier service.Notifier) *TransitionHandler {
	return &TransitionHandler{
		storage:  storage,
		usage:    usage,
		stats:    stats,
		notifier: notifier,
		now:      time.Now,
	}
}

// Handle processes one transition event. Regions are processed concurrently
// and independently: a failure or panic in one region is logged and never
// stops its siblings.
func (h *TransitionHandler) Handle(ctx context.Context, event model.TransitionEvent) HandleResult {
	var result HandleResult

	if event.HasError() {
		slog.Error("Dropping geofence event with host error", "error_code", event.ErrorCode)
		transitionsTotal.WithLabelValues(string(event.Transition), "host_error").Inc()
		result.Dropped = true
		return result
	}
	if len(event.RegionIDs) == 0 {
		slog.Warn("Dropping geofence event without triggering regions", "transition", event.Transition)
		transitionsTotal.WithLabelValues(string(event.Transition), "no_regions").Inc()
		result.Dropped = true
		return result
	}
	transition, err := model.ParseTransition(string(event.Transition))
	if err != nil {
		slog.Warn("Dropping geofence event", "error", err)
		transitionsTotal.WithLabelValues("invalid", "invalid_transition").Inc()
		result.Dropped = true
		return result
	}
	event.Transition = transition
	if event.Timestamp.IsZero() {
		event.Timestamp = h.now()
	}

	notifyOutside := false
	if h.notifier != nil && transition == model.TransitionExit {
		cfg, err := h.storage.GetGeofenceConfig(ctx)
		if err != nil {
			common.LogError(err, "Failed to load geofence config, not notifying on exit", nil)
		} else {
			notifyOutside = cfg.NotifyWhenOutside
		}
	}

	var (
		g       errgroup.Group
		updated atomic.Int64
		failed  atomic.Int64
	)
	for _, regionID := range event.RegionIDs {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic: %v", r)
				}
				if err != nil {
					failed.Add(1)
					regionFailuresTotal.Inc()
					common.LogError(err, "Failed to process geofence region", common.Fields{
						"region_id":  regionID,
						"transition": transition,
					})
				}
			}()

			n, err := h.handleRegion(ctx, event, regionID, notifyOutside)
			updated.Add(int64(n))
			return err
		})
	}
	// Region errors are logged inside each goroutine; Wait only joins them.
	_ = g.Wait()

	result.Regions = len(event.RegionIDs)
	result.TasksUpdated = int(updated.Load())
	result.Failed = int(failed.Load())

	outcome := "applied"
	if result.Failed > 0 {
		outcome = "partial"
	}
	transitionsTotal.WithLabelValues(string(transition), outcome).Inc()

	slog.Info("Processed geofence transition",
		"transition", transition,
		"regions", result.Regions,
		"tasks_updated", result.TasksUpdated,
		"failed_regions", result.Failed)
	return result
}

// handleRegion applies the event to one geofence location and returns how
// many task geofences were updated.
func (h *TransitionHandler) handleRegion(ctx context.Context, event model.TransitionEvent, regionID string, notifyOutside bool) (int, error) {
	gl, err := h.storage.GetGeofenceLocation(ctx, regionID)
	if errors.Is(err, common.ErrNotFound) {
		slog.Warn("Ignoring transition for unknown geofence location", "region_id", regionID)
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	if event.Transition == model.TransitionEnter {
		if _, err := h.usage.UpdateUsage(ctx, gl.ID); err != nil {
			return 0, fmt.Errorf("failed to update usage: %w", err)
		}
	}

	taskGeofences, err := h.storage.GetEnabledTaskGeofences(ctx, gl.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to load task geofences: %w", err)
	}
	if len(taskGeofences) == 0 {
		slog.Debug("No enabled task geofences for region", "region_id", regionID)
		return 0, nil
	}

	record := model.CheckRecord{
		CheckedAt: event.Timestamp,
		Result:    event.Transition.CheckResult(),
	}

	var updated []model.TaskGeofence
	for _, tg := range taskGeofences {
		if !tg.Enabled {
			continue
		}
		if err := h.storage.UpdateTaskGeofenceCheck(ctx, tg.TaskID, record); err != nil {
			common.LogError(err, "Failed to write transition result", common.Fields{
				"task_id":   tg.TaskID,
				"region_id": regionID,
			})
			continue
		}
		updated = append(updated, tg)
	}
	if len(updated) == 0 {
		return 0, nil
	}

	// One physical transition is one check, however many tasks it touched.
	if _, err := h.stats.RecordCheck(ctx, gl.ID, event.Transition == model.TransitionEnter); err != nil {
		return len(updated), err
	}

	if h.notifier != nil && (event.Transition == model.TransitionEnter || notifyOutside) {
		h.notify(ctx, gl, updated, event)
	}
	return len(updated), nil
}

func (h *TransitionHandler) notify(ctx context.Context, gl *model.GeofenceLocation, taskGeofences []model.TaskGeofence, event model.TransitionEvent) {
	locationName := gl.LocationID
	if location, err := h.storage.GetLocation(ctx, gl.LocationID); err == nil {
		locationName = location.Name
	}

	for _, tg := range taskGeofences {
		task, err := h.storage.GetTask(ctx, tg.TaskID)
		if err != nil {
			common.LogWarn("Skipping reminder for missing task", common.Fields{"task_id": tg.TaskID})
			continue
		}
		if task.Completed {
			continue
		}

		reminder := model.Reminder{
			At:           event.Timestamp,
			TaskID:       task.ID,
			TaskTitle:    task.Title,
			LocationID:   gl.LocationID,
			LocationName: locationName,
			Transition:   event.Transition,
		}
		if err := h.notifier.Notify(ctx, reminder); err != nil {
			common.LogError(err, "Failed to send reminder", common.Fields{"task_id": task.ID})
		}
	}
}
