package geofence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/whereabouts/internal/common"
	"github.com/Veraticus/whereabouts/internal/model"
	"github.com/Veraticus/whereabouts/internal/service"
)

// Registry owns the business rules for opting locations into geofencing and
// binding tasks to them.
type Registry struct {
	storage service.Storage
}

// NewRegistry creates a Registry.
func NewRegistry(storage service.Storage) *Registry {
	return &Registry{storage: storage}
}

// EnableLocation opts a location into geofencing. If the location is already
// geofenced its radius override is updated instead.
func (r *Registry) EnableLocation(ctx context.Context, locationID string, customRadius *int) (*model.GeofenceLocation, error) {
	if _, err := r.storage.GetLocation(ctx, locationID); err != nil {
		return nil, err
	}

	existing, err := r.storage.GetGeofenceLocationByLocationID(ctx, locationID)
	switch {
	case err == nil:
		existing.CustomRadius = customRadius
		if err := r.storage.UpdateGeofenceLocation(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	case !errors.Is(err, common.ErrNotFound):
		return nil, err
	}

	gl := &model.GeofenceLocation{LocationID: locationID, CustomRadius: customRadius}
	if err := r.storage.CreateGeofenceLocation(ctx, gl); err != nil {
		return nil, err
	}
	slog.Info("Enabled geofencing for location",
		"location_id", locationID,
		"geofence_location_id", gl.ID)
	return gl, nil
}

// CreateTaskGeofence binds a task to a geofence location, snapshotting the
// location's effective radius. Later radius edits do not affect it.
func (r *Registry) CreateTaskGeofence(ctx context.Context, taskID, geofenceLocationID string) (*model.TaskGeofence, error) {
	gl, err := r.storage.GetGeofenceLocation(ctx, geofenceLocationID)
	if err != nil {
		return nil, err
	}

	cfg, err := r.storage.GetGeofenceConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load geofence config: %w", err)
	}

	tg := &model.TaskGeofence{
		TaskID:             taskID,
		GeofenceLocationID: gl.ID,
		Radius:             gl.EffectiveRadius(*cfg),
		Enabled:            true,
	}
	if err := r.storage.CreateTaskGeofence(ctx, tg); err != nil {
		return nil, err
	}

	slog.Debug("Created task geofence",
		"task_id", taskID,
		"geofence_location_id", gl.ID,
		"radius", tg.Radius)
	return tg, nil
}

// DetachTask removes a task's geofence.
func (r *Registry) DetachTask(ctx context.Context, taskID string) error {
	return r.storage.DeleteTaskGeofence(ctx, taskID)
}

// RegionRemover withdraws a registered host region. *Manager implements it.
type RegionRemover interface {
	RemoveGeofence(ctx context.Context, locationID string) error
}

// DisableLocation opts a geofence location out of geofencing. The row goes
// first, taking its task geofences and statistics history with it, and then
// the host region is withdrawn through remover. A nil remover leaves the
// region registered. A failed removal is reported after the delete has
// committed and wraps common.ErrRegistrationFailed.
func (r *Registry) DisableLocation(ctx context.Context, geofenceLocationID string, remover RegionRemover) error {
	if err := r.storage.DeleteGeofenceLocation(ctx, geofenceLocationID); err != nil {
		return err
	}
	slog.Info("Disabled geofencing for location", "geofence_location_id", geofenceLocationID)
	return r.withdrawRegion(ctx, geofenceLocationID, remover)
}

// DeleteLocation deletes a saved place. If the place was geofenced its host
// region is withdrawn the same way DisableLocation does it.
func (r *Registry) DeleteLocation(ctx context.Context, locationID string, remover RegionRemover) error {
	var regionID string
	gl, err := r.storage.GetGeofenceLocationByLocationID(ctx, locationID)
	switch {
	case err == nil:
		regionID = gl.ID
	case !errors.Is(err, common.ErrNotFound):
		return err
	}

	if err := r.storage.DeleteLocation(ctx, locationID); err != nil {
		return err
	}
	if regionID == "" {
		return nil
	}
	return r.withdrawRegion(ctx, regionID, remover)
}

func (r *Registry) withdrawRegion(ctx context.Context, regionID string, remover RegionRemover) error {
	if remover == nil {
		slog.Warn("Host region left registered", "geofence_location_id", regionID)
		return nil
	}
	if err := remover.RemoveGeofence(ctx, regionID); err != nil {
		if !errors.Is(err, common.ErrRegistrationFailed) {
			err = fmt.Errorf("%w: %w", common.ErrRegistrationFailed, err)
		}
		return fmt.Errorf("region %s was not removed: %w", regionID, err)
	}
	return nil
}
