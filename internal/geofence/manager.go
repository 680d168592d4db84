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

// Delivery declares how a region command reaches the host.
type Delivery int

// Delivery policies.
const (
	// DeliveryAtMostOnce submits once; a failed submission is reported and dropped.
	DeliveryAtMostOnce Delivery = iota
	// DeliveryRetry resubmits with bounded exponential backoff.
	DeliveryRetry
)

func (d Delivery) String() string {
	if d == DeliveryRetry {
		return "retry"
	}
	return "at_most_once"
}

// CommandKind names the host operation a RegionCommand performs.
type CommandKind string

// Region command kinds.
const (
	CommandAdd       CommandKind = "add"
	CommandRemove    CommandKind = "remove"
	CommandRemoveAll CommandKind = "remove_all"
)

// RegionCommand is one submission to the host geofencing service.
// The call returns once the host accepted the submission; the host's
// confirmation arrives asynchronously and is only logged.
type RegionCommand struct {
	Kind      CommandKind
	Requests  []model.RegionRequest
	RegionIDs []string
	Delivery  Delivery
}

// ManagerConfig holds configuration options for the Manager.
type ManagerConfig struct {
	// Retry switches region commands to DeliveryRetry when non-nil.
	Retry *service.RetryOptions
}

// DefaultManagerConfig returns the at-most-once configuration.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{}
}

// Manager registers and removes circular regions with the host.
type Manager struct {
	client      service.GeofenceClient
	permissions service.PermissionChecker
	storage     service.Storage
	retry       *service.RetryOptions
}

// NewManager creates a Manager with at-most-once delivery.
func NewManager(client service.GeofenceClient, permissions service.PermissionChecker, storage service.Storage) *Manager {
	return NewManagerWithConfig(client, permissions, storage, DefaultManagerConfig())
}

// NewManagerWithConfig creates a Manager with custom configuration.
func NewManagerWithConfig(client service.GeofenceClient, permissions service.PermissionChecker, storage service.Storage, config ManagerConfig) *Manager {
	return &Manager{
		client:      client,
		permissions: permissions,
		storage:     storage,
		retry:       config.Retry,
	}
}

// HasLocationPermission reports whether fine location is granted.
func (m *Manager) HasLocationPermission() bool {
	return m.permissions.HasFineLocation()
}

// HasBackgroundLocationPermission reports whether background location is
// usable. Platforms older than BackgroundPermissionSinceVersion have no
// separate grant, so it is implied.
func (m *Manager) HasBackgroundLocationPermission() bool {
	if m.permissions.PlatformVersion() < BackgroundPermissionSinceVersion {
		return true
	}
	return m.permissions.HasBackgroundLocation()
}

// RegisterGeofence registers one region keyed by locationID.
func (m *Manager) RegisterGeofence(ctx context.Context, locationID string, lat, lon, radius float64) error {
	_, err := m.RegisterGeofences(ctx, []model.Region{{
		ID:        locationID,
		Latitude:  lat,
		Longitude: lon,
		Radius:    radius,
	}})
	return err
}

// RegisterGeofences registers regions in one submission and returns how many
// were submitted. An empty list succeeds without contacting the host.
func (m *Manager) RegisterGeofences(ctx context.Context, regions []model.Region) (int, error) {
	if len(regions) == 0 {
		return 0, nil
	}
	if !m.HasLocationPermission() {
		return 0, fmt.Errorf("cannot register geofences: %w", common.ErrPermissionDenied)
	}

	requests := make([]model.RegionRequest, len(regions))
	for i, r := range regions {
		if r.ID == "" {
			return 0, fmt.Errorf("region %d has no id: %w", i, common.ErrInvalidConfig)
		}
		requests[i] = model.NewRegionRequest(r)
	}

	cmd := m.command(CommandAdd)
	cmd.Requests = requests
	if err := m.submit(ctx, cmd); err != nil {
		return 0, err
	}
	return len(requests), nil
}

// RemoveGeofence removes one region. Removing an unknown id is not an error.
func (m *Manager) RemoveGeofence(ctx context.Context, locationID string) error {
	return m.RemoveGeofences(ctx, []string{locationID})
}

// RemoveGeofences removes regions by id.
func (m *Manager) RemoveGeofences(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	cmd := m.command(CommandRemove)
	cmd.RegionIDs = ids
	return m.submit(ctx, cmd)
}

// RemoveAllGeofences removes every region this process registered.
func (m *Manager) RemoveAllGeofences(ctx context.Context) error {
	return m.submit(ctx, m.command(CommandRemoveAll))
}

func (m *Manager) command(kind CommandKind) RegionCommand {
	delivery := DeliveryAtMostOnce
	if m.retry != nil && m.retry.MaxAttempts > 1 {
		delivery = DeliveryRetry
	}
	return RegionCommand{Kind: kind, Delivery: delivery}
}

// submit hands cmd to the host according to its delivery policy.
func (m *Manager) submit(ctx context.Context, cmd RegionCommand) error {
	send := func() error {
		var err error
		switch cmd.Kind {
		case CommandAdd:
			err = m.client.AddRegions(ctx, cmd.Requests)
		case CommandRemove:
			err = m.client.RemoveRegions(ctx, cmd.RegionIDs)
		case CommandRemoveAll:
			err = m.client.RemoveAllRegions(ctx)
		default:
			return fmt.Errorf("unknown region command %q", cmd.Kind)
		}
		if err != nil && cmd.Delivery == DeliveryRetry && !errors.Is(err, common.ErrPermissionDenied) {
			return &common.RetryableError{Err: err, Retryable: true}
		}
		return err
	}

	var err error
	if cmd.Delivery == DeliveryRetry {
		err = common.WithRetry(ctx, send, *m.retry)
	} else {
		err = send()
	}

	if err != nil {
		registrationsTotal.WithLabelValues(string(cmd.Kind), "failed").Inc()
		common.LogError(err, "Region command failed", common.Fields{
			"kind":     cmd.Kind,
			"delivery": cmd.Delivery.String(),
			"regions":  len(cmd.Requests) + len(cmd.RegionIDs),
		})
		return fmt.Errorf("%s regions: %w: %w", cmd.Kind, common.ErrRegistrationFailed, err)
	}

	registrationsTotal.WithLabelValues(string(cmd.Kind), "submitted").Inc()
	slog.Debug("Region command submitted",
		"kind", cmd.Kind,
		"delivery", cmd.Delivery.String(),
		"regions", len(cmd.Requests)+len(cmd.RegionIDs))
	return nil
}

// SyncResult summarizes a SyncGeofences run.
type SyncResult struct {
	Registered int
	Removed    int
}

// SyncGeofences registers every geofence location with at least one enabled
// task geofence and removes the rest from the host. progress, when non-nil,
// is called after each location is evaluated.
func (m *Manager) SyncGeofences(ctx context.Context, progress func(done, total int)) (SyncResult, error) {
	var result SyncResult

	cfg, err := m.storage.GetGeofenceConfig(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to load geofence config: %w", err)
	}

	locations, err := m.storage.GetGeofenceLocations(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to load geofence locations: %w", err)
	}

	var (
		active   []model.Region
		inactive []string
	)
	for i, gl := range locations {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		tasks, err := m.storage.GetEnabledTaskGeofences(ctx, gl.ID)
		if err != nil {
			return result, fmt.Errorf("failed to load task geofences for %s: %w", gl.ID, err)
		}

		if !cfg.Enabled || len(tasks) == 0 {
			inactive = append(inactive, gl.ID)
		} else {
			location, err := m.storage.GetLocation(ctx, gl.LocationID)
			if err != nil {
				return result, fmt.Errorf("failed to load location for %s: %w", gl.ID, err)
			}
			active = append(active, model.Region{
				ID:        gl.ID,
				Latitude:  location.Latitude,
				Longitude: location.Longitude,
				Radius:    float64(gl.EffectiveRadius(*cfg)),
			})
		}

		if progress != nil {
			progress(i+1, len(locations))
		}
	}

	if err := m.RemoveGeofences(ctx, inactive); err != nil {
		return result, err
	}
	result.Removed = len(inactive)

	registered, err := m.RegisterGeofences(ctx, active)
	if err != nil {
		return result, err
	}
	result.Registered = registered

	slog.Info("Synchronized geofences",
		"registered", result.Registered,
		"removed", result.Removed)
	return result, nil
}
