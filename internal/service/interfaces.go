// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/whereabouts/internal/model"
)

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Location operations
	CreateLocation(ctx context.Context, location *model.Location) error
	GetLocation(ctx context.Context, id string) (*model.Location, error)
	GetLocations(ctx context.Context) ([]model.Location, error)
	DeleteLocation(ctx context.Context, id string) error

	// Task operations
	CreateTask(ctx context.Context, task *model.Task) error
	GetTask(ctx context.Context, id string) (*model.Task, error)
	GetTasks(ctx context.Context) ([]model.Task, error)
	DeleteTask(ctx context.Context, id string) error

	// Geofence configuration
	GetGeofenceConfig(ctx context.Context) (*model.GeofenceConfig, error)
	SaveGeofenceConfig(ctx context.Context, cfg *model.GeofenceConfig) error

	// Geofence location operations
	CreateGeofenceLocation(ctx context.Context, gl *model.GeofenceLocation) error
	GetGeofenceLocation(ctx context.Context, id string) (*model.GeofenceLocation, error)
	GetGeofenceLocationByLocationID(ctx context.Context, locationID string) (*model.GeofenceLocation, error)
	GetGeofenceLocations(ctx context.Context) ([]model.GeofenceLocation, error)
	UpdateGeofenceLocation(ctx context.Context, gl *model.GeofenceLocation) error
	DeleteGeofenceLocation(ctx context.Context, id string) error

	// Monthly statistics
	RecordGeofenceCheck(ctx context.Context, geofenceLocationID string, isHit bool, now time.Time) (*model.GeofenceLocation, error)
	ResetMonthlyStatistics(ctx context.Context, now time.Time) (int, error)
	GetStatisticsHistory(ctx context.Context, geofenceLocationID string) ([]model.StatisticsHistory, error)

	// Task geofence operations
	CreateTaskGeofence(ctx context.Context, tg *model.TaskGeofence) error
	GetTaskGeofence(ctx context.Context, taskID string) (*model.TaskGeofence, error)
	GetTaskGeofences(ctx context.Context) ([]model.TaskGeofence, error)
	GetEnabledTaskGeofences(ctx context.Context, geofenceLocationID string) ([]model.TaskGeofence, error)
	SetTaskGeofenceEnabled(ctx context.Context, taskID string, enabled bool) error
	UpdateTaskGeofenceCheck(ctx context.Context, taskID string, record model.CheckRecord) error
	DeleteTaskGeofence(ctx context.Context, taskID string) error

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// GeofenceClient is the host's geofencing service. Calls return once the
// request is submitted; the host reports the outcome asynchronously.
type GeofenceClient interface {
	AddRegions(ctx context.Context, requests []model.RegionRequest) error
	RemoveRegions(ctx context.Context, ids []string) error
	RemoveAllRegions(ctx context.Context) error
}

// PermissionChecker exposes the host's location permissions.
type PermissionChecker interface {
	HasFineLocation() bool
	HasBackgroundLocation() bool
	PlatformVersion() int
}

// LocationProvider returns the user's current position.
type LocationProvider interface {
	CurrentFix(ctx context.Context) (*model.Fix, error)
}

// Notifier delivers reminders produced by geofence transitions.
type Notifier interface {
	Notify(ctx context.Context, reminder model.Reminder) error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
