package model

import "time"

// Radius bounds in meters for configured geofences.
const (
	MinGeofenceRadius = 50
	MaxGeofenceRadius = 1000
)

// FrequentUsageThreshold is the usage count at which a location can become frequent.
const FrequentUsageThreshold = 3

// FrequentRecencyWindow is how recently a location must be used to stay frequent.
const FrequentRecencyWindow = 30 * 24 * time.Hour

// PowerMode trades fix accuracy against battery.
type PowerMode string

// Power modes.
const (
	PowerHighAccuracy PowerMode = "HIGH_ACCURACY"
	PowerBalanced     PowerMode = "BALANCED"
	PowerLow          PowerMode = "LOW_POWER"
)

// GeofenceConfig is the global geofencing configuration. Exactly one exists.
type GeofenceConfig struct {
	UpdatedAt           time.Time
	PowerMode           PowerMode
	AutoRefreshInterval time.Duration
	DefaultRadius       int
	AccuracyThreshold   float64
	Enabled             bool
	NotifyWhenOutside   bool
}

// DefaultGeofenceConfig returns the configuration used when none is stored.
func DefaultGeofenceConfig() GeofenceConfig {
	return GeofenceConfig{
		Enabled:             true,
		DefaultRadius:       100,
		AccuracyThreshold:   100,
		AutoRefreshInterval: 15 * time.Minute,
		PowerMode:           PowerBalanced,
		NotifyWhenOutside:   false,
	}
}

// GeofenceLocation opts a Location into geofencing and carries its usage statistics.
type GeofenceLocation struct {
	CreatedAt                time.Time
	UpdatedAt                time.Time
	LastUsed                 *time.Time
	CustomRadius             *int
	ID                       string
	LocationID               string
	LastStatisticsResetMonth string
	UsageCount               int
	MonthlyCheckCount        int
	MonthlyHitCount          int
	IsFrequent               bool
}

// EffectiveRadius is the custom radius when set, else the global default.
func (g *GeofenceLocation) EffectiveRadius(cfg GeofenceConfig) int {
	if g.CustomRadius != nil && *g.CustomRadius > 0 {
		return *g.CustomRadius
	}
	return cfg.DefaultRadius
}

// TaskGeofence binds one task to one geofence location.
// Radius is a snapshot taken when the association was created.
type TaskGeofence struct {
	CreatedAt          time.Time
	UpdatedAt          time.Time
	LastCheckTime      *time.Time
	LastCheckDistance  *float64
	LastCheckLatitude  *float64
	LastCheckLongitude *float64
	ID                 string
	TaskID             string
	GeofenceLocationID string
	LastCheckResult    GeofenceCheckResult
	Radius             int
	Enabled            bool
}

// CheckRecord is the cached outcome of one evaluation of a task geofence.
// Position fields are nil when the outcome came from a transition event.
type CheckRecord struct {
	CheckedAt time.Time
	Distance  *float64
	Latitude  *float64
	Longitude *float64
	Result    GeofenceCheckResult
}

// GeofenceStatus is what a pull-based check reports for one task.
type GeofenceStatus struct {
	CheckedAt time.Time           `json:"checked_at"`
	Distance  *float64            `json:"distance,omitempty"`
	TaskID    string              `json:"task_id"`
	Result    GeofenceCheckResult `json:"result"`
	Radius    int                 `json:"radius,omitempty"`
}
