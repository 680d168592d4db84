// Package storage provides the data persistence layer for whereabouts.
package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/Veraticus/whereabouts/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrInvalidRadius      = errors.New("invalid radius")
	ErrInvalidLocation    = errors.New("invalid location")
	ErrInvalidConfig      = errors.New("invalid geofence config")
	ErrInvalidGeofence    = errors.New("invalid geofence location")
	ErrInvalidCheckResult = errors.New("invalid check result")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateCoordinates checks latitude and longitude ranges.
func validateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return fmt.Errorf("%w: NaN", ErrInvalidCoordinates)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude %f out of range", ErrInvalidCoordinates, lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("%w: longitude %f out of range", ErrInvalidCoordinates, lon)
	}
	return nil
}

// validateConfiguredRadius checks a user-configured radius against the allowed bounds.
func validateConfiguredRadius(radius int) error {
	if radius < model.MinGeofenceRadius || radius > model.MaxGeofenceRadius {
		return fmt.Errorf("%w: %d m outside %d-%d m", ErrInvalidRadius, radius, model.MinGeofenceRadius, model.MaxGeofenceRadius)
	}
	return nil
}

// validateLocation validates a location.
func validateLocation(location *model.Location) error {
	if location == nil {
		return fmt.Errorf("%w: location", ErrNilParameter)
	}
	if strings.TrimSpace(location.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidLocation)
	}
	switch location.Source {
	case model.SourceManual, model.SourceDetected, "":
	default:
		return fmt.Errorf("%w: source %q", ErrInvalidLocation, location.Source)
	}
	return validateCoordinates(location.Latitude, location.Longitude)
}

// validateGeofenceConfig validates the global configuration.
func validateGeofenceConfig(cfg *model.GeofenceConfig) error {
	if cfg == nil {
		return fmt.Errorf("%w: config", ErrNilParameter)
	}
	if err := validateConfiguredRadius(cfg.DefaultRadius); err != nil {
		return err
	}
	if cfg.AccuracyThreshold <= 0 {
		return fmt.Errorf("%w: accuracy threshold must be positive", ErrInvalidConfig)
	}
	if cfg.AutoRefreshInterval < 0 {
		return fmt.Errorf("%w: auto refresh interval must not be negative", ErrInvalidConfig)
	}
	switch cfg.PowerMode {
	case model.PowerHighAccuracy, model.PowerBalanced, model.PowerLow:
	default:
		return fmt.Errorf("%w: power mode %q", ErrInvalidConfig, cfg.PowerMode)
	}
	return nil
}

// validateGeofenceLocation validates a geofence location.
func validateGeofenceLocation(gl *model.GeofenceLocation) error {
	if gl == nil {
		return fmt.Errorf("%w: geofence location", ErrNilParameter)
	}
	if err := validateString(gl.LocationID, "locationID"); err != nil {
		return err
	}
	if gl.CustomRadius != nil {
		if err := validateConfiguredRadius(*gl.CustomRadius); err != nil {
			return err
		}
	}
	if gl.UsageCount < 0 || gl.MonthlyCheckCount < 0 || gl.MonthlyHitCount < 0 {
		return fmt.Errorf("%w: counters must not be negative", ErrInvalidGeofence)
	}
	return nil
}

// validateTaskGeofence validates a task geofence association.
func validateTaskGeofence(tg *model.TaskGeofence) error {
	if tg == nil {
		return fmt.Errorf("%w: task geofence", ErrNilParameter)
	}
	if err := validateString(tg.TaskID, "taskID"); err != nil {
		return err
	}
	if err := validateString(tg.GeofenceLocationID, "geofenceLocationID"); err != nil {
		return err
	}
	if tg.Radius <= 0 {
		return fmt.Errorf("%w: snapshot radius must be positive", ErrInvalidRadius)
	}
	return nil
}

// validateCheckRecord validates a cached check outcome.
func validateCheckRecord(rec model.CheckRecord) error {
	if !rec.Result.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidCheckResult, rec.Result)
	}
	if rec.CheckedAt.IsZero() {
		return fmt.Errorf("%w: missing check time", ErrInvalidCheckResult)
	}
	return nil
}
