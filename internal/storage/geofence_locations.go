package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/whereabouts/internal/common"
	"github.com/Veraticus/whereabouts/internal/model"
)

const geofenceLocationColumns = `id, location_id, custom_radius, is_frequent, usage_count, last_used,
	monthly_check_count, monthly_hit_count, last_statistics_reset_month, created_at, updated_at`

// CreateGeofenceLocation opts a location into geofencing. At most one
// geofence location may exist per location.
func (s *SQLiteStorage) CreateGeofenceLocation(ctx context.Context, gl *model.GeofenceLocation) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateGeofenceLocation(gl); err != nil {
		return err
	}

	if gl.ID == "" {
		gl.ID = uuid.New().String()
	}
	now := time.Now()
	if gl.CreatedAt.IsZero() {
		gl.CreatedAt = now
	}
	gl.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO geofence_locations (`+geofenceLocationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, gl.ID, gl.LocationID, nullInt(gl.CustomRadius), gl.IsFrequent, gl.UsageCount,
		nullTime(gl.LastUsed), gl.MonthlyCheckCount, gl.MonthlyHitCount,
		nullString(gl.LastStatisticsResetMonth), gl.CreatedAt, gl.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create geofence location: %w",
			translateConstraint(err, "geofence location for "+gl.LocationID))
	}
	return nil
}

// GetGeofenceLocation retrieves a geofence location by id.
func (s *SQLiteStorage) GetGeofenceLocation(ctx context.Context, id string) (*model.GeofenceLocation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getGeofenceLocationTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getGeofenceLocationTx(ctx context.Context, q queryable, id string) (*model.GeofenceLocation, error) {
	row := q.QueryRowContext(ctx, `SELECT `+geofenceLocationColumns+` FROM geofence_locations WHERE id = ?`, id)
	gl, err := scanGeofenceLocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("geofence location %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get geofence location: %w", err)
	}
	return gl, nil
}

// GetGeofenceLocationByLocationID retrieves the geofence location wrapping a location.
func (s *SQLiteStorage) GetGeofenceLocationByLocationID(ctx context.Context, locationID string) (*model.GeofenceLocation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(locationID, "locationID"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+geofenceLocationColumns+` FROM geofence_locations WHERE location_id = ?`, locationID)
	gl, err := scanGeofenceLocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("geofence location for location %s: %w", locationID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get geofence location: %w", err)
	}
	return gl, nil
}

// GetGeofenceLocations retrieves every geofence location, most used first.
func (s *SQLiteStorage) GetGeofenceLocations(ctx context.Context) ([]model.GeofenceLocation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+geofenceLocationColumns+`
		FROM geofence_locations
		ORDER BY usage_count DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query geofence locations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var locations []model.GeofenceLocation
	for rows.Next() {
		gl, err := scanGeofenceLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan geofence location: %w", err)
		}
		locations = append(locations, *gl)
	}
	return locations, rows.Err()
}

// UpdateGeofenceLocation writes the radius override and usage fields.
// Monthly statistics are owned by RecordGeofenceCheck and are not written here.
func (s *SQLiteStorage) UpdateGeofenceLocation(ctx context.Context, gl *model.GeofenceLocation) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateGeofenceLocation(gl); err != nil {
		return err
	}
	if err := validateString(gl.ID, "id"); err != nil {
		return err
	}

	gl.UpdatedAt = time.Now()
	result, err := s.db.ExecContext(ctx, `
		UPDATE geofence_locations SET
			custom_radius = ?,
			is_frequent = ?,
			usage_count = ?,
			last_used = ?,
			updated_at = ?
		WHERE id = ?
	`, nullInt(gl.CustomRadius), gl.IsFrequent, gl.UsageCount, nullTime(gl.LastUsed), gl.UpdatedAt, gl.ID)
	if err != nil {
		return fmt.Errorf("failed to update geofence location: %w", err)
	}
	return requireAffected(result, "geofence location "+gl.ID)
}

// DeleteGeofenceLocation deletes a geofence location. Task geofences and
// statistics history referencing it are removed by cascade.
func (s *SQLiteStorage) DeleteGeofenceLocation(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM geofence_locations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete geofence location: %w", err)
	}
	return requireAffected(result, "geofence location "+id)
}

func scanGeofenceLocation(row rowScanner) (*model.GeofenceLocation, error) {
	var (
		gl           model.GeofenceLocation
		customRadius sql.NullInt64
		lastUsed     sql.NullTime
		resetMonth   sql.NullString
	)

	err := row.Scan(
		&gl.ID,
		&gl.LocationID,
		&customRadius,
		&gl.IsFrequent,
		&gl.UsageCount,
		&lastUsed,
		&gl.MonthlyCheckCount,
		&gl.MonthlyHitCount,
		&resetMonth,
		&gl.CreatedAt,
		&gl.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	gl.CustomRadius = intPtr(customRadius)
	gl.LastUsed = timePtr(lastUsed)
	gl.LastStatisticsResetMonth = resetMonth.String
	return &gl, nil
}
