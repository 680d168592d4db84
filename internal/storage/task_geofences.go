package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/whereabouts/internal/common"
	"github.com/Veraticus/whereabouts/internal/model"
)

const taskGeofenceColumns = `id, task_id, geofence_location_id, radius, enabled,
	last_check_result, last_check_distance, last_check_latitude, last_check_longitude,
	last_check_time, created_at, updated_at`

// CreateTaskGeofence stores a task geofence. The radius is stored exactly as
// given; callers snapshot it from the geofence location.
func (s *SQLiteStorage) CreateTaskGeofence(ctx context.Context, tg *model.TaskGeofence) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTaskGeofence(tg); err != nil {
		return err
	}

	if tg.ID == "" {
		tg.ID = uuid.New().String()
	}
	now := time.Now()
	if tg.CreatedAt.IsZero() {
		tg.CreatedAt = now
	}
	tg.UpdatedAt = now

	var result sql.NullString
	if tg.LastCheckResult.Valid() {
		result = sql.NullString{String: tg.LastCheckResult.String(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_geofences (`+taskGeofenceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, tg.ID, tg.TaskID, tg.GeofenceLocationID, tg.Radius, tg.Enabled,
		result, nullFloat(tg.LastCheckDistance), nullFloat(tg.LastCheckLatitude),
		nullFloat(tg.LastCheckLongitude), nullTime(tg.LastCheckTime), tg.CreatedAt, tg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create task geofence: %w",
			translateConstraint(err, "task geofence for task "+tg.TaskID))
	}
	return nil
}

// GetTaskGeofence retrieves the geofence of a task.
func (s *SQLiteStorage) GetTaskGeofence(ctx context.Context, taskID string) (*model.TaskGeofence, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(taskID, "taskID"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+taskGeofenceColumns+` FROM task_geofences WHERE task_id = ?`, taskID)
	tg, err := scanTaskGeofence(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task geofence for task %s: %w", taskID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task geofence: %w", err)
	}
	return tg, nil
}

// GetTaskGeofences retrieves every task geofence.
func (s *SQLiteStorage) GetTaskGeofences(ctx context.Context) ([]model.TaskGeofence, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.queryTaskGeofences(ctx, `SELECT `+taskGeofenceColumns+` FROM task_geofences ORDER BY created_at`)
}

// GetEnabledTaskGeofences retrieves the enabled task geofences of a geofence location.
func (s *SQLiteStorage) GetEnabledTaskGeofences(ctx context.Context, geofenceLocationID string) ([]model.TaskGeofence, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(geofenceLocationID, "geofenceLocationID"); err != nil {
		return nil, err
	}
	return s.queryTaskGeofences(ctx, `
		SELECT `+taskGeofenceColumns+`
		FROM task_geofences
		WHERE geofence_location_id = ? AND enabled = 1
		ORDER BY created_at
	`, geofenceLocationID)
}

func (s *SQLiteStorage) queryTaskGeofences(ctx context.Context, query string, args ...any) ([]model.TaskGeofence, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query task geofences: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var geofences []model.TaskGeofence
	for rows.Next() {
		tg, err := scanTaskGeofence(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task geofence: %w", err)
		}
		geofences = append(geofences, *tg)
	}
	return geofences, rows.Err()
}

// SetTaskGeofenceEnabled toggles a task geofence.
func (s *SQLiteStorage) SetTaskGeofenceEnabled(ctx context.Context, taskID string, enabled bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(taskID, "taskID"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE task_geofences SET enabled = ?, updated_at = ? WHERE task_id = ?
	`, enabled, time.Now(), taskID)
	if err != nil {
		return fmt.Errorf("failed to update task geofence: %w", err)
	}
	return requireAffected(result, "task geofence for task "+taskID)
}

// UpdateTaskGeofenceCheck caches the latest check outcome on a task geofence.
func (s *SQLiteStorage) UpdateTaskGeofenceCheck(ctx context.Context, taskID string, record model.CheckRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(taskID, "taskID"); err != nil {
		return err
	}
	if err := validateCheckRecord(record); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE task_geofences SET
			last_check_result = ?,
			last_check_distance = ?,
			last_check_latitude = ?,
			last_check_longitude = ?,
			last_check_time = ?,
			updated_at = ?
		WHERE task_id = ?
	`, record.Result.String(), nullFloat(record.Distance), nullFloat(record.Latitude),
		nullFloat(record.Longitude), record.CheckedAt, time.Now(), taskID)
	if err != nil {
		return fmt.Errorf("failed to update task geofence check: %w", err)
	}
	return requireAffected(result, "task geofence for task "+taskID)
}

// DeleteTaskGeofence removes the geofence of a task.
func (s *SQLiteStorage) DeleteTaskGeofence(ctx context.Context, taskID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(taskID, "taskID"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM task_geofences WHERE task_id = ?`, taskID)
	if err != nil {
		return fmt.Errorf("failed to delete task geofence: %w", err)
	}
	return requireAffected(result, "task geofence for task "+taskID)
}

func scanTaskGeofence(row rowScanner) (*model.TaskGeofence, error) {
	var (
		tg                 model.TaskGeofence
		result             sql.NullString
		distance, lat, lon sql.NullFloat64
		checkedAt          sql.NullTime
	)

	err := row.Scan(
		&tg.ID,
		&tg.TaskID,
		&tg.GeofenceLocationID,
		&tg.Radius,
		&tg.Enabled,
		&result,
		&distance,
		&lat,
		&lon,
		&checkedAt,
		&tg.CreatedAt,
		&tg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if result.Valid {
		parsed, parseErr := model.ParseCheckResult(result.String)
		if parseErr != nil {
			slog.Warn("Ignoring unrecognized stored check result",
				"task_id", tg.TaskID,
				"code", result.String,
				"codec_version", model.CheckResultCodecVersion)
		}
		tg.LastCheckResult = parsed
	}
	tg.LastCheckDistance = floatPtr(distance)
	tg.LastCheckLatitude = floatPtr(lat)
	tg.LastCheckLongitude = floatPtr(lon)
	tg.LastCheckTime = timePtr(checkedAt)
	return &tg, nil
}
