package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/whereabouts/internal/model"
)

// RecordGeofenceCheck counts one check against a geofence location's
// monthly statistics. When the stored month differs from now's month the
// previous month is archived to the history table and the counters restart.
func (s *SQLiteStorage) RecordGeofenceCheck(ctx context.Context, geofenceLocationID string, isHit bool, now time.Time) (*model.GeofenceLocation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(geofenceLocationID, "geofenceLocationID"); err != nil {
		return nil, err
	}

	var updated *model.GeofenceLocation
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		gl, err := s.getGeofenceLocationTx(ctx, tx, geofenceLocationID)
		if err != nil {
			return err
		}

		month := model.MonthKey(now)
		if gl.LastStatisticsResetMonth != "" && gl.LastStatisticsResetMonth != month {
			if err := archiveStatisticsTx(ctx, tx, gl, now); err != nil {
				return err
			}
			slog.Debug("Rolled over geofence statistics",
				"geofence_location_id", gl.ID,
				"from", gl.LastStatisticsResetMonth,
				"to", month)
			gl.MonthlyCheckCount = 0
			gl.MonthlyHitCount = 0
		}
		gl.LastStatisticsResetMonth = month

		gl.MonthlyCheckCount++
		if isHit {
			gl.MonthlyHitCount++
		}
		gl.UpdatedAt = now

		if _, err := tx.ExecContext(ctx, `
			UPDATE geofence_locations SET
				monthly_check_count = ?,
				monthly_hit_count = ?,
				last_statistics_reset_month = ?,
				updated_at = ?
			WHERE id = ?
		`, gl.MonthlyCheckCount, gl.MonthlyHitCount, gl.LastStatisticsResetMonth, gl.UpdatedAt, gl.ID); err != nil {
			return fmt.Errorf("failed to update geofence statistics: %w", err)
		}

		updated = gl
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// archiveStatisticsTx stores gl's current month counters in the history
// table. History is append-only: the first archive of a (location, month)
// wins and later ones are ignored.
func archiveStatisticsTx(ctx context.Context, q queryable, gl *model.GeofenceLocation, now time.Time) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO geofence_location_statistics_history (
			geofence_location_id, month, check_count, hit_count, hit_rate, archived_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(geofence_location_id, month) DO NOTHING
	`, gl.ID, gl.LastStatisticsResetMonth, gl.MonthlyCheckCount, gl.MonthlyHitCount,
		model.HitRate(gl.MonthlyCheckCount, gl.MonthlyHitCount), now)
	if err != nil {
		return fmt.Errorf("failed to archive geofence statistics: %w", err)
	}
	return nil
}

// ResetMonthlyStatistics zeroes the monthly counters of every geofence
// location and stamps them with now's month. It returns the rows touched.
func (s *SQLiteStorage) ResetMonthlyStatistics(ctx context.Context, now time.Time) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE geofence_locations SET
			monthly_check_count = 0,
			monthly_hit_count = 0,
			last_statistics_reset_month = ?,
			updated_at = ?
	`, model.MonthKey(now), now)
	if err != nil {
		return 0, fmt.Errorf("failed to reset monthly statistics: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

// GetStatisticsHistory returns the archived months of a geofence location, newest first.
func (s *SQLiteStorage) GetStatisticsHistory(ctx context.Context, geofenceLocationID string) ([]model.StatisticsHistory, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(geofenceLocationID, "geofenceLocationID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, geofence_location_id, month, check_count, hit_count, hit_rate, archived_at
		FROM geofence_location_statistics_history
		WHERE geofence_location_id = ?
		ORDER BY month DESC
	`, geofenceLocationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query statistics history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var history []model.StatisticsHistory
	for rows.Next() {
		var h model.StatisticsHistory
		if err := rows.Scan(&h.ID, &h.GeofenceLocationID, &h.Month, &h.CheckCount, &h.HitCount, &h.HitRate, &h.ArchivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan statistics history: %w", err)
		}
		history = append(history, h)
	}
	return history, rows.Err()
}
