package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Veraticus/whereabouts/internal/model"
)

const geofenceConfigID = 1

// GetGeofenceConfig returns the global configuration, creating it with
// defaults on first access.
func (s *SQLiteStorage) GetGeofenceConfig(ctx context.Context) (*model.GeofenceConfig, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var cfg *model.GeofenceConfig
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		defaults := model.DefaultGeofenceConfig()
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO geofence_config (
				id, enabled, default_radius, accuracy_threshold, auto_refresh_seconds,
				power_mode, notify_when_outside, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, geofenceConfigID, defaults.Enabled, defaults.DefaultRadius, defaults.AccuracyThreshold,
			int64(defaults.AutoRefreshInterval/time.Second), string(defaults.PowerMode),
			defaults.NotifyWhenOutside, time.Now()); err != nil {
			return fmt.Errorf("failed to initialize geofence config: %w", err)
		}

		var err error
		cfg, err = s.getGeofenceConfigTx(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *SQLiteStorage) getGeofenceConfigTx(ctx context.Context, q queryable) (*model.GeofenceConfig, error) {
	var (
		cfg            model.GeofenceConfig
		refreshSeconds int64
		powerMode      string
	)

	err := q.QueryRowContext(ctx, `
		SELECT enabled, default_radius, accuracy_threshold, auto_refresh_seconds,
			power_mode, notify_when_outside, updated_at
		FROM geofence_config WHERE id = ?
	`, geofenceConfigID).Scan(
		&cfg.Enabled,
		&cfg.DefaultRadius,
		&cfg.AccuracyThreshold,
		&refreshSeconds,
		&powerMode,
		&cfg.NotifyWhenOutside,
		&cfg.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get geofence config: %w", err)
	}

	cfg.AutoRefreshInterval = time.Duration(refreshSeconds) * time.Second
	cfg.PowerMode = model.PowerMode(powerMode)
	return &cfg, nil
}

// SaveGeofenceConfig replaces the global configuration.
func (s *SQLiteStorage) SaveGeofenceConfig(ctx context.Context, cfg *model.GeofenceConfig) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateGeofenceConfig(cfg); err != nil {
		return err
	}

	cfg.UpdatedAt = time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO geofence_config (
			id, enabled, default_radius, accuracy_threshold, auto_refresh_seconds,
			power_mode, notify_when_outside, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			enabled = excluded.enabled,
			default_radius = excluded.default_radius,
			accuracy_threshold = excluded.accuracy_threshold,
			auto_refresh_seconds = excluded.auto_refresh_seconds,
			power_mode = excluded.power_mode,
			notify_when_outside = excluded.notify_when_outside,
			updated_at = excluded.updated_at
	`, geofenceConfigID, cfg.Enabled, cfg.DefaultRadius, cfg.AccuracyThreshold,
		int64(cfg.AutoRefreshInterval/time.Second), string(cfg.PowerMode),
		cfg.NotifyWhenOutside, cfg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save geofence config: %w", err)
	}
	return nil
}
