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

const locationColumns = `id, name, latitude, longitude, accuracy, altitude, address, city,
	region, country, postal_code, source, created_at, updated_at`

// CreateLocation stores a new location, assigning an id when none is set.
func (s *SQLiteStorage) CreateLocation(ctx context.Context, location *model.Location) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateLocation(location); err != nil {
		return err
	}

	if location.ID == "" {
		location.ID = uuid.New().String()
	}
	if location.Source == "" {
		location.Source = model.SourceManual
	}
	now := time.Now()
	if location.CreatedAt.IsZero() {
		location.CreatedAt = now
	}
	location.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO locations (`+locationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, location.ID, location.Name, location.Latitude, location.Longitude,
		nullFloat(location.Accuracy), nullFloat(location.Altitude),
		nullString(location.Address), nullString(location.City), nullString(location.Region),
		nullString(location.Country), nullString(location.PostalCode),
		string(location.Source), location.CreatedAt, location.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create location: %w", err)
	}

	return nil
}

// GetLocation retrieves a location by id.
func (s *SQLiteStorage) GetLocation(ctx context.Context, id string) (*model.Location, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+locationColumns+` FROM locations WHERE id = ?`, id)
	location, err := scanLocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("location %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get location: %w", err)
	}
	return location, nil
}

// GetLocations retrieves all locations ordered by name.
func (s *SQLiteStorage) GetLocations(ctx context.Context) ([]model.Location, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+locationColumns+` FROM locations ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query locations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var locations []model.Location
	for rows.Next() {
		location, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, *location)
	}

	return locations, rows.Err()
}

// DeleteLocation deletes a location and, by cascade, its geofence configuration.
func (s *SQLiteStorage) DeleteLocation(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM locations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete location: %w", err)
	}

	return requireAffected(result, "location "+id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLocation(row rowScanner) (*model.Location, error) {
	var (
		location                                   model.Location
		accuracy, altitude                         sql.NullFloat64
		address, city, region, country, postalCode sql.NullString
		source                                     string
	)

	err := row.Scan(
		&location.ID,
		&location.Name,
		&location.Latitude,
		&location.Longitude,
		&accuracy,
		&altitude,
		&address,
		&city,
		&region,
		&country,
		&postalCode,
		&source,
		&location.CreatedAt,
		&location.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	location.Accuracy = floatPtr(accuracy)
	location.Altitude = floatPtr(altitude)
	location.Address = address.String
	location.City = city.String
	location.Region = region.String
	location.Country = country.String
	location.PostalCode = postalCode.String
	location.Source = model.LocationSource(source)

	return &location, nil
}
