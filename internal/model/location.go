// Package model defines the core domain models used throughout the application.
package model

import "time"

// LocationSource indicates how a location was recorded.
type LocationSource string

const (
	// SourceManual indicates the location was entered by the user.
	SourceManual LocationSource = "MANUAL"
	// SourceDetected indicates the location was captured from a device fix.
	SourceDetected LocationSource = "DETECTED"
)

// Location represents a saved, reusable place.
type Location struct {
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Accuracy   *float64
	Altitude   *float64
	ID         string
	Name       string
	Address    string
	City       string
	Region     string
	Country    string
	PostalCode string
	Source     LocationSource
	Latitude   float64
	Longitude  float64
}

// Fix is a single position report from the user's device.
type Fix struct {
	RecordedAt time.Time `json:"recorded_at"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   float64   `json:"accuracy"`
}
