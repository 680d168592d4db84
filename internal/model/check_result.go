package model

import (
	"errors"
	"fmt"
)

// CheckResultCodecVersion identifies the stored string form of GeofenceCheckResult.
// Bump it and add a decode alias when a stored code ever has to change.
const CheckResultCodecVersion = 1

// ErrUnknownCheckResult is returned when decoding an unrecognized result code.
var ErrUnknownCheckResult = errors.New("unknown geofence check result")

// GeofenceCheckResult is the outcome of evaluating a task's geofence.
type GeofenceCheckResult int

// Check results. The zero value is deliberately invalid.
const (
	CheckResultUnknown GeofenceCheckResult = iota
	InsideGeofence
	OutsideGeofence
	LocationUnavailable
	PermissionDenied
	GeofenceDisabled
)

// Stored codes. These strings are a persistence contract and never follow
// identifier renames.
var checkResultCodes = map[GeofenceCheckResult]string{
	InsideGeofence:      "INSIDE_GEOFENCE",
	OutsideGeofence:     "OUTSIDE_GEOFENCE",
	LocationUnavailable: "LOCATION_UNAVAILABLE",
	PermissionDenied:    "PERMISSION_DENIED",
	GeofenceDisabled:    "GEOFENCE_DISABLED",
}

var checkResultsByCode = func() map[string]GeofenceCheckResult {
	m := make(map[string]GeofenceCheckResult, len(checkResultCodes))
	for r, code := range checkResultCodes {
		m[code] = r
	}
	return m
}()

// String returns the stored code of the result.
func (r GeofenceCheckResult) String() string {
	if code, ok := checkResultCodes[r]; ok {
		return code
	}
	return fmt.Sprintf("GeofenceCheckResult(%d)", int(r))
}

// Valid reports whether r is one of the defined results.
func (r GeofenceCheckResult) Valid() bool {
	_, ok := checkResultCodes[r]
	return ok
}

// IsHit reports whether the result places the user inside the geofence.
func (r GeofenceCheckResult) IsHit() bool {
	return r == InsideGeofence
}

// ParseCheckResult decodes a stored result code.
func ParseCheckResult(code string) (GeofenceCheckResult, error) {
	if r, ok := checkResultsByCode[code]; ok {
		return r, nil
	}
	return CheckResultUnknown, fmt.Errorf("%w: %q", ErrUnknownCheckResult, code)
}

// MarshalText implements encoding.TextMarshaler.
func (r GeofenceCheckResult) MarshalText() ([]byte, error) {
	code, ok := checkResultCodes[r]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCheckResult, int(r))
	}
	return []byte(code), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *GeofenceCheckResult) UnmarshalText(text []byte) error {
	parsed, err := ParseCheckResult(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
