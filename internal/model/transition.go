package model

import (
	"fmt"
	"strings"
	"time"
)

// Transition is the kind of boundary crossing reported by the host.
type Transition string

// Supported transitions.
const (
	TransitionEnter Transition = "ENTER"
	TransitionExit  Transition = "EXIT"
)

// ParseTransition normalizes a transition name.
func ParseTransition(s string) (Transition, error) {
	switch Transition(strings.ToUpper(strings.TrimSpace(s))) {
	case TransitionEnter:
		return TransitionEnter, nil
	case TransitionExit:
		return TransitionExit, nil
	default:
		return "", fmt.Errorf("invalid transition %q", s)
	}
}

// CheckResult maps the transition onto the result written to task geofences.
func (t Transition) CheckResult() GeofenceCheckResult {
	if t == TransitionEnter {
		return InsideGeofence
	}
	return OutsideGeofence
}

// TransitionEvent is one geofencing callback delivered by the host.
// RegionIDs carry the geofence location ids used at registration time.
type TransitionEvent struct {
	Timestamp  time.Time  `json:"timestamp"`
	Transition Transition `json:"transition"`
	RegionIDs  []string   `json:"region_ids"`
	ErrorCode  int        `json:"error_code"`
}

// HasError reports whether the host attached an error to the event.
func (e TransitionEvent) HasError() bool {
	return e.ErrorCode != 0
}
