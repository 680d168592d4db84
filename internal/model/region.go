package model

import "time"

// NeverExpire marks a region registration that the host must keep until removed.
const NeverExpire time.Duration = -1

// TransitionMask is a bit set of transitions a region reports.
type TransitionMask int

// Transition mask bits.
const (
	MaskEnter TransitionMask = 1 << iota
	MaskExit
)

// Has reports whether t is in the mask.
func (m TransitionMask) Has(t Transition) bool {
	switch t {
	case TransitionEnter:
		return m&MaskEnter != 0
	case TransitionExit:
		return m&MaskExit != 0
	}
	return false
}

// Region is a circular area to watch, keyed by geofence location id.
type Region struct {
	ID        string  `json:"id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Radius    float64 `json:"radius"`
}

// RegionRequest is the full registration submitted to the host.
type RegionRequest struct {
	Region
	Expiration          time.Duration  `json:"expiration"`
	LoiteringDelay      time.Duration  `json:"loitering_delay"`
	Transitions         TransitionMask `json:"transitions"`
	InitialTriggerEnter bool           `json:"initial_trigger_enter"`
}

// NewRegionRequest builds the standard request: never expires, no dwell
// delay, ENTER|EXIT, and an immediate ENTER when already inside.
func NewRegionRequest(r Region) RegionRequest {
	return RegionRequest{
		Region:              r,
		Expiration:          NeverExpire,
		LoiteringDelay:      0,
		Transitions:         MaskEnter | MaskExit,
		InitialTriggerEnter: true,
	}
}

// Reminder is a user-facing notification produced by a transition.
type Reminder struct {
	At           time.Time  `json:"at"`
	TaskID       string     `json:"task_id"`
	TaskTitle    string     `json:"task_title"`
	LocationID   string     `json:"location_id"`
	LocationName string     `json:"location_name"`
	Transition   Transition `json:"transition"`
}
