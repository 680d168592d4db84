package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/whereabouts/internal/model"
)

// Topics are the MQTT topics under one prefix.
type Topics struct {
	Register      string
	Remove        string
	Status        string
	Transitions   string
	Location      string
	Notifications string
}

// NewTopics builds the topic set for prefix.
func NewTopics(prefix string) Topics {
	prefix = strings.TrimSuffix(prefix, "/")
	return Topics{
		Register:      prefix + "/regions/register",
		Remove:        prefix + "/regions/remove",
		Status:        prefix + "/regions/status",
		Transitions:   prefix + "/transitions",
		Location:      prefix + "/location",
		Notifications: prefix + "/notifications",
	}
}

// regionPayload is the wire form of a region registration.
type regionPayload struct {
	ID                  string   `json:"id"`
	Transitions         []string `json:"transitions"`
	Latitude            float64  `json:"latitude"`
	Longitude           float64  `json:"longitude"`
	Radius              float64  `json:"radius"`
	ExpirationMs        int64    `json:"expiration_ms"`
	LoiteringDelayMs    int64    `json:"loitering_delay_ms"`
	InitialTriggerEnter bool     `json:"initial_trigger_enter"`
}

type registerPayload struct {
	Regions []regionPayload `json:"regions"`
}

type removePayload struct {
	IDs []string `json:"ids,omitempty"`
	All bool     `json:"all,omitempty"`
}

// statusPayload is the host's asynchronous answer to a region command.
type statusPayload struct {
	Command   string   `json:"command"`
	Error     string   `json:"error,omitempty"`
	RegionIDs []string `json:"region_ids,omitempty"`
	OK        bool     `json:"ok"`
}

type transitionPayload struct {
	Timestamp  time.Time `json:"timestamp"`
	Transition string    `json:"transition"`
	RegionIDs  []string  `json:"region_ids"`
	ErrorCode  int       `json:"error_code"`
}

func encodeRegister(requests []model.RegionRequest) ([]byte, error) {
	payload := registerPayload{Regions: make([]regionPayload, len(requests))}
	for i, r := range requests {
		var transitions []string
		for _, t := range []model.Transition{model.TransitionEnter, model.TransitionExit} {
			if r.Transitions.Has(t) {
				transitions = append(transitions, string(t))
			}
		}
		expiration := int64(-1)
		if r.Expiration != model.NeverExpire {
			expiration = r.Expiration.Milliseconds()
		}
		payload.Regions[i] = regionPayload{
			ID:                  r.ID,
			Latitude:            r.Latitude,
			Longitude:           r.Longitude,
			Radius:              r.Radius,
			ExpirationMs:        expiration,
			LoiteringDelayMs:    r.LoiteringDelay.Milliseconds(),
			Transitions:         transitions,
			InitialTriggerEnter: r.InitialTriggerEnter,
		}
	}
	return json.Marshal(payload)
}

func encodeRemove(ids []string, all bool) ([]byte, error) {
	return json.Marshal(removePayload{IDs: ids, All: all})
}

// DecodeTransition parses a transition event published by the host.
func DecodeTransition(data []byte) (model.TransitionEvent, error) {
	var p transitionPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return model.TransitionEvent{}, fmt.Errorf("malformed transition event: %w", err)
	}

	event := model.TransitionEvent{
		Timestamp: p.Timestamp,
		RegionIDs: p.RegionIDs,
		ErrorCode: p.ErrorCode,
	}
	// Error events may omit the transition.
	if p.ErrorCode != 0 {
		event.Transition = model.Transition(p.Transition)
		return event, nil
	}

	transition, err := model.ParseTransition(p.Transition)
	if err != nil {
		return model.TransitionEvent{}, err
	}
	event.Transition = transition
	return event, nil
}

// DecodeFix parses a location fix published by the host.
func DecodeFix(data []byte) (model.Fix, error) {
	var fix model.Fix
	if err := json.Unmarshal(data, &fix); err != nil {
		return fix, fmt.Errorf("malformed location fix: %w", err)
	}
	if fix.Latitude < -90 || fix.Latitude > 90 || fix.Longitude < -180 || fix.Longitude > 180 {
		return fix, fmt.Errorf("location fix out of range: %f,%f", fix.Latitude, fix.Longitude)
	}
	if fix.RecordedAt.IsZero() {
		fix.RecordedAt = time.Now()
	}
	return fix, nil
}
