package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Veraticus/whereabouts/internal/common"
	"github.com/Veraticus/whereabouts/internal/geofence"
	"github.com/Veraticus/whereabouts/internal/location"
)

// Subscriber feeds inbound host messages into the pipeline: transitions go
// to the receiver, fixes to the fix store, and command status is logged.
type Subscriber struct {
	transport Transport
	receiver  *geofence.Receiver
	fixes     location.FixStore
	topics    Topics
	qos       byte
}

// NewSubscriber creates a Subscriber. fixes may be nil when location fixes
// come from elsewhere.
func NewSubscriber(transport Transport, topics Topics, qos byte, receiver *geofence.Receiver, fixes location.FixStore) *Subscriber {
	return &Subscriber{
		transport: transport,
		receiver:  receiver,
		fixes:     fixes,
		topics:    topics,
		qos:       qos,
	}
}

// Start subscribes to the inbound topics.
func (s *Subscriber) Start() error {
	if err := s.transport.Subscribe(s.topics.Transitions, s.qos, s.handleTransition); err != nil {
		return err
	}
	if err := s.transport.Subscribe(s.topics.Status, s.qos, s.handleStatus); err != nil {
		return err
	}
	if s.fixes != nil {
		if err := s.transport.Subscribe(s.topics.Location, s.qos, s.handleFix); err != nil {
			return err
		}
	}
	slog.Info("MQTT subscriber started",
		"transitions", s.topics.Transitions,
		"status", s.topics.Status,
		"location", s.fixes != nil)
	return nil
}

// Stop unsubscribes from the inbound topics.
func (s *Subscriber) Stop() error {
	topics := []string{s.topics.Transitions, s.topics.Status}
	if s.fixes != nil {
		topics = append(topics, s.topics.Location)
	}
	return s.transport.Unsubscribe(topics...)
}

// handleTransition hands the event to the receiver and acknowledges the
// message only once the receiver finishes it.
func (s *Subscriber) handleTransition(msg Message) {
	event, err := DecodeTransition(msg.Payload)
	if err != nil {
		common.LogError(err, "Dropping malformed transition message", common.Fields{"topic": msg.Topic})
		ack(msg)
		return
	}
	s.receiver.Receive(event, geofence.PendingFunc(func() { ack(msg) }))
}

func (s *Subscriber) handleFix(msg Message) {
	defer ack(msg)

	fix, err := DecodeFix(msg.Payload)
	if err != nil {
		common.LogError(err, "Dropping malformed location fix", common.Fields{"topic": msg.Topic})
		return
	}
	if err := s.fixes.Save(context.Background(), fix); err != nil {
		common.LogError(err, "Failed to store location fix", nil)
		return
	}
	slog.Debug("Stored location fix", "accuracy", fix.Accuracy, "recorded_at", fix.RecordedAt)
}

func (s *Subscriber) handleStatus(msg Message) {
	defer ack(msg)

	var status statusPayload
	if err := json.Unmarshal(msg.Payload, &status); err != nil {
		common.LogError(fmt.Errorf("malformed status: %w", err), "Dropping region status", nil)
		return
	}
	if status.OK {
		slog.Info("Host confirmed region command",
			"command", status.Command,
			"regions", len(status.RegionIDs))
		return
	}
	slog.Error("Host rejected region command",
		"command", status.Command,
		"regions", status.RegionIDs,
		"error", status.Error)
}

func ack(msg Message) {
	if msg.Ack != nil {
		msg.Ack()
	}
}
