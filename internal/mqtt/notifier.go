package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Veraticus/whereabouts/internal/model"
)

// Notifier publishes reminders for the host to display.
type Notifier struct {
	transport Transport
	topic     string
	qos       byte
}

// NewNotifier creates a Notifier publishing to topics.Notifications.
func NewNotifier(transport Transport, topics Topics, qos byte) *Notifier {
	return &Notifier{transport: transport, topic: topics.Notifications, qos: qos}
}

// Notify publishes reminder as JSON.
func (n *Notifier) Notify(ctx context.Context, reminder model.Reminder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(reminder)
	if err != nil {
		return fmt.Errorf("failed to encode reminder: %w", err)
	}
	return n.transport.Publish(n.topic, n.qos, false, payload)
}
