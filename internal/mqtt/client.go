// Package mqtt connects whereabouts to a host device bridge over MQTT. The
// bridge owns the platform geofencing service: it receives region commands,
// reports transitions and location fixes, and displays reminders.
package mqtt

import (
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Message is one inbound MQTT message. Ack acknowledges it to the broker;
// it must be called exactly once.
type Message struct {
	Ack     func()
	Topic   string
	Payload []byte
}

// Handler processes an inbound message.
type Handler func(msg Message)

// Transport is the subset of an MQTT client whereabouts needs.
type Transport interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Subscribe(topic string, qos byte, handler Handler) error
	Unsubscribe(topics ...string) error
}

// Options configures the broker connection.
type Options struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	ConnectTimeout time.Duration
}

// Client wraps a paho client. Inbound messages are acknowledged manually so a
// QoS 1 transition is only acknowledged after it has been processed.
type Client struct {
	client paho.Client
}

// NewClient connects to the broker.
func NewClient(opts Options) (*Client, error) {
	o := paho.NewClientOptions()
	o.AddBroker(opts.Broker)
	o.SetClientID(opts.ClientID)
	if opts.Username != "" {
		o.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		o.SetPassword(opts.Password)
	}
	o.SetAutoReconnect(true)
	o.SetCleanSession(false)
	o.SetAutoAckDisabled(true)
	o.SetOrderMatters(false)
	o.SetConnectionLostHandler(func(_ paho.Client, err error) {
		slog.Warn("MQTT connection lost", "error", err)
	})
	o.SetOnConnectHandler(func(_ paho.Client) {
		slog.Info("MQTT connected", "broker", opts.Broker)
	})

	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := paho.NewClient(o)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("timed out connecting to MQTT broker %s", opts.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	return &Client{client: client}, nil
}

// Publish sends payload and waits for the broker to accept it.
func (c *Client) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := c.client.Publish(topic, qos, retained, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, err)
	}
	return nil
}

// Subscribe registers handler for topic.
func (c *Client) Subscribe(topic string, qos byte, handler Handler) error {
	token := c.client.Subscribe(topic, qos, func(_ paho.Client, msg paho.Message) {
		handler(Message{
			Topic:   msg.Topic(),
			Payload: msg.Payload(),
			Ack:     msg.Ack,
		})
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}
	return nil
}

// Unsubscribe removes subscriptions.
func (c *Client) Unsubscribe(topics ...string) error {
	token := c.client.Unsubscribe(topics...)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}
	return nil
}

// Disconnect closes the connection, waiting briefly for in-flight work.
func (c *Client) Disconnect() {
	c.client.Disconnect(250)
}

// IsConnected reports the connection state.
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}
