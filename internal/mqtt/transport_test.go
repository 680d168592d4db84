package mqtt

import (
	"sync"
	"sync/atomic"
)

type published struct {
	topic   string
	payload []byte
	qos     byte
}

// fakeTransport is an in-memory Transport.
type fakeTransport struct {
	handlers     map[string]Handler
	published    []published
	unsubscribed []string
	publishErr   error
	mu           sync.Mutex
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{handlers: make(map[string]Handler)}
}

func (f *fakeTransport) Publish(topic string, qos byte, _ bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, published{topic: topic, payload: payload, qos: qos})
	return nil
}

func (f *fakeTransport) Subscribe(topic string, _ byte, handler Handler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = handler
	return nil
}

func (f *fakeTransport) Unsubscribe(topics ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range topics {
		delete(f.handlers, t)
	}
	f.unsubscribed = append(f.unsubscribed, topics...)
	return nil
}

// deliver invokes the handler for topic and returns the message's ack counter.
func (f *fakeTransport) deliver(topic string, payload []byte) *atomic.Int32 {
	f.mu.Lock()
	handler := f.handlers[topic]
	f.mu.Unlock()

	acks := &atomic.Int32{}
	if handler != nil {
		handler(Message{Topic: topic, Payload: payload, Ack: func() { acks.Add(1) }})
	}
	return acks
}

func (f *fakeTransport) Published() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.published...)
}
