package geofence

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Veraticus/whereabouts/internal/model"
)

// PendingResult keeps an event's delivery open until processing finishes.
type PendingResult interface {
	Finish()
}

// PendingFunc adapts a function to PendingResult.
type PendingFunc func()

// Finish calls f.
func (f PendingFunc) Finish() { f() }

// EventHandler processes one transition event to completion.
type EventHandler interface {
	Handle(ctx context.Context, event model.TransitionEvent) HandleResult
}

// Receiver accepts transition events from a transport and processes them in
// the background. Receive returns immediately; the pending result is finished
// only after all work for the event is done, including when it panics.
type Receiver struct {
	handler EventHandler
	wg      sync.WaitGroup
}

// NewReceiver creates a Receiver.
func NewReceiver(handler EventHandler) *Receiver {
	return &Receiver{handler: handler}
}

// Receive schedules event for processing. pending may be nil.
func (r *Receiver) Receive(event model.TransitionEvent, pending PendingResult) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if pending != nil {
				pending.Finish()
			}
		}()
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("Transition processing panicked",
					"transition", event.Transition,
					"panic", fmt.Sprint(rec))
			}
		}()

		// Processing is not cancellable once accepted.
		r.handler.Handle(context.Background(), event)
	}()
}

// Wait blocks until every received event has been processed.
func (r *Receiver) Wait() {
	r.wg.Wait()
}
