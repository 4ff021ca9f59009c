package events

import (
	"context"
	"sync"

	"github.com/statvalue/statvalue-companion/internal/logging"
)

// Event represents a session event that can be dispatched to observers.
type Event struct {
	// Type is the event type (e.g., "selection:changed")
	Type string

	// SessionID is the comparison session the event belongs to.
	SessionID string

	// Data is the typed payload, one of the structs in messages.go.
	Data any

	// Context provides execution context for the event
	Context context.Context
}

// Observer defines the interface for objects that want to be notified of events.
type Observer interface {
	// OnEvent is called when an event is dispatched.
	OnEvent(event Event) error

	// GetName returns a human-readable name for this observer.
	GetName() string

	// ShouldHandle returns true if this observer should handle the given event type.
	ShouldHandle(eventType string) bool
}

// Emitter is implemented by anything that accepts events. Sessions depend on
// it rather than on the dispatcher itself.
type Emitter interface {
	Dispatch(event Event)
}

// EventDispatcher fans events out to registered observers.
// Thread-safe for concurrent use.
type EventDispatcher struct {
	observers []Observer
	mu        sync.RWMutex
	logger    logging.Logger
}

// NewEventDispatcher creates a new EventDispatcher.
func NewEventDispatcher(logger logging.Logger) *EventDispatcher {
	return &EventDispatcher{
		observers: make([]Observer, 0),
		logger:    logging.OrNop(logger).Named("events"),
	}
}

// Register adds an observer to the dispatcher.
func (d *EventDispatcher) Register(observer Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.observers = append(d.observers, observer)
	d.logger.Debug("registered observer", logging.String("observer", observer.GetName()))
}

// Unregister removes an observer from the dispatcher.
func (d *EventDispatcher) Unregister(observer Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, obs := range d.observers {
		if obs == observer {
			d.observers = append(d.observers[:i:i], d.observers[i+1:]...)
			d.logger.Debug("unregistered observer", logging.String("observer", observer.GetName()))
			return
		}
	}
}

// Dispatch sends an event to all registered observers in registration
// order. Observer errors are logged and do not stop delivery.
func (d *EventDispatcher) Dispatch(event Event) {
	d.mu.RLock()
	observers := make([]Observer, len(d.observers))
	copy(observers, d.observers)
	d.mu.RUnlock()

	for _, observer := range observers {
		if !observer.ShouldHandle(event.Type) {
			continue
		}
		if err := observer.OnEvent(event); err != nil {
			d.logger.Warn("observer failed",
				logging.String("observer", observer.GetName()),
				logging.String("event", event.Type),
				logging.Err(err))
		}
	}
}

// ObserverCount returns the number of registered observers.
func (d *EventDispatcher) ObserverCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.observers)
}

// NewTypedEvent creates an Event for a session with a typed payload.
func NewTypedEvent[T any](ctx context.Context, eventType, sessionID string, data T) Event {
	return Event{
		Type:      eventType,
		SessionID: sessionID,
		Data:      data,
		Context:   ctx,
	}
}

// GetTypedData extracts typed data from an Event.
func GetTypedData[T any](event Event) (T, bool) {
	var zero T
	if event.Data == nil {
		return zero, false
	}
	typed, ok := event.Data.(T)
	return typed, ok
}

// NopEmitter discards every event.
type NopEmitter struct{}

// Dispatch implements Emitter.
func (NopEmitter) Dispatch(Event) {}
