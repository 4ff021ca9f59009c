package websocket

import (
	"github.com/statvalue/statvalue-companion/internal/events"
)

// Observer forwards session events to the WebSocket clients following the
// event's session. It implements events.Observer.
type Observer struct {
	hub *Hub
}

// NewObserver creates an observer that publishes to hub.
func NewObserver(hub *Hub) *Observer {
	return &Observer{hub: hub}
}

// OnEvent publishes the event. Events without a session are dropped.
func (o *Observer) OnEvent(event events.Event) error {
	if o.hub == nil || event.SessionID == "" {
		return nil
	}
	o.hub.Publish(Event{
		Type:      event.Type,
		SessionID: event.SessionID,
		Data:      event.Data,
	})
	return nil
}

// GetName returns the observer's name.
func (o *Observer) GetName() string {
	return "WebSocketObserver"
}

// ShouldHandle returns true for all events.
func (o *Observer) ShouldHandle(string) bool {
	return true
}

var _ events.Observer = (*Observer)(nil)
