package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/statvalue/statvalue-companion/internal/events"
)

func TestObserver_Basics(t *testing.T) {
	o := NewObserver(nil)

	if o.GetName() != "WebSocketObserver" {
		t.Errorf("unexpected name %q", o.GetName())
	}
	for _, typ := range []string{events.SelectionChanged, events.Error, "anything"} {
		if !o.ShouldHandle(typ) {
			t.Errorf("ShouldHandle(%q) = false", typ)
		}
	}
	if err := o.OnEvent(events.Event{Type: events.Error, SessionID: "s"}); err != nil {
		t.Errorf("nil hub should be ignored, got %v", err)
	}
}

func TestObserver_ForwardsToSession(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	defer server.Close()

	conn := dial(t, server, "s-1")
	waitForClients(t, hub, 1)

	dispatcher := events.NewEventDispatcher(nil)
	dispatcher.Register(NewObserver(hub))

	dispatcher.Dispatch(events.NewTypedEvent(context.Background(), events.SimilarUpdated, "s-1",
		events.SimilarUpdatedEvent{Reference: "Bukayo Saka", Similar: []string{"Cole Palmer"}}))

	got := readEvent(t, conn)
	if got.Type != events.SimilarUpdated {
		t.Fatalf("expected %s, got %s", events.SimilarUpdated, got.Type)
	}
	data, ok := got.Data.(map[string]interface{})
	if !ok || data["reference"] != "Bukayo Saka" {
		t.Errorf("unexpected payload %v", got.Data)
	}
}
