package websocket

import (
	"slices"

	"github.com/ramonehamilton/commander-builder/internal/events"
)

// forwardedTypes are the events pushed to UI clients.
var forwardedTypes = []string{events.TypeDeckState, events.TypeDeckError, events.TypeDecksUpdated}

// Observer forwards deck events from an events.EventDispatcher to
// WebSocket clients.
type Observer struct {
	hub *Hub
}

// NewObserver creates an observer broadcasting to hub.
func NewObserver(hub *Hub) *Observer {
	return &Observer{hub: hub}
}

// OnEvent broadcasts the event payload.
func (o *Observer) OnEvent(event events.Event) error {
	if o.hub == nil {
		return nil
	}
	o.hub.BroadcastEvent(Event{Type: event.Type, Data: event.Data})
	return nil
}

// GetName returns the observer's name.
func (o *Observer) GetName() string {
	return "WebSocketObserver"
}

// ShouldHandle reports whether eventType is forwarded to clients.
func (o *Observer) ShouldHandle(eventType string) bool {
	return slices.Contains(forwardedTypes, eventType)
}

var _ events.Observer = (*Observer)(nil)
