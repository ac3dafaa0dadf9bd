// Package events distributes domain events from the deck state manager to
// observers such as WebSocket clients and loggers.
package events

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// Event is one deck notification. Type names the topic ("deck:state",
// "deck:error", ...); Data holds the matching payload from messages.go.
type Event struct {
	Type    string
	Data    any
	Context context.Context
}

// Observer receives the events whose type it accepts.
type Observer interface {
	OnEvent(event Event) error
	// GetName identifies the observer in logs.
	GetName() string
	ShouldHandle(eventType string) bool
}

// EventDispatcher delivers events to observers in registration order.
// Register and Unregister replace the observer list instead of editing it,
// so Dispatch can walk a list without holding the lock.
type EventDispatcher struct {
	mu        sync.Mutex
	observers []Observer
	logger    *zap.Logger
}

// NewEventDispatcher returns a dispatcher with no observers.
func NewEventDispatcher(logger *zap.Logger) *EventDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventDispatcher{logger: logger}
}

// Register appends observer.
func (d *EventDispatcher) Register(observer Observer) {
	d.mu.Lock()
	next := make([]Observer, len(d.observers), len(d.observers)+1)
	copy(next, d.observers)
	d.observers = append(next, observer)
	d.mu.Unlock()

	d.logger.Debug("Observer registered", zap.String("observer", observer.GetName()))
}

// Unregister drops the first registration of observer.
func (d *EventDispatcher) Unregister(observer Observer) {
	d.mu.Lock()
	i := slices.Index(d.observers, observer)
	if i < 0 {
		d.mu.Unlock()
		return
	}
	d.observers = slices.Delete(slices.Clone(d.observers), i, i+1)
	d.mu.Unlock()

	d.logger.Debug("Observer unregistered", zap.String("observer", observer.GetName()))
}

func (d *EventDispatcher) current() []Observer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.observers
}

// Dispatch runs every interested observer on the caller's goroutine. A
// failing observer is logged and the rest still receive the event.
func (d *EventDispatcher) Dispatch(event Event) {
	for _, observer := range d.current() {
		if !observer.ShouldHandle(event.Type) {
			continue
		}
		if err := observer.OnEvent(event); err != nil {
			d.logger.Warn("Observer rejected event",
				zap.String("observer", observer.GetName()),
				zap.String("event", event.Type),
				zap.Error(err))
		}
	}
}

// ObserverCount returns the number of registered observers.
func (d *EventDispatcher) ObserverCount() int {
	return len(d.current())
}

// NewTypedEvent wraps data as an Event of eventType.
func NewTypedEvent[T any](ctx context.Context, eventType string, data T) Event {
	return Event{Type: eventType, Data: data, Context: ctx}
}

// GetTypedData returns the event payload as T.
func GetTypedData[T any](event Event) (T, bool) {
	typed, ok := event.Data.(T)
	return typed, ok
}
