package events

import (
	"go.uber.org/zap"
)

// FuncObserver adapts a callback to the Observer interface.
type FuncObserver struct {
	name   string
	types  map[string]bool
	handle func(Event)
}

// NewFuncObserver creates an observer that calls handle for the listed event
// types, or for every event when no types are given.
func NewFuncObserver(name string, handle func(Event), eventTypes ...string) *FuncObserver {
	var types map[string]bool
	if len(eventTypes) > 0 {
		types = make(map[string]bool, len(eventTypes))
		for _, t := range eventTypes {
			types[t] = true
		}
	}
	return &FuncObserver{name: name, types: types, handle: handle}
}

// OnEvent invokes the callback.
func (o *FuncObserver) OnEvent(event Event) error {
	o.handle(event)
	return nil
}

// GetName returns the observer's name.
func (o *FuncObserver) GetName() string {
	return o.name
}

// ShouldHandle filters by the configured event types.
func (o *FuncObserver) ShouldHandle(eventType string) bool {
	return o.types == nil || o.types[eventType]
}

// LoggingObserver logs all events for debugging purposes.
type LoggingObserver struct {
	name    string
	verbose bool
	logger  *zap.Logger
}

// NewLoggingObserver creates a new observer that logs events.
func NewLoggingObserver(logger *zap.Logger, verbose bool) *LoggingObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingObserver{
		name:    "LoggingObserver",
		verbose: verbose,
		logger:  logger,
	}
}

// OnEvent logs the event details.
func (o *LoggingObserver) OnEvent(event Event) error {
	if o.verbose {
		o.logger.Debug("Event", zap.String("type", event.Type), zap.Any("data", event.Data))
	} else {
		o.logger.Debug("Event", zap.String("type", event.Type))
	}
	return nil
}

// GetName returns the observer's name.
func (o *LoggingObserver) GetName() string {
	return o.name
}

// ShouldHandle returns true for all events.
func (o *LoggingObserver) ShouldHandle(string) bool {
	return true
}
