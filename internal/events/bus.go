package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers
// Usage: bus.Publish(StreamFailedEvent{...})
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case StreamStartedEvent:
		event.Publish(b.dispatcher, e)
	case StreamRunningEvent:
		event.Publish(b.dispatcher, e)
	case StreamStoppedEvent:
		event.Publish(b.dispatcher, e)
	case StreamExitedEvent:
		event.Publish(b.dispatcher, e)
	case StreamFailedEvent:
		event.Publish(b.dispatcher, e)
	case SweepEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler's parameter type selects the events it receives.
// Returns an unsubscribe function; unknown handler types get a no-op.
// Usage: unsub := bus.Subscribe(func(e StreamFailedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(StreamStartedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StreamRunningEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StreamStoppedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StreamExitedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StreamFailedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SweepEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
