package events

import (
	"fmt"

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

// Publish publishes an event to all subscribers.
// Events of a type the bus does not know are rejected.
// Usage: bus.Publish(FanLevelChangedEvent{...})
func (b *Bus) Publish(ev Event) error {
	switch e := ev.(type) {
	case LEDModeChangedEvent:
		event.Publish(b.dispatcher, e)
	case BrightnessChangedEvent:
		event.Publish(b.dispatcher, e)
	case FanLevelChangedEvent:
		event.Publish(b.dispatcher, e)
	case ChargeLimitChangedEvent:
		event.Publish(b.dispatcher, e)
	case GfxModeChangedEvent:
		event.Publish(b.dispatcher, e)
	case PostSoundChangedEvent:
		event.Publish(b.dispatcher, e)
	default:
		return fmt.Errorf("unknown event type %T", ev)
	}
	return nil
}

// Subscribe subscribes to events with a handler function
// The handler type determines which events it receives
// Returns an unsubscribe function
// Usage: unsub := bus.Subscribe(func(e FanLevelChangedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(LEDModeChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(BrightnessChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(FanLevelChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ChargeLimitChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(GfxModeChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(PostSoundChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		// Return a no-op function if handler type is not recognized
		return func() {}
	}
}
