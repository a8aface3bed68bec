package events

import "github.com/kelindar/event"

// SubscribeToChannel bridges kelindar/event callback subscriptions to a
// channel for select-loop consumers such as SSE streams. Events that do not
// fit in ch are passed to dropped (which may be nil) instead of blocking the
// publishing controller.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any, dropped func(Event)) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
			if dropped != nil {
				dropped(e)
			}
		}
	})
}

// SubscribeAll forwards every hardware notification to ch. The returned
// function removes all subscriptions.
func SubscribeAll(bus *Bus, ch chan<- any, dropped func(Event)) func() {
	unsubscribers := []func(){
		SubscribeToChannel[LEDModeChangedEvent](bus, ch, dropped),
		SubscribeToChannel[BrightnessChangedEvent](bus, ch, dropped),
		SubscribeToChannel[FanLevelChangedEvent](bus, ch, dropped),
		SubscribeToChannel[ChargeLimitChangedEvent](bus, ch, dropped),
		SubscribeToChannel[GfxModeChangedEvent](bus, ch, dropped),
		SubscribeToChannel[PostSoundChangedEvent](bus, ch, dropped),
	}
	return func() {
		for _, unsub := range unsubscribers {
			unsub()
		}
	}
}
