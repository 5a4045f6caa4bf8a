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
// Usage: bus.Publish(ProcessSpawnedEvent{...})
func (b *Bus) Publish(ev Event) {
	// kelindar/event dispatches on the static type
	switch e := ev.(type) {
	case ProcessSpawnedEvent:
		event.Publish(b.dispatcher, e)
	case ProcessPreparedEvent:
		event.Publish(b.dispatcher, e)
	case ProcessAssignedEvent:
		event.Publish(b.dispatcher, e)
	case PreparedDestroyedEvent:
		event.Publish(b.dispatcher, e)
	case ProcessExitedEvent:
		event.Publish(b.dispatcher, e)
	case ProcessDestroyedEvent:
		event.Publish(b.dispatcher, e)
	case PoolStatsEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler type determines which events it receives.
// Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e ProcessExitedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(ProcessSpawnedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ProcessPreparedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ProcessAssignedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(PreparedDestroyedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ProcessExitedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ProcessDestroyedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(PoolStatsEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		// Return a no-op function if handler type is not recognized
		return func() {}
	}
}

// SubscribeAll forwards every process lifecycle event into ch and returns a single
// unsubscribe for all of them.
func (b *Bus) SubscribeAll(ch chan<- any) func() {
	unsubs := []func(){
		SubscribeToChannel[ProcessSpawnedEvent](b, ch),
		SubscribeToChannel[ProcessPreparedEvent](b, ch),
		SubscribeToChannel[ProcessAssignedEvent](b, ch),
		SubscribeToChannel[PreparedDestroyedEvent](b, ch),
		SubscribeToChannel[ProcessExitedEvent](b, ch),
		SubscribeToChannel[ProcessDestroyedEvent](b, ch),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

// SubscribeToChannel forwards events of type T into ch without blocking the
// publisher. Events are dropped while ch is full.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}
