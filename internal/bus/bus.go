// Package bus provides an internal event bus for component communication
package bus

import (
	"sync"
)

// EventType identifies different event types
type EventType string

// Event types for the virtual teacher
const (
	// Animation events
	EventTypeSequenceStarted  EventType = "animation.sequence_started"
	EventTypeSequenceStopped  EventType = "animation.sequence_stopped"
	EventTypeSequenceFinished EventType = "animation.sequence_finished"
	EventTypeStepEntered      EventType = "animation.step_entered"
	EventTypeSpecialStarted   EventType = "animation.special_started"
	EventTypeIdleSuspended    EventType = "animation.idle_suspended"
	EventTypeIdleResumed      EventType = "animation.idle_resumed"

	// Speech events
	EventTypeSpeakingStarted  EventType = "lipsync.speaking_started"
	EventTypeSpeakingPaused   EventType = "lipsync.speaking_paused"
	EventTypeSpeakingStopped  EventType = "lipsync.speaking_stopped"
	EventTypeCalmDownFinished EventType = "lipsync.calm_down_finished"

	// Renderer connection events
	EventTypeRendererConnected    EventType = "renderer.connected"
	EventTypeRendererDisconnected EventType = "renderer.disconnected"

	// Configuration events
	EventTypeConfigReloaded EventType = "config.reloaded"
)

// AllEventTypes lists every event type, for subscribers that forward
// everything.
var AllEventTypes = []EventType{
	EventTypeSequenceStarted,
	EventTypeSequenceStopped,
	EventTypeSequenceFinished,
	EventTypeStepEntered,
	EventTypeSpecialStarted,
	EventTypeIdleSuspended,
	EventTypeIdleResumed,
	EventTypeSpeakingStarted,
	EventTypeSpeakingPaused,
	EventTypeSpeakingStopped,
	EventTypeCalmDownFinished,
	EventTypeRendererConnected,
	EventTypeRendererDisconnected,
	EventTypeConfigReloaded,
}

// Event represents a bus event
type Event struct {
	Type EventType      `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// Handler is a function that handles events
type Handler func(Event)

// EventBus is a simple pub/sub event bus
type EventBus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for an event type
func (b *EventBus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// SubscribeMultiple adds a handler for multiple event types
func (b *EventBus) SubscribeMultiple(eventTypes []EventType, handler Handler) {
	for _, et := range eventTypes {
		b.Subscribe(et, handler)
	}
}

// Publish sends an event to all subscribed handlers. Handlers run on their
// own goroutines and must not touch loop-owned state directly.
func (b *EventBus) Publish(event Event) {
	for _, handler := range b.snapshot(event.Type) {
		go handler(event)
	}
}

// PublishSync sends an event and waits for all handlers to complete
func (b *EventBus) PublishSync(event Event) {
	handlers := b.snapshot(event.Type)

	var wg sync.WaitGroup
	for _, handler := range handlers {
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			h(event)
		}(handler)
	}
	wg.Wait()
}

func (b *EventBus) snapshot(t EventType) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	handlers := make([]Handler, len(b.handlers[t]))
	copy(handlers, b.handlers[t])
	return handlers
}

// Clear removes all handlers
func (b *EventBus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[EventType][]Handler)
}

// Recorder collects published events synchronously. It satisfies the
// publisher interfaces components accept and is handy in tests.
type Recorder struct {
	mu     sync.Mutex
	Events []Event
}

func (r *Recorder) Publish(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, event)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]EventType, len(r.Events))
	for i, e := range r.Events {
		types[i] = e.Type
	}
	return types
}
