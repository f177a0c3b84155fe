package bus

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventBus_PublishSync(t *testing.T) {
	b := NewEventBus()
	var mu sync.Mutex
	var got []EventType

	b.SubscribeMultiple([]EventType{EventTypeSequenceStarted, EventTypeIdleResumed}, func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.Type)
	})

	b.PublishSync(Event{Type: EventTypeSequenceStarted, Data: map[string]any{"sequence": "idle"}})
	b.PublishSync(Event{Type: EventTypeIdleResumed})
	b.PublishSync(Event{Type: EventTypeSpeakingStarted})

	assert.Equal(t, []EventType{EventTypeSequenceStarted, EventTypeIdleResumed}, got)
}

func TestEventBus_Clear(t *testing.T) {
	b := NewEventBus()
	called := false
	b.Subscribe(EventTypeSequenceStopped, func(Event) { called = true })
	b.Clear()
	b.PublishSync(Event{Type: EventTypeSequenceStopped})
	assert.False(t, called)
}

func TestRecorder(t *testing.T) {
	var r Recorder
	r.Publish(Event{Type: EventTypeSpecialStarted})
	r.Publish(Event{Type: EventTypeIdleSuspended})
	assert.Equal(t, []EventType{EventTypeSpecialStarted, EventTypeIdleSuspended}, r.Types())
}
