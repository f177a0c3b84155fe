// Package expression is the named blend weight surface of the avatar.
package expression

import (
	"sort"
	"sync"
)

// Sink applies a named blend weight. Sinks may ignore ids they do not
// support.
type Sink interface {
	SetWeight(id string, weight float64)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(id string, weight float64)

func (f SinkFunc) SetWeight(id string, weight float64) {
	f(id, weight)
}

// Well-known expression ids.
const (
	Happy     = "happy"
	Smile     = "smile"
	Angry     = "angry"
	Sad       = "sad"
	Idle      = "idle"
	Surprised = "surprised"
	Fun       = "fun"
	Joy       = "joy"
	Blink     = "blink"
	BlinkL    = "blink_L"
	BlinkR    = "blink_R"
)

// Presets are the expressions the control panel can switch between,
// including the viseme ids so a reset closes the mouth too.
var Presets = []string{
	Smile, Angry, Sad, Idle, Happy, Surprised, Fun, Joy,
	Blink, BlinkL, BlinkR,
	"a", "i", "u", "e", "o",
}

// Apply resets every preset to 0 and sets name to 1. An empty name only
// resets.
func Apply(sink Sink, name string) {
	for _, id := range Presets {
		sink.SetWeight(id, 0)
	}
	if name != "" {
		sink.SetWeight(name, 1)
	}
}

// IsPreset reports whether name is one of Presets.
func IsPreset(name string) bool {
	for _, id := range Presets {
		if id == name {
			return true
		}
	}
	return false
}

// Table records the latest weight per id. It is safe for concurrent use.
type Table struct {
	mu      sync.RWMutex
	weights map[string]float64
}

func NewTable() *Table {
	return &Table{weights: make(map[string]float64)}
}

func (t *Table) SetWeight(id string, weight float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.weights[id] = weight
}

func (t *Table) Get(id string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.weights[id]
}

// Snapshot returns a copy of all weights.
func (t *Table) Snapshot() map[string]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]float64, len(t.weights))
	for k, v := range t.weights {
		out[k] = v
	}
	return out
}

// Nonzero returns the ids with a weight above zero, sorted.
func (t *Table) Nonzero() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var ids []string
	for k, v := range t.weights {
		if v > 0 {
			ids = append(ids, k)
		}
	}
	sort.Strings(ids)
	return ids
}

// Multi fans weights out to several sinks.
type Multi []Sink

func (m Multi) SetWeight(id string, weight float64) {
	for _, s := range m {
		s.SetWeight(id, weight)
	}
}

// Filter forwards only the ids it allows.
type Filter struct {
	Sink  Sink
	Allow map[string]bool
}

func (f Filter) SetWeight(id string, weight float64) {
	if f.Allow[id] {
		f.Sink.SetWeight(id, weight)
	}
}
