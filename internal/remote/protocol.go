// Package remote links the Go process to the browser renderer over a
// WebSocket. The renderer loads and plays clips and applies blend weights;
// the hub is its clip loader and expression sink.
package remote

import (
	"errors"

	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/bus"
)

var (
	ErrNoRenderer  = errors.New("no renderer connected")
	ErrLoadTimeout = errors.New("clip load timed out")
	ErrRenderer    = errors.New("renderer reported failure")
)

// Message types
const (
	// server -> renderer
	TypeLoadClip = "load_clip"
	TypeWeights  = "weights"
	TypeEvent    = "event"

	// renderer -> server
	TypeClipLoaded = "clip_loaded"
	TypeClipFailed = "clip_failed"
	TypeHello      = "hello"
)

// Clip kinds on the wire
const (
	KindSkeletal = "skeletal"
	KindPose     = "pose"
)

// Message is the single JSON envelope used in both directions.
type Message struct {
	Type    string             `json:"type"`
	ID      string             `json:"id,omitempty"`
	Kind    string             `json:"kind,omitempty"`
	Clip    string             `json:"clip,omitempty"`
	Weights map[string]float64 `json:"weights,omitempty"`
	Event   *bus.Event         `json:"event,omitempty"`
	Error   string             `json:"error,omitempty"`
}
