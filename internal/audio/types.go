// Package audio decodes speech clips, plays them through beep and exposes a
// Web Audio style spectrum tap for lip sync.
package audio

import (
	"errors"
	"time"
)

// Common errors
var (
	ErrSourceUnavailable  = errors.New("audio source unavailable")
	ErrInvalidFormat      = errors.New("invalid audio format")
	ErrUnsupportedFormat  = errors.New("unsupported audio format")
	ErrPlaybackNotStarted = errors.New("playback not started")
)

// AudioFormat represents audio encoding format
type AudioFormat string

const (
	FormatWAV  AudioFormat = "wav"
	FormatOgg  AudioFormat = "ogg"
	FormatOpus AudioFormat = "opus"
)

// EventType is a playback lifecycle event.
type EventType string

const (
	EventPlay  EventType = "play"
	EventPause EventType = "pause"
	EventEnded EventType = "ended"
)

// Event is delivered to Source subscribers on the loop goroutine.
type Event struct {
	Type EventType
	At   time.Duration // playback position
}

// Source is a playable audio handle with a spectrum tap.
type Source interface {
	Play()
	Pause()
	// Stop ends playback for good and releases the output. No further
	// events are delivered.
	Stop()
	// Subscribe registers fn for lifecycle events and returns a function
	// that removes it.
	Subscribe(fn func(Event)) (unsubscribe func())
	BinCount() int
	// Spectrum fills dst with the current byte spectrum. It returns false
	// once playback has ended.
	Spectrum(dst []uint8) bool
}

// PCM is decoded mono audio in [-1, 1].
type PCM struct {
	Samples    []float64
	SampleRate int
}

func (p PCM) Duration() time.Duration {
	if p.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(p.Samples)) * time.Second / time.Duration(p.SampleRate)
}

// Config holds playback and analysis settings.
type Config struct {
	FFTSize               int           `json:"fft_size"`
	SmoothingTimeConstant float64       `json:"smoothing_time_constant"`
	MinDecibels           float64       `json:"min_decibels"`
	MaxDecibels           float64       `json:"max_decibels"`
	OutputSampleRate      int           `json:"output_sample_rate"`
	SpeakerBuffer         time.Duration `json:"speaker_buffer"`
	OutputVolume          float64       `json:"output_volume"` // 0.0 to 1.0
	OpusChannels          int           `json:"opus_channels"`
}

// DefaultConfig mirrors the Web Audio AnalyserNode defaults with a 256 point
// FFT.
func DefaultConfig() Config {
	return Config{
		FFTSize:               256,
		SmoothingTimeConstant: 0.8,
		MinDecibels:           -100,
		MaxDecibels:           -30,
		OutputSampleRate:      48000,
		SpeakerBuffer:         100 * time.Millisecond,
		OutputVolume:          1.0,
		OpusChannels:          1,
	}
}
