// Package lipsync drives the avatar's face from playing speech: visemes from
// the audio spectrum, a light random smile while talking and a calm smile
// fade once the clip ends.
package lipsync

import (
	"time"

	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/animation"
)

// Config holds the overlay and fade parameters.
type Config struct {
	SmileMinGap time.Duration
	SmileMaxGap time.Duration
	SmileChance float64
	SmileWeight float64
	SmileHold   time.Duration

	CalmPeak float64
	CalmRamp time.Duration
	CalmHold time.Duration
	CalmFPS  int

	TalkingSequence string
	AfterSpeech     animation.Step
}

func DefaultConfig() Config {
	return Config{
		SmileMinGap:     time.Second,
		SmileMaxGap:     3 * time.Second,
		SmileChance:     0.5,
		SmileWeight:     0.1,
		SmileHold:       time.Second,
		CalmPeak:        0.8,
		CalmRamp:        200 * time.Millisecond,
		CalmHold:        1500 * time.Millisecond,
		CalmFPS:         60,
		TalkingSequence: animation.TalkingSequence,
		AfterSpeech:     animation.DefaultAfterSpeech(),
	}
}

// BlinkConfig drives the Blinker.
type BlinkConfig struct {
	Interval      time.Duration
	Duration      time.Duration
	BaselineSmile float64
}

func DefaultBlinkConfig() BlinkConfig {
	return BlinkConfig{
		Interval:      3 * time.Second,
		Duration:      200 * time.Millisecond,
		BaselineSmile: 1.0,
	}
}
