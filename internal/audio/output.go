package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
)

// Output is where players send their streamers. Lock and Unlock guard
// changes to streamers that are already playing.
type Output interface {
	Play(s beep.Streamer, rate beep.SampleRate)
	Lock()
	Unlock()
	Clear()
}

// SpeakerOutput plays through the default sound device.
type SpeakerOutput struct {
	rate beep.SampleRate
}

// NewSpeakerOutput initialises the speaker. It can only be called once per
// process.
func NewSpeakerOutput(rate int, buffer time.Duration) (*SpeakerOutput, error) {
	sr := beep.SampleRate(rate)
	if err := speaker.Init(sr, sr.N(buffer)); err != nil {
		return nil, fmt.Errorf("%w: init speaker: %w", ErrSourceUnavailable, err)
	}
	return &SpeakerOutput{rate: sr}, nil
}

func (o *SpeakerOutput) Play(s beep.Streamer, rate beep.SampleRate) {
	speaker.Play(resampled(s, rate, o.rate))
}

func (o *SpeakerOutput) Lock()   { speaker.Lock() }
func (o *SpeakerOutput) Unlock() { speaker.Unlock() }
func (o *SpeakerOutput) Clear()  { speaker.Clear() }

// PacedOutput consumes streamers in real time without a sound device, so
// lip sync still runs on machines without audio hardware.
type PacedOutput struct {
	rate  beep.SampleRate
	frame time.Duration

	mu    sync.Mutex
	mixer beep.Mixer
	stop  chan struct{}
	once  sync.Once
}

func NewPacedOutput(rate int, frame time.Duration) *PacedOutput {
	if frame <= 0 {
		frame = 10 * time.Millisecond
	}
	o := &PacedOutput{
		rate:  beep.SampleRate(rate),
		frame: frame,
		stop:  make(chan struct{}),
	}
	go o.run()
	return o
}

func (o *PacedOutput) run() {
	ticker := time.NewTicker(o.frame)
	defer ticker.Stop()
	buf := make([][2]float64, o.rate.N(o.frame))
	for {
		select {
		case <-o.stop:
			return
		case <-ticker.C:
			o.mu.Lock()
			o.mixer.Stream(buf)
			o.mu.Unlock()
		}
	}
}

func (o *PacedOutput) Play(s beep.Streamer, rate beep.SampleRate) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.mixer.Add(resampled(s, rate, o.rate))
}

func (o *PacedOutput) Lock()   { o.mu.Lock() }
func (o *PacedOutput) Unlock() { o.mu.Unlock() }

func (o *PacedOutput) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.mixer.Clear()
}

func (o *PacedOutput) Close() {
	o.once.Do(func() { close(o.stop) })
}

func resampled(s beep.Streamer, from, to beep.SampleRate) beep.Streamer {
	if from == to || from == 0 {
		return s
	}
	return beep.Resample(4, from, to, s)
}
