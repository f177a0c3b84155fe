package audio

import (
	"math"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/rs/zerolog"

	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/scheduler"
)

// Player plays one decoded clip and implements Source. Play, Pause,
// Subscribe and Spectrum must be called on the loop; lifecycle events are
// posted back to it.
type Player struct {
	pcm      PCM
	output   Output
	poster   scheduler.Poster
	analyser *Analyser
	logger   zerolog.Logger

	ctrl    *beep.Ctrl
	started bool

	mu       sync.Mutex // shared with the audio thread
	ring     []float64
	head     int
	played   int
	ended    bool
	snapshot []float64

	nextID    int
	listeners map[int]func(Event)
}

// NewPlayer prepares pcm for playback on output. Nothing plays until Play.
func NewPlayer(pcm PCM, output Output, poster scheduler.Poster, cfg Config, logger zerolog.Logger) *Player {
	analyser := NewAnalyser(cfg)
	p := &Player{
		pcm:       pcm,
		output:    output,
		poster:    poster,
		analyser:  analyser,
		logger:    logger.With().Str("component", "audio").Logger(),
		ring:      make([]float64, analyser.FFTSize()),
		snapshot:  make([]float64, analyser.FFTSize()),
		listeners: make(map[int]func(Event)),
	}

	volume := cfg.OutputVolume
	if volume <= 0 {
		volume = 1
	}
	p.ctrl = &beep.Ctrl{
		Streamer: &effects.Volume{
			Streamer: &tap{player: p, src: &pcmStreamer{samples: pcm.Samples}},
			Base:     2,
			Volume:   volumeToLog2(volume),
		},
	}
	return p
}

func volumeToLog2(v float64) float64 {
	// effects.Volume gain is Base^Volume
	if v >= 1 {
		return 0
	}
	return math.Log2(v)
}

func (p *Player) Duration() time.Duration {
	return p.pcm.Duration()
}

// Position returns how much audio has been handed to the output.
func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position()
}

func (p *Player) position() time.Duration {
	if p.pcm.SampleRate <= 0 {
		return 0
	}
	return time.Duration(p.played) * time.Second / time.Duration(p.pcm.SampleRate)
}

func (p *Player) Play() {
	p.mu.Lock()
	ended := p.ended
	p.mu.Unlock()
	if ended {
		return
	}

	if !p.started {
		p.started = true
		p.output.Play(beep.Seq(p.ctrl, beep.Callback(p.finish)), beep.SampleRate(p.pcm.SampleRate))
		p.logger.Debug().Dur("duration", p.Duration()).Msg("playback started")
	} else {
		p.output.Lock()
		p.ctrl.Paused = false
		p.output.Unlock()
	}
	p.emit(EventPlay)
}

func (p *Player) Pause() {
	if !p.started {
		return
	}
	p.output.Lock()
	p.ctrl.Paused = true
	p.output.Unlock()
	p.emit(EventPause)
}

// Stop detaches the clip from the output so the mixer drops it. A paused
// clip would otherwise stream silence forever.
func (p *Player) Stop() {
	p.mu.Lock()
	if p.ended {
		p.mu.Unlock()
		return
	}
	p.ended = true
	p.mu.Unlock()

	if !p.started {
		return
	}
	p.output.Lock()
	p.ctrl.Streamer = nil
	p.output.Unlock()
	p.logger.Debug().Dur("position", p.Position()).Msg("playback stopped")
}

// finish runs on the audio thread with the output locked, so the event is
// posted from a fresh goroutine.
func (p *Player) finish() {
	p.mu.Lock()
	stopped := p.ended
	p.ended = true
	p.mu.Unlock()
	if stopped {
		return
	}
	go p.emit(EventEnded)
}

func (p *Player) emit(t EventType) {
	at := p.Position()
	p.poster.Post(func() {
		for _, id := range p.listenerIDs() {
			if fn, ok := p.listeners[id]; ok {
				fn(Event{Type: t, At: at})
			}
		}
	})
}

func (p *Player) listenerIDs() []int {
	ids := make([]int, 0, len(p.listeners))
	for id := 0; id < p.nextID; id++ {
		if _, ok := p.listeners[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func (p *Player) Subscribe(fn func(Event)) func() {
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	return func() { delete(p.listeners, id) }
}

func (p *Player) Ended() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ended
}

func (p *Player) BinCount() int {
	return p.analyser.BinCount()
}

func (p *Player) Spectrum(dst []uint8) bool {
	p.mu.Lock()
	if p.ended {
		p.mu.Unlock()
		return false
	}
	n := len(p.ring)
	for i := 0; i < n; i++ {
		p.snapshot[i] = p.ring[(p.head+i)%n]
	}
	p.mu.Unlock()

	p.analyser.ByteFrequencyData(p.snapshot, dst)
	return true
}

func (p *Player) record(samples [][2]float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.ring)
	for _, s := range samples {
		p.ring[p.head] = s[0]
		p.head = (p.head + 1) % n
	}
	p.played += len(samples)
}

// tap copies what passes through it into the player's ring buffer.
type tap struct {
	player *Player
	src    beep.Streamer
}

func (t *tap) Stream(samples [][2]float64) (int, bool) {
	n, ok := t.src.Stream(samples)
	if n > 0 {
		t.player.record(samples[:n])
	}
	return n, ok
}

func (t *tap) Err() error {
	return t.src.Err()
}

// pcmStreamer streams mono samples to both channels.
type pcmStreamer struct {
	samples []float64
	pos     int
}

func (s *pcmStreamer) Stream(samples [][2]float64) (int, bool) {
	if s.pos >= len(s.samples) {
		return 0, false
	}
	n := copy2(samples, s.samples[s.pos:])
	s.pos += n
	return n, true
}

func (s *pcmStreamer) Err() error { return nil }

func copy2(dst [][2]float64, src []float64) int {
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	for i := 0; i < n; i++ {
		dst[i][0] = src[i]
		dst[i][1] = src[i]
	}
	return n
}
