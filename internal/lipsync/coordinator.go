package lipsync

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"

	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/animation"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/audio"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/bus"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/expression"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/scheduler"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/viseme"
)

// Animator is the part of the animation controller the coordinator drives.
type Animator interface {
	PlaySequence(name string) error
	PlayIdleWithSpecial(step animation.Step) error
}

// Publisher receives speech lifecycle notifications.
type Publisher interface {
	Publish(event bus.Event)
}

// Coordinator binds a playing audio source to an expression sink. It must
// only be used from the loop goroutine.
type Coordinator struct {
	clock    scheduler.Clock
	rand     scheduler.Rand
	anim     Animator
	analyzer *viseme.Analyzer
	cfg      Config
	events   Publisher
	logger   zerolog.Logger

	bindGen     scheduler.Generation
	src         audio.Source
	sink        expression.Sink
	unsubscribe func()
	stream      *viseme.Stream
	speaking    bool
	talking     bool // the talking sequence was started for this speech

	smile      *scheduler.Repeater
	smileReset scheduler.Timer
	smiling    bool

	fadeGen   scheduler.Generation
	fadeTimer scheduler.Timer
	fading    bool
}

// NewCoordinator creates a coordinator. events may be nil.
func NewCoordinator(clock scheduler.Clock, rnd scheduler.Rand, anim Animator, analyzer *viseme.Analyzer, cfg Config, events Publisher, logger zerolog.Logger) *Coordinator {
	c := &Coordinator{
		clock:    clock,
		rand:     rnd,
		anim:     anim,
		analyzer: analyzer,
		cfg:      cfg,
		events:   events,
		logger:   logger.With().Str("component", "lipsync").Logger(),
	}
	c.smile = scheduler.NewRepeater(clock, func() time.Duration {
		return scheduler.UniformDuration(c.rand, c.cfg.SmileMinGap, c.cfg.SmileMaxGap)
	}, c.maybeSmile)
	return c
}

// SetConfig replaces the overlay and fade parameters for the next playback.
func (c *Coordinator) SetConfig(cfg Config) {
	c.cfg = cfg
}

// Start binds src to sink and starts playback. Any previous binding is
// dropped. With a nil src the visemes stay at zero.
func (c *Coordinator) Start(src audio.Source, sink expression.Sink) {
	c.release()
	tok := c.bindGen.Next()
	c.sink = sink
	c.src = src

	if src == nil {
		c.logger.Warn().Err(audio.ErrSourceUnavailable).Msg("lip sync without audio, visemes stay closed")
		c.stream = c.analyzer.Start(nil)
		c.zeroVisemes()
		c.returnToIdle()
		return
	}

	c.unsubscribe = src.Subscribe(func(e audio.Event) {
		if !tok.Valid() {
			return
		}
		switch e.Type {
		case audio.EventPlay:
			c.onPlay()
		case audio.EventPause:
			c.onPause()
		case audio.EventEnded:
			c.onEnded()
		}
	})
	src.Play()
}

// Stop drops the current binding without running the calm fade and puts
// the body back into the idle sequence if speech had taken it over.
func (c *Coordinator) Stop() {
	c.release()
	c.bindGen.Invalidate()
	c.zeroVisemes()
	c.src = nil
	c.returnToIdle()
}

// Speaking reports whether audio is currently playing.
func (c *Coordinator) Speaking() bool {
	return c.speaking
}

// Tick forwards the current viseme weights to the sink. dt may vary from
// tick to tick.
func (c *Coordinator) Tick(dt time.Duration) {
	if c.stream == nil || c.stream.Done() || !c.speaking {
		return
	}
	w, ok := c.stream.Next()
	if !ok {
		c.zeroVisemes()
		return
	}
	w.Apply(c.sink)
}

func (c *Coordinator) release() {
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	if c.src != nil {
		c.src.Stop()
	}
	if c.stream != nil {
		c.stream.Stop()
	}
	c.stopSmile()
	c.cancelFade()
	c.speaking = false
}

func (c *Coordinator) onPlay() {
	c.cancelFade()
	if err := c.anim.PlaySequence(c.cfg.TalkingSequence); err != nil {
		c.logger.Warn().Err(err).Str("sequence", c.cfg.TalkingSequence).Msg("talking sequence unavailable")
	} else {
		c.talking = true
	}
	if c.stream == nil || c.stream.Done() {
		c.stream = c.analyzer.Start(c.src)
	}
	c.speaking = true
	c.smile.Start()
	c.logger.Debug().Msg("speaking")
	c.publish(bus.EventTypeSpeakingStarted, nil)
}

func (c *Coordinator) onPause() {
	c.speaking = false
	c.stopSmile()
	c.zeroVisemes()
	c.publish(bus.EventTypeSpeakingPaused, nil)
}

func (c *Coordinator) onEnded() {
	c.speaking = false
	c.stopSmile()
	if c.stream != nil {
		c.stream.Stop()
	}
	c.zeroVisemes()
	c.publish(bus.EventTypeSpeakingStopped, nil)
	c.calmDown()
}

func (c *Coordinator) maybeSmile() {
	if c.rand.Float64() >= c.cfg.SmileChance {
		return
	}
	if c.smileReset != nil {
		c.smileReset.Stop()
	}
	c.setHappy(c.cfg.SmileWeight)
	c.smiling = true
	c.smileReset = c.clock.AfterFunc(c.cfg.SmileHold, func() {
		c.smileReset = nil
		c.smiling = false
		c.setHappy(0)
	})
}

func (c *Coordinator) stopSmile() {
	c.smile.Stop()
	if c.smileReset != nil {
		c.smileReset.Stop()
		c.smileReset = nil
	}
	if c.smiling {
		c.smiling = false
		c.setHappy(0)
	}
}

// calmDown ramps happy up, holds it, ramps it back down and then hands the
// avatar back to idle.
func (c *Coordinator) calmDown() {
	tok := c.fadeGen.Next()
	c.fading = true
	peak := c.cfg.CalmPeak
	c.ramp(tok, 0, peak, func() {
		c.fadeTimer = c.clock.AfterFunc(c.cfg.CalmHold, func() {
			if !tok.Valid() {
				return
			}
			c.ramp(tok, peak, 0, func() {
				c.fading = false
				c.fadeTimer = nil
				c.publish(bus.EventTypeCalmDownFinished, nil)
				c.talking = false
				if err := c.anim.PlayIdleWithSpecial(c.cfg.AfterSpeech); err != nil {
					c.logger.Warn().Err(err).Msg("return to idle failed")
				}
			})
		})
	})
}

// rampFrames splits CalmRamp into frames at CalmFPS. 60 is a frame rate,
// not a step count: a 200ms ramp at 60fps takes 12 steps.
func (c *Coordinator) rampFrames() (int, time.Duration) {
	fps := c.cfg.CalmFPS
	if fps <= 0 {
		fps = 60
	}
	frame := time.Second / time.Duration(fps)
	steps := int(math.Round(float64(c.cfg.CalmRamp) / float64(frame)))
	if steps < 1 {
		steps = 1
	}
	return steps, frame
}

func (c *Coordinator) ramp(tok scheduler.Token, from, to float64, then func()) {
	steps, frame := c.rampFrames()
	var step func(i int)
	step = func(i int) {
		if !tok.Valid() {
			return
		}
		c.setHappy(mgl64.Clamp(from+(to-from)*float64(i)/float64(steps), 0, 1))
		if i >= steps {
			then()
			return
		}
		c.fadeTimer = c.clock.AfterFunc(frame, func() { step(i + 1) })
	}
	step(0)
}

func (c *Coordinator) cancelFade() {
	c.fadeGen.Invalidate()
	if c.fadeTimer != nil {
		c.fadeTimer.Stop()
		c.fadeTimer = nil
	}
	if c.fading {
		c.fading = false
		c.setHappy(0)
	}
}

func (c *Coordinator) returnToIdle() {
	if !c.talking {
		return
	}
	c.talking = false
	if err := c.anim.PlaySequence(animation.IdleSequence); err != nil {
		c.logger.Warn().Err(err).Msg("return to idle failed")
	}
}

func (c *Coordinator) setHappy(w float64) {
	if c.sink != nil {
		c.sink.SetWeight(expression.Happy, w)
	}
}

func (c *Coordinator) zeroVisemes() {
	if c.sink != nil {
		viseme.Weights{}.Apply(c.sink)
	}
}

func (c *Coordinator) publish(t bus.EventType, data map[string]any) {
	if c.events == nil {
		return
	}
	c.events.Publish(bus.Event{Type: t, Data: data})
}
