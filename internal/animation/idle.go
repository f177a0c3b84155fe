package animation

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/scheduler"
)

// ClipPlayer plays a single clip.
type ClipPlayer interface {
	PlayClip(ctx context.Context, step Step) *scheduler.Future
}

// IdleConfig configures the idle variation cycle.
type IdleConfig struct {
	Specials []Step
	Baseline Step
	MinDelay time.Duration
	MaxDelay time.Duration
}

// DefaultIdleConfig returns the built-in specials and a 10 to 20 second
// delay.
func DefaultIdleConfig() IdleConfig {
	return IdleConfig{
		Specials: DefaultSpecials(),
		Baseline: DefaultBaseline(),
		MinDelay: 10 * time.Second,
		MaxDelay: 20 * time.Second,
	}
}

// IdleScheduler splices randomly chosen special clips into the idle pose.
// Each cycle waits a random delay, plays one special clip for its declared
// duration, restores the baseline idle clip and arms the next delay.
//
// It starts suspended. It must only be used from the loop goroutine.
type IdleScheduler struct {
	clock  scheduler.Clock
	rand   scheduler.Rand
	player ClipPlayer
	cfg    IdleConfig
	logger zerolog.Logger

	gen        scheduler.Generation
	timer      scheduler.Timer
	cancelLoad context.CancelFunc
	suspended  bool

	onSpecial func(Step)
}

func NewIdleScheduler(clock scheduler.Clock, rnd scheduler.Rand, player ClipPlayer, cfg IdleConfig, logger zerolog.Logger) *IdleScheduler {
	s := &IdleScheduler{
		clock:     clock,
		rand:      rnd,
		player:    player,
		logger:    logger.With().Str("component", "idle_scheduler").Logger(),
		suspended: true,
	}
	s.SetConfig(cfg)
	return s
}

// SetConfig replaces the specials and delay bounds. It takes effect from the
// next armed delay.
func (s *IdleScheduler) SetConfig(cfg IdleConfig) {
	specials := make([]Step, 0, len(cfg.Specials))
	for _, sp := range cfg.Specials {
		if sp.Infinite() || sp.Duration <= 0 {
			s.logger.Warn().Str("clip", sp.Clip).Msg("ignoring special clip without a finite duration")
			continue
		}
		specials = append(specials, sp)
	}
	cfg.Specials = specials
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}
	s.cfg = cfg
}

// OnSpecial registers a hook called when a special clip starts.
func (s *IdleScheduler) OnSpecial(fn func(Step)) {
	s.onSpecial = fn
}

// Resume clears the suspension and arms a fresh delay, replacing any timer
// that was already armed.
func (s *IdleScheduler) Resume() {
	s.cancel()
	s.suspended = false
	if len(s.cfg.Specials) == 0 {
		return
	}
	s.arm(s.gen.Next())
}

// Suspend cancels the pending timer or special clip. Calling it again has no
// further effect.
func (s *IdleScheduler) Suspend() {
	s.suspended = true
	s.cancel()
}

func (s *IdleScheduler) Suspended() bool {
	return s.suspended
}

// Baseline is the clip restored after each special clip.
func (s *IdleScheduler) Baseline() Step {
	return s.cfg.Baseline
}

// Pending reports whether a delay or special clip timer is armed.
func (s *IdleScheduler) Pending() bool {
	return s.timer != nil
}

// Inject plays step as a special clip right away and then continues the
// regular cycle. It resumes the scheduler if it was suspended.
func (s *IdleScheduler) Inject(step Step) {
	s.cancel()
	s.suspended = false
	s.runSpecial(s.gen.Next(), step)
}

func (s *IdleScheduler) cancel() {
	s.gen.Invalidate()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancelLoad != nil {
		s.cancelLoad()
		s.cancelLoad = nil
	}
}

func (s *IdleScheduler) live(tok scheduler.Token) bool {
	return tok.Valid() && !s.suspended
}

func (s *IdleScheduler) arm(tok scheduler.Token) {
	if len(s.cfg.Specials) == 0 {
		return
	}
	delay := scheduler.UniformDuration(s.rand, s.cfg.MinDelay, s.cfg.MaxDelay)
	s.logger.Debug().Dur("delay", delay).Msg("next special clip armed")
	s.timer = s.clock.AfterFunc(delay, func() {
		if !s.live(tok) {
			return
		}
		s.timer = nil
		special := s.cfg.Specials[scheduler.Intn(s.rand, len(s.cfg.Specials))]
		s.runSpecial(tok, special)
	})
}

func (s *IdleScheduler) runSpecial(tok scheduler.Token, special Step) {
	if s.onSpecial != nil {
		s.onSpecial(special)
	}
	s.logger.Debug().Str("clip", special.Clip).Dur("duration", special.Duration).Msg("special clip")

	s.load(special).Then(func(err error) {
		if !s.live(tok) {
			return
		}
		if err != nil || special.Infinite() {
			s.restore(tok)
			return
		}
		s.timer = s.clock.AfterFunc(special.Duration, func() {
			if !s.live(tok) {
				return
			}
			s.timer = nil
			s.restore(tok)
		})
	})
}

func (s *IdleScheduler) restore(tok scheduler.Token) {
	s.load(s.cfg.Baseline).Then(func(error) {
		if !s.live(tok) {
			return
		}
		s.arm(tok)
	})
}

func (s *IdleScheduler) load(step Step) *scheduler.Future {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelLoad = cancel
	f := s.player.PlayClip(ctx, step)
	f.Then(func(error) { cancel() })
	return f
}
