package animation

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/scheduler"
)

// ClipLoader loads a clip onto the avatar and starts playing it. The
// returned future resolves on the loop once the clip is playing or the load
// has failed. Cancelling ctx abandons the load.
type ClipLoader interface {
	LoadSkeletalClip(ctx context.Context, path string) *scheduler.Future
	LoadPoseClip(ctx context.Context, path string) *scheduler.Future
}

// Position is where the sequencer currently is. An empty Sequence means
// nothing is playing.
type Position struct {
	Sequence string
	Step     int
}

// Sequencer plays one catalogue sequence at a time. It must only be used
// from the loop goroutine.
type Sequencer struct {
	clock     scheduler.Clock
	loader    ClipLoader
	catalogue Catalogue
	logger    zerolog.Logger

	gen        scheduler.Generation
	timer      scheduler.Timer
	cancelLoad context.CancelFunc

	active *Sequence
	step   int

	onStep     func(name string, index int, step Step)
	onFinished func(name string)
}

func NewSequencer(clock scheduler.Clock, loader ClipLoader, catalogue Catalogue, logger zerolog.Logger) *Sequencer {
	return &Sequencer{
		clock:     clock,
		loader:    loader,
		catalogue: catalogue,
		logger:    logger.With().Str("component", "sequencer").Logger(),
	}
}

// OnStep registers a hook called whenever a step is entered.
func (s *Sequencer) OnStep(fn func(name string, index int, step Step)) {
	s.onStep = fn
}

// OnFinished replaces the end-of-sequence policy. By default a finished
// sequence other than idle falls back to idle.
func (s *Sequencer) OnFinished(fn func(name string)) {
	s.onFinished = fn
}

func (s *Sequencer) Catalogue() Catalogue {
	return s.catalogue
}

// SetCatalogue swaps the catalogue. A sequence already playing runs to
// completion with the steps it started with.
func (s *Sequencer) SetCatalogue(c Catalogue) {
	s.catalogue = c
}

// Play starts name from its first step, cancelling whatever was in flight.
// Playing the active sequence again restarts it.
func (s *Sequencer) Play(name string) error {
	seq, err := s.catalogue.Lookup(name)
	if err != nil {
		return err
	}
	s.cancel()

	steps := make([]Step, len(seq.Steps))
	copy(steps, seq.Steps)
	s.active = &Sequence{Name: seq.Name, Steps: steps}
	if s.active.Name == "" {
		s.active.Name = name
	}
	s.step = 0

	s.logger.Debug().Str("sequence", name).Int("steps", len(steps)).Msg("playing sequence")
	s.enter(s.gen.Next())
	return nil
}

// Stop cancels the pending wait or load and leaves nothing playing.
func (s *Sequencer) Stop() {
	s.cancel()
	if s.active != nil {
		s.logger.Debug().Str("sequence", s.active.Name).Int("step", s.step).Msg("sequence stopped")
	}
	s.active = nil
	s.step = 0
}

func (s *Sequencer) Position() Position {
	if s.active == nil {
		return Position{}
	}
	return Position{Sequence: s.active.Name, Step: s.step}
}

// Current returns the step being played, if any.
func (s *Sequencer) Current() (Step, bool) {
	if s.active == nil {
		return Step{}, false
	}
	return s.active.Steps[s.step], true
}

// Pending reports whether a step timer is armed.
func (s *Sequencer) Pending() bool {
	return s.timer != nil
}

func (s *Sequencer) cancel() {
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

func (s *Sequencer) enter(tok scheduler.Token) {
	name := s.active.Name
	index := s.step
	step := s.active.Steps[index]

	if s.onStep != nil {
		s.onStep(name, index, step)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelLoad = cancel

	s.PlayClip(ctx, step).Then(func(err error) {
		if !tok.Valid() {
			return
		}
		cancel()
		s.cancelLoad = nil

		if err != nil {
			// a failed infinite step still holds; a failed finite step
			// counts as elapsed
			if !step.Infinite() {
				s.advance(tok)
			}
			return
		}
		if step.Infinite() {
			return
		}
		s.timer = s.clock.AfterFunc(step.Duration, func() {
			if !tok.Valid() {
				return
			}
			s.timer = nil
			s.advance(tok)
		})
	})
}

func (s *Sequencer) advance(tok scheduler.Token) {
	s.step++
	if s.step < len(s.active.Steps) {
		s.enter(tok)
		return
	}

	name := s.active.Name
	s.active = nil
	s.step = 0
	s.logger.Debug().Str("sequence", name).Msg("sequence finished")

	if s.onFinished != nil {
		s.onFinished(name)
		return
	}
	if name != IdleSequence {
		if err := s.Play(IdleSequence); err != nil {
			s.logger.Warn().Err(err).Msg("idle fallback failed")
		}
	}
}

// PlayClip loads a single clip outside of any sequence bookkeeping. Load
// failures are logged and passed through as ErrClipLoad.
func (s *Sequencer) PlayClip(ctx context.Context, step Step) *scheduler.Future {
	var f *scheduler.Future
	switch step.Kind {
	case PoseClip:
		f = s.loader.LoadPoseClip(ctx, step.Clip)
	default:
		f = s.loader.LoadSkeletalClip(ctx, step.Clip)
	}

	out := scheduler.NewFuture()
	f.Then(func(err error) {
		if err != nil {
			err = fmt.Errorf("%w: %s: %w", ErrClipLoad, step.Clip, err)
			if ctx.Err() == nil {
				s.logger.Warn().Err(err).Str("clip", step.Clip).Str("kind", step.Kind.String()).Msg("clip load failed, skipping")
			}
		}
		out.Resolve(err)
	})
	return out
}
