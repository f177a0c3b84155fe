package animation

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/bus"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/scheduler"
)

// ErrSequenceActive is returned when idle variation is resumed while a
// non-idle sequence is playing.
var ErrSequenceActive = errors.New("non-idle sequence active")

// Publisher receives state change notifications.
type Publisher interface {
	Publish(event bus.Event)
}

// PlaybackState is a snapshot of the controller.
type PlaybackState struct {
	Active        string `json:"active"`
	Step          int    `json:"step"`
	IdleSuspended bool   `json:"idle_suspended"`
}

// Controller is the single entry point for animation commands. It keeps the
// sequencer and the idle scheduler mutually exclusive: idle variation only
// runs while the idle sequence is active.
//
// All methods must be called on the loop goroutine.
type Controller struct {
	seq    *Sequencer
	idle   *IdleScheduler
	events Publisher
	logger zerolog.Logger
}

// ControllerConfig bundles what NewController needs besides its
// collaborators.
type ControllerConfig struct {
	Catalogue Catalogue
	Idle      IdleConfig
}

func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		Catalogue: DefaultCatalogue(),
		Idle:      DefaultIdleConfig(),
	}
}

// NewController wires a sequencer and an idle scheduler over loader. events
// may be nil.
func NewController(clock scheduler.Clock, rnd scheduler.Rand, loader ClipLoader, cfg ControllerConfig, events Publisher, logger zerolog.Logger) *Controller {
	c := &Controller{
		seq:    NewSequencer(clock, loader, cfg.Catalogue, logger),
		events: events,
		logger: logger.With().Str("component", "animation").Logger(),
	}
	c.idle = NewIdleScheduler(clock, rnd, c.seq, cfg.Idle, logger)

	c.seq.OnFinished(c.sequenceFinished)
	c.seq.OnStep(func(name string, index int, step Step) {
		c.publish(bus.EventTypeStepEntered, map[string]any{
			"sequence": name,
			"step":     index,
			"clip":     step.Clip,
			"kind":     step.Kind.String(),
		})
		// a sequence that settles into the idle pose hands over to idle
		// variation; the idle sequence itself resumes in PlaySequence
		if name != IdleSequence && c.isBaseline(step) {
			c.resumeIdle()
		}
	})
	c.idle.OnSpecial(func(step Step) {
		c.publish(bus.EventTypeSpecialStarted, map[string]any{
			"clip":        step.Clip,
			"duration_ms": step.Duration.Milliseconds(),
		})
	})
	return c
}

// PlaySequence starts name from its first step. Unknown names are rejected
// without touching the current state.
func (c *Controller) PlaySequence(name string) error {
	if _, err := c.seq.Catalogue().Lookup(name); err != nil {
		c.logger.Warn().Err(err).Msg("play sequence rejected")
		return err
	}

	if name == IdleSequence {
		if err := c.seq.Play(name); err != nil {
			return err
		}
		c.resumeIdle()
	} else {
		c.suspendIdle()
		if err := c.seq.Play(name); err != nil {
			return err
		}
	}

	c.logger.Info().Str("sequence", name).Msg("sequence started")
	c.publish(bus.EventTypeSequenceStarted, map[string]any{"sequence": name})
	return nil
}

// PlayStart plays the greeting sequence.
func (c *Controller) PlayStart() error {
	return c.PlaySequence(StartSequence)
}

// StopCurrent cancels the active sequence without loading anything else.
// Idle variation is suspended as well so nothing moves until the next
// command.
func (c *Controller) StopCurrent() {
	name := c.seq.Position().Sequence
	c.suspendIdle()
	c.seq.Stop()
	c.logger.Info().Str("sequence", name).Msg("sequence stopped")
	c.publish(bus.EventTypeSequenceStopped, map[string]any{"sequence": name})
}

func (c *Controller) SuspendIdleVariation() {
	c.suspendIdle()
}

// ResumeIdleVariation re-arms idle variation. It refuses while a non-idle
// sequence is playing, unless that sequence is holding the idle pose.
func (c *Controller) ResumeIdleVariation() error {
	active := c.seq.Position().Sequence
	if active != "" && active != IdleSequence {
		if step, ok := c.seq.Current(); !ok || !c.isBaseline(step) {
			return ErrSequenceActive
		}
	}
	c.resumeIdle()
	return nil
}

// PlayIdleWithSpecial returns to idle and plays step once as a special clip
// before the regular idle cycle carries on.
func (c *Controller) PlayIdleWithSpecial(step Step) error {
	if err := c.PlaySequence(IdleSequence); err != nil {
		return err
	}
	c.idle.Inject(step)
	return nil
}

// SetCatalogue swaps the sequence catalogue after validating it.
func (c *Controller) SetCatalogue(cat Catalogue) error {
	if err := cat.Validate(); err != nil {
		return err
	}
	c.seq.SetCatalogue(cat)
	return nil
}

// SetIdleConfig swaps the special clip list and delay bounds.
func (c *Controller) SetIdleConfig(cfg IdleConfig) {
	c.idle.SetConfig(cfg)
}

func (c *Controller) Catalogue() Catalogue {
	return c.seq.Catalogue()
}

func (c *Controller) State() PlaybackState {
	pos := c.seq.Position()
	return PlaybackState{
		Active:        pos.Sequence,
		Step:          pos.Step,
		IdleSuspended: c.idle.Suspended(),
	}
}

func (c *Controller) sequenceFinished(name string) {
	c.publish(bus.EventTypeSequenceFinished, map[string]any{"sequence": name})
	if name == IdleSequence {
		return
	}
	if err := c.PlaySequence(IdleSequence); err != nil {
		c.logger.Error().Err(err).Msg("idle fallback failed")
	}
}

// isBaseline reports whether step holds the idle baseline clip.
func (c *Controller) isBaseline(step Step) bool {
	return step.Infinite() && step.Clip == c.idle.Baseline().Clip
}

func (c *Controller) suspendIdle() {
	if c.idle.Suspended() && !c.idle.Pending() {
		return
	}
	c.idle.Suspend()
	c.publish(bus.EventTypeIdleSuspended, nil)
}

func (c *Controller) resumeIdle() {
	c.idle.Resume()
	c.publish(bus.EventTypeIdleResumed, nil)
}

func (c *Controller) publish(t bus.EventType, data map[string]any) {
	if c.events == nil {
		return
	}
	c.events.Publish(bus.Event{Type: t, Data: data})
}
