// Package bridge exposes the loop-confined avatar components to other
// goroutines: the HTTP API, the console and the config watcher.
package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/animation"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/audio"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/expression"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/lipsync"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/scheduler"
)

var ErrUnknownExpression = errors.New("unknown expression")

// Runner executes fn on the loop goroutine and waits for it.
type Runner interface {
	Do(ctx context.Context, fn func()) error
}

// Decoder reads a speech file into PCM.
type Decoder func(path string) (audio.PCM, error)

// SourceFactory wraps decoded speech in a playable source.
type SourceFactory func(pcm audio.PCM) audio.Source

// Counter reports connected renderers.
type Counter interface {
	ClientCount() int
}

// State is a snapshot for operators.
type State struct {
	Animation animation.PlaybackState `json:"animation"`
	Speaking  bool                    `json:"speaking"`
	Renderers int                     `json:"renderers"`
}

// AvatarBridge serializes every call onto the loop.
type AvatarBridge struct {
	loop      Runner
	ctrl      *animation.Controller
	coord     *lipsync.Coordinator
	face      expression.Sink
	decode    Decoder
	newSource SourceFactory
	renderers Counter
	logger    zerolog.Logger
}

// NewAvatarBridge creates the avatar bridge. renderers may be nil.
func NewAvatarBridge(loop Runner, ctrl *animation.Controller, coord *lipsync.Coordinator, face expression.Sink, decode Decoder, newSource SourceFactory, renderers Counter, logger zerolog.Logger) *AvatarBridge {
	return &AvatarBridge{
		loop:      loop,
		ctrl:      ctrl,
		coord:     coord,
		face:      face,
		decode:    decode,
		newSource: newSource,
		renderers: renderers,
		logger:    logger.With().Str("component", "avatar_bridge").Logger(),
	}
}

func (b *AvatarBridge) do(ctx context.Context, fn func() error) error {
	var err error
	if lerr := b.loop.Do(ctx, func() { err = fn() }); lerr != nil {
		return lerr
	}
	return err
}

// GetState returns the current playback state.
func (b *AvatarBridge) GetState(ctx context.Context) (State, error) {
	var st State
	err := b.do(ctx, func() error {
		st.Animation = b.ctrl.State()
		st.Speaking = b.coord.Speaking()
		return nil
	})
	if b.renderers != nil {
		st.Renderers = b.renderers.ClientCount()
	}
	return st, err
}

// Sequences lists the catalogue.
func (b *AvatarBridge) Sequences(ctx context.Context) ([]string, error) {
	var names []string
	err := b.do(ctx, func() error {
		names = b.ctrl.Catalogue().Names()
		return nil
	})
	return names, err
}

func (b *AvatarBridge) PlaySequence(ctx context.Context, name string) error {
	return b.do(ctx, func() error { return b.ctrl.PlaySequence(name) })
}

func (b *AvatarBridge) PlayStart(ctx context.Context) error {
	return b.do(ctx, b.ctrl.PlayStart)
}

func (b *AvatarBridge) StopCurrent(ctx context.Context) error {
	return b.do(ctx, func() error {
		b.ctrl.StopCurrent()
		return nil
	})
}

func (b *AvatarBridge) SuspendIdle(ctx context.Context) error {
	return b.do(ctx, func() error {
		b.ctrl.SuspendIdleVariation()
		return nil
	})
}

func (b *AvatarBridge) ResumeIdle(ctx context.Context) error {
	return b.do(ctx, b.ctrl.ResumeIdleVariation)
}

// SetExpression resets the expression presets and sets name to full
// weight. An empty name only resets.
func (b *AvatarBridge) SetExpression(ctx context.Context, name string) error {
	if name != "" && !expression.IsPreset(name) {
		return fmt.Errorf("%w: %q", ErrUnknownExpression, name)
	}
	return b.do(ctx, func() error {
		expression.Apply(b.face, name)
		return nil
	})
}

// Speak decodes path off the loop, then hands the audio to the lip sync
// coordinator, which replaces any speech already playing.
func (b *AvatarBridge) Speak(ctx context.Context, path string) error {
	pcm, err := b.decode(path)
	if err != nil {
		b.logger.Warn().Err(err).Str("path", path).Msg("speech decode failed")
		return err
	}
	b.logger.Info().Str("path", path).Dur("duration", pcm.Duration()).Msg("speaking")
	src := b.newSource(pcm)
	return b.do(ctx, func() error {
		b.coord.Start(src, b.face)
		return nil
	})
}

// StopSpeaking drops the current speech without the calm fade.
func (b *AvatarBridge) StopSpeaking(ctx context.Context) error {
	return b.do(ctx, func() error {
		b.coord.Stop()
		return nil
	})
}

// Reconfigure swaps the catalogue and overlay settings. The active
// sequence keeps running; new settings apply from the next command.
func (b *AvatarBridge) Reconfigure(ctx context.Context, cc animation.ControllerConfig, lc lipsync.Config) error {
	return b.do(ctx, func() error {
		if err := b.ctrl.SetCatalogue(cc.Catalogue); err != nil {
			return err
		}
		b.ctrl.SetIdleConfig(cc.Idle)
		b.coord.SetConfig(lc)
		return nil
	})
}

var _ Runner = (*scheduler.Loop)(nil)
