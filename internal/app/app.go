// Package app assembles the avatar runtime around one scheduler loop. The
// server and the console differ only in the clip loader, the face sink and
// the audio output they attach.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/animation"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/audio"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/bridge"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/bus"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/config"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/expression"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/lipsync"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/scheduler"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/viseme"
)

// Version is set at build time.
var Version = "dev"

// Peripherals are the parts that differ between front ends.
type Peripherals struct {
	Loader    animation.ClipLoader
	Face      expression.Sink
	Output    audio.Output
	Renderers bridge.Counter // may be nil
}

// App holds the loop and everything confined to it.
type App struct {
	Config *config.Config
	Loop   *scheduler.Loop
	Clock  scheduler.Clock
	Bus    *bus.EventBus

	Controller  *animation.Controller
	Coordinator *lipsync.Coordinator
	Blinker     *lipsync.Blinker
	Avatar      *bridge.AvatarBridge

	onTick []func()
	logger zerolog.Logger
}

// New creates the loop, its clock and the event bus. Call Attach before Run.
func New(cfg *config.Config, logger zerolog.Logger) *App {
	loop := scheduler.NewLoop(256, logger)
	return &App{
		Config: cfg,
		Loop:   loop,
		Clock:  scheduler.NewLoopClock(loop),
		Bus:    bus.NewEventBus(),
		logger: logger.With().Str("component", "app").Logger(),
	}
}

// Attach builds the animation and lip sync components on top of p.
func (a *App) Attach(p Peripherals) error {
	cc, err := a.Config.ControllerConfig()
	if err != nil {
		return fmt.Errorf("animation config: %w", err)
	}
	lc, err := a.Config.LipSyncConfig()
	if err != nil {
		return fmt.Errorf("lipsync config: %w", err)
	}

	rnd := scheduler.NewRand(a.Config.Animation.Seed)
	a.Controller = animation.NewController(a.Clock, rnd, p.Loader, cc, a.Bus, a.logger)
	analyzer := viseme.NewAnalyzerWithSmoothing(a.Config.Audio.VisemeSmoothing)
	a.Coordinator = lipsync.NewCoordinator(a.Clock, rnd, a.Controller, analyzer, lc, a.Bus, a.logger)
	a.Blinker = lipsync.NewBlinker(a.Config.BlinkConfig(), p.Face)

	audioCfg := a.Config.AudioConfig()
	decode := func(path string) (audio.PCM, error) {
		return audio.DecodeFile(path, audioCfg.OpusChannels)
	}
	newSource := func(pcm audio.PCM) audio.Source {
		return audio.NewPlayer(pcm, p.Output, a.Loop, audioCfg, a.logger)
	}
	a.Avatar = bridge.NewAvatarBridge(a.Loop, a.Controller, a.Coordinator, p.Face, decode, newSource, p.Renderers, a.logger)
	return nil
}

// OnTick registers fn to run on the loop after every render tick.
func (a *App) OnTick(fn func()) {
	a.onTick = append(a.onTick, fn)
}

func (a *App) tick(dt time.Duration) {
	a.Coordinator.Tick(dt)
	a.Blinker.Tick(dt)
	for _, fn := range a.onTick {
		fn()
	}
}

// Run starts the idle sequence and the render tick, then runs the loop
// until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a.Controller == nil {
		return fmt.Errorf("app not attached")
	}
	a.Loop.Post(func() {
		if err := a.Controller.PlaySequence(animation.IdleSequence); err != nil {
			a.logger.Error().Err(err).Msg("idle sequence unavailable")
		}
	})

	rate := a.Config.Server.TickRate
	if rate <= 0 {
		rate = 60
	}
	a.Loop.Tick(ctx, time.Second/time.Duration(rate), a.tick)

	a.logger.Info().Str("version", Version).Int("tick_rate", rate).Msg("avatar runtime started")
	err := a.Loop.Run(ctx)
	a.logger.Info().Msg("avatar runtime stopped")
	return err
}

// Reconfigure applies a reloaded configuration to the running components.
// Server and audio settings need a restart.
func (a *App) Reconfigure(ctx context.Context, cfg *config.Config) error {
	cc, err := cfg.ControllerConfig()
	if err != nil {
		return err
	}
	lc, err := cfg.LipSyncConfig()
	if err != nil {
		return err
	}
	if err := a.Avatar.Reconfigure(ctx, cc, lc); err != nil {
		return err
	}
	if err := a.Loop.Do(ctx, func() { a.Blinker.SetConfig(cfg.BlinkConfig()) }); err != nil {
		return err
	}
	a.Bus.Publish(bus.Event{
		Type: bus.EventTypeConfigReloaded,
		Data: map[string]any{"sequences": len(cc.Catalogue), "specials": len(cc.Idle.Specials)},
	})
	a.logger.Info().Msg("configuration reloaded")
	return nil
}
