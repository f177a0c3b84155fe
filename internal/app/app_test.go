package app

import (
	"context"
	"testing"
	"time"

	"github.com/faiface/beep"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/animation"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/bus"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/config"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/expression"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/scheduler"
)

type okLoader struct{}

func (okLoader) LoadSkeletalClip(context.Context, string) *scheduler.Future { return scheduler.Resolved(nil) }
func (okLoader) LoadPoseClip(context.Context, string) *scheduler.Future     { return scheduler.Resolved(nil) }

type silentOutput struct{}

func (silentOutput) Play(beep.Streamer, beep.SampleRate) {}
func (silentOutput) Lock()                               {}
func (silentOutput) Unlock()                             {}
func (silentOutput) Clear()                              {}

func startApp(t *testing.T) (*App, *expression.Table, context.Context) {
	t.Helper()
	a := New(config.DefaultConfig(), zerolog.Nop())
	face := expression.NewTable()
	require.NoError(t, a.Attach(Peripherals{Loader: okLoader{}, Face: face, Output: silentOutput{}}))

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- a.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-errc
	})
	return a, face, ctx
}

func TestRunStartsIdleAndTicks(t *testing.T) {
	a, face, ctx := startApp(t)

	ticks := make(chan struct{}, 1)
	require.NoError(t, a.Loop.Do(ctx, func() {
		a.OnTick(func() {
			select {
			case ticks <- struct{}{}:
			default:
			}
		})
	}))

	require.Eventually(t, func() bool {
		st, err := a.Avatar.GetState(ctx)
		return err == nil && st.Animation.Active == animation.IdleSequence && !st.Animation.IdleSuspended
	}, 2*time.Second, 10*time.Millisecond)

	select {
	case <-ticks:
	case <-time.After(2 * time.Second):
		t.Fatal("no render tick")
	}
	assert.Equal(t, 1.0, face.Get(expression.Smile))
}

func TestReconfigure(t *testing.T) {
	a, _, ctx := startApp(t)

	reloaded := make(chan bus.Event, 1)
	a.Bus.Subscribe(bus.EventTypeConfigReloaded, func(e bus.Event) { reloaded <- e })

	cfg := config.DefaultConfig()
	cfg.Animation.Sequences["wave"] = []config.StepConfig{
		{Clip: "animations/vrma/VRMA_03.vrma", Kind: "pose", Duration: "8s"},
		{Clip: animation.IdleClip, Kind: "skeletal", Duration: "inf"},
	}
	require.NoError(t, a.Reconfigure(ctx, cfg))
	require.NoError(t, a.Avatar.PlaySequence(ctx, "wave"))

	select {
	case e := <-reloaded:
		assert.Equal(t, 4, e.Data["sequences"])
	case <-time.After(2 * time.Second):
		t.Fatal("no reload event")
	}

	bad := config.DefaultConfig()
	delete(bad.Animation.Sequences, animation.IdleSequence)
	assert.ErrorIs(t, a.Reconfigure(ctx, bad), animation.ErrInvalidCatalogue)
}

func TestRunRequiresAttach(t *testing.T) {
	a := New(config.DefaultConfig(), zerolog.Nop())
	assert.Error(t, a.Run(context.Background()))
}
