package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/animation"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/audio"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/expression"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/lipsync"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/scheduler"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/viseme"
)

type instantLoader struct{ clips []string }

func (l *instantLoader) LoadSkeletalClip(ctx context.Context, path string) *scheduler.Future {
	l.clips = append(l.clips, path)
	return scheduler.Resolved(nil)
}

func (l *instantLoader) LoadPoseClip(ctx context.Context, path string) *scheduler.Future {
	l.clips = append(l.clips, path)
	return scheduler.Resolved(nil)
}

type stubSource struct {
	listeners []func(audio.Event)
}

func (s *stubSource) Play()  { s.emit(audio.EventPlay) }
func (s *stubSource) Pause() { s.emit(audio.EventPause) }
func (s *stubSource) Stop()  {}

func (s *stubSource) emit(t audio.EventType) {
	for _, fn := range s.listeners {
		fn(audio.Event{Type: t})
	}
}

func (s *stubSource) Subscribe(fn func(audio.Event)) func() {
	s.listeners = append(s.listeners, fn)
	return func() { s.listeners = nil }
}

func (s *stubSource) BinCount() int             { return 128 }
func (s *stubSource) Spectrum(dst []uint8) bool { return true }

type fixedCounter int

func (c fixedCounter) ClientCount() int { return int(c) }

type fixture struct {
	ctx    context.Context
	stop   context.CancelFunc
	loop   *scheduler.Loop
	clock  *scheduler.ManualClock
	loader *instantLoader
	face   *expression.Table
	source *stubSource
	bridge *AvatarBridge
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	f := &fixture{
		ctx:    ctx,
		stop:   cancel,
		loop:   scheduler.NewLoop(16, zerolog.Nop()),
		clock:  scheduler.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		loader: &instantLoader{},
		face:   expression.NewTable(),
		source: &stubSource{},
	}
	go f.loop.Run(ctx)

	rnd := &scheduler.ScriptedRand{Values: []float64{0.5}}
	ctrl := animation.NewController(f.clock, rnd, f.loader, animation.DefaultControllerConfig(), nil, zerolog.Nop())
	coord := lipsync.NewCoordinator(f.clock, rnd, ctrl, viseme.NewAnalyzer(), lipsync.DefaultConfig(), nil, zerolog.Nop())

	decode := func(path string) (audio.PCM, error) {
		if path == "missing.wav" {
			return audio.PCM{}, audio.ErrSourceUnavailable
		}
		return audio.PCM{Samples: make([]float64, 48000), SampleRate: 48000}, nil
	}
	newSource := func(audio.PCM) audio.Source { return f.source }

	f.bridge = NewAvatarBridge(f.loop, ctrl, coord, f.face, decode, newSource, fixedCounter(2), zerolog.Nop())
	return f
}

func (f *fixture) advance(t *testing.T, d time.Duration) {
	t.Helper()
	require.NoError(t, f.loop.Do(f.ctx, func() { f.clock.Advance(d) }))
}

func TestPlaySequenceThroughLoop(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.bridge.PlayStart(f.ctx))
	st, err := f.bridge.GetState(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, animation.StartSequence, st.Animation.Active)
	assert.Equal(t, 0, st.Animation.Step)
	assert.True(t, st.Animation.IdleSuspended)
	assert.Equal(t, 2, st.Renderers)

	f.advance(t, 7*time.Second)
	st, err = f.bridge.GetState(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Animation.Step)
	assert.False(t, st.Animation.IdleSuspended)

	err = f.bridge.PlaySequence(f.ctx, "dance")
	assert.ErrorIs(t, err, animation.ErrUnknownSequence)

	require.NoError(t, f.bridge.PlayStart(f.ctx))
	assert.ErrorIs(t, f.bridge.ResumeIdle(f.ctx), animation.ErrSequenceActive)
	require.NoError(t, f.bridge.StopCurrent(f.ctx))
	require.NoError(t, f.bridge.ResumeIdle(f.ctx))

	names, err := f.bridge.Sequences(f.ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"idle", "talking", "start"}, names)
}

func TestSetExpression(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.bridge.SetExpression(f.ctx, expression.Angry))
	assert.Equal(t, 1.0, f.face.Get(expression.Angry))

	require.NoError(t, f.bridge.SetExpression(f.ctx, expression.Joy))
	assert.Equal(t, []string{expression.Joy}, f.face.Nonzero())

	err := f.bridge.SetExpression(f.ctx, "smirk")
	assert.ErrorIs(t, err, ErrUnknownExpression)
	assert.Equal(t, []string{expression.Joy}, f.face.Nonzero())
}

func TestSpeak(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.bridge.Speak(f.ctx, "hello.wav"))
	st, err := f.bridge.GetState(f.ctx)
	require.NoError(t, err)
	assert.True(t, st.Speaking)
	assert.Equal(t, animation.TalkingSequence, st.Animation.Active)

	require.NoError(t, f.bridge.StopSpeaking(f.ctx))
	st, err = f.bridge.GetState(f.ctx)
	require.NoError(t, err)
	assert.False(t, st.Speaking)
	assert.Equal(t, animation.IdleSequence, st.Animation.Active)
	assert.False(t, st.Animation.IdleSuspended)

	err = f.bridge.Speak(f.ctx, "missing.wav")
	assert.True(t, errors.Is(err, audio.ErrSourceUnavailable))
}

func TestReconfigure(t *testing.T) {
	f := newFixture(t)

	cat := animation.DefaultCatalogue()
	cat["wave"] = animation.Sequence{Name: "wave", Steps: []animation.Step{
		{Clip: "animations/vrma/VRMA_03.vrma", Kind: animation.PoseClip, Duration: time.Second},
	}}
	cc := animation.ControllerConfig{Catalogue: cat, Idle: animation.DefaultIdleConfig()}
	require.NoError(t, f.bridge.Reconfigure(f.ctx, cc, lipsync.DefaultConfig()))
	require.NoError(t, f.bridge.PlaySequence(f.ctx, "wave"))

	bad := animation.ControllerConfig{Catalogue: animation.Catalogue{}, Idle: animation.DefaultIdleConfig()}
	assert.ErrorIs(t, f.bridge.Reconfigure(f.ctx, bad, lipsync.DefaultConfig()), animation.ErrInvalidCatalogue)
}

func TestClosedLoop(t *testing.T) {
	f := newFixture(t)
	f.stop()
	<-f.loop.Done()
	assert.ErrorIs(t, f.bridge.StopCurrent(context.Background()), scheduler.ErrLoopClosed)
}
