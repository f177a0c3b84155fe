package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/faiface/beep"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/animation"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/app"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/config"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/expression"
)

type nullOutput struct{}

func (nullOutput) Play(beep.Streamer, beep.SampleRate) {}
func (nullOutput) Lock()                               {}
func (nullOutput) Unlock()                             {}
func (nullOutput) Clear()                              {}

func newConsole(t *testing.T) (*console, context.Context) {
	t.Helper()
	a := app.New(config.DefaultConfig(), zerolog.Nop())
	face := expression.NewTable()
	require.NoError(t, a.Attach(app.Peripherals{Loader: logLoader{logger: zerolog.Nop()}, Face: face, Output: nullOutput{}}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	require.Eventually(t, func() bool {
		st, err := a.Avatar.GetState(ctx)
		return err == nil && st.Animation.Active == animation.IdleSequence
	}, 2*time.Second, 10*time.Millisecond)
	return &console{avatar: a.Avatar, face: face}, ctx
}

func TestConsoleCommands(t *testing.T) {
	c, ctx := newConsole(t)
	var out bytes.Buffer

	require.NoError(t, c.exec(ctx, "start", &out))
	require.NoError(t, c.exec(ctx, "state", &out))
	assert.Contains(t, out.String(), `sequence="start" step=0`)

	out.Reset()
	require.NoError(t, c.exec(ctx, "expr angry", &out))
	require.NoError(t, c.exec(ctx, "face", &out))
	assert.Contains(t, out.String(), "angry")

	require.NoError(t, c.exec(ctx, "expr reset", &out))
	assert.Equal(t, 0.0, c.face.Get(expression.Angry))

	out.Reset()
	require.NoError(t, c.exec(ctx, "sequences", &out))
	assert.Equal(t, "idle start talking\n", out.String())

	require.NoError(t, c.exec(ctx, "stop", &out))
	require.NoError(t, c.exec(ctx, "idle resume", &out))
	require.NoError(t, c.exec(ctx, "", &out))
}

func TestConsoleErrors(t *testing.T) {
	c, ctx := newConsole(t)
	var out bytes.Buffer

	assert.ErrorIs(t, c.exec(ctx, "play dance", &out), animation.ErrUnknownSequence)
	assert.ErrorIs(t, c.exec(ctx, "quit", &out), errQuit)
	assert.Error(t, c.exec(ctx, "play", &out))
	assert.Error(t, c.exec(ctx, "idle maybe", &out))
	assert.Error(t, c.exec(ctx, "fly", &out))
	assert.Error(t, c.exec(ctx, "speak /nonexistent/reply.wav", &out))
}

func TestConsoleHelp(t *testing.T) {
	c := &console{}
	var out bytes.Buffer
	require.NoError(t, c.exec(context.Background(), "help", &out))
	assert.Contains(t, out.String(), "speak <file>")
	assert.NotNil(t, c.completer())
}
