package animation

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/scheduler"
)

func testCatalogue() Catalogue {
	c := DefaultCatalogue()
	c["wave"] = Sequence{Name: "wave", Steps: []Step{
		{Clip: "wave.vrma", Kind: PoseClip, Duration: time.Second},
	}}
	return c
}

func newTestSequencer() (*Sequencer, *fakeLoader, *scheduler.ManualClock) {
	clock := scheduler.NewManualClock(epoch)
	loader := newFakeLoader(clock)
	return NewSequencer(clock, loader, testCatalogue(), zerolog.Nop()), loader, clock
}

func TestSequencer_FiniteThenInfinite(t *testing.T) {
	s, loader, clock := newTestSequencer()

	require.NoError(t, s.Play(StartSequence))
	assert.Equal(t, Position{Sequence: StartSequence, Step: 0}, s.Position())

	clock.Advance(6999 * time.Millisecond)
	assert.Len(t, loader.calls, 1)

	clock.Advance(time.Millisecond)
	want := []loadCall{
		{Kind: PoseClip, Clip: GreetClip, At: 0},
		{Kind: SkeletalClip, Clip: IdleClip, At: 7000 * time.Millisecond},
	}
	if diff := cmp.Diff(want, loader.calls); diff != "" {
		t.Errorf("load calls mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, Position{Sequence: StartSequence, Step: 1}, s.Position())

	clock.Advance(time.Hour)
	assert.Len(t, loader.calls, 2)
	assert.Equal(t, 0, clock.Pending())
	assert.Equal(t, Position{Sequence: StartSequence, Step: 1}, s.Position())
}

func TestSequencer_StopCancelsPendingStep(t *testing.T) {
	s, loader, clock := newTestSequencer()

	require.NoError(t, s.Play(StartSequence))
	clock.Advance(3 * time.Second)
	s.Stop()

	assert.Equal(t, 0, clock.Pending())
	clock.Advance(time.Minute)
	assert.Equal(t, []string{GreetClip}, loader.clips())
	assert.Equal(t, Position{}, s.Position())
}

func TestSequencer_RestartOnRepeat(t *testing.T) {
	s, loader, clock := newTestSequencer()

	require.NoError(t, s.Play(StartSequence))
	clock.Advance(5 * time.Second)
	require.NoError(t, s.Play(StartSequence))
	clock.Advance(5 * time.Second)
	assert.Equal(t, []string{GreetClip, GreetClip}, loader.clips())
	assert.Equal(t, 1, clock.Pending())

	clock.Advance(2 * time.Second)
	want := []loadCall{
		{Kind: PoseClip, Clip: GreetClip, At: 0},
		{Kind: PoseClip, Clip: GreetClip, At: 5 * time.Second},
		{Kind: SkeletalClip, Clip: IdleClip, At: 12 * time.Second},
	}
	if diff := cmp.Diff(want, loader.calls); diff != "" {
		t.Errorf("load calls mismatch (-want +got):\n%s", diff)
	}
}

func TestSequencer_FiniteSequenceFallsBackToIdle(t *testing.T) {
	s, loader, clock := newTestSequencer()

	require.NoError(t, s.Play("wave"))
	clock.Advance(time.Second)

	assert.Equal(t, []string{"wave.vrma", IdleClip}, loader.clips())
	assert.Equal(t, Position{Sequence: IdleSequence, Step: 0}, s.Position())
}

func TestSequencer_OnFinishedOverridesFallback(t *testing.T) {
	s, loader, clock := newTestSequencer()
	var finished []string
	s.OnFinished(func(name string) { finished = append(finished, name) })

	require.NoError(t, s.Play("wave"))
	clock.Advance(time.Second)

	assert.Equal(t, []string{"wave"}, finished)
	assert.Equal(t, []string{"wave.vrma"}, loader.clips())
	assert.Equal(t, Position{}, s.Position())
}

func TestSequencer_LoadFailureSkipsStep(t *testing.T) {
	s, loader, _ := newTestSequencer()
	loader.fail[GreetClip] = errors.New("404")

	require.NoError(t, s.Play(StartSequence))

	assert.Equal(t, []string{GreetClip, IdleClip}, loader.clips())
	assert.Equal(t, Position{Sequence: StartSequence, Step: 1}, s.Position())
}

func TestSequencer_LoadFailureOnInfiniteStepHolds(t *testing.T) {
	s, loader, clock := newTestSequencer()
	loader.fail[TalkingClip] = errors.New("decode error")

	require.NoError(t, s.Play(TalkingSequence))
	clock.Advance(time.Hour)

	assert.Equal(t, []string{TalkingClip}, loader.clips())
	assert.Equal(t, Position{Sequence: TalkingSequence, Step: 0}, s.Position())
}

func TestSequencer_StaleLoadIsIgnored(t *testing.T) {
	s, loader, clock := newTestSequencer()
	loader.deferred = true

	require.NoError(t, s.Play(StartSequence))
	require.NoError(t, s.Play(TalkingSequence))
	require.Len(t, loader.pending, 2)
	assert.Error(t, loader.pending[0].ctx.Err())

	loader.pending[0].future.Resolve(nil)
	assert.Equal(t, 0, clock.Pending())

	loader.pending[1].future.Resolve(nil)
	clock.Advance(time.Minute)
	assert.Equal(t, []string{GreetClip, TalkingClip}, loader.clips())
	assert.Equal(t, Position{Sequence: TalkingSequence, Step: 0}, s.Position())
}

func TestSequencer_WaitsForLoadBeforeTiming(t *testing.T) {
	s, loader, clock := newTestSequencer()
	loader.deferred = true

	require.NoError(t, s.Play(StartSequence))
	clock.Advance(10 * time.Second)
	assert.Len(t, loader.calls, 1)

	loader.pending[0].future.Resolve(nil)
	clock.Advance(6999 * time.Millisecond)
	assert.Len(t, loader.calls, 1)
	clock.Advance(time.Millisecond)
	assert.Len(t, loader.calls, 2)
}

func TestSequencer_UnknownSequence(t *testing.T) {
	s, loader, _ := newTestSequencer()
	require.NoError(t, s.Play(TalkingSequence))

	err := s.Play("dance")
	assert.ErrorIs(t, err, ErrUnknownSequence)
	assert.Equal(t, Position{Sequence: TalkingSequence, Step: 0}, s.Position())
	assert.Len(t, loader.calls, 1)
}

func TestSequencer_OnStep(t *testing.T) {
	s, _, clock := newTestSequencer()
	var entered []Position
	s.OnStep(func(name string, index int, _ Step) {
		entered = append(entered, Position{Sequence: name, Step: index})
	})

	require.NoError(t, s.Play(StartSequence))
	clock.Advance(7 * time.Second)

	assert.Equal(t, []Position{{StartSequence, 0}, {StartSequence, 1}}, entered)
}

func TestCatalogue_Validate(t *testing.T) {
	assert.NoError(t, DefaultCatalogue().Validate())

	noIdle := Catalogue{"talking": DefaultCatalogue()[TalkingSequence]}
	assert.ErrorIs(t, noIdle.Validate(), ErrInvalidCatalogue)

	empty := DefaultCatalogue()
	empty["empty"] = Sequence{Name: "empty"}
	assert.ErrorIs(t, empty.Validate(), ErrInvalidCatalogue)

	zero := DefaultCatalogue()
	zero["zero"] = Sequence{Name: "zero", Steps: []Step{{Clip: "a.fbx"}}}
	assert.ErrorIs(t, zero.Validate(), ErrInvalidCatalogue)
}

func TestParseClipKind(t *testing.T) {
	for in, want := range map[string]ClipKind{
		"skeletal": SkeletalClip,
		"FBX":      SkeletalClip,
		"pose":     PoseClip,
		" vrma ":   PoseClip,
	} {
		got, err := ParseClipKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseClipKind("bvh")
	assert.ErrorIs(t, err, ErrInvalidCatalogue)
}
