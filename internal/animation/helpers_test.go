package animation

import (
	"context"
	"time"

	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/scheduler"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type loadCall struct {
	Kind ClipKind
	Clip string
	At   time.Duration
}

type pendingLoad struct {
	ctx    context.Context
	clip   string
	future *scheduler.Future
}

// fakeLoader records loads. Loads resolve immediately unless deferred is
// set, in which case the test resolves them through pending.
type fakeLoader struct {
	clock    *scheduler.ManualClock
	fail     map[string]error
	deferred bool

	calls   []loadCall
	pending []pendingLoad
}

func newFakeLoader(clock *scheduler.ManualClock) *fakeLoader {
	return &fakeLoader{clock: clock, fail: map[string]error{}}
}

func (l *fakeLoader) LoadSkeletalClip(ctx context.Context, path string) *scheduler.Future {
	return l.load(ctx, SkeletalClip, path)
}

func (l *fakeLoader) LoadPoseClip(ctx context.Context, path string) *scheduler.Future {
	return l.load(ctx, PoseClip, path)
}

func (l *fakeLoader) load(ctx context.Context, kind ClipKind, path string) *scheduler.Future {
	l.calls = append(l.calls, loadCall{Kind: kind, Clip: path, At: l.clock.Now().Sub(epoch)})
	if l.deferred {
		f := scheduler.NewFuture()
		l.pending = append(l.pending, pendingLoad{ctx: ctx, clip: path, future: f})
		return f
	}
	return scheduler.Resolved(l.fail[path])
}

func (l *fakeLoader) clips() []string {
	out := make([]string, len(l.calls))
	for i, c := range l.calls {
		out[i] = c.Clip
	}
	return out
}
