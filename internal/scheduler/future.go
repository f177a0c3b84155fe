package scheduler

// Future is the result of an asynchronous operation that completes on the
// loop. It is not safe for concurrent use: Resolve and Then must be called
// from the loop goroutine.
type Future struct {
	done    bool
	err     error
	waiters []func(error)
}

// NewFuture returns an unresolved future.
func NewFuture() *Future {
	return &Future{}
}

// Resolved returns a future that has already completed with err.
func Resolved(err error) *Future {
	return &Future{done: true, err: err}
}

// Resolve completes the future and runs its continuations. Only the first
// call has any effect.
func (f *Future) Resolve(err error) bool {
	if f.done {
		return false
	}
	f.done = true
	f.err = err
	waiters := f.waiters
	f.waiters = nil
	for _, w := range waiters {
		w(err)
	}
	return true
}

// Then registers fn to run once the future completes. If it has already
// completed fn runs immediately.
func (f *Future) Then(fn func(error)) {
	if f.done {
		fn(f.err)
		return
	}
	f.waiters = append(f.waiters, fn)
}

func (f *Future) Done() bool {
	return f.done
}

func (f *Future) Err() error {
	return f.err
}
