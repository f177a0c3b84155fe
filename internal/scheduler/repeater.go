package scheduler

import "time"

// Repeater runs a task over and over with a delay chosen before each run.
// It owns its cancellation token, so a run that was already queued when Stop
// was called does nothing.
type Repeater struct {
	clock Clock
	next  func() time.Duration
	run   func()

	gen   Generation
	timer Timer
}

// NewRepeater creates a stopped repeater.
func NewRepeater(clock Clock, next func() time.Duration, run func()) *Repeater {
	return &Repeater{clock: clock, next: next, run: run}
}

// Start (re)arms the repeater. Any earlier schedule is cancelled.
func (r *Repeater) Start() {
	r.Stop()
	r.arm(r.gen.Next())
}

func (r *Repeater) arm(tok Token) {
	r.timer = r.clock.AfterFunc(r.next(), func() {
		if !tok.Valid() {
			return
		}
		r.timer = nil
		r.run()
		// run may have stopped or restarted us
		if tok.Valid() {
			r.arm(tok)
		}
	})
}

func (r *Repeater) Stop() {
	r.gen.Invalidate()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *Repeater) Active() bool {
	return r.timer != nil
}
