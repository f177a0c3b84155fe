// Package scheduler provides the single-threaded execution model the animation
// core runs on: a task loop, clocks whose callbacks land on that loop,
// cancellation tokens and a small future type for asynchronous clip loads.
package scheduler

import (
	"sort"
	"time"
)

// Clock abstracts time for everything that waits.
//
// Callbacks passed to AfterFunc always run on the goroutine that owns the
// animation state: the Loop for LoopClock, the caller of Advance for
// ManualClock.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a pending AfterFunc callback.
type Timer interface {
	// Stop prevents the callback from running. It reports whether the
	// timer was still pending.
	Stop() bool
}

// LoopClock schedules callbacks with the runtime timer and delivers them
// through a Loop.
type LoopClock struct {
	loop *Loop
}

// NewLoopClock returns a clock bound to loop.
func NewLoopClock(loop *Loop) *LoopClock {
	return &LoopClock{loop: loop}
}

func (c *LoopClock) Now() time.Time {
	return time.Now()
}

func (c *LoopClock) AfterFunc(d time.Duration, fn func()) Timer {
	t := &loopTimer{}
	t.timer = time.AfterFunc(d, func() {
		c.loop.Post(func() {
			// Stop runs on the loop too, so a callback that was already
			// queued when Stop was called is dropped here.
			if t.stopped {
				return
			}
			t.fired = true
			fn()
		})
	})
	return t
}

type loopTimer struct {
	timer   *time.Timer
	stopped bool
	fired   bool
}

func (t *loopTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	t.timer.Stop()
	return true
}

// ManualClock is a deterministic clock for tests. Nothing happens until
// Advance or FireNext is called; due callbacks then run synchronously on the
// calling goroutine in deadline order.
type ManualClock struct {
	now    time.Time
	seq    uint64
	timers []*manualTimer
}

type manualTimer struct {
	clock *ManualClock
	at    time.Time
	seq   uint64
	fn    func()
	done  bool
}

// NewManualClock returns a clock reading start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	return c.now
}

func (c *ManualClock) AfterFunc(d time.Duration, fn func()) Timer {
	if d < 0 {
		d = 0
	}
	c.seq++
	t := &manualTimer{clock: c, at: c.now.Add(d), seq: c.seq, fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	if t.done {
		return false
	}
	t.done = true
	t.clock.remove(t)
	return true
}

func (c *ManualClock) remove(t *manualTimer) {
	for i, p := range c.timers {
		if p == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return
		}
	}
}

func (c *ManualClock) next() *manualTimer {
	if len(c.timers) == 0 {
		return nil
	}
	sort.SliceStable(c.timers, func(i, j int) bool {
		if c.timers[i].at.Equal(c.timers[j].at) {
			return c.timers[i].seq < c.timers[j].seq
		}
		return c.timers[i].at.Before(c.timers[j].at)
	})
	return c.timers[0]
}

// Advance moves the clock forward by d, firing every timer that falls due,
// including timers armed by callbacks during the advance.
func (c *ManualClock) Advance(d time.Duration) {
	target := c.now.Add(d)
	for {
		t := c.next()
		if t == nil || t.at.After(target) {
			break
		}
		c.fire(t)
	}
	c.now = target
}

// FireNext jumps to the earliest pending deadline and runs that one timer.
// It reports false when nothing is pending.
func (c *ManualClock) FireNext() bool {
	t := c.next()
	if t == nil {
		return false
	}
	c.fire(t)
	return true
}

func (c *ManualClock) fire(t *manualTimer) {
	if t.at.After(c.now) {
		c.now = t.at
	}
	t.done = true
	c.remove(t)
	t.fn()
}

// Pending returns the number of armed timers.
func (c *ManualClock) Pending() int {
	return len(c.timers)
}

// NextDeadline returns the delay until the earliest pending timer.
func (c *ManualClock) NextDeadline() (time.Duration, bool) {
	t := c.next()
	if t == nil {
		return 0, false
	}
	return t.at.Sub(c.now), true
}
