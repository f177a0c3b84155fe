package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ErrLoopClosed is returned when work is submitted after the loop has exited.
var ErrLoopClosed = errors.New("scheduler loop closed")

// Poster queues a function for execution on the owning goroutine.
type Poster interface {
	Post(fn func()) bool
}

// Loop runs posted functions one at a time on a single goroutine. All
// animation state is confined to that goroutine.
type Loop struct {
	tasks  chan func()
	done   chan struct{}
	logger zerolog.Logger
}

// NewLoop creates a loop with the given task buffer.
func NewLoop(buffer int, logger zerolog.Logger) *Loop {
	if buffer <= 0 {
		buffer = 256
	}
	return &Loop{
		tasks:  make(chan func(), buffer),
		done:   make(chan struct{}),
		logger: logger.With().Str("component", "scheduler").Logger(),
	}
}

// Run executes tasks until ctx is cancelled. It must be called once.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	l.logger.Debug().Msg("loop started")
	for {
		select {
		case <-ctx.Done():
			l.logger.Debug().Msg("loop stopped")
			return ctx.Err()
		case fn := <-l.tasks:
			l.exec(fn)
		}
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error().Interface("panic", r).Msg("task panicked")
		}
	}()
	fn()
}

// Post queues fn. It blocks while the buffer is full and returns false once
// the loop has exited.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrLoopClosed
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrLoopClosed
	case <-ctx.Done():
		return fmt.Errorf("wait for loop: %w", ctx.Err())
	}
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Tick posts fn every interval until ctx is cancelled, passing the time
// elapsed since the previous tick. Ticks are dropped rather than queued when
// the loop falls behind.
func (l *Loop) Tick(ctx context.Context, interval time.Duration, fn func(dt time.Duration)) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		last := time.Now()
		pending := make(chan struct{}, 1)
		for {
			select {
			case <-ctx.Done():
				return
			case <-l.done:
				return
			case now := <-ticker.C:
				select {
				case pending <- struct{}{}:
				default:
					continue
				}
				dt := now.Sub(last)
				last = now
				if !l.Post(func() {
					<-pending
					fn(dt)
				}) {
					return
				}
			}
		}
	}()
}
