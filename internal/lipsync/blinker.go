package lipsync

import (
	"time"

	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/expression"
)

// Blinker closes the eyes briefly once the interval has passed and keeps a
// constant baseline smile. The interval restarts when the eyes reopen. It is
// advanced by the render tick.
type Blinker struct {
	cfg      BlinkConfig
	sink     expression.Sink
	elapsed  time.Duration
	closedAt time.Duration
	closed   bool
	started  bool
}

func NewBlinker(cfg BlinkConfig, sink expression.Sink) *Blinker {
	return &Blinker{cfg: cfg, sink: sink}
}

func (b *Blinker) SetConfig(cfg BlinkConfig) {
	b.cfg = cfg
	b.started = false
}

func (b *Blinker) Tick(dt time.Duration) {
	if !b.started {
		b.started = true
		b.sink.SetWeight(expression.Smile, b.cfg.BaselineSmile)
	}
	if b.cfg.Interval <= 0 {
		return
	}
	b.elapsed += dt

	if !b.closed && b.elapsed >= b.cfg.Interval {
		b.closed = true
		b.closedAt = b.elapsed
		b.sink.SetWeight(expression.Blink, 1)
	}
	if b.closed && b.elapsed >= b.closedAt+b.cfg.Duration {
		b.closed = false
		b.elapsed = 0
		b.sink.SetWeight(expression.Blink, 0)
	}
}

func (b *Blinker) Closed() bool {
	return b.closed
}
