package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultFrameInterval is how often the runner feeds elapsed time to the
// clock.
const DefaultFrameInterval = 50 * time.Millisecond

// Runner drives a Clock in real time. It serializes clock frames with
// actions submitted through Do, so everything that touches simulation
// state from outside a day handler must go through Do.
type Runner struct {
	Clock *Clock
	Frame time.Duration

	mu sync.Mutex
}

// NewRunner creates a runner for c with the default frame interval.
func NewRunner(c *Clock) *Runner {
	return &Runner{Clock: c, Frame: DefaultFrameInterval}
}

// Do runs fn with the simulation locked. It must not be called from a day
// listener.
func (r *Runner) Do(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn()
}

// Run feeds measured elapsed time to the clock once per frame until ctx is
// cancelled.
func (r *Runner) Run(ctx context.Context) {
	frame := r.Frame
	if frame <= 0 {
		frame = DefaultFrameInterval
	}
	ticker := time.NewTicker(frame)
	defer ticker.Stop()

	r.Do(func() {
		slog.Info("simulation clock started", "day", r.Clock.Day(), "speed", r.Clock.Speed().String())
	})

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			r.Do(func() {
				slog.Info("simulation clock stopped", "day", r.Clock.Day())
			})
			return
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			r.Do(func() { r.Clock.Advance(dt) })
		}
	}
}
