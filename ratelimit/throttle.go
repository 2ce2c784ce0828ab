package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Throttle enforces a minimum delay between consecutive outbound calls.
// Wait serializes callers: each one is released at least Interval after
// the previous release.
type Throttle struct {
	interval time.Duration
	clock    clockwork.Clock

	mu   sync.Mutex
	last time.Time
}

func NewThrottle(interval time.Duration, clock clockwork.Clock) *Throttle {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Throttle{interval: interval, clock: clock}
}

// Wait blocks until the caller may issue its request or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.last.IsZero() {
		if delay := t.last.Add(t.interval).Sub(t.clock.Now()); delay > 0 {
			select {
			case <-t.clock.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	t.last = t.clock.Now()
	return nil
}

// Last returns when the most recent call was released.
func (t *Throttle) Last() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}
