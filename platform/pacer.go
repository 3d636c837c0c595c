package platform

import (
	"context"
	"math/rand"
	"time"

	"socialgate/internal"
)

// RandomDelayPacer enforces a randomized minimum delay between consecutive
// outbound requests to one platform. Acquisitions for the same platform are
// serialized by holding that platform's lane mutex across the delay, so two
// concurrent callers can never both observe "enough time has passed".
// Different platforms use independent lanes and never block each other.
type RandomDelayPacer struct {
	lanes map[internal.Platform]*pacerLane
}

type pacerLane struct {
	mu     chan struct{} // buffered-1 semaphore so waiting is cancellable
	window internal.PacingWindow
	last   time.Time
}

// NewRandomDelayPacer creates a pacer with one lane per configured platform.
func NewRandomDelayPacer(windows map[internal.Platform]internal.PacingWindow) *RandomDelayPacer {
	lanes := make(map[internal.Platform]*pacerLane, len(windows))
	for p, w := range windows {
		lane := &pacerLane{mu: make(chan struct{}, 1), window: w}
		lane.mu <- struct{}{}
		lanes[p] = lane
	}
	return &RandomDelayPacer{lanes: lanes}
}

// Acquire blocks until the minimum inter-request delay for the platform has
// elapsed since the previous acquire, then records the new request time.
// Cancelling the context aborts the wait without touching the lane state.
func (p *RandomDelayPacer) Acquire(ctx context.Context, platform internal.Platform) error {
	lane, ok := p.lanes[platform]
	if !ok {
		return nil
	}

	// Take the lane.
	select {
	case <-lane.mu:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { lane.mu <- struct{}{} }()

	if lane.window.Min <= 0 && lane.window.Max <= 0 {
		lane.last = time.Now()
		return nil
	}

	if !lane.last.IsZero() && time.Since(lane.last) < lane.window.Min {
		delay := randomDelay(lane.window)
		internal.LogDebug("pacing %s for %s", platform, delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	lane.last = time.Now()
	return nil
}

// randomDelay draws uniformly from the [Min, Max] window.
func randomDelay(w internal.PacingWindow) time.Duration {
	if w.Max <= w.Min {
		return w.Min
	}
	return w.Min + time.Duration(rand.Int63n(int64(w.Max-w.Min)))
}
