// Package ratelimit holds the outbound Interval limiter that spaces calls to
// one upstream, and the keyed token bucket that guards the inbound API.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Interval enforces a minimum spacing between successive acquisitions.
// Each client owns one Interval per upstream. Concurrent callers are
// served in reservation order.
type Interval struct {
	limiter     *rate.Limiter
	minInterval time.Duration
}

// NewInterval returns a limiter allowing one call per minInterval. A
// non-positive minInterval never blocks.
func NewInterval(minInterval time.Duration) *Interval {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &Interval{
		limiter:     rate.NewLimiter(limit, 1),
		minInterval: minInterval,
	}
}

// Acquire blocks until at least minInterval has passed since the previous
// acquisition began, or ctx is done.
func (i *Interval) Acquire(ctx context.Context) error {
	if err := i.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}
	return nil
}

// MinInterval returns the configured spacing.
func (i *Interval) MinInterval() time.Duration {
	return i.minInterval
}
