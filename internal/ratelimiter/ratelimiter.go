// Package ratelimiter throttles background work with a token bucket.
//
// The name server uses it to bound how fast maintenance tasks (orphaned
// segment collection) write to the storage engine, so they do not compete
// with foreground namespace operations.
package ratelimiter

import (
	"context"
	"math"

	"golang.org/x/time/rate"
)

// Limiter admits at most perSecond operations per second on average, with
// bursts of up to burst operations.
//
// Thread Safety: Safe for concurrent use.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a limiter. A zero perSecond means unlimited. A zero burst
// defaults to perSecond.
func New(perSecond, burst uint) *Limiter {
	return &Limiter{limiter: rate.NewLimiter(limit(perSecond), burstFor(perSecond, burst))}
}

func limit(perSecond uint) rate.Limit {
	if perSecond == 0 {
		return rate.Inf
	}
	return rate.Limit(perSecond)
}

func burstFor(perSecond, burst uint) int {
	if burst == 0 {
		burst = perSecond
	}
	if burst == 0 || burst > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(burst)
}

// Unlimited reports whether the limiter admits everything.
func (l *Limiter) Unlimited() bool {
	return l.limiter.Limit() == rate.Inf
}

// Allow takes one token if available without blocking.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// Wait blocks until one token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// SetLimit changes the rate and resets the burst to one second's worth.
// Zero means unlimited.
func (l *Limiter) SetLimit(perSecond uint) {
	l.limiter.SetLimit(limit(perSecond))
	l.limiter.SetBurst(burstFor(perSecond, 0))
}
