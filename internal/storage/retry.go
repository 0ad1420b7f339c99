package storage

import (
	"context"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultBaseDelay  = 100 * time.Millisecond
	DefaultMultiplier = 1.2
)

// RetryPolicy bounds a background upload: at most Attempts put calls, with
// Delay(i) slept after the i-th failed attempt unless it was the last one.
type RetryPolicy struct {
	Attempts   int
	BaseDelay  time.Duration
	Multiplier float64
}

func DefaultRetryPolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		Attempts:   attempts,
		BaseDelay:  DefaultBaseDelay,
		Multiplier: DefaultMultiplier,
	}
}

// Delay returns BaseDelay * Multiplier^attempt. It depends on nothing but the
// attempt index.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt))
	if d >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// attemptBackOff feeds RetryPolicy delays to the backoff package, one per
// failed attempt, in attempt order.
type attemptBackOff struct {
	policy  RetryPolicy
	attempt int
}

func (b *attemptBackOff) NextBackOff() time.Duration {
	d := b.policy.Delay(b.attempt)
	b.attempt++
	return d
}

func (b *attemptBackOff) Reset() {
	b.attempt = 0
}

// backOff returns a fresh backoff for one upload. It allows Attempts-1 sleeps
// and stops early once ctx is done. Attempts must be at least one.
func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOffContext {
	return backoff.WithContext(
		backoff.WithMaxRetries(&attemptBackOff{policy: p}, uint64(p.Attempts-1)),
		ctx,
	)
}
