package completion

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// JitterFactor bounds the random stretch applied to each backoff delay.
const JitterFactor = 0.2

// RetryPolicy decides whether a failed attempt is retried and how long to
// wait first. Ceilings maps each failure kind to the highest failure count
// (across the whole call) after which that kind is still retried; a kind
// missing from the map is not retried.
type RetryPolicy struct {
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	RateLimitMinDelay time.Duration
	Ceilings          map[Kind]int

	// Sleep waits for d or until ctx ends. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// Jitter returns a value in [0, 1). Defaults to math/rand.
	Jitter func() float64
}

// ShouldRetry reports whether the call may go on after its failures-th
// failure, which was of the given kind.
func (p RetryPolicy) ShouldRetry(kind Kind, failures int) bool {
	if kind == KindAuth || kind == KindCanceled {
		return false
	}
	ceiling, ok := p.Ceilings[kind]
	return ok && failures <= ceiling
}

// Delay is min(base * 2^(failures-1) * (1 + jitter), max). Rate limits wait
// at least RateLimitMinDelay and at least what the server asked for.
func (p RetryPolicy) Delay(failures int, kind Kind, retryAfter time.Duration) time.Duration {
	if failures < 1 {
		failures = 1
	}
	jitter := p.jitter() * JitterFactor
	d := float64(p.BaseDelay) * math.Pow(2, float64(failures-1)) * (1 + jitter)
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	delay := time.Duration(d)

	if kind == KindRateLimit {
		if delay < p.RateLimitMinDelay {
			delay = p.RateLimitMinDelay
		}
		if delay < retryAfter {
			delay = retryAfter
		}
	}
	return delay
}

func (p RetryPolicy) jitter() float64 {
	if p.Jitter != nil {
		return p.Jitter()
	}
	return rand.Float64()
}

func (p RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return Sleep(ctx, d)
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
