// Package backoff retries operations with capped exponential delays. The
// orchestrator uses it for unreachable-backend retries and for waiting out
// capacity shortages on tiers that request it.
package backoff

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/EscaladeProject/escalade/pkg/clock"
)

// Policy configures retry behavior.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Zero means retry until the context is cancelled.
	MaxAttempts int

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the delay between retries.
	MaxDelay time.Duration

	// Multiplier grows the delay after each retry.
	Multiplier float64

	// Jitter randomizes delays by +/- the given fraction.
	Jitter float64

	// Retryable decides whether an error is worth another attempt.
	// If nil, every non-nil error is retried.
	Retryable func(error) bool

	// Clock drives the delays. Nil means real time.
	Clock clock.Clock
}

// Infrastructure returns the policy used when a provisioning or execution
// backend is unreachable: a few quick attempts, then give up and let the
// escalator treat the tier as failed.
func Infrastructure() Policy {
	return Policy{
		MaxAttempts:  4,
		InitialDelay: 2 * time.Second,
		MaxDelay:     20 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.2,
	}
}

// Capacity returns the policy used while waiting for instance capacity on a
// tier with retryUntilCapacity set. Unbounded attempts; the caller bounds the
// wait with a context deadline.
func Capacity() Policy {
	return Policy{
		MaxAttempts:  0,
		InitialDelay: 10 * time.Second,
		MaxDelay:     2 * time.Minute,
		Multiplier:   1.5,
		Jitter:       0.1,
	}
}

// Retry runs fn until it succeeds, the policy is exhausted, or ctx is done.
// The last error is returned; context errors are joined with it so callers
// can distinguish cancellation from plain failure.
func Retry(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	if p.InitialDelay == 0 {
		p.InitialDelay = time.Second
	}
	if p.MaxDelay == 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.Multiplier == 0 {
		p.Multiplier = 2.0
	}

	clk := p.Clock
	if clk == nil {
		clk = clock.Real()
	}

	var lastErr error
	delay := p.InitialDelay

	for attempt := 1; p.MaxAttempts == 0 || attempt <= p.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			if lastErr != nil {
				return errors.Join(ctx.Err(), lastErr)
			}
			return ctx.Err()
		default:
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}

		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			break
		}

		wait := delay
		if p.Jitter > 0 {
			spread := float64(delay) * p.Jitter
			wait = delay + time.Duration(rand.Float64()*2*spread-spread)
		}

		select {
		case <-ctx.Done():
			return errors.Join(ctx.Err(), lastErr)
		case <-clk.After(wait):
		}

		delay = time.Duration(math.Min(float64(delay)*p.Multiplier, float64(p.MaxDelay)))
	}

	return lastErr
}

// RetryValue is Retry for functions that return a value.
func RetryValue[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := Retry(ctx, p, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	})
	return result, err
}
