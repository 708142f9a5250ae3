// Package retry provides bounded retries with exponential backoff.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// Policy configures retry behavior for an operation.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// BackoffFactor multiplies the delay after each failed attempt.
	BackoffFactor float64

	// MaxDelay caps the delay between attempts. Zero means no cap.
	MaxDelay time.Duration

	// RetryIf classifies failures. Only failures for which it returns
	// true are retried; others propagate immediately. Nil retries all.
	RetryIf func(error) bool
}

// DefaultPolicy returns the standard policy: 3 attempts, 1s base delay,
// doubling up to 60s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:   3,
		BaseDelay:     time.Second,
		BackoffFactor: 2.0,
		MaxDelay:      60 * time.Second,
	}
}

// delay computes the backoff before the retry following the given
// zero-based failed attempt.
func (p Policy) delay(attempt int) time.Duration {
	d := time.Duration(float64(p.BaseDelay) * math.Pow(p.BackoffFactor, float64(attempt)))
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if d < 0 {
		d = p.MaxDelay
	}
	return d
}

// Do executes op until it succeeds, fails in a non-retryable way, or
// exhausts the policy's attempts. Intermediate failures are logged and
// swallowed; the final failure is returned wrapping the original error.
func Do[T any](ctx context.Context, p Policy, name string, op func(context.Context) (T, error)) (T, error) {
	var zero T

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		out, err := op(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if p.RetryIf != nil && !p.RetryIf(err) {
			return zero, err
		}
		if attempt == attempts-1 {
			break
		}

		d := p.delay(attempt)
		slog.Warn("operation failed, retrying",
			"op", name,
			"attempt", attempt+1,
			"max_attempts", attempts,
			"delay", d,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(d):
		}
	}

	return zero, fmt.Errorf("%s failed after %d attempts: %w", name, attempts, lastErr)
}
