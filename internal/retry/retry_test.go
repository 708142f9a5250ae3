package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:   attempts,
		BaseDelay:     time.Millisecond,
		BackoffFactor: 2.0,
		MaxDelay:      10 * time.Millisecond,
	}
}

func TestDo(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds after two failures", func(t *testing.T) {
		calls := 0
		result, err := Do(ctx, fastPolicy(3), "flaky", func(ctx context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", errors.New("transient")
			}
			return "ok", nil
		})

		require.NoError(t, err)
		assert.Equal(t, "ok", result)
		assert.Equal(t, 3, calls)
	})

	t.Run("exhausts attempts and wraps the original error", func(t *testing.T) {
		cause := errors.New("connection refused")
		calls := 0
		_, err := Do(ctx, fastPolicy(3), "doomed", func(ctx context.Context) (int, error) {
			calls++
			return 0, cause
		})

		require.Error(t, err)
		assert.Equal(t, 3, calls)
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "after 3 attempts")
	})

	t.Run("non-retryable failure propagates immediately", func(t *testing.T) {
		cause := errors.New("bad request")
		p := fastPolicy(3)
		p.RetryIf = func(err error) bool { return false }

		calls := 0
		_, err := Do(ctx, p, "rejected", func(ctx context.Context) (int, error) {
			calls++
			return 0, cause
		})

		require.Error(t, err)
		assert.Equal(t, 1, calls)
		assert.Equal(t, cause, err)
	})

	t.Run("first success needs one call", func(t *testing.T) {
		calls := 0
		result, err := Do(ctx, fastPolicy(3), "stable", func(ctx context.Context) (int, error) {
			calls++
			return 42, nil
		})

		require.NoError(t, err)
		assert.Equal(t, 42, result)
		assert.Equal(t, 1, calls)
	})

	t.Run("zero max attempts still runs once", func(t *testing.T) {
		calls := 0
		_, err := Do(ctx, Policy{}, "degenerate", func(ctx context.Context) (int, error) {
			calls++
			return 0, errors.New("nope")
		})

		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("cancelled context stops backoff wait", func(t *testing.T) {
		p := Policy{
			MaxAttempts:   5,
			BaseDelay:     10 * time.Second,
			BackoffFactor: 2.0,
		}
		cctx, cancel := context.WithCancel(ctx)

		calls := 0
		start := time.Now()
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()
		_, err := Do(cctx, p, "cancelled", func(ctx context.Context) (int, error) {
			calls++
			return 0, errors.New("transient")
		})

		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
		assert.Less(t, time.Since(start), time.Second)
	})
}

func TestPolicy_delay(t *testing.T) {
	p := Policy{
		BaseDelay:     time.Second,
		BackoffFactor: 2.0,
		MaxDelay:      5 * time.Second,
	}

	assert.Equal(t, time.Second, p.delay(0))
	assert.Equal(t, 2*time.Second, p.delay(1))
	assert.Equal(t, 4*time.Second, p.delay(2))
	assert.Equal(t, 5*time.Second, p.delay(3), "delay is capped at MaxDelay")
	assert.Equal(t, 5*time.Second, p.delay(10))
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, time.Second, p.BaseDelay)
	assert.Equal(t, 2.0, p.BackoffFactor)
	assert.Equal(t, 60*time.Second, p.MaxDelay)
}
