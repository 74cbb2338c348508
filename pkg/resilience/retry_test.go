package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryFixedDelaysExhausted(t *testing.T) {
	var calls int
	var waits []time.Duration
	cfg := FixedDelays(500*time.Millisecond, time.Second)
	cfg.OnRetry = func(_ int, delay time.Duration, _ error) { waits = append(waits, delay) }

	start := time.Now()
	err := Retry(context.Background(), "always-fails", cfg, func() error {
		calls++
		return fmt.Errorf("attempt %d failed", calls)
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Contains(t, err.Error(), "attempt 2 failed")
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, waits, "the final delay is never waited on")
	assert.GreaterOrEqual(t, time.Since(start), 500*time.Millisecond)
}

func TestRetryWrapsLastError(t *testing.T) {
	sentinel := errors.New("second failure")
	calls := 0
	err := Retry(context.Background(), "op", FixedDelays(time.Millisecond, time.Millisecond), func() error {
		calls++
		if calls == 1 {
			return errors.New("first failure")
		}
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
}

func TestRetryStopsOnSuccess(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "flaky", FixedDelays(time.Millisecond, time.Millisecond, time.Millisecond), func() error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetrySuccessFirstTryNeverWaits(t *testing.T) {
	retried := false
	cfg := FixedDelays(time.Hour)
	cfg.OnRetry = func(int, time.Duration, error) { retried = true }
	err := Retry(context.Background(), "ok", cfg, func() error { return nil })
	require.NoError(t, err)
	assert.False(t, retried)
}

func TestRetryAbortsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	calls := 0
	err := Retry(ctx, "slow", FixedDelays(time.Hour, time.Hour), func() error {
		calls++
		return errors.New("nope")
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls)
}

func TestRetryExponentialDefaults(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "exp", RetryConfig{InitialDelay: time.Millisecond}, func() error {
		calls++
		return errors.New("fail")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}
