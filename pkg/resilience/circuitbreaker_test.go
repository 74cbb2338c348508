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

func TestCircuitBreakerTripsAndRecovers(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker("trends", CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
		OnStateChange: func(_ string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})
	now := time.Unix(1_700_000_000, 0)
	cb.now = func() time.Time { return now }

	fail := errors.New("upstream down")
	assert.ErrorIs(t, cb.Execute(func() error { return fail }), fail)
	assert.ErrorIs(t, cb.Execute(func() error { return fail }), fail)
	assert.Equal(t, StateOpen, cb.GetState())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	now = now.Add(time.Minute)
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.GetState())
	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestCircuitBreakerIgnoresContextErrors(t *testing.T) {
	cb := NewCircuitBreaker("trends", CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute})
	now := time.Unix(1_700_000_000, 0)
	cb.now = func() time.Time { return now }

	for range 5 {
		assert.ErrorIs(t, cb.Execute(func() error { return context.Canceled }), context.Canceled)
		err := cb.Execute(func() error { return fmt.Errorf("interest: %w", context.DeadlineExceeded) })
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	}
	assert.Equal(t, StateClosed, cb.GetState())

	fail := errors.New("upstream down")
	cb.Execute(func() error { return fail })
	cb.Execute(func() error { return fail })
	require.Equal(t, StateOpen, cb.GetState())

	now = now.Add(time.Minute)
	assert.ErrorIs(t, cb.Execute(func() error { return context.Canceled }), context.Canceled)
	assert.Equal(t, StateHalfOpen, cb.GetState())
	require.NoError(t, cb.Execute(func() error { return nil }), "a cancelled trial frees the half-open slot")
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCallReturnsValue(t *testing.T) {
	cb := NewCircuitBreaker("call", CircuitBreakerConfig{})
	v, err := Call(cb, func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = Call[int](nil, func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestWithTimeout(t *testing.T) {
	v, err := WithTimeout(context.Background(), time.Second, "fast", func(context.Context) (string, error) {
		return "done", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "done", v)

	_, err = WithTimeout(context.Background(), 10*time.Millisecond, "slow", func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
