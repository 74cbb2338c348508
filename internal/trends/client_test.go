package trends

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seovimalraj/locations/internal/keyword"
	apperrors "github.com/seovimalraj/locations/pkg/errors"
	"github.com/seovimalraj/locations/pkg/resilience"
)

type stubUpstream struct {
	mu            sync.Mutex
	interestCalls int
	timeline      []TimelinePoint
	interestErr   error
	related       []RelatedQuery
	relatedErr    error
	delay         time.Duration
}

func (s *stubUpstream) InterestOverTime(ctx context.Context, _ string) ([]TimelinePoint, error) {
	s.mu.Lock()
	s.interestCalls++
	s.mu.Unlock()
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.timeline, s.interestErr
}

func (s *stubUpstream) RelatedQueries(context.Context, string) ([]RelatedQuery, error) {
	return s.related, s.relatedErr
}

func TestGetTrendDataUsesLatestPoint(t *testing.T) {
	up := &stubUpstream{
		timeline: []TimelinePoint{{Value: []float64{10}}, {Value: []float64{64, 3}}},
		related:  []RelatedQuery{{Query: "emergency plumber", Value: 100}},
	}
	c := New(up, Options{})

	d, err := c.GetTrendData(context.Background(), "plumber")
	require.NoError(t, err)
	assert.Equal(t, 64.0, d.TrendScore)
	require.Len(t, d.Related, 1)
	assert.Equal(t, keyword.Keyword{Phrase: "emergency plumber", TrendScore: keyword.Score(100), Source: keyword.SourceTrend}, d.Related[0])

	_, err = c.GetTrendData(context.Background(), "plumber")
	require.NoError(t, err)
	assert.Equal(t, 1, up.interestCalls, "second lookup is cached")
}

func TestGetTrendDataEmptyTimeline(t *testing.T) {
	d, err := New(&stubUpstream{}, Options{}).GetTrendData(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 0.0, d.TrendScore)
	assert.Empty(t, d.Related)
}

func TestGetTrendDataInterestFailurePropagates(t *testing.T) {
	up := &stubUpstream{interestErr: errors.New("429")}
	_, err := New(up, Options{}).GetTrendData(context.Background(), "x")
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.SourceTrends, appErr.Source)
}

func TestGetTrendDataRelatedFailureDegrades(t *testing.T) {
	up := &stubUpstream{
		timeline:   []TimelinePoint{{Value: []float64{5}}},
		relatedErr: errors.New("boom"),
	}
	d, err := New(up, Options{}).GetTrendData(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 5.0, d.TrendScore)
	assert.NotNil(t, d.Related)
	assert.Empty(t, d.Related)
}

func TestGetTrendDataBreakerOpens(t *testing.T) {
	up := &stubUpstream{interestErr: errors.New("down")}
	cb := resilience.NewCircuitBreaker("trends", resilience.CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour})
	c := New(up, Options{Breaker: cb})

	_, err := c.GetTrendData(context.Background(), "a")
	require.Error(t, err)
	_, err = c.GetTrendData(context.Background(), "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker is open")
	assert.Equal(t, 1, up.interestCalls)
}

func TestGetTrendDataCallerDeadlineDoesNotFailSharedLoad(t *testing.T) {
	up := &stubUpstream{timeline: []TimelinePoint{{Value: []float64{42}}}, delay: 100 * time.Millisecond}
	breaker := resilience.NewCircuitBreaker("trends", resilience.CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour})
	c := New(up, Options{Breaker: breaker})

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.GetTrendData(short, "plumber")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	d, err := c.GetTrendData(context.Background(), "plumber")
	require.NoError(t, err)
	assert.Equal(t, 42.0, d.TrendScore)
	assert.Equal(t, 1, up.interestCalls, "second caller joins the load the first one started")
	assert.Equal(t, resilience.StateClosed, breaker.GetState())
}

func TestGetTrendDataLoadTimeoutDoesNotTripBreaker(t *testing.T) {
	up := &stubUpstream{delay: time.Second}
	breaker := resilience.NewCircuitBreaker("trends", resilience.CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour})
	c := New(up, Options{Breaker: breaker, LoadTimeout: 20 * time.Millisecond})

	_, err := c.GetTrendData(context.Background(), "plumber")
	require.Error(t, err)
	assert.Equal(t, resilience.StateClosed, breaker.GetState())
}
