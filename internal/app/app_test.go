package app

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seovimalraj/locations/internal/analytics"
	"github.com/seovimalraj/locations/internal/research"
	"github.com/seovimalraj/locations/internal/server"
	"github.com/seovimalraj/locations/pkg/config"
	apperrors "github.com/seovimalraj/locations/pkg/errors"
	"github.com/seovimalraj/locations/pkg/metrics"
)

func TestNewWiresTools(t *testing.T) {
	cfg := config.Default()
	agg := analytics.NewAggregator()
	a, err := New(cfg, Options{
		Metrics:  metrics.New(nil),
		Store:    research.NewMemoryStore(time.Hour),
		Recorder: agg,
	})
	require.NoError(t, err)
	require.NotNil(t, a.TrendsBreaker)

	// Validation fails before any upstream is contacted.
	_, err = a.Tools.Invoke(context.Background(), server.ToolResearch, json.RawMessage(`{"title":"ab"}`))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, int64(1), agg.Stats().ToolErrors[server.ToolResearch])

	out, err := a.Tools.Invoke(context.Background(), server.ToolGenerate, json.RawMessage(`{
		"structure": {"title": "T", "sections": [{"heading": "H"}]},
		"primaryKeyword": {"phrase": "p"}
	}`))
	require.NoError(t, err)
	assert.NotNil(t, out)
}

func TestNewRejectsBadProxy(t *testing.T) {
	cfg := config.Default()
	cfg.Trends.Proxy = "://bad"
	_, err := New(cfg, Options{})
	assert.Error(t, err)
}

func TestNewWithoutBreaker(t *testing.T) {
	cfg := config.Default()
	cfg.Trends.BreakerThreshold = 0
	a, err := New(cfg, Options{})
	require.NoError(t, err)
	assert.Nil(t, a.TrendsBreaker)
}
