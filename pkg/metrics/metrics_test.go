package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveTool("research_keywords", nil)
		m.CacheLookup("suggest", true)
		m.ObserveUpstream("trends", time.Second, errors.New("x"))
		m.Retry("suggest")
		m.Degraded("google-trends")
		m.RateLimited("inbound")
		m.BreakerState("trends", 1)
		m.ObserveResearch(time.Second, 3)
	})
}

func TestRecording(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveTool("research_keywords", nil)
	m.ObserveTool("research_keywords", errors.New("boom"))
	m.CacheLookup("suggest", false)
	m.Degraded("google-trends")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolInvocationsTotal.WithLabelValues("research_keywords", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolInvocationsTotal.WithLabelValues("research_keywords", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookupsTotal.WithLabelValues("suggest", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DegradationsTotal.WithLabelValues("google-trends")))

	assert.NotPanics(t, func() { New(prometheus.NewRegistry()) })

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "keyword_research_tool_invocations_total")
}
