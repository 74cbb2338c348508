// Package metrics defines the Prometheus collectors used by the keyword
// research service and exposes an HTTP handler for scraping.
//
// All recording methods are safe to call on a nil *Metrics so that
// components can be built without instrumentation in tests and CLIs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "keyword_research"

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	ToolInvocationsTotal *prometheus.CounterVec
	ResearchDuration     prometheus.Histogram
	KeywordsReturned     prometheus.Histogram
	CacheLookupsTotal    *prometheus.CounterVec
	UpstreamRequests     *prometheus.CounterVec
	UpstreamLatency      *prometheus.HistogramVec
	RetriesTotal         *prometheus.CounterVec
	DegradationsTotal    *prometheus.CounterVec
	RateLimitedTotal     *prometheus.CounterVec
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates all collectors and registers them with reg. A nil reg uses a
// fresh private registry, which keeps repeated construction in tests from
// colliding on the global one.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		ToolInvocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_invocations_total",
				Help:      "Tool invocations by tool name and outcome (ok, error).",
			},
			[]string{"tool", "outcome"},
		),
		ResearchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pipeline_duration_seconds",
				Help:      "End-to-end research pipeline latency in seconds.",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		KeywordsReturned: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "keywords_returned",
				Help:      "Deduplicated keywords produced per research request.",
				Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		CacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Cache lookups by cache name and result (hit, miss).",
			},
			[]string{"cache", "result"},
		),
		UpstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_requests_total",
				Help:      "Outbound requests by upstream and outcome (ok, error).",
			},
			[]string{"upstream", "outcome"},
		),
		UpstreamLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_latency_seconds",
				Help:      "Outbound request latency in seconds.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
			},
			[]string{"upstream"},
		),
		RetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retries_total",
				Help:      "Retry waits by operation.",
			},
			[]string{"operation"},
		),
		DegradationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "degradations_total",
				Help:      "Upstream failures absorbed as empty or zero results, by source.",
			},
			[]string{"source"},
		),
		RateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_total",
				Help:      "Requests rejected or delayed by a rate limiter, by scope.",
			},
			[]string{"scope"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.ToolInvocationsTotal,
		m.ResearchDuration,
		m.KeywordsReturned,
		m.CacheLookupsTotal,
		m.UpstreamRequests,
		m.UpstreamLatency,
		m.RetriesTotal,
		m.DegradationsTotal,
		m.RateLimitedTotal,
		m.CircuitBreakerState,
	)

	return m
}

func (m *Metrics) ObserveTool(tool string, err error) {
	if m == nil {
		return
	}
	m.ToolInvocationsTotal.WithLabelValues(tool, outcome(err)).Inc()
}

func (m *Metrics) ObserveResearch(d time.Duration, keywords int) {
	if m == nil {
		return
	}
	m.ResearchDuration.Observe(d.Seconds())
	m.KeywordsReturned.Observe(float64(keywords))
}

func (m *Metrics) CacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookupsTotal.WithLabelValues(cache, result).Inc()
}

func (m *Metrics) ObserveUpstream(upstream string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.UpstreamRequests.WithLabelValues(upstream, outcome(err)).Inc()
	m.UpstreamLatency.WithLabelValues(upstream).Observe(d.Seconds())
}

func (m *Metrics) Retry(operation string) {
	if m == nil {
		return
	}
	m.RetriesTotal.WithLabelValues(operation).Inc()
}

func (m *Metrics) Degraded(source string) {
	if m == nil {
		return
	}
	m.DegradationsTotal.WithLabelValues(source).Inc()
}

func (m *Metrics) RateLimited(scope string) {
	if m == nil {
		return
	}
	m.RateLimitedTotal.WithLabelValues(scope).Inc()
}

// BreakerState records a circuit breaker state using the numeric encoding
// of resilience.State.
func (m *Metrics) BreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Handler returns the scrape handler for the given gatherer, or the default
// gatherer when g is nil.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
