// Package app builds the long-lived research components from configuration.
// Suggestion, trend and WordPress clients are constructed once and shared
// by every request, so their caches and rate limiters span the process.
package app

import (
	"fmt"
	"net/http"

	"github.com/seovimalraj/locations/internal/analytics"
	"github.com/seovimalraj/locations/internal/cache"
	"github.com/seovimalraj/locations/internal/generator"
	"github.com/seovimalraj/locations/internal/research"
	"github.com/seovimalraj/locations/internal/server"
	"github.com/seovimalraj/locations/internal/suggest"
	"github.com/seovimalraj/locations/internal/trends"
	"github.com/seovimalraj/locations/internal/wordpress"
	"github.com/seovimalraj/locations/pkg/config"
	"github.com/seovimalraj/locations/pkg/metrics"
	"github.com/seovimalraj/locations/pkg/resilience"
)

// Options are the optional collaborators supplied by the binary.
type Options struct {
	Metrics  *metrics.Metrics
	Remote   cache.Store
	Store    research.Store
	Recorder analytics.Recorder
}

type App struct {
	Tools         *server.Tools
	Service       *research.Service
	TrendsBreaker *resilience.CircuitBreaker
}

func New(cfg *config.Config, opts Options) (*App, error) {
	m := opts.Metrics

	suggestions := suggest.New(
		suggest.NewHTTPUpstream(cfg.Suggest.BaseURL, &http.Client{}, cfg.Suggest.Timeout),
		suggest.Options{
			CacheTTL:    cfg.Suggest.CacheTTL,
			MinInterval: cfg.Suggest.MinInterval,
			RetryDelays: cfg.Suggest.RetryDelays,
			LoadTimeout: cfg.Research.Timeout,
			Remote:      opts.Remote,
			Metrics:     m,
		},
	)

	trendsUpstream, err := trends.NewHTTPUpstream(trends.HTTPConfig{
		BaseURL:  cfg.Trends.BaseURL,
		Proxy:    cfg.Trends.Proxy,
		Language: cfg.Trends.Language,
		Window:   cfg.Trends.Window,
		Timeout:  cfg.Trends.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("creating trends upstream: %w", err)
	}
	var breaker *resilience.CircuitBreaker
	if cfg.Trends.BreakerThreshold > 0 {
		breaker = resilience.NewCircuitBreaker("trends", resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.Trends.BreakerThreshold,
			ResetTimeout:     cfg.Trends.BreakerReset,
			OnStateChange: func(name string, _, to resilience.State) {
				m.BreakerState(name, int(to))
			},
		})
	}
	// Shared loads outlive the request that started them, but never a
	// whole research run.
	trendSource := trends.New(trendsUpstream, trends.Options{
		CacheTTL:    cfg.Trends.CacheTTL,
		Breaker:     breaker,
		LoadTimeout: cfg.Research.Timeout,
		Remote:      opts.Remote,
		Metrics:     m,
	})

	pipeline := research.New(suggestions, trendSource, research.Options{
		MaxKeywords:       cfg.Research.MaxKeywords,
		Timeout:           cfg.Research.Timeout,
		EnrichConcurrency: cfg.Research.EnrichConcurrency,
		EnrichInterval:    cfg.Suggest.MinInterval,
		Metrics:           m,
	})
	var observers []research.Observer
	if opts.Recorder != nil {
		observers = append(observers, analytics.Observer(opts.Recorder))
	}
	service := research.NewService(pipeline, opts.Store, observers...)

	wp := wordpress.New(wordpress.Options{
		SiteURL:     cfg.WordPress.SiteURL,
		APIKey:      cfg.WordPress.APIKey,
		OAuthToken:  cfg.WordPress.OAuthToken,
		MaxPages:    cfg.WordPress.MaxPages,
		Timeout:     cfg.WordPress.Timeout,
		CacheTTL:    cfg.WordPress.CacheTTL,
		RetryDelays: cfg.WordPress.RetryDelays,
		Metrics:     m,
	})

	tools := server.NewTools(server.ToolDeps{
		Research:        service,
		WordPress:       wp,
		Generator:       generator.New(),
		DefaultSiteURL:  cfg.WordPress.SiteURL,
		DefaultMaxPages: cfg.WordPress.MaxPages,
		Metrics:         m,
		Recorder:        opts.Recorder,
	})

	return &App{Tools: tools, Service: service, TrendsBreaker: breaker}, nil
}
