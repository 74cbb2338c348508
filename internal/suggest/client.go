// Package suggest fetches candidate keywords for seed phrases from the
// autocomplete upstream, behind a cache, a rate limiter and a bounded
// retry.
package suggest

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/seovimalraj/locations/internal/cache"
	"github.com/seovimalraj/locations/internal/keyword"
	"github.com/seovimalraj/locations/internal/ratelimit"
	apperrors "github.com/seovimalraj/locations/pkg/errors"
	"github.com/seovimalraj/locations/pkg/metrics"
	"github.com/seovimalraj/locations/pkg/resilience"
)

// Options configures a Client. Zero values take the defaults below.
type Options struct {
	CacheTTL    time.Duration
	MinInterval time.Duration
	RetryDelays []time.Duration
	// LoadTimeout bounds one upstream load shared by concurrent callers.
	LoadTimeout time.Duration
	// Remote, when set, adds a shared second cache tier.
	Remote  cache.Store
	Metrics *metrics.Metrics
}

const (
	DefaultCacheTTL    = 24 * time.Hour
	DefaultMinInterval = 250 * time.Millisecond
)

// DefaultRetryDelays is the wait schedule between suggestion attempts.
var DefaultRetryDelays = []time.Duration{500 * time.Millisecond, time.Second}

// Client is safe for concurrent use and meant to be shared across requests.
type Client struct {
	upstream Upstream
	cache    *cache.Tiered[[]keyword.Keyword]
	limiter  *ratelimit.Interval
	retry    resilience.RetryConfig
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func New(upstream Upstream, opts Options) *Client {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.MinInterval <= 0 {
		opts.MinInterval = DefaultMinInterval
	}
	if len(opts.RetryDelays) == 0 {
		opts.RetryDelays = DefaultRetryDelays
	}
	var remote *cache.Remote[[]keyword.Keyword]
	if opts.Remote != nil {
		remote = cache.NewRemote[[]keyword.Keyword](opts.Remote, "suggest")
	}
	tiered := cache.NewTiered("suggest", cache.NewExpiring[[]keyword.Keyword](opts.CacheTTL), remote, opts.Metrics)
	c := &Client{
		upstream: upstream,
		cache:    tiered.WithLoadTimeout(opts.LoadTimeout),
		limiter:  ratelimit.NewInterval(opts.MinInterval),
		metrics:  opts.Metrics,
		logger:   slog.Default().With("component", "suggest-client"),
	}
	c.retry = resilience.FixedDelays(opts.RetryDelays...)
	c.retry.OnRetry = func(int, time.Duration, error) { c.metrics.Retry("suggest") }
	return c
}

// GetSuggestions returns suggestion-source keywords for seed. Failures,
// including exhausted retries, are logged and yield an empty list.
func (c *Client) GetSuggestions(ctx context.Context, seed string) []keyword.Keyword {
	kws, hit, err := c.cache.GetOrLoad(ctx, seed, func(ctx context.Context) ([]keyword.Keyword, error) {
		return c.fetch(ctx, seed)
	})
	if err != nil && ctx.Err() != nil {
		c.logger.Debug("stopped waiting for suggestions", "seed", seed, "error", ctx.Err())
		return []keyword.Keyword{}
	}
	if err != nil {
		c.metrics.Degraded(string(apperrors.SourceKeywords))
		c.logger.Error("failed to get suggestions", "seed", seed, "error", err)
		return []keyword.Keyword{}
	}
	c.logger.Debug("suggestions", "seed", seed, "count", len(kws), "cache_hit", hit)
	return slices.Clone(kws)
}

// BatchGetSuggestions fetches seeds one after another and concatenates the
// results in seed order. It stops early once ctx is done.
func (c *Client) BatchGetSuggestions(ctx context.Context, seeds []string) []keyword.Keyword {
	var all []keyword.Keyword
	for _, seed := range seeds {
		if ctx.Err() != nil {
			break
		}
		all = append(all, c.GetSuggestions(ctx, seed)...)
	}
	return all
}

func (c *Client) fetch(ctx context.Context, seed string) ([]keyword.Keyword, error) {
	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	var phrases []string
	err := resilience.Retry(ctx, "suggest", c.retry, func() error {
		start := time.Now()
		var err error
		phrases, err = c.upstream.Suggest(ctx, seed)
		c.metrics.ObserveUpstream("suggest", time.Since(start), err)
		return err
	})
	if err != nil {
		return nil, err
	}
	return keyword.FromPhrases(phrases, keyword.SourceSuggestion), nil
}
