// Package trends enriches phrases with an interest-over-time score and
// related queries from the trends upstream.
package trends

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/seovimalraj/locations/internal/cache"
	"github.com/seovimalraj/locations/internal/keyword"
	apperrors "github.com/seovimalraj/locations/pkg/errors"
	"github.com/seovimalraj/locations/pkg/metrics"
	"github.com/seovimalraj/locations/pkg/resilience"
)

// DefaultCacheTTL is how long trend data is served from cache.
const DefaultCacheTTL = time.Hour

// Data is the trend enrichment for one phrase.
type Data struct {
	TrendScore float64           `json:"trendScore"`
	Related    []keyword.Keyword `json:"related"`
}

// Options configures a Client.
type Options struct {
	CacheTTL time.Duration
	// Breaker, when set, guards the interest-over-time call.
	Breaker *resilience.CircuitBreaker
	// LoadTimeout bounds one upstream load shared by concurrent callers.
	LoadTimeout time.Duration
	Remote      cache.Store
	Metrics     *metrics.Metrics
}

// Client is safe for concurrent use.
type Client struct {
	upstream Upstream
	cache    *cache.Tiered[Data]
	breaker  *resilience.CircuitBreaker
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func New(upstream Upstream, opts Options) *Client {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	var remote *cache.Remote[Data]
	if opts.Remote != nil {
		remote = cache.NewRemote[Data](opts.Remote, "trends")
	}
	tiered := cache.NewTiered("trends", cache.NewExpiring[Data](opts.CacheTTL), remote, opts.Metrics)
	return &Client{
		upstream: upstream,
		cache:    tiered.WithLoadTimeout(opts.LoadTimeout),
		breaker:  opts.Breaker,
		metrics:  opts.Metrics,
		logger:   slog.Default().With("component", "trends-client"),
	}
}

// GetTrendData returns the latest interest score and related queries for
// phrase. A failed interest lookup is returned as an error; a failed
// related-queries lookup yields an empty Related list.
func (c *Client) GetTrendData(ctx context.Context, phrase string) (Data, error) {
	d, _, err := c.cache.GetOrLoad(ctx, phrase, func(ctx context.Context) (Data, error) {
		return c.load(ctx, phrase)
	})
	if err != nil {
		return Data{}, err
	}
	d.Related = slices.Clone(d.Related)
	return d, nil
}

func (c *Client) load(ctx context.Context, phrase string) (Data, error) {
	start := time.Now()
	timeline, err := resilience.Call(c.breaker, func() ([]TimelinePoint, error) {
		return c.upstream.InterestOverTime(ctx, phrase)
	})
	c.metrics.ObserveUpstream("trends_interest", time.Since(start), err)
	if err != nil {
		c.logger.Error("trend fetch failed", "phrase", phrase, "error", err)
		return Data{}, apperrors.Newf(apperrors.ErrUpstream, apperrors.SourceTrends, 0,
			"interest over time for %q: %v", phrase, err)
	}

	start = time.Now()
	related, err := c.upstream.RelatedQueries(ctx, phrase)
	c.metrics.ObserveUpstream("trends_related", time.Since(start), err)
	if err != nil {
		c.metrics.Degraded("related-queries")
		c.logger.Warn("related queries failed", "phrase", phrase, "error", err)
		related = nil
	}

	d := Data{TrendScore: latestScore(timeline), Related: make([]keyword.Keyword, 0, len(related))}
	for _, r := range related {
		d.Related = append(d.Related, keyword.Keyword{
			Phrase:     r.Query,
			TrendScore: keyword.Score(r.Value),
			Source:     keyword.SourceTrend,
		})
	}
	return d, nil
}

// latestScore is the first value of the most recent timeline point, or 0.
func latestScore(timeline []TimelinePoint) float64 {
	if len(timeline) == 0 {
		return 0
	}
	last := timeline[len(timeline)-1]
	if len(last.Value) == 0 {
		return 0
	}
	return last.Value[0]
}
