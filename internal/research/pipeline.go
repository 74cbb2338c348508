// Package research runs the keyword research pipeline: it derives seed
// phrases from a title and content, gathers suggestions and trend data,
// and merges them into a ranked, deduplicated keyword set.
package research

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/seovimalraj/locations/internal/content"
	"github.com/seovimalraj/locations/internal/keyword"
	"github.com/seovimalraj/locations/internal/ratelimit"
	"github.com/seovimalraj/locations/internal/trends"
	apperrors "github.com/seovimalraj/locations/pkg/errors"
	"github.com/seovimalraj/locations/pkg/logger"
	"github.com/seovimalraj/locations/pkg/metrics"
	"github.com/seovimalraj/locations/pkg/tracing"
)

const (
	maxSecondary = 10
	maxRelated   = 10

	DefaultMaxKeywords    = 100
	DefaultEnrichInterval = 250 * time.Millisecond
)

// SuggestionSource returns suggestion keywords for seeds, in seed order.
type SuggestionSource interface {
	BatchGetSuggestions(ctx context.Context, seeds []string) []keyword.Keyword
}

// TrendSource returns trend data for one phrase.
type TrendSource interface {
	GetTrendData(ctx context.Context, phrase string) (trends.Data, error)
}

// Result is the output of a research run.
type Result struct {
	ID                string            `json:"id,omitempty"`
	PrimaryKeyword    keyword.Keyword   `json:"primaryKeyword"`
	SecondaryKeywords []keyword.Keyword `json:"secondaryKeywords"`
	RelatedQueries    []keyword.Keyword `json:"relatedQueries"`
	Segments          []content.Segment `json:"segments"`
	Clusters          []keyword.Cluster `json:"clusters,omitempty"`
	GeneratedAt       time.Time         `json:"generatedAt"`
}

// Options configures a Pipeline.
type Options struct {
	// MaxKeywords caps how many suggestions are enriched.
	MaxKeywords int
	// Timeout bounds a whole run. Zero leaves only the caller's deadline.
	Timeout time.Duration
	// EnrichConcurrency above 1 enriches suggestions in parallel, paced
	// by EnrichInterval. Output order is unaffected.
	EnrichConcurrency int
	EnrichInterval    time.Duration
	Metrics           *metrics.Metrics
	Now               func() time.Time
	NewID             func() string
}

// Pipeline is safe for concurrent use; its sources are shared by all runs.
type Pipeline struct {
	suggestions SuggestionSource
	trends      TrendSource
	opts        Options
}

func New(suggestions SuggestionSource, trendSource TrendSource, opts Options) *Pipeline {
	if opts.MaxKeywords <= 0 {
		opts.MaxKeywords = DefaultMaxKeywords
	}
	if opts.EnrichConcurrency <= 0 {
		opts.EnrichConcurrency = 1
	}
	if opts.EnrichInterval <= 0 {
		opts.EnrichInterval = DefaultEnrichInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Pipeline{
		suggestions: suggestions,
		trends:      trendSource,
		opts:        opts,
	}
}

// Run executes one research request. Validation failures return a
// *ValidationError before any upstream call. Exceeding the deadline
// returns a timeout error rather than a partial result. A panic is
// reported as a system error.
func (p *Pipeline) Run(ctx context.Context, req Request) (run *Run, err error) {
	log := logger.FromContext(ctx).With("component", "research-pipeline")
	defer func() {
		if r := recover(); r != nil {
			log.Error("research pipeline panicked", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			run = nil
			err = apperrors.New(apperrors.ErrInternal, apperrors.SourceSystem, 500, "keyword research failed")
		}
	}()

	if err := Validate(req); err != nil {
		return nil, err
	}

	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}
	start := p.opts.Now()
	ctx, span := tracing.StartSpan(ctx, "research", logger.RequestID(ctx))
	defer func() {
		span.End(err)
		span.Log(log)
	}()

	segments := step(ctx, "segment", func() []content.Segment {
		return content.Route(content.SegmentContent(req.Title, req.Content))
	})
	seeds := step(ctx, "derive_seeds", func() []string {
		return append([]string{req.Title}, content.ExtractEntities(req.Content)...)
	})
	suggestions := step(ctx, "fetch_suggestions", func() []keyword.Keyword {
		return p.suggestions.BatchGetSuggestions(ctx, seeds)
	})
	if err := deadline(ctx); err != nil {
		return nil, err
	}
	if len(suggestions) > p.opts.MaxKeywords {
		log.Info("capping suggestions", "found", len(suggestions), "max", p.opts.MaxKeywords)
		suggestions = suggestions[:p.opts.MaxKeywords]
	}

	var degraded int
	merged := step(ctx, "enrich", func() []keyword.Keyword {
		var out []keyword.Keyword
		out, degraded = p.enrich(ctx, suggestions)
		return out
	})
	if err := deadline(ctx); err != nil {
		return nil, err
	}

	filtered := keyword.FilterAndDeduplicate(merged)
	primary := keyword.SelectPrimary(filtered)
	secondary := make([]keyword.Keyword, 0, maxSecondary)
	related := make([]keyword.Keyword, 0, maxRelated)
	for _, k := range filtered {
		if k.Phrase != primary.Phrase && len(secondary) < maxSecondary {
			secondary = append(secondary, k)
		}
		if k.Source == keyword.SourceTrend && len(related) < maxRelated {
			related = append(related, k)
		}
	}

	id := p.opts.NewID()
	result := &Result{
		ID:                id,
		PrimaryKeyword:    primary,
		SecondaryKeywords: secondary,
		RelatedQueries:    related,
		Segments:          segments,
		GeneratedAt:       p.opts.Now().UTC(),
	}
	if req.Cluster {
		result.Clusters = keyword.ClusterByIntent(filtered)
		log.Debug("clustered keywords", "clusters", len(result.Clusters))
	}

	elapsed := p.opts.Now().Sub(start)
	p.opts.Metrics.ObserveResearch(elapsed, len(filtered))
	log.Info("research complete",
		"run_id", id,
		"seeds", len(seeds),
		"suggestions", len(suggestions),
		"keywords", len(filtered),
		"degraded_trends", degraded,
		"duration", elapsed,
	)
	return &Run{
		ID:        id,
		Request:   req,
		Result:    result,
		CreatedAt: result.GeneratedAt,
		Stats: Stats{
			Seeds:          len(seeds),
			Suggestions:    len(suggestions),
			Keywords:       len(filtered),
			DegradedTrends: degraded,
			Duration:       elapsed,
		},
	}, nil
}

func step[T any](ctx context.Context, name string, fn func() T) T {
	_, span := tracing.StartChildSpan(ctx, name)
	defer span.End(nil)
	return fn()
}

func deadline(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	return apperrors.New(apperrors.ErrTimeout, apperrors.SourceSystem, 504, "keyword research timed out").
		WithDetails(map[string]string{"cause": ctx.Err().Error()})
}

// enrichment is the outcome of enriching one suggestion.
type enrichment struct {
	keyword  keyword.Keyword
	related  []keyword.Keyword
	degraded bool
}

// enrich classifies each suggestion and attaches its trend score, then
// lays out every suggestion followed by its related queries in suggestion
// order. It returns the merged list and the number of trend lookups that
// failed.
func (p *Pipeline) enrich(ctx context.Context, suggestions []keyword.Keyword) ([]keyword.Keyword, int) {
	results := make([]enrichment, len(suggestions))
	if p.opts.EnrichConcurrency <= 1 {
		for i, s := range suggestions {
			if ctx.Err() != nil {
				break
			}
			results[i] = p.enrichOne(ctx, s)
		}
	} else {
		pacer := ratelimit.NewInterval(p.opts.EnrichInterval)
		var g errgroup.Group
		g.SetLimit(p.opts.EnrichConcurrency)
		for i, s := range suggestions {
			g.Go(func() error {
				if err := pacer.Acquire(ctx); err != nil {
					return nil
				}
				results[i] = p.enrichOne(ctx, s)
				return nil
			})
		}
		g.Wait()
	}

	var merged []keyword.Keyword
	degraded := 0
	for _, r := range results {
		if r.keyword.Phrase == "" && r.keyword.Source == "" {
			continue
		}
		if r.degraded {
			degraded++
		}
		merged = append(merged, r.keyword)
		merged = append(merged, r.related...)
	}
	return merged, degraded
}

// enrichOne never fails: a trend lookup error is logged and replaced by a
// zero score with no related queries.
func (p *Pipeline) enrichOne(ctx context.Context, s keyword.Keyword) enrichment {
	s.Intent = keyword.Classify(s.Phrase)
	data, err := p.trends.GetTrendData(ctx, s.Phrase)
	if err != nil {
		p.opts.Metrics.Degraded(string(apperrors.SourceTrends))
		logger.FromContext(ctx).Warn("trend enrichment failed, using zero score",
			"component", "research-pipeline",
			"phrase", s.Phrase,
			"error", err,
		)
		s.TrendScore = keyword.Score(0)
		return enrichment{keyword: s, degraded: true}
	}
	s.TrendScore = keyword.Score(data.TrendScore)
	return enrichment{keyword: s, related: data.Related}
}
