package research

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seovimalraj/locations/internal/content"
	"github.com/seovimalraj/locations/internal/keyword"
	"github.com/seovimalraj/locations/internal/trends"
	apperrors "github.com/seovimalraj/locations/pkg/errors"
)

type fakeSuggestions struct {
	mu     sync.Mutex
	seeds  []string
	bySeed map[string][]string
	panics bool
}

func (f *fakeSuggestions) BatchGetSuggestions(_ context.Context, seeds []string) []keyword.Keyword {
	if f.panics {
		panic("suggestion backend exploded")
	}
	f.mu.Lock()
	f.seeds = append(f.seeds, seeds...)
	f.mu.Unlock()
	out := []keyword.Keyword{}
	for _, s := range seeds {
		out = append(out, keyword.FromPhrases(f.bySeed[s], keyword.SourceSuggestion)...)
	}
	return out
}

type fakeTrends struct {
	mu     sync.Mutex
	calls  []string
	data   map[string]trends.Data
	failOn map[string]bool
	block  bool
}

func (f *fakeTrends) GetTrendData(ctx context.Context, phrase string) (trends.Data, error) {
	f.mu.Lock()
	f.calls = append(f.calls, phrase)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return trends.Data{}, ctx.Err()
	}
	if f.failOn[phrase] {
		return trends.Data{}, apperrors.New(apperrors.ErrUpstream, apperrors.SourceTrends, 0, "trends unavailable")
	}
	if d, ok := f.data[phrase]; ok {
		return d, nil
	}
	return trends.Data{TrendScore: 10, Related: []keyword.Keyword{}}, nil
}

// The two sentences are separate paragraphs; segments split on newlines.
const (
	title = "Plumbing Services"
	body  = "We offer plumbing repair.\nCall us for a free quote."
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newFixture() (*fakeSuggestions, *fakeTrends) {
	sugg := &fakeSuggestions{bySeed: map[string][]string{
		title: {
			"plumbing services near me",
			"best plumber review",
			"what is plumbing",
			"Plumbing Services Near Me",
			"plumbing supplies",
		},
	}}
	tr := &fakeTrends{
		failOn: map[string]bool{"best plumber review": true},
		data: map[string]trends.Data{
			"plumbing services near me": {
				TrendScore: 80,
				Related:    keyword.FromPhrases([]string{"emergency plumber"}, keyword.SourceTrend),
			},
			"plumbing supplies": {
				TrendScore: 10,
				Related:    keyword.FromPhrases([]string{"Emergency Plumber", "pipe fitting"}, keyword.SourceTrend),
			},
		},
	}
	return sugg, tr
}

func testOptions() Options {
	return Options{
		Now:   func() time.Time { return fixedNow },
		NewID: func() string { return "run-1" },
	}
}

func phrases(kws []keyword.Keyword) []string {
	out := make([]string, 0, len(kws))
	for _, k := range kws {
		out = append(out, k.Phrase)
	}
	return out
}

func TestRunEndToEnd(t *testing.T) {
	sugg, tr := newFixture()
	p := New(sugg, tr, testOptions())

	run, err := p.Run(context.Background(), Request{Title: title, Content: body})
	require.NoError(t, err)
	res := run.Result

	assert.Equal(t, []string{title, "offer", "plumbing", "repair", "quote"}, sugg.seeds)
	assert.Equal(t, []content.Segment{
		{Title: "Plumbing Services - Segment 1", Body: "We offer plumbing repair."},
		{Title: "Plumbing Services - Segment 2", Body: "Call us for a free quote."},
	}, res.Segments)

	assert.Equal(t, "plumbing services near me", res.PrimaryKeyword.Phrase)
	assert.Equal(t, keyword.Transactional, res.PrimaryKeyword.Intent)
	assert.Equal(t, 80.0, res.PrimaryKeyword.Trend())

	assert.Equal(t, []string{
		"emergency plumber",
		"best plumber review",
		"what is plumbing",
		"plumbing supplies",
		"pipe fitting",
	}, phrases(res.SecondaryKeywords))
	assert.Equal(t, []string{"emergency plumber", "pipe fitting"}, phrases(res.RelatedQueries))
	assert.Nil(t, res.Clusters)
	assert.Equal(t, "run-1", res.ID)
	assert.Equal(t, fixedNow, res.GeneratedAt)

	assert.Equal(t, 1, run.Stats.DegradedTrends)
	assert.Equal(t, 5, run.Stats.Suggestions)
	assert.Equal(t, 6, run.Stats.Keywords)
}

func TestRunDegradesFailedTrendLookup(t *testing.T) {
	sugg, tr := newFixture()
	run, err := New(sugg, tr, testOptions()).Run(context.Background(), Request{Title: title, Content: body})
	require.NoError(t, err)

	var failed keyword.Keyword
	for _, k := range run.Result.SecondaryKeywords {
		if k.Phrase == "best plumber review" {
			failed = k
		}
	}
	require.NotNil(t, failed.TrendScore)
	assert.Equal(t, 0.0, *failed.TrendScore)
	assert.Equal(t, keyword.Commercial, failed.Intent)
	assert.Len(t, tr.calls, 5, "every suggestion is enriched even after a failure")
}

func TestRunConcurrentEnrichKeepsOrder(t *testing.T) {
	sugg, tr := newFixture()
	opts := testOptions()
	opts.EnrichConcurrency = 3
	opts.EnrichInterval = time.Millisecond

	run, err := New(sugg, tr, opts).Run(context.Background(), Request{Title: title, Content: body})
	require.NoError(t, err)

	seqSugg, seqTr := newFixture()
	seq, err := New(seqSugg, seqTr, testOptions()).Run(context.Background(), Request{Title: title, Content: body})
	require.NoError(t, err)
	assert.Equal(t, seq.Result, run.Result)
}

func TestRunClusters(t *testing.T) {
	sugg, tr := newFixture()
	run, err := New(sugg, tr, testOptions()).Run(context.Background(), Request{Title: title, Content: body, Cluster: true})
	require.NoError(t, err)

	var intents []keyword.Intent
	for _, c := range run.Result.Clusters {
		intents = append(intents, c.Intent)
	}
	assert.Equal(t, []keyword.Intent{
		keyword.Transactional,
		keyword.Informational,
		keyword.Commercial,
		keyword.Navigational,
	}, intents)
	assert.Equal(t, []string{"emergency plumber", "what is plumbing", "pipe fitting"}, phrases(run.Result.Clusters[1].Keywords))
}

func TestRunCapsEnrichedSuggestions(t *testing.T) {
	sugg, tr := newFixture()
	opts := testOptions()
	opts.MaxKeywords = 2
	_, err := New(sugg, tr, opts).Run(context.Background(), Request{Title: title, Content: body})
	require.NoError(t, err)
	assert.Equal(t, []string{"plumbing services near me", "best plumber review"}, tr.calls)
}

func TestRunWithoutSuggestions(t *testing.T) {
	sugg := &fakeSuggestions{}
	tr := &fakeTrends{}
	run, err := New(sugg, tr, testOptions()).Run(context.Background(), Request{Title: "Nothing here", Content: ""})
	require.NoError(t, err)

	assert.Equal(t, keyword.Placeholder(), run.Result.PrimaryKeyword)
	assert.NotNil(t, run.Result.SecondaryKeywords)
	assert.Empty(t, run.Result.SecondaryKeywords)
	assert.NotNil(t, run.Result.RelatedQueries)
	assert.Empty(t, run.Result.Segments)
	assert.Empty(t, tr.calls)
}

func TestRunRejectsInvalidRequest(t *testing.T) {
	sugg, tr := newFixture()
	_, err := New(sugg, tr, testOptions()).Run(context.Background(), Request{Title: "ab"})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "title")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, 400, apperrors.HTTPStatusCode(err))
	assert.Empty(t, sugg.seeds, "no upstream call before validation passes")
}

func TestRunTimesOut(t *testing.T) {
	sugg, tr := newFixture()
	tr.block = true
	opts := testOptions()
	opts.Timeout = 50 * time.Millisecond

	start := time.Now()
	run, err := New(sugg, tr, opts).Run(context.Background(), Request{Title: title, Content: body})
	require.Error(t, err)
	assert.Nil(t, run)
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
	assert.Equal(t, 504, apperrors.HTTPStatusCode(err))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRunRecoversPanic(t *testing.T) {
	sugg, tr := newFixture()
	sugg.panics = true
	run, err := New(sugg, tr, testOptions()).Run(context.Background(), Request{Title: title})
	require.Error(t, err)
	assert.Nil(t, run)

	body := apperrors.ToBody(err)
	assert.Equal(t, apperrors.SourceSystem, body.Source)
	assert.Equal(t, 500, body.Status)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		req    Request
		fields []string
	}{
		{"valid", Request{Title: "abc"}, nil},
		{"multibyte title counts characters", Request{Title: "ééé"}, nil},
		{"short title", Request{Title: "ab"}, []string{"title"}},
		{"long content", Request{Title: "abc", Content: string(make([]byte, maxContentLength+1))}, []string{"content"}},
		{"both", Request{Title: "", Content: string(make([]byte, maxContentLength+1))}, []string{"content", "title"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.req)
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			var got []string
			for f := range verr.Fields {
				got = append(got, f)
			}
			assert.ElementsMatch(t, tt.fields, got)
		})
	}
}

func TestValidationErrorMessageIsSorted(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"title": "too short", "content": "too long"}}
	assert.Equal(t, "content: too long; title: too short", err.Error())
}
