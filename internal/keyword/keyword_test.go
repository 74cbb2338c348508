package keyword

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		phrase string
		want   Intent
	}{
		{"best price for service", Transactional},
		{"Buy plumbing parts", Transactional},
		{"top 10 plumbers", Commercial},
		{"iphone vs pixel", Commercial},
		{"how to fix a leak", Informational},
		{"Plumbing Guide", Informational},
		{"acme plumbing", Navigational},
		{"", Navigational},
	}
	for _, tt := range tests {
		t.Run(tt.phrase, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.phrase))
		})
	}
}

func TestFilterAndDeduplicateFirstSeenWins(t *testing.T) {
	in := []Keyword{
		{Phrase: "a", VolumeScore: Score(1)},
		{Phrase: "A", VolumeScore: Score(9)},
	}
	out := FilterAndDeduplicate(in)
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].Phrase)
	assert.Equal(t, 1.0, out[0].Volume())
}

func TestFilterAndDeduplicateIdempotent(t *testing.T) {
	lists := [][]Keyword{
		nil,
		{{Phrase: "x"}},
		{{Phrase: "Plumbing"}, {Phrase: "plumbing"}, {Phrase: "repair"}, {Phrase: "PLUMBING"}, {Phrase: "Repair"}},
	}
	for _, l := range lists {
		once := FilterAndDeduplicate(l)
		assert.Equal(t, once, FilterAndDeduplicate(once))
	}
}

func TestFilterAndDeduplicateKeepsOrder(t *testing.T) {
	in := []Keyword{{Phrase: "c"}, {Phrase: "a"}, {Phrase: "C"}, {Phrase: "b"}}
	out := FilterAndDeduplicate(in)
	var phrases []string
	for _, k := range out {
		phrases = append(phrases, k.Phrase)
	}
	assert.Equal(t, []string{"c", "a", "b"}, phrases)
}

func TestSelectPrimary(t *testing.T) {
	assert.Equal(t, Placeholder(), SelectPrimary(nil))
	assert.Equal(t, SourceSuggestion, SelectPrimary([]Keyword{}).Source)

	in := []Keyword{
		{Phrase: "first"},
		{Phrase: "loud", VolumeScore: Score(5)},
		{Phrase: "also loud", VolumeScore: Score(5)},
	}
	assert.Equal(t, "loud", SelectPrimary(in).Phrase)
	assert.Equal(t, "first", in[0].Phrase, "input is not reordered")

	unscored := []Keyword{{Phrase: "one"}, {Phrase: "two"}}
	assert.Equal(t, "one", SelectPrimary(unscored).Phrase)
}

func TestClusterByIntent(t *testing.T) {
	in := []Keyword{
		{Phrase: "buy pipes", Intent: Transactional},
		{Phrase: "no intent"},
		{Phrase: "quote", Intent: Transactional},
		{Phrase: "how to", Intent: Informational},
	}
	clusters := ClusterByIntent(in)
	require.Len(t, clusters, 2)
	assert.Equal(t, Transactional, clusters[0].Intent)
	assert.Equal(t, []Keyword{in[0], in[2]}, clusters[0].Keywords)
	assert.Equal(t, Informational, clusters[1].Intent)
	assert.Equal(t, []Keyword{in[1], in[3]}, clusters[1].Keywords)
	assert.Empty(t, ClusterByIntent(nil))
}

func TestKeywordJSON(t *testing.T) {
	data, err := json.Marshal(Keyword{Phrase: "p", TrendScore: Score(0), Source: SourceTrend})
	require.NoError(t, err)
	assert.JSONEq(t, `{"phrase":"p","trendScore":0,"source":"trend-source"}`, string(data))
}

func BenchmarkFilterAndDeduplicate(b *testing.B) {
	in := make([]Keyword, 0, 200)
	for i := range 200 {
		in = append(in, Keyword{Phrase: string(rune('a' + i%26))})
	}
	b.ResetTimer()
	for range b.N {
		FilterAndDeduplicate(in)
	}
}

func BenchmarkClassify(b *testing.B) {
	for range b.N {
		Classify("best emergency plumbing service near me")
	}
}
