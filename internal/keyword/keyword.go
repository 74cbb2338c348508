// Package keyword holds the Keyword model, the lexical intent classifier
// and the pure processing steps applied to merged keyword lists:
// deduplication, primary selection and intent clustering.
package keyword

// Intent is the inferred searcher goal behind a phrase.
type Intent string

const (
	Informational Intent = "informational"
	Navigational  Intent = "navigational"
	Transactional Intent = "transactional"
	Commercial    Intent = "commercial"
)

// Source tags where a keyword came from.
type Source string

const (
	SourceSuggestion Source = "suggestion-source"
	SourceTrend      Source = "trend-source"
	SourceContent    Source = "content-derived"
)

// Keyword is a candidate search phrase. Phrase is its identity, compared
// case-insensitively. Scores are pointers so an unset score is omitted
// from JSON while an explicit zero is kept.
type Keyword struct {
	Phrase      string   `json:"phrase"`
	Intent      Intent   `json:"intent,omitempty"`
	VolumeScore *float64 `json:"volumeScore,omitempty"`
	TrendScore  *float64 `json:"trendScore,omitempty"`
	Source      Source   `json:"source,omitempty"`
}

// Score returns a pointer to v for the optional score fields.
func Score(v float64) *float64 {
	return &v
}

func value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// Volume returns VolumeScore, or 0 when unset.
func (k Keyword) Volume() float64 {
	return value(k.VolumeScore)
}

// Trend returns TrendScore, or 0 when unset.
func (k Keyword) Trend() float64 {
	return value(k.TrendScore)
}

// PlaceholderPhrase is the phrase of the primary keyword chosen when no
// candidates exist.
const PlaceholderPhrase = "placeholder primary keyword"

// Placeholder returns the primary keyword used for an empty candidate list.
func Placeholder() Keyword {
	return Keyword{Phrase: PlaceholderPhrase, Source: SourceSuggestion}
}

// FromPhrases maps phrases to keywords carrying source.
func FromPhrases(phrases []string, source Source) []Keyword {
	out := make([]Keyword, 0, len(phrases))
	for _, p := range phrases {
		out = append(out, Keyword{Phrase: p, Source: source})
	}
	return out
}
