package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seovimalraj/locations/internal/keyword"
)

func TestGenerate(t *testing.T) {
	structure := Structure{
		Title:    "Drain Cleaning",
		Sections: []Section{{Heading: "Why it matters"}, {Heading: "Our process"}},
	}
	primary := keyword.Keyword{Phrase: "drain cleaning"}
	secondary := []keyword.Keyword{{Phrase: "blocked drain"}, {Phrase: "plumber"}, {Phrase: "unused"}}

	got, err := New().Generate(structure, primary, secondary)
	require.NoError(t, err)

	assert.Equal(t, "Overview of Drain Cleaning using Indian English and active voice.", got.Summary)
	require.Len(t, got.Sections, 2)
	assert.Equal(t,
		"Why it matters: drain cleaning explained in short sentences. We include blocked drain, plumber naturally. Clear CTA encourages quick action.",
		got.Sections[0].Content)
	assert.Equal(t, 20, got.Sections[0].WordCount)
	assert.Equal(t, 19, got.Sections[1].WordCount)
	assert.InDelta(t, 1.0/20, got.Sections[0].KeywordDensity["drain cleaning"], 1e-9)
	assert.Equal(t, 0.0, got.Sections[0].KeywordDensity["unused"])

	assert.Equal(t, got.Sections[0].WordCount+got.Sections[1].WordCount, got.Metrics.TotalWords)
	assert.InDelta(t, 2.0/float64(got.Metrics.TotalWords), got.Metrics.PrimaryDensity, 1e-9)
	assert.Contains(t, got.Metrics.SecondaryDensity, "plumber")

	// 39 words over 6 sentences.
	want := 206.835 - 1.015*(39.0/6.0) - 84.6*1.3
	assert.InDelta(t, want, got.Metrics.Readability, 1e-9)

	assert.Contains(t, got.Markdown, "# Drain Cleaning\n")
	assert.Contains(t, got.Markdown, "## Our process\n")
	assert.Contains(t, got.HTML, "<h1>Drain Cleaning</h1>")
	assert.Contains(t, got.HTML, "<h2>Why it matters</h2>")
}

func TestGenerateUsesDescription(t *testing.T) {
	got, err := New().Generate(Structure{Title: "T", Description: "Custom summary"}, keyword.Keyword{Phrase: "p"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Custom summary", got.Summary)
	assert.Empty(t, got.Sections)
	assert.Equal(t, 0, got.Metrics.TotalWords)
}

func TestDensityEdgeCases(t *testing.T) {
	assert.Equal(t, 0.0, density("anything", ""))
	assert.Equal(t, 0.0, density("", "x"))
	assert.InDelta(t, 0.5, density("Plumber PLUMBER", "plumber"), 1e-9)
}

func TestBuildSectionWithoutSecondaries(t *testing.T) {
	assert.Equal(t,
		"H: p explained in short sentences. We include  naturally. Clear CTA encourages quick action.",
		buildSection("H", keyword.Keyword{Phrase: "p"}, nil))
}
