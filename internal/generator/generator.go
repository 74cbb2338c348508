// Package generator renders templated, keyword-optimised page copy for a
// page structure and reports word counts, keyword densities and a
// readability estimate.
package generator

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/seovimalraj/locations/internal/keyword"
)

// Section is one heading of the requested page structure.
type Section struct {
	Heading  string   `json:"heading"`
	Keywords []string `json:"keywords,omitempty"`
}

// Structure is the outline of the page to generate.
type Structure struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Sections    []Section `json:"sections"`
}

// OptimizedSection is the generated copy for one section.
type OptimizedSection struct {
	Heading        string             `json:"heading"`
	Content        string             `json:"content"`
	WordCount      int                `json:"wordCount"`
	KeywordDensity map[string]float64 `json:"keywordDensity"`
}

// Metrics summarise the generated copy as a whole.
type Metrics struct {
	TotalWords       int                `json:"totalWords"`
	PrimaryDensity   float64            `json:"primaryDensity"`
	SecondaryDensity map[string]float64 `json:"secondaryDensity"`
	Readability      float64            `json:"readability"`
}

// Content is the generator's output.
type Content struct {
	Title    string             `json:"title"`
	Summary  string             `json:"summary"`
	Sections []OptimizedSection `json:"sections"`
	Markdown string             `json:"markdown"`
	HTML     string             `json:"html"`
	Metrics  Metrics            `json:"metrics"`
}

// Generator is stateless and safe for concurrent use.
type Generator struct {
	md goldmark.Markdown
}

func New() *Generator {
	return &Generator{md: goldmark.New()}
}

// Generate writes one templated paragraph per section that works in the
// primary keyword and the first two secondary keywords.
func (g *Generator) Generate(s Structure, primary keyword.Keyword, secondary []keyword.Keyword) (*Content, error) {
	sections := make([]OptimizedSection, 0, len(s.Sections))
	texts := make([]string, 0, len(s.Sections))
	totalWords := 0
	for _, sec := range s.Sections {
		text := buildSection(sec.Heading, primary, secondary)
		densities := map[string]float64{primary.Phrase: density(text, primary.Phrase)}
		for _, kw := range secondary {
			densities[kw.Phrase] = density(text, kw.Phrase)
		}
		wc := wordCount(text)
		totalWords += wc
		texts = append(texts, text)
		sections = append(sections, OptimizedSection{
			Heading:        sec.Heading,
			Content:        text,
			WordCount:      wc,
			KeywordDensity: densities,
		})
	}

	combined := strings.Join(texts, " ")
	secondaryDensity := make(map[string]float64, len(secondary))
	for _, kw := range secondary {
		secondaryDensity[kw.Phrase] = density(combined, kw.Phrase)
	}

	summary := s.Description
	if summary == "" {
		summary = fmt.Sprintf("Overview of %s using Indian English and active voice.", s.Title)
	}

	out := &Content{
		Title:    s.Title,
		Summary:  summary,
		Sections: sections,
		Metrics: Metrics{
			TotalWords:       totalWords,
			PrimaryDensity:   density(combined, primary.Phrase),
			SecondaryDensity: secondaryDensity,
			Readability:      readability(combined),
		},
	}
	out.Markdown = renderMarkdown(out)
	var buf bytes.Buffer
	if err := g.md.Convert([]byte(out.Markdown), &buf); err != nil {
		return nil, fmt.Errorf("rendering markdown: %w", err)
	}
	out.HTML = buf.String()
	return out, nil
}

func buildSection(heading string, primary keyword.Keyword, secondary []keyword.Keyword) string {
	names := make([]string, 0, 2)
	for _, kw := range secondary[:min(2, len(secondary))] {
		names = append(names, kw.Phrase)
	}
	return fmt.Sprintf("%s: %s explained in short sentences. We include %s naturally. Clear CTA encourages quick action.",
		heading, primary.Phrase, strings.Join(names, ", "))
}

func renderMarkdown(c *Content) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n%s\n", c.Title, c.Summary)
	for _, s := range c.Sections {
		fmt.Fprintf(&b, "\n## %s\n\n%s\n", s.Heading, s.Content)
	}
	return b.String()
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}

// density is occurrences of phrase per word of text, matched
// case-insensitively as a literal substring.
func density(text, phrase string) float64 {
	if phrase == "" {
		return 0
	}
	words := max(wordCount(text), 1)
	n := strings.Count(strings.ToLower(text), strings.ToLower(phrase))
	return float64(n) / float64(words)
}

var sentenceEnd = regexp.MustCompile(`[.!?]`)

// readability is a Flesch reading-ease estimate that approximates
// syllables as 1.3 per word.
func readability(text string) float64 {
	sentences := 0
	for _, s := range sentenceEnd.Split(text, -1) {
		if s != "" {
			sentences++
		}
	}
	sentences = max(sentences, 1)
	words := max(wordCount(text), 1)
	syllables := max(float64(words)*1.3, 1)
	return 206.835 - 1.015*(float64(words)/float64(sentences)) - 84.6*(syllables/float64(words))
}
