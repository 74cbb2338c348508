// Package content turns free text and WordPress markup into the inputs of
// keyword research: paragraph segments with inferred page types, seed
// entities, and sanitised HTML with its plain-text form.
package content

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxEntities caps how many entities ExtractEntities returns.
const MaxEntities = 10

// Segment is one paragraph of input content.
type Segment struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	PageType string `json:"pageType,omitempty"`
}

var (
	paragraphBreak = regexp.MustCompile(`\n+`)
	nonWord        = regexp.MustCompile(`\W+`)
)

// SegmentContent splits text into paragraphs on runs of newlines. Each
// segment is titled "<title> - Segment N"; blank paragraphs are skipped.
func SegmentContent(title, text string) []Segment {
	var segments []Segment
	for _, p := range paragraphBreak.Split(text, -1) {
		body := strings.TrimSpace(p)
		if body == "" {
			continue
		}
		segments = append(segments, Segment{
			Title: fmt.Sprintf("%s - Segment %d", title, len(segments)+1),
			Body:  body,
		})
	}
	return segments
}

// ExtractEntities returns up to MaxEntities distinct lower-cased words
// longer than four characters, in order of first appearance.
func ExtractEntities(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, w := range nonWord.Split(text, -1) {
		if len(w) <= 4 {
			continue
		}
		lower := strings.ToLower(w)
		if _, ok := seen[lower]; ok {
			continue
		}
		seen[lower] = struct{}{}
		out = append(out, lower)
		if len(out) == MaxEntities {
			break
		}
	}
	return out
}
