package keyword

import (
	"regexp"
	"strings"
)

type intentRule struct {
	intent  Intent
	pattern *regexp.Regexp
}

// Evaluated in order; the first match wins.
var intentRules = []intentRule{
	{Transactional, regexp.MustCompile(`buy|price|quote|service`)},
	{Commercial, regexp.MustCompile(`best|top|vs|review`)},
	{Informational, regexp.MustCompile(`how|what|why|guide`)},
}

// Classify infers the intent of phrase from substrings of its lower-cased
// form. Phrases matching no rule are navigational.
func Classify(phrase string) Intent {
	lower := strings.ToLower(phrase)
	for _, r := range intentRules {
		if r.pattern.MatchString(lower) {
			return r.intent
		}
	}
	return Navigational
}
