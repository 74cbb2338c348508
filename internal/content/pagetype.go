package content

import "regexp"

type typeRule struct {
	pageType string
	pattern  *regexp.Regexp
}

var pathRules = []typeRule{
	{"service", regexp.MustCompile(`(?i)services?|solutions`)},
	{"blog", regexp.MustCompile(`(?i)blog|post`)},
	{"about", regexp.MustCompile(`(?i)about|team`)},
}

var bodyRules = []typeRule{
	{"conversion", regexp.MustCompile(`(?i)contact|cta`)},
	{"guide", regexp.MustCompile(`(?i)guide|how to|steps`)},
}

func firstMatch(rules []typeRule, s string) string {
	for _, r := range rules {
		if r.pattern.MatchString(s) {
			return r.pageType
		}
	}
	return ""
}

// InferPageType classifies a URL path as service, blog or about, or returns
// "" when none applies.
func InferPageType(path string) string {
	return firstMatch(pathRules, path)
}

// InferSegmentType classifies a paragraph body as conversion or guide, or
// returns "".
func InferSegmentType(body string) string {
	return firstMatch(bodyRules, body)
}

// Route returns a copy of segments in which every segment without a page
// type carries the one inferred from its body.
func Route(segments []Segment) []Segment {
	out := make([]Segment, len(segments))
	for i, s := range segments {
		if s.PageType == "" {
			s.PageType = InferSegmentType(s.Body)
		}
		out[i] = s
	}
	return out
}
