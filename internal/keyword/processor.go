package keyword

import (
	"cmp"
	"slices"
	"strings"
)

// FilterAndDeduplicate drops keywords whose lower-cased phrase was already
// seen. Survivors keep their input order.
func FilterAndDeduplicate(keywords []Keyword) []Keyword {
	seen := make(map[string]struct{}, len(keywords))
	out := make([]Keyword, 0, len(keywords))
	for _, k := range keywords {
		norm := strings.ToLower(k.Phrase)
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, k)
	}
	return out
}

// SelectPrimary returns the keyword with the highest volume score, ties
// going to the earliest. An empty list yields Placeholder().
func SelectPrimary(keywords []Keyword) Keyword {
	if len(keywords) == 0 {
		return Placeholder()
	}
	sorted := slices.Clone(keywords)
	slices.SortStableFunc(sorted, func(a, b Keyword) int {
		return cmp.Compare(b.Volume(), a.Volume())
	})
	return sorted[0]
}

// Cluster is the set of keywords sharing an intent.
type Cluster struct {
	Intent   Intent    `json:"intent"`
	Keywords []Keyword `json:"keywords"`
}

// ClusterByIntent buckets keywords by intent, treating a missing intent as
// informational. Buckets appear in order of first occurrence and keep the
// input order inside each bucket.
func ClusterByIntent(keywords []Keyword) []Cluster {
	var clusters []Cluster
	index := make(map[Intent]int)
	for _, k := range keywords {
		intent := k.Intent
		if intent == "" {
			intent = Informational
		}
		i, ok := index[intent]
		if !ok {
			i = len(clusters)
			index[intent] = i
			clusters = append(clusters, Cluster{Intent: intent})
		}
		clusters[i].Keywords = append(clusters[i].Keywords, k)
	}
	return clusters
}
