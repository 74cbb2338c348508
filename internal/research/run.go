package research

import "time"

// Stats describes how a run went. Degraded trend lookups are invisible in
// the Result, so they are reported here for logs and analytics.
type Stats struct {
	Seeds          int           `json:"seeds"`
	Suggestions    int           `json:"suggestions"`
	Keywords       int           `json:"keywords"`
	DegradedTrends int           `json:"degradedTrends"`
	Duration       time.Duration `json:"duration"`
}

// Run is a completed research request together with its result.
type Run struct {
	ID        string    `json:"id"`
	Request   Request   `json:"request"`
	Result    *Result   `json:"result"`
	Stats     Stats     `json:"stats"`
	CreatedAt time.Time `json:"createdAt"`
}
