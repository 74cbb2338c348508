package analytics

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/seovimalraj/locations/pkg/kafka"
)

const maxLatencySamples = 10_000

type Stats struct {
	TotalRuns          int64            `json:"total_runs"`
	DegradedTrends     int64            `json:"degraded_trend_lookups"`
	AvgKeywords        float64          `json:"avg_keywords"`
	AvgLatencyMs       float64          `json:"avg_latency_ms"`
	P50LatencyMs       int64            `json:"p50_latency_ms"`
	P95LatencyMs       int64            `json:"p95_latency_ms"`
	P99LatencyMs       int64            `json:"p99_latency_ms"`
	TopPrimaryKeywords []PhraseCount    `json:"top_primary_keywords"`
	TopTitles          []PhraseCount    `json:"top_titles"`
	Intents            map[string]int64 `json:"intents"`
	ToolInvocations    map[string]int64 `json:"tool_invocations"`
	ToolErrors         map[string]int64 `json:"tool_errors"`
	RunsPerMinute      float64          `json:"runs_per_minute"`
}

type PhraseCount struct {
	Phrase string `json:"phrase"`
	Count  int64  `json:"count"`
}

// Aggregator folds research and tool events into running statistics. It
// is fed either directly as a Recorder or from Kafka through
// HandleMessage.
type Aggregator struct {
	mu              sync.RWMutex
	totalRuns       int64
	degraded        int64
	keywords        int64
	latencies       []int64
	primaryCounts   map[string]int64
	titleCounts     map[string]int64
	intents         map[string]int64
	toolInvocations map[string]int64
	toolErrors      map[string]int64
	startTime       time.Time

	now    func() time.Time
	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:       make([]int64, 0, 1024),
		primaryCounts:   make(map[string]int64),
		titleCounts:     make(map[string]int64),
		intents:         make(map[string]int64),
		toolInvocations: make(map[string]int64),
		toolErrors:      make(map[string]int64),
		startTime:       time.Now(),
		now:             time.Now,
		logger:          slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleMessage returns a Kafka handler that decodes events by their type
// header. Undecodable messages are logged and skipped so they do not block
// the partition.
func (a *Aggregator) HandleMessage() kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		switch EventType(msg.Type) {
		case EventResearchCompleted:
			ev, err := kafka.DecodeJSON[ResearchEvent](msg.Value)
			if err != nil {
				a.logger.Error("failed to decode research event", "error", err)
				return nil
			}
			a.RecordResearch(ctx, ev)
		case EventToolInvoked:
			ev, err := kafka.DecodeJSON[ToolEvent](msg.Value)
			if err != nil {
				a.logger.Error("failed to decode tool event", "error", err)
				return nil
			}
			a.RecordTool(ctx, ev)
		default:
			a.logger.Warn("ignoring unknown analytics event", "type", msg.Type)
		}
		return nil
	}
}

func (a *Aggregator) RecordResearch(_ context.Context, ev ResearchEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalRuns++
	a.degraded += int64(ev.DegradedTrends)
	a.keywords += int64(ev.Keywords)
	if len(a.latencies) == maxLatencySamples {
		a.latencies = a.latencies[1:]
	}
	a.latencies = append(a.latencies, ev.LatencyMs)
	a.primaryCounts[ev.PrimaryKeyword]++
	a.titleCounts[strings.ToLower(ev.Title)]++
	for intent, n := range ev.Intents {
		a.intents[intent] += int64(n)
	}
}

func (a *Aggregator) RecordTool(_ context.Context, ev ToolEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.toolInvocations[ev.Tool]++
	if !ev.Success {
		a.toolErrors[ev.Tool]++
	}
}

func (a *Aggregator) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := Stats{
		TotalRuns:          a.totalRuns,
		DegradedTrends:     a.degraded,
		TopPrimaryKeywords: topN(a.primaryCounts, 10),
		TopTitles:          topN(a.titleCounts, 10),
		Intents:            copyCounts(a.intents),
		ToolInvocations:    copyCounts(a.toolInvocations),
		ToolErrors:         copyCounts(a.toolErrors),
	}
	if a.totalRuns > 0 {
		stats.AvgKeywords = float64(a.keywords) / float64(a.totalRuns)
	}
	if len(a.latencies) > 0 {
		sorted := slices.Clone(a.latencies)
		slices.Sort(sorted)
		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	if elapsed := a.now().Sub(a.startTime).Minutes(); elapsed > 0 {
		stats.RunsPerMinute = float64(stats.TotalRuns) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count descending, then phrase ascending.
func topN(counts map[string]int64, n int) []PhraseCount {
	result := make([]PhraseCount, 0, len(counts))
	for phrase, count := range counts {
		result = append(result, PhraseCount{Phrase: phrase, Count: count})
	}
	slices.SortFunc(result, func(x, y PhraseCount) int {
		if c := cmp.Compare(y.Count, x.Count); c != 0 {
			return c
		}
		return strings.Compare(x.Phrase, y.Phrase)
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}

func copyCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
