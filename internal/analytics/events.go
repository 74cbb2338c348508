// Package analytics records what research runs and tool invocations
// produced, ships the events through Kafka and aggregates them into
// queryable usage statistics.
package analytics

import (
	"context"
	"time"

	"github.com/seovimalraj/locations/internal/research"
	apperrors "github.com/seovimalraj/locations/pkg/errors"
	"github.com/seovimalraj/locations/pkg/logger"
)

type EventType string

const (
	EventResearchCompleted EventType = "research.completed"
	EventToolInvoked       EventType = "tool.invoked"
)

type ResearchEvent struct {
	Type           EventType      `json:"type"`
	RunID          string         `json:"run_id"`
	Title          string         `json:"title"`
	PrimaryKeyword string         `json:"primary_keyword"`
	Intents        map[string]int `json:"intents"`
	Seeds          int            `json:"seeds"`
	Suggestions    int            `json:"suggestions"`
	Keywords       int            `json:"keywords"`
	DegradedTrends int            `json:"degraded_trends"`
	Clustered      bool           `json:"clustered"`
	LatencyMs      int64          `json:"latency_ms"`
	Timestamp      time.Time      `json:"timestamp"`
	RequestID      string         `json:"request_id"`
}

type ToolEvent struct {
	Type        EventType        `json:"type"`
	Tool        string           `json:"tool"`
	Success     bool             `json:"success"`
	ErrorSource apperrors.Source `json:"error_source,omitempty"`
	LatencyMs   int64            `json:"latency_ms"`
	Timestamp   time.Time        `json:"timestamp"`
	RequestID   string           `json:"request_id"`
}

// NewResearchEvent summarises a completed run.
func NewResearchEvent(ctx context.Context, run *research.Run) ResearchEvent {
	intents := make(map[string]int)
	res := run.Result
	if res.PrimaryKeyword.Intent != "" {
		intents[string(res.PrimaryKeyword.Intent)]++
	}
	for _, k := range res.SecondaryKeywords {
		if k.Intent != "" {
			intents[string(k.Intent)]++
		}
	}
	return ResearchEvent{
		Type:           EventResearchCompleted,
		RunID:          run.ID,
		Title:          run.Request.Title,
		PrimaryKeyword: res.PrimaryKeyword.Phrase,
		Intents:        intents,
		Seeds:          run.Stats.Seeds,
		Suggestions:    run.Stats.Suggestions,
		Keywords:       run.Stats.Keywords,
		DegradedTrends: run.Stats.DegradedTrends,
		Clustered:      run.Request.Cluster,
		LatencyMs:      run.Stats.Duration.Milliseconds(),
		Timestamp:      run.CreatedAt,
		RequestID:      logger.RequestID(ctx),
	}
}

// NewToolEvent describes one tool invocation and its outcome.
func NewToolEvent(ctx context.Context, tool string, latency time.Duration, err error) ToolEvent {
	ev := ToolEvent{
		Type:      EventToolInvoked,
		Tool:      tool,
		Success:   err == nil,
		LatencyMs: latency.Milliseconds(),
		Timestamp: time.Now().UTC(),
		RequestID: logger.RequestID(ctx),
	}
	if err != nil {
		ev.ErrorSource = apperrors.ToBody(err).Source
	}
	return ev
}

// Recorder accepts analytics events. Implementations must not block the
// caller for long and must be safe for concurrent use.
type Recorder interface {
	RecordResearch(ctx context.Context, ev ResearchEvent)
	RecordTool(ctx context.Context, ev ToolEvent)
}

// Observer adapts a Recorder to the research pipeline's observer hook.
func Observer(r Recorder) research.Observer {
	return research.ObserverFunc(func(ctx context.Context, run *research.Run) {
		r.RecordResearch(ctx, NewResearchEvent(ctx, run))
	})
}

type multiRecorder []Recorder

// Fanout returns a Recorder that forwards every event to each of rs.
func Fanout(rs ...Recorder) Recorder {
	return multiRecorder(rs)
}

func (m multiRecorder) RecordResearch(ctx context.Context, ev ResearchEvent) {
	for _, r := range m {
		r.RecordResearch(ctx, ev)
	}
}

func (m multiRecorder) RecordTool(ctx context.Context, ev ToolEvent) {
	for _, r := range m {
		r.RecordTool(ctx, ev)
	}
}
