// Package server exposes the research tools over HTTP: a tool dispatcher
// taking {tool, input} envelopes, one direct route per tool, stored run
// lookup, analytics and health endpoints.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"runtime/debug"
	"time"

	"github.com/seovimalraj/locations/internal/analytics"
	"github.com/seovimalraj/locations/internal/content"
	"github.com/seovimalraj/locations/internal/generator"
	"github.com/seovimalraj/locations/internal/keyword"
	"github.com/seovimalraj/locations/internal/research"
	"github.com/seovimalraj/locations/internal/wordpress"
	apperrors "github.com/seovimalraj/locations/pkg/errors"
	"github.com/seovimalraj/locations/pkg/logger"
	"github.com/seovimalraj/locations/pkg/metrics"
)

const (
	ToolResearch = "research_keywords"
	ToolExtract  = "extract_wordpress_content"
	ToolGenerate = "generate_optimized_content"

	maxPagesLimit = 50
)

// ErrUnknownTool is returned by Invoke for a tool name that is not
// registered.
var ErrUnknownTool = errors.New("unknown tool")

// Researcher runs keyword research.
type Researcher interface {
	Research(ctx context.Context, req research.Request) (*research.Result, error)
}

// SiteFetcher fetches WordPress content for a site.
type SiteFetcher interface {
	FetchSite(ctx context.Context, siteURL string, maxPages int, pattern *regexp.Regexp) (*wordpress.Content, error)
}

// ToolFunc runs one tool on its raw JSON input.
type ToolFunc func(ctx context.Context, input json.RawMessage) (any, error)

// ToolDeps are the collaborators of the built-in tools. Recorder and
// Metrics are optional.
type ToolDeps struct {
	Research        Researcher
	WordPress       SiteFetcher
	Generator       *generator.Generator
	DefaultSiteURL  string
	DefaultMaxPages int
	Metrics         *metrics.Metrics
	Recorder        analytics.Recorder
}

// Tools is the registry behind the dispatcher and the CLI.
type Tools struct {
	deps     ToolDeps
	registry map[string]ToolFunc
	logger   *slog.Logger
}

func NewTools(deps ToolDeps) *Tools {
	if deps.Generator == nil {
		deps.Generator = generator.New()
	}
	t := &Tools{
		deps:   deps,
		logger: slog.Default().With("component", "tools"),
	}
	t.registry = map[string]ToolFunc{
		ToolResearch: t.researchKeywords,
		ToolExtract:  t.extractWordPress,
		ToolGenerate: t.generateContent,
	}
	return t
}

// Register adds or replaces a tool.
func (t *Tools) Register(name string, fn ToolFunc) {
	t.registry[name] = fn
}

// Invoke runs the named tool. Every failure it returns carries a Source
// tag; panics are reported as system errors.
func (t *Tools) Invoke(ctx context.Context, name string, input json.RawMessage) (result any, err error) {
	fn, ok := t.registry[name]
	if !ok {
		return nil, ErrUnknownTool
	}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.FromContext(ctx).Error("tool panicked",
				"component", "tools",
				"tool", name,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			result = nil
			err = apperrors.New(apperrors.ErrInternal, apperrors.SourceSystem, 500, "internal error")
		}
		err = normalizeError(err)
		elapsed := time.Since(start)
		t.deps.Metrics.ObserveTool(name, err)
		if t.deps.Recorder != nil {
			t.deps.Recorder.RecordTool(ctx, analytics.NewToolEvent(ctx, name, elapsed, err))
		}
		if err != nil {
			logger.FromContext(ctx).Warn("tool failed", "component", "tools", "tool", name, "duration", elapsed, "error", err)
			return
		}
		logger.FromContext(ctx).Info("tool completed", "component", "tools", "tool", name, "duration", elapsed)
	}()
	return fn(ctx, input)
}

// normalizeError turns validation failures into source-tagged AppErrors.
func normalizeError(err error) error {
	if err == nil {
		return nil
	}
	var verr *research.ValidationError
	if errors.As(err, &verr) {
		return apperrors.New(apperrors.ErrInvalidInput, apperrors.SourceSystem, 400, "validation failed: "+verr.Error()).
			WithDetails(verr.Fields)
	}
	return err
}

func decodeInput[T any](input json.RawMessage) (T, error) {
	var v T
	if len(bytes.TrimSpace(input)) == 0 {
		return v, &research.ValidationError{Fields: map[string]string{"input": "input is required"}}
	}
	if err := json.Unmarshal(input, &v); err != nil {
		return v, &research.ValidationError{Fields: map[string]string{"input": "malformed input: " + err.Error()}}
	}
	return v, nil
}

func (t *Tools) researchKeywords(ctx context.Context, input json.RawMessage) (any, error) {
	req, err := decodeInput[research.Request](input)
	if err != nil {
		return nil, err
	}
	return t.deps.Research.Research(ctx, req)
}

type extractInput struct {
	SiteURL     string `json:"siteUrl"`
	PathPattern string `json:"pathPattern,omitempty"`
	MaxPages    *int   `json:"maxPages,omitempty"`
}

func (t *Tools) extractWordPress(ctx context.Context, input json.RawMessage) (any, error) {
	in, err := decodeInput[extractInput](input)
	if err != nil {
		return nil, err
	}
	if in.SiteURL == "" {
		in.SiteURL = t.deps.DefaultSiteURL
	}
	fields := make(map[string]string)
	if u, err := url.Parse(in.SiteURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		fields["siteUrl"] = "siteUrl must be an absolute http(s) URL"
	}
	maxPages := t.deps.DefaultMaxPages
	if in.MaxPages != nil {
		if *in.MaxPages < 1 || *in.MaxPages > maxPagesLimit {
			fields["maxPages"] = fmt.Sprintf("maxPages must be between 1 and %d", maxPagesLimit)
		}
		maxPages = *in.MaxPages
	}
	var pattern *regexp.Regexp
	if in.PathPattern != "" {
		if pattern, err = regexp.Compile(in.PathPattern); err != nil {
			fields["pathPattern"] = "pathPattern must be a valid regular expression"
		}
	}
	if len(fields) > 0 {
		return nil, &research.ValidationError{Fields: fields}
	}

	site, err := t.deps.WordPress.FetchSite(ctx, in.SiteURL, maxPages, pattern)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		status := 502
		if errors.Is(err, context.DeadlineExceeded) {
			status = 504
		}
		return nil, apperrors.New(apperrors.ErrUpstream, apperrors.SourceWordPress, status, err.Error())
	}
	for i := range site.Pages {
		if site.Pages[i].PageType == "" {
			site.Pages[i].PageType = content.InferSegmentType(site.Pages[i].ContentText)
		}
	}
	return site, nil
}

type phraseInput struct {
	Phrase string `json:"phrase"`
}

type generateInput struct {
	Structure         generator.Structure `json:"structure"`
	PrimaryKeyword    phraseInput         `json:"primaryKeyword"`
	SecondaryKeywords []phraseInput       `json:"secondaryKeywords"`
}

func (t *Tools) generateContent(_ context.Context, input json.RawMessage) (any, error) {
	in, err := decodeInput[generateInput](input)
	if err != nil {
		return nil, err
	}
	fields := make(map[string]string)
	if in.Structure.Title == "" {
		fields["structure.title"] = "title is required"
	}
	if len(in.Structure.Sections) == 0 {
		fields["structure.sections"] = "at least one section is required"
	}
	for i, s := range in.Structure.Sections {
		if s.Heading == "" {
			fields[fmt.Sprintf("structure.sections[%d].heading", i)] = "heading is required"
		}
	}
	if in.PrimaryKeyword.Phrase == "" {
		fields["primaryKeyword.phrase"] = "phrase is required"
	}
	if len(fields) > 0 {
		return nil, &research.ValidationError{Fields: fields}
	}

	primary := keyword.Keyword{Phrase: in.PrimaryKeyword.Phrase, Source: keyword.SourceContent}
	secondary := make([]keyword.Keyword, 0, len(in.SecondaryKeywords))
	for _, k := range in.SecondaryKeywords {
		secondary = append(secondary, keyword.Keyword{Phrase: k.Phrase, Source: keyword.SourceContent})
	}
	return t.deps.Generator.Generate(in.Structure, primary, secondary)
}
