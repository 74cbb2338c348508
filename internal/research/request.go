package research

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	apperrors "github.com/seovimalraj/locations/pkg/errors"
)

const (
	minTitleLength   = 3
	maxContentLength = 100_000
)

// Request is the input of a research run.
type Request struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Cluster bool   `json:"cluster,omitempty"`
}

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return apperrors.ErrInvalidInput
}

// Validate checks title and content lengths, counted in characters, and
// reports every offending field.
func Validate(req Request) error {
	errs := make(map[string]string)
	if n := utf8.RuneCountInString(req.Title); n < minTitleLength {
		errs["title"] = fmt.Sprintf("title must be at least %d characters", minTitleLength)
	}
	if n := utf8.RuneCountInString(req.Content); n > maxContentLength {
		errs["content"] = fmt.Sprintf("content must be at most %d characters", maxContentLength)
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
