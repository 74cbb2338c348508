// Package errors defines the sentinel errors shared across the service and
// the AppError type that carries the subsystem Source, HTTP status and
// optional details of a failure.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUpstream     = errors.New("upstream request failed")
	ErrRateLimited  = errors.New("rate limit exceeded")
	ErrNotFound     = errors.New("not found")
	ErrInternal     = errors.New("internal error")
	ErrTimeout      = errors.New("operation timed out")
)

// Source names the subsystem a failure originated from.
type Source string

const (
	SourceWordPress Source = "wordpress"
	SourceKeywords  Source = "google-keywords"
	SourceTrends    Source = "google-trends"
	SourceSystem    Source = "system"
)

type AppError struct {
	Err        error
	Source     Source
	Message    string
	StatusCode int
	Details    any
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, source Source, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Source:     source,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, source Source, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Source:     source,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// WithDetails attaches machine-readable details and returns e.
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// Body is the wire form of a terminal failure.
type Body struct {
	Source  Source `json:"source"`
	Message string `json:"message"`
	Status  int    `json:"status,omitempty"`
	Details any    `json:"details,omitempty"`
}

// ToBody converts any error into the structured error object. Errors that
// are not AppErrors are reported as system failures with a generic message
// so internal details never leak.
func ToBody(err error) Body {
	var appErr *AppError
	if errors.As(err, &appErr) {
		source := appErr.Source
		if source == "" {
			source = SourceSystem
		}
		return Body{
			Source:  source,
			Message: appErr.Message,
			Status:  HTTPStatusCode(err),
			Details: appErr.Details,
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout) {
		return Body{Source: SourceSystem, Message: "operation timed out", Status: http.StatusGatewayTimeout}
	}
	return Body{Source: SourceSystem, Message: "internal error", Status: http.StatusInternalServerError}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
