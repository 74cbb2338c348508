package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	apperrors "github.com/seovimalraj/locations/pkg/errors"
	"github.com/seovimalraj/locations/pkg/logger"
)

// Timeout bounds each request by timeout. If the handler has not written a
// response by then, a 504 with a system-sourced error body is sent. The
// handler runs on its own goroutine, so its panics are recovered here and
// answered with a 500.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			done := make(chan struct{})
			tw := &timeoutWriter{ResponseWriter: w}
			go func() {
				defer close(done)
				defer func() {
					rec := recover()
					if rec == nil || rec == http.ErrAbortHandler {
						return
					}
					logger.FromContext(r.Context()).Error("panic serving request",
						"method", r.Method,
						"path", r.URL.Path,
						"panic", fmt.Sprint(rec),
						"stack", string(debug.Stack()),
					)
					tw.writeError(http.StatusInternalServerError, "internal error")
				}()
				next.ServeHTTP(tw, r.WithContext(ctx))
			}()
			select {
			case <-done:
			case <-ctx.Done():
				tw.mu.Lock()
				defer tw.mu.Unlock()
				if !tw.written {
					tw.timedOut = true
					logger.FromContext(r.Context()).Warn("request timed out", "method", r.Method, "path", r.URL.Path, "timeout", timeout)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusGatewayTimeout)
					json.NewEncoder(w).Encode(map[string]any{
						"error": apperrors.Body{
							Source:  apperrors.SourceSystem,
							Message: "request timeout",
							Status:  http.StatusGatewayTimeout,
						},
					})
				}
			}
		})
	}
}

type timeoutWriter struct {
	http.ResponseWriter
	mu       sync.Mutex
	written  bool
	timedOut bool
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return
	}
	tw.written = true
	tw.ResponseWriter.WriteHeader(code)
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	tw.written = true
	return tw.ResponseWriter.Write(b)
}

// writeError sends a system error body unless a response was already
// started or the request timed out.
func (tw *timeoutWriter) writeError(status int, message string) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.written || tw.timedOut {
		return
	}
	tw.written = true
	tw.ResponseWriter.Header().Set("Content-Type", "application/json")
	tw.ResponseWriter.WriteHeader(status)
	json.NewEncoder(tw.ResponseWriter).Encode(map[string]any{
		"error": apperrors.Body{
			Source:  apperrors.SourceSystem,
			Message: message,
			Status:  status,
		},
	})
}
