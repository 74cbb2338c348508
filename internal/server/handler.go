package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/seovimalraj/locations/internal/research"
	apperrors "github.com/seovimalraj/locations/pkg/errors"
	"github.com/seovimalraj/locations/pkg/logger"
)

const maxBodyBytes = 2 << 20

// RunLookup reads stored research runs.
type RunLookup interface {
	Lookup(ctx context.Context, id string) (*research.Run, error)
	Recent(ctx context.Context, limit int) ([]*research.Run, error)
}

// Handler implements the API endpoints.
type Handler struct {
	tools  *Tools
	runs   RunLookup
	logger *slog.Logger
}

func NewHandler(tools *Tools, runs RunLookup) *Handler {
	return &Handler{
		tools:  tools,
		runs:   runs,
		logger: slog.Default().With("component", "api-handler"),
	}
}

type toolRequest struct {
	Tool  string          `json:"tool"`
	Input json.RawMessage `json:"input"`
}

// Dispatch handles POST /api/v1/tools.
func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	var req toolRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, apperrors.SourceSystem, http.StatusBadRequest, "request body must be a JSON object with tool and input"))
		return
	}
	h.invoke(w, r, req.Tool, req.Input)
}

// Direct returns a handler that invokes tool with the request body as its
// input.
func (h *Handler) Direct(tool string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, apperrors.SourceSystem, http.StatusRequestEntityTooLarge, "request body too large"))
			return
		}
		h.invoke(w, r, tool, body)
	}
}

func (h *Handler) invoke(w http.ResponseWriter, r *http.Request, tool string, input json.RawMessage) {
	result, err := h.tools.Invoke(r.Context(), tool, input)
	if errors.Is(err, ErrUnknownTool) {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Unknown tool requested"})
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

// GetRun handles GET /api/v1/research/{id}.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.Lookup(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"result": run})
}

// ListRuns handles GET /api/v1/research.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, apperrors.SourceSystem, http.StatusBadRequest, "limit must be between 1 and 100"))
			return
		}
		limit = n
	}
	runs, err := h.runs.Recent(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if runs == nil {
		runs = []*research.Run{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"result": runs})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	body := apperrors.ToBody(err)
	if body.Status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
	}
	h.writeJSON(w, body.Status, map[string]any{"error": body})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}
