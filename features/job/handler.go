package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"ragline/internal/middleware"
)

// Drainer runs the worker loop up to maxJobs times; implemented by the
// pipeline runner.
type Drainer interface {
	Drain(ctx context.Context, maxJobs int) []RunResult
}

type Handler struct {
	service *Service
	drainer Drainer

	// MaxDrainJobs caps how much work one drain call may claim.
	MaxDrainJobs int
}

func NewHandler(s *Service, d Drainer, maxDrainJobs int) *Handler {
	return &Handler{service: s, drainer: d, MaxDrainJobs: maxDrainJobs}
}

func (h *Handler) ListDeadLetters(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	slog.InfoContext(ctx, "listing dead-lettered jobs", "correlationId", correlationID)

	jobs, err := h.service.ListDeadLetters(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list dead-lettered jobs", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	if jobs == nil {
		jobs = []Job{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": jobs,
		"meta": map[string]int{"count": len(jobs)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) Requeue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)
	id := r.PathValue("id")

	slog.InfoContext(ctx, "requeueing job", "id", id, "correlationId", correlationID)

	if err := h.service.Requeue(ctx, id); err != nil {
		slog.ErrorContext(ctx, "failed to requeue job", "id", id, "error", err, "correlationId", correlationID)
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(ctx, w, "NOT_FOUND", "Dead-lettered job not found", http.StatusNotFound)
			return
		}
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": "job requeued"}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// Drain processes a bounded batch of queued jobs in this request and
// reports the per-job outcomes.
func (h *Handler) Drain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	var body struct {
		MaxJobs int `json:"max_jobs"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	maxJobs := body.MaxJobs
	if maxJobs <= 0 {
		maxJobs = 1
	}
	if maxJobs > h.MaxDrainJobs {
		maxJobs = h.MaxDrainJobs
	}

	slog.InfoContext(ctx, "draining queue", "max_jobs", maxJobs, "correlationId", correlationID)

	results := h.drainer.Drain(ctx, maxJobs)

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": results,
		"meta": map[string]int{"processed": len(results)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
