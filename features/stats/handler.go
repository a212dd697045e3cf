package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"ragline/internal/middleware"
)

type SourceRepo interface {
	Count(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
}

type JobRepo interface {
	CountPending(ctx context.Context) (int, error)
	CountDeadLetters(ctx context.Context) (int, error)
}

type ChunkRepo interface {
	Count(ctx context.Context) (int, error)
}

type Handler struct {
	sourceRepo SourceRepo
	jobRepo    JobRepo
	chunkRepo  ChunkRepo
}

func NewHandler(s SourceRepo, j JobRepo, c ChunkRepo) *Handler {
	return &Handler{sourceRepo: s, jobRepo: j, chunkRepo: c}
}

type StatsResponse struct {
	Sources         int            `json:"sources"`
	SourcesByStatus map[string]int `json:"sources_by_status"`
	Chunks          int            `json:"chunks"`
	PendingJobs     int            `json:"pending_jobs"`
	DeadLetterJobs  int            `json:"dead_letter_jobs"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	sCount, err := h.sourceRepo.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count sources", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count sources", http.StatusInternalServerError)
		return
	}

	byStatus, err := h.sourceRepo.CountByStatus(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count sources by status", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count sources by status", http.StatusInternalServerError)
		return
	}

	pending, err := h.jobRepo.CountPending(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count pending jobs", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count pending jobs", http.StatusInternalServerError)
		return
	}

	dead, err := h.jobRepo.CountDeadLetters(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count dead letters", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count dead letters", http.StatusInternalServerError)
		return
	}

	cCount, err := h.chunkRepo.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count chunks", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count chunks", http.StatusInternalServerError)
		return
	}

	resp := StatsResponse{
		Sources:         sCount,
		SourcesByStatus: byStatus,
		Chunks:          cCount,
		PendingJobs:     pending,
		DeadLetterJobs:  dead,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
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
