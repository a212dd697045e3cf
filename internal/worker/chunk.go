package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"ragline/features/job"
	"ragline/features/source"
	"ragline/internal/text"
)

// ChunkHandler segments the cleaned text into chunk candidates. Owns
// CLEANED→CHUNKED.
type ChunkHandler struct {
	Sources SourceStore
	Jobs    JobQueue
}

func (h *ChunkHandler) Handle(ctx context.Context, j *job.Job, src *source.Source) error {
	var p ChunkPayload
	if err := json.Unmarshal(j.Payload, &p); err != nil {
		return fmt.Errorf("decode chunk payload: %w", err)
	}

	candidates := text.ChunkText(p.Cleaned)
	slog.InfoContext(ctx, "chunked source", "source_id", src.ID, "candidates", len(candidates))

	if err := h.Sources.UpdateStatus(ctx, src.ID, source.StatusChunked); err != nil {
		return err
	}

	payload, err := json.Marshal(ScorePayload{Chunks: candidates})
	if err != nil {
		return err
	}
	return h.Jobs.Enqueue(ctx, &job.Job{
		CorpusID: j.CorpusID,
		SourceID: src.ID,
		Type:     job.TypeScore,
		Payload:  payload,
	})
}
