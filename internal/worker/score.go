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

// ScoreHandler grades every chunk candidate and discards the DROPs before
// they reach the embedding provider. Owns CHUNKED→SCORED.
type ScoreHandler struct {
	Sources SourceStore
	Jobs    JobQueue
	Filter  text.BoilerplateFilter
}

func (h *ScoreHandler) Handle(ctx context.Context, j *job.Job, src *source.Source) error {
	var p ScorePayload
	if err := json.Unmarshal(j.Payload, &p); err != nil {
		return fmt.Errorf("decode score payload: %w", err)
	}

	keep := make([]text.Candidate, 0, len(p.Chunks))
	for _, c := range p.Chunks {
		q := text.ScoreChunk(c.Content, h.Filter)
		c.Quality = &q
		if q.Verdict != text.VerdictDrop {
			keep = append(keep, c)
		}
	}
	slog.InfoContext(ctx, "scored chunks", "source_id", src.ID, "total", len(p.Chunks), "kept", len(keep))

	if err := h.Sources.UpdateStatus(ctx, src.ID, source.StatusScored); err != nil {
		return err
	}

	payload, err := json.Marshal(EmbedPayload{Chunks: keep})
	if err != nil {
		return err
	}
	return h.Jobs.Enqueue(ctx, &job.Job{
		CorpusID: j.CorpusID,
		SourceID: src.ID,
		Type:     job.TypeEmbed,
		Payload:  payload,
	})
}
