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

// CleanHandler removes boilerplate from the extracted text and fingerprints
// the result for exact deduplication. Owns EXTRACTED→CLEANED.
type CleanHandler struct {
	Sources SourceStore
	Jobs    JobQueue
	Filter  text.BoilerplateFilter
}

func (h *CleanHandler) Handle(ctx context.Context, j *job.Job, src *source.Source) error {
	var p CleanPayload
	if err := json.Unmarshal(j.Payload, &p); err != nil {
		return fmt.Errorf("decode clean payload: %w", err)
	}

	cleaned := h.Filter.Strip(p.MainText)
	words := text.CountWords(cleaned)

	if err := h.Sources.SetWordCount(ctx, src.ID, words); err != nil {
		return err
	}

	if words < MinSourceWords {
		slog.InfoContext(ctx, "source skipped, too little text after cleaning", "source_id", src.ID, "words", words)
		return h.Sources.SetError(ctx, src.ID, source.StatusSkipped,
			fmt.Sprintf("only %d words after cleaning", words))
	}

	if err := h.Sources.SetContentHash(ctx, src.ID, text.HashContent(cleaned)); err != nil {
		return err
	}
	if err := h.Sources.UpdateStatus(ctx, src.ID, source.StatusCleaned); err != nil {
		return err
	}

	payload, err := json.Marshal(ChunkPayload{Cleaned: capString(cleaned, MaxStagePayloadBytes)})
	if err != nil {
		return err
	}
	return h.Jobs.Enqueue(ctx, &job.Job{
		CorpusID: j.CorpusID,
		SourceID: src.ID,
		Type:     job.TypeChunk,
		Payload:  payload,
	})
}
