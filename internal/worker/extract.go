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

// ExtractHandler strips markup from the fetched document and grades the
// extraction. Owns FETCHED→EXTRACTED.
type ExtractHandler struct {
	Sources SourceStore
	Jobs    JobQueue
}

func (h *ExtractHandler) Handle(ctx context.Context, j *job.Job, src *source.Source) error {
	var p ExtractPayload
	if err := json.Unmarshal(j.Payload, &p); err != nil {
		return fmt.Errorf("decode extract payload: %w", err)
	}

	mainText := text.ExtractMainText(p.RawText)
	words := text.CountWords(mainText)
	quality := text.QualityForWordCount(words)

	if err := h.Sources.SetExtraction(ctx, src.ID, quality, words); err != nil {
		return err
	}

	if words < MinSourceWords {
		slog.InfoContext(ctx, "source skipped, too little extracted text", "source_id", src.ID, "words", words)
		return h.Sources.SetError(ctx, src.ID, source.StatusSkipped,
			fmt.Sprintf("only %d words after extraction", words))
	}

	if err := h.Sources.UpdateStatus(ctx, src.ID, source.StatusExtracted); err != nil {
		return err
	}

	payload, err := json.Marshal(CleanPayload{MainText: capString(mainText, MaxStagePayloadBytes)})
	if err != nil {
		return err
	}
	return h.Jobs.Enqueue(ctx, &job.Job{
		CorpusID: j.CorpusID,
		SourceID: src.ID,
		Type:     job.TypeClean,
		Payload:  payload,
	})
}
