package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ragline/features/chunk"
	"ragline/features/job"
	"ragline/features/source"
	"ragline/internal/text"
)

// EmbedHandler turns surviving candidates into stored chunks: exact hash,
// embedding vector, semantic near-duplicate check, insert. Duplicates of
// either kind are silent skips. Owns SCORED→EMBEDDED; the chain ends here.
type EmbedHandler struct {
	Sources  SourceStore
	Chunks   ChunkInserter
	Embedder Embedder
	Vectors  VectorIndex

	Lang                string
	SimilarityThreshold float32

	// PaceEvery/PaceDelay throttle insertions to respect the embedding
	// provider's rate limits. Sleep is swappable for tests.
	PaceEvery int
	PaceDelay time.Duration
	Sleep     func(time.Duration)
}

func (h *EmbedHandler) Handle(ctx context.Context, j *job.Job, src *source.Source) error {
	var p EmbedPayload
	if err := json.Unmarshal(j.Payload, &p); err != nil {
		return fmt.Errorf("decode embed payload: %w", err)
	}

	threshold := h.SimilarityThreshold
	if threshold == 0 {
		threshold = DefaultSimilarityThreshold
	}
	sleep := h.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	inserted := 0
	for _, cand := range p.Chunks {
		content := strings.TrimSpace(cand.Content)
		if content == "" {
			continue
		}

		hash := text.HashContent(content)

		embedding, err := h.Embedder.Embed(ctx, content)
		if err != nil {
			return fmt.Errorf("embed chunk for source %s: %w", src.ID, err)
		}

		dupID, err := h.Vectors.FindNearDuplicate(ctx, embedding, j.CorpusID, threshold)
		if err != nil {
			return fmt.Errorf("near-duplicate lookup: %w", err)
		}
		if dupID != "" {
			// Only trust the match if the chunk row behind it is still
			// there. A vector can outlive its row when an earlier attempt
			// rolled back after StoreVector; treating that orphan as a
			// duplicate would drop the candidate for good.
			exists, err := h.Chunks.Exists(ctx, dupID)
			if err != nil {
				return fmt.Errorf("duplicate chunk lookup: %w", err)
			}
			if exists {
				slog.DebugContext(ctx, "semantic duplicate skipped", "source_id", src.ID, "duplicate_of", dupID)
				continue
			}
			slog.WarnContext(ctx, "removing orphaned vector", "source_id", src.ID, "chunk_id", dupID)
			if err := h.Vectors.DeleteByChunkID(ctx, dupID); err != nil {
				return fmt.Errorf("delete orphaned vector %s: %w", dupID, err)
			}
		}

		metadata := cand.Metadata
		if metadata == nil {
			metadata = map[string]interface{}{}
		}
		metadataJSON, _ := json.Marshal(metadata)
		qualityJSON, _ := json.Marshal(cand.Quality)

		c := &chunk.Chunk{
			CorpusID:    j.CorpusID,
			SourceID:    src.ID,
			Title:       cand.Title,
			Subdomain:   cand.Subdomain,
			Content:     content,
			Lang:        h.Lang,
			ContentHash: hash,
			Metadata:    metadataJSON,
			Quality:     qualityJSON,
		}
		if err := h.Chunks.Insert(ctx, c); err != nil {
			if errors.Is(err, chunk.ErrDuplicate) {
				slog.DebugContext(ctx, "exact duplicate skipped", "source_id", src.ID, "content_hash", hash)
				continue
			}
			return fmt.Errorf("insert chunk: %w", err)
		}

		if err := h.Vectors.StoreVector(ctx, StoredVector{
			ChunkID:     c.ID,
			CorpusID:    j.CorpusID,
			SourceID:    src.ID,
			ContentHash: hash,
			Vector:      embedding,
		}); err != nil {
			return fmt.Errorf("store vector: %w", err)
		}

		inserted++
		if h.PaceEvery > 0 && inserted%h.PaceEvery == 0 {
			sleep(h.PaceDelay)
		}
	}

	slog.InfoContext(ctx, "source embedded", "source_id", src.ID, "chunks", inserted)
	return h.Sources.UpdateStatus(ctx, src.ID, source.StatusEmbedded)
}
