package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"ragline/features/chunk"
	"ragline/features/job"
	"ragline/features/source"
	"ragline/internal/text"
	"ragline/internal/worker"
)

func embedJob(t *testing.T, chunks []text.Candidate) *job.Job {
	t.Helper()
	return &job.Job{
		CorpusID: "c1",
		SourceID: "src1",
		Type:     job.TypeEmbed,
		Payload:  mustPayload(t, worker.EmbedPayload{Chunks: chunks}),
	}
}

func TestEmbedHandler_StoresChunkAndVector(t *testing.T) {
	sources := new(MockSourceStore)
	chunks := new(MockChunkInserter)
	embedder := new(MockEmbedder)
	vectors := new(MockVectorIndex)

	h := &worker.EmbedHandler{
		Sources: sources, Chunks: chunks, Embedder: embedder, Vectors: vectors,
		Lang: "en", SimilarityThreshold: 0.92,
	}

	content := "Some genuinely novel chunk content."
	vec := []float32{0.1, 0.2, 0.3}

	embedder.On("Embed", mock.Anything, content).Return(vec, nil)
	vectors.On("FindNearDuplicate", mock.Anything, vec, "c1", float32(0.92)).Return("", nil)
	chunks.On("Insert", mock.Anything, mock.MatchedBy(func(c *chunk.Chunk) bool {
		return c.CorpusID == "c1" && c.SourceID == "src1" &&
			c.Content == content && c.ContentHash == text.HashContent(content) && c.Lang == "en"
	})).Return(nil)
	vectors.On("StoreVector", mock.Anything, mock.MatchedBy(func(v worker.StoredVector) bool {
		return v.CorpusID == "c1" && v.SourceID == "src1" && len(v.Vector) == 3
	})).Return(nil)
	sources.On("UpdateStatus", mock.Anything, "src1", source.StatusEmbedded).Return(nil)

	err := h.Handle(context.Background(), embedJob(t, []text.Candidate{{Content: content}}),
		&source.Source{ID: "src1", CorpusID: "c1"})

	assert.NoError(t, err)
	chunks.AssertExpectations(t)
	vectors.AssertExpectations(t)
	sources.AssertExpectations(t)
}

func TestEmbedHandler_SemanticDuplicateSkipped(t *testing.T) {
	sources := new(MockSourceStore)
	chunks := new(MockChunkInserter)
	embedder := new(MockEmbedder)
	vectors := new(MockVectorIndex)

	h := &worker.EmbedHandler{
		Sources: sources, Chunks: chunks, Embedder: embedder, Vectors: vectors,
		SimilarityThreshold: 0.92,
	}

	embedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{1, 0}, nil)
	vectors.On("FindNearDuplicate", mock.Anything, mock.Anything, "c1", float32(0.92)).Return("existing-chunk", nil)
	chunks.On("Exists", mock.Anything, "existing-chunk").Return(true, nil)
	sources.On("UpdateStatus", mock.Anything, "src1", source.StatusEmbedded).Return(nil)

	err := h.Handle(context.Background(), embedJob(t, []text.Candidate{{Content: "near duplicate text"}}),
		&source.Source{ID: "src1", CorpusID: "c1"})

	assert.NoError(t, err)
	chunks.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	vectors.AssertNotCalled(t, "StoreVector", mock.Anything, mock.Anything)
	sources.AssertExpectations(t)
}

func TestEmbedHandler_OrphanedVectorDoesNotSuppressInsert(t *testing.T) {
	// An earlier attempt stored this candidate's vector, then its
	// transaction rolled back: the vector survives, the chunk row does
	// not. The rerun must detect the orphan, remove it, and insert the
	// candidate instead of skipping it as a duplicate.
	sources := new(MockSourceStore)
	chunks := new(MockChunkInserter)
	embedder := new(MockEmbedder)
	vectors := new(MockVectorIndex)

	h := &worker.EmbedHandler{
		Sources: sources, Chunks: chunks, Embedder: embedder, Vectors: vectors,
		Lang: "en", SimilarityThreshold: 0.92,
	}

	content := "Candidate text from the retried attempt."
	vec := []float32{0.4, 0.5}

	embedder.On("Embed", mock.Anything, content).Return(vec, nil)
	vectors.On("FindNearDuplicate", mock.Anything, vec, "c1", float32(0.92)).Return("orphaned-chunk", nil)
	chunks.On("Exists", mock.Anything, "orphaned-chunk").Return(false, nil)
	vectors.On("DeleteByChunkID", mock.Anything, "orphaned-chunk").Return(nil)
	chunks.On("Insert", mock.Anything, mock.MatchedBy(func(c *chunk.Chunk) bool {
		return c.Content == content && c.ContentHash == text.HashContent(content)
	})).Return(nil)
	vectors.On("StoreVector", mock.Anything, mock.Anything).Return(nil)
	sources.On("UpdateStatus", mock.Anything, "src1", source.StatusEmbedded).Return(nil)

	err := h.Handle(context.Background(), embedJob(t, []text.Candidate{{Content: content}}),
		&source.Source{ID: "src1", CorpusID: "c1"})

	assert.NoError(t, err)
	chunks.AssertExpectations(t)
	vectors.AssertExpectations(t)
	sources.AssertExpectations(t)
}

func TestEmbedHandler_ExactDuplicateSkipped(t *testing.T) {
	sources := new(MockSourceStore)
	chunks := new(MockChunkInserter)
	embedder := new(MockEmbedder)
	vectors := new(MockVectorIndex)

	h := &worker.EmbedHandler{
		Sources: sources, Chunks: chunks, Embedder: embedder, Vectors: vectors,
	}

	embedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{1, 0}, nil)
	vectors.On("FindNearDuplicate", mock.Anything, mock.Anything, "c1", mock.Anything).Return("", nil)
	chunks.On("Insert", mock.Anything, mock.Anything).Return(chunk.ErrDuplicate)
	sources.On("UpdateStatus", mock.Anything, "src1", source.StatusEmbedded).Return(nil)

	err := h.Handle(context.Background(), embedJob(t, []text.Candidate{{Content: "already stored text"}}),
		&source.Source{ID: "src1", CorpusID: "c1"})

	assert.NoError(t, err)
	vectors.AssertNotCalled(t, "StoreVector", mock.Anything, mock.Anything)
	sources.AssertExpectations(t)
}

func TestEmbedHandler_EmbedderErrorIsTransient(t *testing.T) {
	sources := new(MockSourceStore)
	chunks := new(MockChunkInserter)
	embedder := new(MockEmbedder)
	vectors := new(MockVectorIndex)

	h := &worker.EmbedHandler{Sources: sources, Chunks: chunks, Embedder: embedder, Vectors: vectors}

	embedder.On("Embed", mock.Anything, mock.Anything).Return(nil, errors.New("rate limited"))

	err := h.Handle(context.Background(), embedJob(t, []text.Candidate{{Content: "whatever"}}),
		&source.Source{ID: "src1", CorpusID: "c1"})

	assert.Error(t, err)
	sources.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestEmbedHandler_PacesInsertions(t *testing.T) {
	sources := new(MockSourceStore)
	chunks := new(MockChunkInserter)
	embedder := new(MockEmbedder)
	vectors := new(MockVectorIndex)

	slept := 0
	h := &worker.EmbedHandler{
		Sources: sources, Chunks: chunks, Embedder: embedder, Vectors: vectors,
		PaceEvery: 2, PaceDelay: time.Millisecond,
		Sleep: func(time.Duration) { slept++ },
	}

	embedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{1}, nil)
	vectors.On("FindNearDuplicate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", nil)
	chunks.On("Insert", mock.Anything, mock.Anything).Return(nil)
	vectors.On("StoreVector", mock.Anything, mock.Anything).Return(nil)
	sources.On("UpdateStatus", mock.Anything, "src1", source.StatusEmbedded).Return(nil)

	cands := []text.Candidate{
		{Content: "chunk one text"}, {Content: "chunk two text"},
		{Content: "chunk three text"}, {Content: "chunk four text"},
		{Content: "chunk five text"},
	}
	err := h.Handle(context.Background(), embedJob(t, cands), &source.Source{ID: "src1", CorpusID: "c1"})

	assert.NoError(t, err)
	assert.Equal(t, 2, slept) // after insertions 2 and 4
}

func TestEmbedHandler_EmptyCandidateIgnored(t *testing.T) {
	sources := new(MockSourceStore)
	chunks := new(MockChunkInserter)
	embedder := new(MockEmbedder)
	vectors := new(MockVectorIndex)

	h := &worker.EmbedHandler{Sources: sources, Chunks: chunks, Embedder: embedder, Vectors: vectors}

	sources.On("UpdateStatus", mock.Anything, "src1", source.StatusEmbedded).Return(nil)

	err := h.Handle(context.Background(), embedJob(t, []text.Candidate{{Content: "   "}}),
		&source.Source{ID: "src1", CorpusID: "c1"})

	assert.NoError(t, err)
	embedder.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything)
	sources.AssertExpectations(t)
}
