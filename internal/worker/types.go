package worker

import (
	"context"

	"ragline/features/chunk"
	"ragline/features/job"
	"ragline/features/source"
)

// Thresholds shared across stage handlers.
const (
	// MinSourceWords is the floor under which a source is skipped, whether
	// measured after extraction or after cleaning.
	MinSourceWords = 250

	// MaxStagePayloadBytes caps extracted/cleaned text carried between
	// stages so job rows stay bounded. The raw fetch body has its own,
	// larger cap applied by the Fetch handler.
	MaxStagePayloadBytes = 200000

	// DefaultSimilarityThreshold is the cosine similarity above which a
	// candidate counts as a semantic duplicate of an existing chunk.
	DefaultSimilarityThreshold = 0.92
)

// StageHandler executes one pipeline stage for one claimed job. A returned
// error is transient and triggers retry/dead-letter; content verdicts
// (bad HTTP status, too-short text, unsupported content type) are recorded
// on the source and return nil.
type StageHandler interface {
	Handle(ctx context.Context, j *job.Job, src *source.Source) error
}

// SourceStore is the slice of the source repository stage handlers mutate.
type SourceStore interface {
	UpdateStatus(ctx context.Context, id, status string) error
	SetFetchResult(ctx context.Context, id string, httpStatus int, contentType string) error
	SetExtraction(ctx context.Context, id, quality string, wordCount int) error
	SetWordCount(ctx context.Context, id string, wordCount int) error
	SetContentHash(ctx context.Context, id, hash string) error
	SetError(ctx context.Context, id, status, message string) error
}

// JobQueue enqueues the follow-on job a successful stage produces.
type JobQueue interface {
	Enqueue(ctx context.Context, j *job.Job) error
}

// ChunkInserter persists a finished chunk; chunk.ErrDuplicate signals the
// exact-dedup no-op case. Exists backs the orphaned-vector check in the
// Embed stage.
type ChunkInserter interface {
	Insert(ctx context.Context, c *chunk.Chunk) error
	Exists(ctx context.Context, id string) (bool, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// StoredVector is one chunk embedding handed to the vector index, keyed
// back to its Postgres chunk row.
type StoredVector struct {
	ChunkID     string
	CorpusID    string
	SourceID    string
	ContentHash string
	Vector      []float32
}

type VectorIndex interface {
	StoreVector(ctx context.Context, v StoredVector) error
	FindNearDuplicate(ctx context.Context, embedding []float32, corpusID string, cosineThreshold float32) (string, error)
	DeleteByChunkID(ctx context.Context, chunkID string) error
}
