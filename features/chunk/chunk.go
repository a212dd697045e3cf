package chunk

import (
	"encoding/json"
	"time"
)

// Chunk is one deduplicated, quality-scored unit of retrievable text. Rows
// are created only by the Embed stage and are immutable afterwards; the
// embedding vector lives in the vector store keyed by the row id. The
// (corpus_id, content_hash) pair is unique, which is what makes exact
// deduplication a storage concern rather than a pipeline one.
type Chunk struct {
	ID          string          `json:"id"`
	CorpusID    string          `json:"corpus_id"`
	SourceID    string          `json:"source_id"`
	Title       string          `json:"title,omitempty"`
	Subdomain   string          `json:"subdomain,omitempty"`
	Content     string          `json:"content"`
	Lang        string          `json:"lang"`
	ContentHash string          `json:"content_hash"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	Quality     json.RawMessage `json:"quality,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}
