package source

import (
	"encoding/json"
	"time"
)

// Lifecycle statuses. A source only moves forward through the pipeline
// stages, or sideways to one of the two terminal states. The handler named
// after the target state owns the transition.
const (
	StatusPending   = "PENDING"
	StatusFetched   = "FETCHED"
	StatusExtracted = "EXTRACTED"
	StatusCleaned   = "CLEANED"
	StatusChunked   = "CHUNKED"
	StatusScored    = "SCORED"
	StatusEmbedded  = "EMBEDDED"
	StatusSkipped   = "SKIPPED"
	StatusFailed    = "FAILED"
)

// Extraction quality labels assigned by the Extract stage.
const (
	QualityNone   = "none"
	QualityLow    = "low"
	QualityMedium = "medium"
	QualityHigh   = "high"
)

// Source is one ingestion target tracked through the pipeline. It is
// created by the registration surface and mutated only by stage handlers;
// the pipeline never deletes one.
type Source struct {
	ID                string          `json:"id"`
	CorpusID          string          `json:"corpus_id"`
	URL               string          `json:"url"`
	HTTPStatus        int             `json:"http_status,omitempty"`
	ContentType       string          `json:"content_type,omitempty"`
	WordCount         int             `json:"word_count,omitempty"`
	ExtractionQuality string          `json:"extraction_quality"`
	ContentHash       string          `json:"content_hash,omitempty"`
	Status            string          `json:"status"`
	LastError         json.RawMessage `json:"last_error,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}
