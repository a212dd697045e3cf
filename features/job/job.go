package job

import (
	"encoding/json"
	"time"
)

// Type names the pipeline stage a job drives. Each stage handler enqueues
// the next type in the chain; EMBED is the last and enqueues nothing.
type Type string

const (
	TypeFetch   Type = "FETCH"
	TypeExtract Type = "EXTRACT"
	TypeClean   Type = "CLEAN"
	TypeChunk   Type = "CHUNK"
	TypeScore   Type = "SCORE"
	TypeEmbed   Type = "EMBED"
)

// Job is one queued unit of stage work. Payloads are written once at
// enqueue time and never mutated; a stage always enqueues a fresh job for
// its successor, so the jobs table doubles as a per-source audit trail.
type Job struct {
	ID           string          `json:"id"`
	CorpusID     string          `json:"corpus_id"`
	SourceID     string          `json:"source_id,omitempty"`
	Type         Type            `json:"job_type"`
	Payload      json.RawMessage `json:"payload"`
	Attempt      int             `json:"attempt"`
	ClaimedBy    string          `json:"claimed_by,omitempty"`
	VisibleAfter time.Time       `json:"visible_after"`
	Terminal     bool            `json:"terminal"`
	DeadLetter   bool            `json:"dead_letter"`
	LastError    json.RawMessage `json:"last_error,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// RunResult is what the worker loop reports per processed job, exposed
// verbatim through the drain endpoint.
type RunResult struct {
	JobID  string `json:"job_id,omitempty"`
	Type   Type   `json:"job_type,omitempty"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

const (
	StatusDone   = "DONE"
	StatusRetry  = "RETRY_OR_DEAD_LETTER"
	StatusNoJobs = "NO_JOBS"

	// StatusError reports that claiming a job failed, so nothing can be
	// said about the queue. Distinct from NO_JOBS: an errored claim must
	// not be read as an empty queue.
	StatusError = "ERROR"
)
