package worker

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"ragline/features/chunk"
	"ragline/features/job"
	"ragline/features/source"
	"ragline/internal/text"
)

// StageConfig carries the tunables stage handlers need.
type StageConfig struct {
	UserAgent           string
	FetchMaxBytes       int64
	FetchTimeout        time.Duration
	ChunkLang           string
	SimilarityThreshold float32
}

func DefaultStageConfig() StageConfig {
	return StageConfig{
		UserAgent:           "ragline/1.0",
		FetchMaxBytes:       500000,
		FetchTimeout:        15 * time.Second,
		ChunkLang:           "en",
		SimilarityThreshold: DefaultSimilarityThreshold,
	}
}

// Pipeline dispatches a claimed job to its stage handler. Each run opens
// one transaction: the handler's source update and next-job enqueue commit
// together, so a crash in between can never lose the only record of the
// remaining work.
type Pipeline struct {
	db       *sql.DB
	sources  *source.PostgresRepo
	jobs     *job.PostgresRepo
	chunks   *chunk.PostgresRepo
	embedder Embedder
	vectors  VectorIndex
	filter   text.BoilerplateFilter
	client   *http.Client
	cfg      StageConfig
}

func NewPipeline(
	db *sql.DB,
	sources *source.PostgresRepo,
	jobs *job.PostgresRepo,
	chunks *chunk.PostgresRepo,
	embedder Embedder,
	vectors VectorIndex,
	filter text.BoilerplateFilter,
	cfg StageConfig,
) *Pipeline {
	return &Pipeline{
		db:       db,
		sources:  sources,
		jobs:     jobs,
		chunks:   chunks,
		embedder: embedder,
		vectors:  vectors,
		filter:   filter,
		client:   &http.Client{Timeout: cfg.FetchTimeout},
		cfg:      cfg,
	}
}

// stageEntryStatus maps each job type to the source status it consumes.
// A claimed job whose source has already moved past that status is a rerun
// of settled work (a worker died between committing the stage and marking
// the job done); running it again would roll the source backward and
// enqueue a duplicate follow-on chain.
var stageEntryStatus = map[job.Type]string{
	job.TypeFetch:   source.StatusPending,
	job.TypeExtract: source.StatusFetched,
	job.TypeClean:   source.StatusExtracted,
	job.TypeChunk:   source.StatusCleaned,
	job.TypeScore:   source.StatusChunked,
	job.TypeEmbed:   source.StatusScored,
}

func (p *Pipeline) Run(ctx context.Context, j *job.Job) error {
	if j.SourceID == "" {
		return fmt.Errorf("job %s has no source", j.ID)
	}
	expected, ok := stageEntryStatus[j.Type]
	if !ok {
		return fmt.Errorf("unknown job type %q", j.Type)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin stage tx: %w", err)
	}
	defer tx.Rollback()

	sources := p.sources.WithTx(tx)
	jobs := p.jobs.WithTx(tx)
	chunks := p.chunks.WithTx(tx)

	src, err := sources.Get(ctx, j.SourceID)
	if err != nil {
		return fmt.Errorf("load source %s: %w", j.SourceID, err)
	}
	if src.Status != expected {
		slog.InfoContext(ctx, "stale job skipped",
			"job_id", j.ID, "type", j.Type, "source_id", src.ID, "source_status", src.Status)
		return nil
	}

	var h StageHandler
	switch j.Type {
	case job.TypeFetch:
		h = &FetchHandler{
			Client:    p.client,
			UserAgent: p.cfg.UserAgent,
			MaxBytes:  p.cfg.FetchMaxBytes,
			Sources:   sources,
			Jobs:      jobs,
		}
	case job.TypeExtract:
		h = &ExtractHandler{Sources: sources, Jobs: jobs}
	case job.TypeClean:
		h = &CleanHandler{Sources: sources, Jobs: jobs, Filter: p.filter}
	case job.TypeChunk:
		h = &ChunkHandler{Sources: sources, Jobs: jobs}
	case job.TypeScore:
		h = &ScoreHandler{Sources: sources, Jobs: jobs, Filter: p.filter}
	case job.TypeEmbed:
		h = &EmbedHandler{
			Sources:             sources,
			Chunks:              chunks,
			Embedder:            p.embedder,
			Vectors:             p.vectors,
			Lang:                p.cfg.ChunkLang,
			SimilarityThreshold: p.cfg.SimilarityThreshold,
			PaceEvery:           5,
			PaceDelay:           200 * time.Millisecond,
		}
	default:
		return fmt.Errorf("unknown job type %q", j.Type)
	}

	if err := h.Handle(ctx, j, src); err != nil {
		return err
	}
	return tx.Commit()
}
