package source

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	"ragline/features/chunk"
	"ragline/features/job"
	"ragline/internal/config"
	"ragline/internal/middleware"
)

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

// VectorCleaner removes a source's vectors when the source is deleted.
type VectorCleaner interface {
	DeleteBySource(ctx context.Context, corpusID, sourceID string) error
}

// Service owns the registration surface: creating a source row together
// with its initial FETCH job. The two inserts share one transaction so a
// crash can never leave a source that no job will ever pick up.
type Service struct {
	db      *sql.DB
	sources *PostgresRepo
	jobs    *job.PostgresRepo
	chunks  chunk.Repository
	vectors VectorCleaner
	pub     EventPublisher
}

func NewService(db *sql.DB, sources *PostgresRepo, jobs *job.PostgresRepo, chunks chunk.Repository, vectors VectorCleaner, pub EventPublisher) *Service {
	return &Service{db: db, sources: sources, jobs: jobs, chunks: chunks, vectors: vectors, pub: pub}
}

func (s *Service) Register(ctx context.Context, corpusID, rawURL string) (*Source, error) {
	u, err := url.ParseRequestURI(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid source url %q", rawURL)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin register tx: %w", err)
	}
	defer tx.Rollback()

	src := &Source{CorpusID: corpusID, URL: rawURL}
	if err := s.sources.WithTx(tx).Save(ctx, src); err != nil {
		return nil, fmt.Errorf("save source: %w", err)
	}

	first := &job.Job{
		CorpusID: corpusID,
		SourceID: src.ID,
		Type:     job.TypeFetch,
	}
	if err := s.jobs.WithTx(tx).Enqueue(ctx, first); err != nil {
		return nil, fmt.Errorf("enqueue fetch job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit register tx: %w", err)
	}

	// Wake the drain loop. Best effort: a scheduled tick will catch up if
	// the publish fails.
	tick, _ := json.Marshal(map[string]string{
		"reason":         "source_registered",
		"source_id":      src.ID,
		"correlation_id": middleware.GetCorrelationID(ctx),
	})
	if err := s.pub.Publish(config.TopicPipelineTick, tick); err != nil {
		slog.ErrorContext(ctx, "failed to publish pipeline tick", "error", err)
	} else {
		slog.InfoContext(ctx, "source registered", "source_id", src.ID, "url", rawURL)
	}

	return src, nil
}

type SourceDetail struct {
	Source
	Chunks      []chunk.Chunk `json:"chunks"`
	TotalChunks int           `json:"total_chunks"`
}

func (s *Service) Get(ctx context.Context, id string) (*SourceDetail, error) {
	src, err := s.sources.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	chunks, err := s.chunks.ListBySource(ctx, id)
	if err != nil {
		slog.WarnContext(ctx, "failed to fetch chunks", "error", err, "source_id", id)
		chunks = []chunk.Chunk{}
	}

	return &SourceDetail{
		Source:      *src,
		Chunks:      chunks,
		TotalChunks: len(chunks),
	}, nil
}

func (s *Service) List(ctx context.Context) ([]Source, error) {
	return s.sources.List(ctx)
}

// Delete is the admin corpus-management operation: it removes the source's
// vectors, its chunk rows and finally the source itself. The pipeline
// proper never calls this.
func (s *Service) Delete(ctx context.Context, id string) error {
	src, err := s.sources.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.vectors.DeleteBySource(ctx, src.CorpusID, id); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	if err := s.chunks.DeleteBySource(ctx, id); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return s.sources.Delete(ctx, id)
}
