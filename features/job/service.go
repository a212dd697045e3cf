package job

import (
	"context"
	"log/slog"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) ListDeadLetters(ctx context.Context) ([]Job, error) {
	return s.repo.ListDeadLetters(ctx)
}

func (s *Service) Requeue(ctx context.Context, id string) error {
	if err := s.repo.Requeue(ctx, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "dead-lettered job requeued", "job_id", id)
	return nil
}

func (s *Service) CountPending(ctx context.Context) (int, error) {
	return s.repo.CountPending(ctx)
}
