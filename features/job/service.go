package job

import (
	"context"
	"log/slog"
	"time"

	"ragline/internal/ingestion"
	"ragline/internal/worker"
)

type Service struct {
	repo           Repository
	pub            worker.Publisher
	logger         *slog.Logger
	publishTimeout time.Duration
}

func NewService(repo Repository, pub worker.Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, pub: pub, logger: logger, publishTimeout: worker.PublishTimeout}
}

// RecordFailure stores a failed ingestion so it can be retried later.
func (s *Service) RecordFailure(ctx context.Context, f ingestion.Failure) error {
	j := &Job{DocumentID: f.DocumentID, Stage: f.Stage, Indexed: f.Indexed}
	if f.Err != nil {
		j.Error = f.Err.Error()
	}
	if err := s.repo.Save(ctx, j); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "failed job recorded", "job_id", j.ID, "document_id", j.DocumentID, "stage", j.Stage)
	return nil
}

func (s *Service) List(ctx context.Context) ([]Job, error) {
	return s.repo.List(ctx)
}

// Retry queues a reindex of the job's document and removes the job. Once the
// task is queued the retry has succeeded; a job row that cannot be removed is
// only logged, and a later retry of it reindexes the same document again.
func (s *Service) Retry(ctx context.Context, id string) error {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := worker.PublishReindex(ctx, s.pub, s.publishTimeout, job.DocumentID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish reindex task", "job_id", id, "error", err)
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "reindex queued but failed job not removed", "job_id", id, "document_id", job.DocumentID, "error", err)
	}
	return nil
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
