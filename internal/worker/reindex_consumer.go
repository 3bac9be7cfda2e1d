package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"

	"ragline/internal/ingestion"
	"ragline/internal/middleware"
	"ragline/internal/rag"
)

const handleTimeout = 60 * time.Second

type Reindexer interface {
	Reindex(ctx context.Context, documentID string) (ingestion.Result, error)
}

type ReindexConsumer struct {
	reindexer Reindexer
}

func NewReindexConsumer(r Reindexer) *ReindexConsumer {
	return &ReindexConsumer{reindexer: r}
}

// HandleMessage acks everything except a failure that happened before any
// work was recorded. Chunk failures are already persisted as failed jobs and
// are retried from there.
func (h *ReindexConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var task ReindexTask
	if err := json.Unmarshal(m.Body, &task); err != nil || task.DocumentID == "" {
		// Poison Pill: don't retry
		slog.Error("poison pill: invalid reindex task", "error", err)
		return nil
	}

	ctx := context.Background()
	if task.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, task.CorrelationID)
	}
	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	res, err := h.reindexer.Reindex(ctx, task.DocumentID)
	switch {
	case err == nil:
		slog.InfoContext(ctx, "reindex complete", "document_id", task.DocumentID, "chunks", res.NumberOfEmbeddings)
		return nil
	case errors.Is(err, rag.ErrNotFound):
		slog.WarnContext(ctx, "reindex skipped, document not found", "document_id", task.DocumentID)
		return nil
	case rag.IsKind(err, rag.KindStore):
		slog.ErrorContext(ctx, "reindex failed to load document", "document_id", task.DocumentID, "error", err)
		return err // Retry
	default:
		slog.ErrorContext(ctx, "reindex failed", "document_id", task.DocumentID, "error", err)
		return nil
	}
}
