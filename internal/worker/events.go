package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ragline/internal/config"
	"ragline/internal/middleware"
)

// PublishTimeout bounds a single NSQ publish.
const PublishTimeout = 5 * time.Second

var ErrPublishTimeout = errors.New("timeout waiting for NSQ publish")

type ReindexTask struct {
	DocumentID    string `json:"document_id"`
	CorrelationID string `json:"correlation_id"`
}

type Publisher interface {
	Publish(topic string, body []byte) error
}

// PublishReindex queues a reindex of documentID. nsq.Producer.Publish takes
// no context, so the call runs in its own goroutine and is abandoned after
// timeout.
func PublishReindex(ctx context.Context, pub Publisher, timeout time.Duration, documentID string) error {
	body, err := json.Marshal(ReindexTask{
		DocumentID:    documentID,
		CorrelationID: middleware.GetCorrelationID(ctx),
	})
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- pub.Publish(config.TopicReindex, body)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("publish %s: %w", config.TopicReindex, err)
		}
		return nil
	case <-time.After(timeout):
		return ErrPublishTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}
