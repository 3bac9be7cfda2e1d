package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"ragline/internal/ingestion"
	"ragline/internal/middleware"
	"ragline/internal/rag"
	"ragline/internal/worker"
)

type MockReindexer struct{ mock.Mock }

func (m *MockReindexer) Reindex(ctx context.Context, id string) (ingestion.Result, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(ingestion.Result), args.Error(1)
}

func message(t *testing.T, task worker.ReindexTask) *nsq.Message {
	body, err := json.Marshal(task)
	assert.NoError(t, err)
	return &nsq.Message{Body: body}
}

func TestReindexConsumer_HandleMessage(t *testing.T) {
	r := new(MockReindexer)
	r.On("Reindex", mock.MatchedBy(func(ctx context.Context) bool {
		return middleware.GetCorrelationID(ctx) == "corr-9"
	}), "doc-1").Return(ingestion.Result{DocumentID: "doc-1", NumberOfEmbeddings: 3}, nil)

	err := worker.NewReindexConsumer(r).HandleMessage(message(t, worker.ReindexTask{DocumentID: "doc-1", CorrelationID: "corr-9"}))
	assert.NoError(t, err)
	r.AssertExpectations(t)
}

func TestReindexConsumer_PoisonPill(t *testing.T) {
	r := new(MockReindexer)
	c := worker.NewReindexConsumer(r)

	assert.NoError(t, c.HandleMessage(&nsq.Message{Body: []byte("invalid json")}))
	assert.NoError(t, c.HandleMessage(&nsq.Message{Body: []byte(`{}`)}))
	assert.NoError(t, c.HandleMessage(&nsq.Message{}))
	r.AssertNotCalled(t, "Reindex", mock.Anything, mock.Anything)
}

func TestReindexConsumer_Errors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		requeue bool
	}{
		{"NotFound", rag.ErrNotFound, false},
		{"StoreUnavailable", rag.E(rag.KindStore, "reindex", errors.New("conn refused")), true},
		{"EmbeddingFailure", rag.E(rag.KindEmbedding, "embed", errors.New("503")), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := new(MockReindexer)
			r.On("Reindex", mock.Anything, "doc-1").Return(ingestion.Result{DocumentID: "doc-1"}, tt.err)

			err := worker.NewReindexConsumer(r).HandleMessage(message(t, worker.ReindexTask{DocumentID: "doc-1"}))
			if tt.requeue {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
