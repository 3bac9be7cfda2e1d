package job

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragline/internal/ingestion"
	"ragline/internal/worker"
)

type slowPublisher struct {
	sleep time.Duration
}

func (p *slowPublisher) Publish(topic string, body []byte) error {
	time.Sleep(p.sleep)
	return nil
}

type memRepo struct {
	Repository
	saved     []*Job
	deleted   []string
	deleteErr error
}

func (m *memRepo) Save(ctx context.Context, j *Job) error {
	j.ID = "job-1"
	m.saved = append(m.saved, j)
	return nil
}

func (m *memRepo) Get(ctx context.Context, id string) (*Job, error) {
	return &Job{ID: id, DocumentID: "doc-1"}, nil
}

func (m *memRepo) Delete(ctx context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, id)
	return nil
}

type recordingPublisher struct {
	bodies [][]byte
}

func (p *recordingPublisher) Publish(topic string, body []byte) error {
	p.bodies = append(p.bodies, body)
	return nil
}

func (m *memRepo) Count(ctx context.Context) (int, error) { return 10, nil }

func TestRetry_PublishTimeoutKeepsJob(t *testing.T) {
	repo := &memRepo{}
	service := NewService(repo, &slowPublisher{sleep: 200 * time.Millisecond}, nil)
	service.publishTimeout = 10 * time.Millisecond

	err := service.Retry(context.Background(), "1")
	assert.ErrorIs(t, err, worker.ErrPublishTimeout)
	assert.Empty(t, repo.deleted)
}

func TestRetry_PublishesThenDeletes(t *testing.T) {
	repo := &memRepo{}
	pub := &recordingPublisher{}

	require.NoError(t, NewService(repo, pub, nil).Retry(context.Background(), "job-7"))
	assert.Len(t, pub.bodies, 1)
	assert.Equal(t, []string{"job-7"}, repo.deleted)
}

func TestRetry_DeleteFailureAfterPublishSucceeds(t *testing.T) {
	var logs bytes.Buffer
	repo := &memRepo{deleteErr: errors.New("connection reset")}
	pub := &recordingPublisher{}
	service := NewService(repo, pub, slog.New(slog.NewJSONHandler(&logs, nil)))

	err := service.Retry(context.Background(), "job-7")
	require.NoError(t, err)
	require.Len(t, pub.bodies, 1)
	assert.Contains(t, string(pub.bodies[0]), "doc-1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(logs.Bytes(), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "job-7", line["job_id"])
	assert.Equal(t, "connection reset", line["error"])
}

func TestService_RecordFailure(t *testing.T) {
	repo := &memRepo{}
	service := NewService(repo, nil, nil)

	err := service.RecordFailure(context.Background(), ingestion.Failure{
		DocumentID: "doc-1",
		Stage:      ingestion.StageEmbedding,
		Err:        errors.New("upstream 503"),
		Indexed:    2,
	})
	require.NoError(t, err)
	require.Len(t, repo.saved, 1)
	assert.Equal(t, "doc-1", repo.saved[0].DocumentID)
	assert.Equal(t, "embedding", repo.saved[0].Stage)
	assert.Equal(t, "upstream 503", repo.saved[0].Error)
	assert.Equal(t, 2, repo.saved[0].Indexed)
}

func TestService_Count(t *testing.T) {
	count, err := NewService(&memRepo{}, nil, nil).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, count)
}
