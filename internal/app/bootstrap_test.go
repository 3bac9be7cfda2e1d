package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragline/internal/app"
	"ragline/internal/config"
	"ragline/internal/rag"
)

type statefulSchemaStore struct {
	callCount int
	failUntil int
}

func (m *statefulSchemaStore) EnsureSchema(ctx context.Context) error {
	m.callCount++
	if m.callCount <= m.failUntil {
		return errors.New("schema error")
	}
	return nil
}

func TestEnsureSchemaWithRetry_Success(t *testing.T) {
	store := &statefulSchemaStore{}
	err := app.EnsureSchemaWithRetry(context.Background(), store, 1, time.Millisecond)
	assert.NoError(t, err)
	assert.Equal(t, 1, store.callCount)
}

func TestEnsureSchemaWithRetry_Retries(t *testing.T) {
	store := &statefulSchemaStore{failUntil: 2}
	err := app.EnsureSchemaWithRetry(context.Background(), store, 5, time.Millisecond)
	assert.NoError(t, err)
	assert.Equal(t, 3, store.callCount)
}

func TestEnsureSchemaWithRetry_Fail(t *testing.T) {
	store := &statefulSchemaStore{failUntil: 100}
	err := app.EnsureSchemaWithRetry(context.Background(), store, 3, time.Millisecond)
	assert.Error(t, err)
	assert.Equal(t, 3, store.callCount)
}

func TestEnsureSchemaWithRetry_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := &statefulSchemaStore{failUntil: 100}
	err := app.EnsureSchemaWithRetry(ctx, store, 3, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBootstrap_Resilience_DBDown(t *testing.T) {
	cfg := &config.Config{
		DBHost:                     "localhost",
		DBPort:                     54322, // likely closed
		DBUser:                     "test",
		DBPass:                     "test",
		DBName:                     "test",
		BootstrapRetryAttempts:     1,
		BootstrapRetryDelaySeconds: 0,
	}

	start := time.Now()
	deps, err := app.Bootstrap(context.Background(), cfg)

	assert.Error(t, err)
	assert.Nil(t, deps)
	assert.Contains(t, err.Error(), "failed to ping db")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestNewProviders(t *testing.T) {
	ctx := context.Background()

	p, err := app.NewProviders(ctx, &config.Config{Provider: config.ProviderOllama, OllamaAPIURL: "http://localhost:11434", Model: "llama3", EmbedModel: "nomic-embed-text"})
	require.NoError(t, err)
	assert.NotNil(t, p.Embedder)
	assert.Same(t, p.Embedder, p.Completer)
	assert.NoError(t, p.Close())

	p, err = app.NewProviders(ctx, &config.Config{Provider: config.ProviderOpenAI, OpenAIAPIKey: "sk-test", Model: "gpt-4o-mini", EmbedModel: "text-embedding-3-small"})
	require.NoError(t, err)
	assert.Same(t, p.Embedder, p.Completer)

	_, err = app.NewProviders(ctx, &config.Config{Provider: config.ProviderGemini})
	assert.True(t, rag.IsKind(err, rag.KindConfiguration))

	_, err = app.NewProviders(ctx, &config.Config{Provider: "mystery"})
	assert.True(t, rag.IsKind(err, rag.KindConfiguration))
}
