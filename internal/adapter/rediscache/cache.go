package rediscache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"ragline/internal/metrics"
	"ragline/internal/rag"
)

// Cache stores raw values by key. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// Embedder serves repeated texts from the cache. Cache failures fall through to
// the wrapped embedder and never fail the call.
type Embedder struct {
	next   rag.Embedder
	cache  Cache
	model  string
	ttl    time.Duration
	logger *slog.Logger
}

func NewEmbedder(next rag.Embedder, cache Cache, model string, ttl time.Duration, logger *slog.Logger) *Embedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedder{next: next, cache: cache, model: model, ttl: ttl, logger: logger}
}

func Key(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return "embed:" + model + ":" + hex.EncodeToString(sum[:])
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := Key(e.model, text)

	raw, ok, err := e.cache.Get(ctx, key)
	switch {
	case err != nil:
		metrics.EmbeddingCache.WithLabelValues("error").Inc()
		e.logger.WarnContext(ctx, "embedding cache read failed", "error", err)
	case ok:
		var vec []float32
		if err := json.Unmarshal(raw, &vec); err == nil && len(vec) > 0 {
			metrics.EmbeddingCache.WithLabelValues("hit").Inc()
			return vec, nil
		}
		metrics.EmbeddingCache.WithLabelValues("error").Inc()
	default:
		metrics.EmbeddingCache.WithLabelValues("miss").Inc()
	}

	vec, err := e.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(vec); err == nil {
		if err := e.cache.Set(ctx, key, data, e.ttl); err != nil {
			e.logger.WarnContext(ctx, "embedding cache write failed", "error", err)
		}
	}
	return vec, nil
}
