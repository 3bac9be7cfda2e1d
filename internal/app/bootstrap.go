package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
	"github.com/redis/go-redis/v9"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ragline/features/document"
	"ragline/internal/adapter/memory"
	"ragline/internal/adapter/milvus"
	"ragline/internal/adapter/qdrant"
	wstore "ragline/internal/adapter/weaviate"
	"ragline/internal/config"
	"ragline/internal/rag"
	"ragline/internal/worker"
)

type Dependencies struct {
	DB        *sql.DB
	Documents document.Repository
	Index     rag.VectorIndex
	Publisher worker.Publisher
	Redis     *redis.Client

	closers []func() error
}

// Close releases every connection opened by Bootstrap, last opened first.
func (d *Dependencies) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Dependencies) onClose(fn func() error) {
	d.closers = append(d.closers, fn)
}

func Bootstrap(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	deps := &Dependencies{}
	retryDelay := time.Duration(cfg.BootstrapRetryDelaySeconds) * time.Second

	// Database
	db, err := sql.Open("postgres", cfg.PostgresDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	deps.DB = db
	deps.onClose(db.Close)

	if err := pingWithRetry(ctx, db, cfg.BootstrapRetryAttempts, retryDelay); err != nil {
		_ = deps.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if err := runMigrations(db, cfg.MigrationPath); err != nil {
		_ = deps.Close()
		return nil, err
	}

	// Document store
	docs, closeDocs, err := openDocumentStore(ctx, cfg, db)
	if err != nil {
		_ = deps.Close()
		return nil, err
	}
	deps.Documents = docs
	if closeDocs != nil {
		deps.onClose(closeDocs)
	}

	// Vector index
	index, closeIndex, err := openIndex(ctx, cfg)
	if err != nil {
		_ = deps.Close()
		return nil, err
	}
	deps.Index = index
	if closeIndex != nil {
		deps.onClose(closeIndex)
	}
	if s, ok := index.(rag.SchemaEnsurer); ok {
		if err := EnsureSchemaWithRetry(ctx, s, cfg.BootstrapRetryAttempts, retryDelay); err != nil {
			_ = deps.Close()
			return nil, fmt.Errorf("%s schema error: %w", cfg.VectorBackend, err)
		}
	}

	// NSQ Producer
	producer, err := nsq.NewProducer(cfg.NSQDHost, nsq.NewConfig())
	if err != nil {
		_ = deps.Close()
		return nil, fmt.Errorf("nsq producer error: %w", err)
	}
	deps.Publisher = producer
	deps.onClose(func() error {
		producer.Stop()
		return nil
	})
	createTopics(cfg.NSQDHTTP)

	// Embedding cache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			// Embeddings still work uncached.
			slog.Warn("redis unreachable, embedding cache disabled", "addr", cfg.RedisAddr, "error", err)
			_ = rdb.Close()
		} else {
			deps.Redis = rdb
			deps.onClose(rdb.Close)
		}
	}

	return deps, nil
}

func pingWithRetry(ctx context.Context, db *sql.DB, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		slog.Warn("failed to ping db, retrying...", "attempt", i+1, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	if err == nil {
		err = db.PingContext(ctx)
	}
	return err
}

func runMigrations(db *sql.DB, path string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migration driver error: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(path, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migration instance error: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up error: %w", err)
	}
	return nil
}

func openDocumentStore(ctx context.Context, cfg *config.Config, db *sql.DB) (document.Repository, func() error, error) {
	switch cfg.DocumentStore {
	case config.StoreMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, nil, fmt.Errorf("mongo connect error: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
		defer cancel()
		if err := client.Ping(pingCtx, nil); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, fmt.Errorf("mongo ping error: %w", err)
		}
		coll := client.Database(cfg.MongoDatabase).Collection(document.CollectionName)
		return document.NewMongoRepo(coll), func() error { return client.Disconnect(context.Background()) }, nil
	case config.StorePostgres, "":
		return document.NewPostgresRepo(db), nil, nil
	default:
		return nil, nil, rag.Configuration("bootstrap", fmt.Errorf("unknown document store %q", cfg.DocumentStore))
	}
}

func openIndex(ctx context.Context, cfg *config.Config) (rag.VectorIndex, func() error, error) {
	switch cfg.VectorBackend {
	case config.BackendWeaviate, "":
		wClient, err := weaviate.NewClient(weaviate.Config{Host: cfg.WeaviateHost, Scheme: cfg.WeaviateScheme})
		if err != nil {
			return nil, nil, fmt.Errorf("weaviate client error: %w", err)
		}
		return wstore.NewStore(wClient), nil, nil
	case config.BackendQdrant:
		return qdrant.NewIndex(cfg.QdrantURL, cfg.QdrantAPIKey, cfg.Collection, cfg.EmbeddingDimension, &http.Client{}), nil, nil
	case config.BackendMilvus:
		idx, closeFn, err := milvus.Dial(ctx, milvus.Options{
			Address:    cfg.MilvusAddress,
			Database:   cfg.MilvusDatabase,
			Username:   cfg.MilvusUsername,
			Password:   cfg.MilvusPassword,
			Collection: cfg.Collection,
			Dimension:  cfg.EmbeddingDimension,
		})
		if err != nil {
			return nil, nil, err
		}
		return idx, closeFn, nil
	case config.BackendMemory:
		return memory.NewIndex(), nil, nil
	default:
		return nil, nil, rag.Configuration("bootstrap", fmt.Errorf("unknown vector backend %q", cfg.VectorBackend))
	}
}

func createTopics(nsqdHTTP string) {
	create := func(topic string) {
		url := fmt.Sprintf("http://%s/topic/create?topic=%s", nsqdHTTP, topic)
		resp, err := http.Post(url, "application/json", nil) // #nosec G107 -- URL is built from internal NSQ config, not user input
		if err != nil {
			slog.Warn("failed to create NSQ topic", "topic", topic, "error", err)
			return
		}
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close NSQ topic creation response body", "error", closeErr)
		}
	}

	go func() {
		time.Sleep(2 * time.Second)
		create(config.TopicReindex)
	}()
}

// EnsureSchemaWithRetry gives the index time to come up alongside the app.
func EnsureSchemaWithRetry(ctx context.Context, store rag.SchemaEnsurer, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = store.EnsureSchema(ctx); err == nil {
			return nil
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return err
}
