package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/nsqio/go-nsq"
	"golang.org/x/time/rate"

	"ragline/features/ask"
	"ragline/features/document"
	"ragline/features/job"
	"ragline/features/stats"
	"ragline/internal/adapter/rediscache"
	"ragline/internal/config"
	"ragline/internal/ingestion"
	"ragline/internal/metrics"
	"ragline/internal/middleware"
	"ragline/internal/rag"
	"ragline/internal/resilience"
	"ragline/internal/retrieval"
	"ragline/internal/settings"
	"ragline/internal/text"
	"ragline/internal/worker"
)

type App struct {
	Handler         http.Handler
	Ingestion       *ingestion.Service
	Retrieval       *retrieval.Service
	ReindexConsumer *worker.ReindexConsumer

	port     int
	queryLog *retrieval.QueryLogger
}

// New wires services and routes over already opened dependencies. Every
// upstream client is wrapped with its timeout and retry policy here.
func New(cfg *config.Config, deps *Dependencies, providers *Providers, logger *slog.Logger) (*App, error) {
	if deps.DB == nil {
		return nil, rag.Configuration("app", errors.New("database is required"))
	}

	retry := func(timeout time.Duration) resilience.Policy {
		return resilience.Policy{Timeout: timeout, Attempts: cfg.RetryAttempts, InitialInterval: cfg.RetryInterval}
	}

	var embedder rag.Embedder = resilience.NewEmbedder(providers.Embedder, retry(cfg.EmbedTimeout))
	if deps.Redis != nil {
		embedder = rediscache.NewEmbedder(embedder, rediscache.NewRedisCache(deps.Redis), cfg.EmbedModel, cfg.CacheTTL, logger)
	}
	completer := resilience.NewCompleter(providers.Completer, retry(cfg.CompletionTimeout))
	index := resilience.NewIndex(deps.Index, retry(cfg.IndexTimeout))
	store := resilience.NewStore(deps.Documents, cfg.StoreTimeout)

	tok, err := text.NewCL100K()
	if err != nil {
		return nil, err
	}
	chunker, err := text.NewChunker(tok, cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	// Feature: Settings
	settingsService := settings.NewService(settings.NewPostgresRepo(deps.DB))
	settingsHandler := settings.NewHandler(settingsService)

	// Feature: Job
	jobRepo := job.NewPostgresRepo(deps.DB)
	jobService := job.NewService(jobRepo, deps.Publisher, logger)
	jobHandler := job.NewHandler(jobService)

	// Ingestion
	var limiter *rate.Limiter
	if cfg.IngestRateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.IngestRateLimit), 1)
	}
	ingestionService := ingestion.NewService(store, chunker, embedder, index, ingestion.Options{
		Dimension:   cfg.EmbeddingDimension,
		Concurrency: cfg.IngestConcurrency,
		Limiter:     limiter,
		Failures:    jobService,
	})
	documentHandler := document.NewHandler(ingestionService, deps.Documents, deps.Publisher, cfg.StoreTimeout)

	// Retrieval
	queryLogger, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = retrieval.NewQueryLogger(os.Stdout)
	}
	retrievalService := retrieval.NewService(embedder, index, completer, settingsService, cfg.SearchTopK, queryLogger)
	askHandler := ask.NewHandler(retrievalService)

	// Feature: Stats
	statsHandler := stats.NewHandler(deps.Documents, jobRepo, index)

	// Routes
	mux := http.NewServeMux()
	route := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, metrics.Instrument(pattern, middleware.CorrelationID(h)))
	}

	route("POST /ingest", documentHandler.Ingest)
	route("GET /documents", documentHandler.List)
	route("GET /documents/{id}", documentHandler.Get)
	route("POST /documents/{id}/reindex", documentHandler.Reindex)

	route("POST /ask", askHandler.Ask)
	route("POST /search", askHandler.Search)

	route("GET /settings", settingsHandler.GetSettings)
	route("PUT /settings", settingsHandler.UpdateSettings)

	route("GET /jobs/failed", jobHandler.List)
	route("POST /jobs/{id}/retry", jobHandler.Retry)

	route("GET /stats", statsHandler.GetStats)

	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		health(w, r, deps.DB)
	})

	return &App{
		// CORS wraps the mux so preflight requests never hit method-bound routes.
		Handler:         middleware.CORS(cfg.CORSOrigin)(mux),
		Ingestion:       ingestionService,
		Retrieval:       retrievalService,
		ReindexConsumer: worker.NewReindexConsumer(ingestionService),
		port:            cfg.ServerPort,
		queryLog:        queryLogger,
	}, nil
}

func health(w http.ResponseWriter, r *http.Request, db *sql.DB) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := db.PingContext(ctx); err != nil {
		slog.WarnContext(ctx, "health check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// StartReindexWorker subscribes the reindex consumer. Stop the returned
// consumer on shutdown.
func (a *App) StartReindexWorker(lookupd string) (*nsq.Consumer, error) {
	consumer, err := nsq.NewConsumer(config.TopicReindex, config.ChannelReindex, nsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create reindex consumer: %w", err)
	}
	consumer.AddHandler(a.ReindexConsumer)
	if err := consumer.ConnectToNSQLookupd(lookupd); err != nil {
		return nil, fmt.Errorf("failed to connect reindex consumer to lookupd: %w", err)
	}
	return consumer, nil
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.port),
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	defer func() {
		if err := a.queryLog.Close(); err != nil {
			slog.Warn("failed to close query log", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.port)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
