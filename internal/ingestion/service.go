package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"ragline/internal/metrics"
	"ragline/internal/rag"
)

const (
	StageStore     = "store"
	StageEmbedding = "embedding"
	StageIndex     = "index"
	StageOther     = "ingest"

	failureRecordTimeout = 5 * time.Second
)

type Chunker interface {
	Chunk(documentID, text string) []rag.Chunk
}

// Failure describes an ingestion that stopped after the document was stored.
type Failure struct {
	DocumentID string
	Stage      string
	Err        error
	Indexed    int
}

type FailureRecorder interface {
	RecordFailure(ctx context.Context, f Failure) error
}

type Result struct {
	DocumentID         string `json:"id"`
	NumberOfEmbeddings int    `json:"numberOfEmbeddings"`
}

type Options struct {
	// Dimension is the index vector size; 0 skips the check.
	Dimension int
	// Concurrency above 1 enables the bounded pool.
	Concurrency int
	Limiter     *rate.Limiter
	Failures    FailureRecorder
}

type Service struct {
	store    rag.DocumentStore
	chunker  Chunker
	embedder rag.Embedder
	index    rag.VectorIndex
	opts     Options
}

func NewService(store rag.DocumentStore, chunker Chunker, embedder rag.Embedder, index rag.VectorIndex, opts Options) *Service {
	return &Service{store: store, chunker: chunker, embedder: embedder, index: index, opts: opts}
}

// Ingest stores text, then chunks, embeds and indexes it. On a chunk failure
// the returned Result still carries the document id and the number of chunks
// indexed before the failure.
func (s *Service) Ingest(ctx context.Context, text, source string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, rag.Validation("ingest", "text is required")
	}
	kind, err := rag.ParseSourceKind(source)
	if err != nil {
		return Result{}, rag.Validation("ingest", err.Error())
	}

	doc := &rag.Document{Text: text, Source: kind}
	if err := s.store.Save(ctx, doc); err != nil {
		metrics.IngestFailures.WithLabelValues(StageStore).Inc()
		slog.ErrorContext(ctx, "failed to store document", "error", err)
		return Result{}, rag.E(rag.KindStore, "ingest", err)
	}

	n, err := s.indexDocument(ctx, doc)
	res := Result{DocumentID: doc.ID, NumberOfEmbeddings: n}
	if err != nil {
		s.fail(ctx, doc.ID, n, err)
		return res, err
	}
	slog.InfoContext(ctx, "document ingested", "document_id", doc.ID, "chunks", n)
	return res, nil
}

// Reindex drops a stored document's index entries and indexes it again.
func (s *Service) Reindex(ctx context.Context, documentID string) (Result, error) {
	doc, err := s.store.Get(ctx, documentID)
	if err != nil {
		if errors.Is(err, rag.ErrNotFound) {
			return Result{}, err
		}
		return Result{}, rag.E(rag.KindStore, "reindex", err)
	}

	if d, ok := s.index.(rag.DocumentDeleter); ok {
		if err := d.DeleteDocument(ctx, documentID); err != nil {
			err = rag.E(rag.KindIndex, "reindex", err)
			s.fail(ctx, documentID, 0, err)
			return Result{DocumentID: documentID}, err
		}
	}

	n, err := s.indexDocument(ctx, doc)
	res := Result{DocumentID: documentID, NumberOfEmbeddings: n}
	if err != nil {
		s.fail(ctx, documentID, n, err)
		return res, err
	}
	slog.InfoContext(ctx, "document reindexed", "document_id", documentID, "chunks", n)
	return res, nil
}

func (s *Service) indexDocument(ctx context.Context, doc *rag.Document) (int, error) {
	chunks := s.chunker.Chunk(doc.ID, doc.Text)
	if s.opts.Concurrency > 1 && len(chunks) > 1 {
		return s.indexPooled(ctx, chunks)
	}

	count := 0
	for _, ch := range chunks {
		if s.opts.Limiter != nil {
			if err := s.opts.Limiter.Wait(ctx); err != nil {
				return count, err
			}
		}
		if err := s.indexChunk(ctx, ch); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// indexPooled reports the length of the leading run of indexed ordinals so the
// count means the same thing as in the sequential path. A failure at ordinal k
// cancels only ordinals above k; lower ones run to completion, so the count and
// the returned error match a sequential run regardless of scheduling.
func (s *Service) indexPooled(ctx context.Context, chunks []rag.Chunk) (int, error) {
	var (
		mu       sync.Mutex
		failedAt = len(chunks)
		firstErr error
	)
	done := make([]bool, len(chunks))
	cancels := make([]context.CancelFunc, len(chunks))
	defer func() {
		for _, cancel := range cancels {
			if cancel != nil {
				cancel()
			}
		}
	}()

	fail := func(i int, err error) {
		mu.Lock()
		defer mu.Unlock()
		if i >= failedAt {
			return
		}
		failedAt, firstErr = i, err
		for j := i + 1; j < len(cancels); j++ {
			if cancels[j] != nil {
				cancels[j]()
			}
		}
	}

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for i, ch := range chunks {
		mu.Lock()
		if i > failedAt {
			mu.Unlock()
			break
		}
		cctx, cancel := context.WithCancel(ctx)
		cancels[i] = cancel
		mu.Unlock()

		g.Go(func() error {
			if s.opts.Limiter != nil {
				if err := s.opts.Limiter.Wait(cctx); err != nil {
					fail(i, err)
					return nil
				}
			}
			if err := s.indexChunk(cctx, ch); err != nil {
				fail(i, err)
				return nil
			}
			done[i] = true
			return nil
		})
	}
	_ = g.Wait()

	count := 0
	for count < len(done) && done[count] {
		count++
	}
	return count, firstErr
}

func (s *Service) indexChunk(ctx context.Context, ch rag.Chunk) error {
	vec, err := s.embedder.Embed(ctx, ch.Text)
	if err != nil {
		return rag.E(rag.KindEmbedding, "embed chunk", err)
	}
	if len(vec) == 0 {
		return rag.E(rag.KindEmbedding, "embed chunk", rag.ErrMalformedResponse)
	}
	if err := rag.CheckDimension("embed chunk", s.opts.Dimension, vec); err != nil {
		return err
	}
	err = s.index.Add(ctx, rag.IndexEntry{
		DocumentID: ch.DocumentID,
		Ordinal:    ch.Ordinal,
		Text:       ch.Text,
		Vector:     vec,
	})
	if err != nil {
		return rag.E(rag.KindIndex, "index chunk", err)
	}
	metrics.IndexedChunks.Inc()
	return nil
}

func (s *Service) fail(ctx context.Context, documentID string, indexed int, err error) {
	stage := StageOf(err)
	metrics.IngestFailures.WithLabelValues(stage).Inc()
	slog.ErrorContext(ctx, "ingestion failed", "document_id", documentID, "stage", stage, "indexed", indexed, "error", err)

	if s.opts.Failures == nil {
		return
	}
	// The caller's context may already be cancelled.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureRecordTimeout)
	defer cancel()
	if rerr := s.opts.Failures.RecordFailure(rctx, Failure{DocumentID: documentID, Stage: stage, Err: err, Indexed: indexed}); rerr != nil {
		slog.ErrorContext(ctx, "failed to record ingestion failure", "document_id", documentID, "error", rerr)
	}
}

func StageOf(err error) string {
	switch rag.KindOf(err) {
	case rag.KindStore:
		return StageStore
	case rag.KindEmbedding:
		return StageEmbedding
	case rag.KindIndex:
		return StageIndex
	default:
		return StageOther
	}
}
