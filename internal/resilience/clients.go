package resilience

import (
	"context"
	"errors"
	"time"

	"ragline/internal/rag"
)

type Embedder struct {
	next   rag.Embedder
	policy Policy
}

func NewEmbedder(next rag.Embedder, p Policy) *Embedder {
	return &Embedder{next: next, policy: p}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := Do(ctx, "embedding", "embed", e.policy, func(ctx context.Context) error {
		v, err := e.next.Embed(ctx, text)
		if err != nil {
			return err
		}
		vec = v
		return nil
	})
	if err != nil {
		return nil, rag.E(rag.KindEmbedding, "embed", err)
	}
	return vec, nil
}

type Completer struct {
	next   rag.Completer
	policy Policy
}

func NewCompleter(next rag.Completer, p Policy) *Completer {
	return &Completer{next: next, policy: p}
}

func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	var answer string
	err := Do(ctx, "completion", "complete", c.policy, func(ctx context.Context) error {
		a, err := c.next.Complete(ctx, prompt)
		if err != nil {
			return err
		}
		answer = a
		return nil
	})
	if err != nil {
		return "", rag.E(rag.KindCompletion, "complete", err)
	}
	return answer, nil
}

// Index guards a vector index. Optional capabilities of the wrapped index
// are forwarded with the same policy.
type Index struct {
	next   rag.VectorIndex
	policy Policy
}

func NewIndex(next rag.VectorIndex, p Policy) *Index {
	return &Index{next: next, policy: p}
}

func (i *Index) Add(ctx context.Context, entry rag.IndexEntry) error {
	err := Do(ctx, "index", "add", i.policy, func(ctx context.Context) error {
		return i.next.Add(ctx, entry)
	})
	return rag.E(rag.KindIndex, "index add", err)
}

func (i *Index) Search(ctx context.Context, vector []float32, topK int) ([]rag.RetrievalResult, error) {
	var results []rag.RetrievalResult
	err := Do(ctx, "index", "search", i.policy, func(ctx context.Context) error {
		r, err := i.next.Search(ctx, vector, topK)
		if err != nil {
			return err
		}
		results = r
		return nil
	})
	if err != nil {
		return nil, rag.E(rag.KindIndex, "index search", err)
	}
	return results, nil
}

func (i *Index) DeleteDocument(ctx context.Context, documentID string) error {
	d, ok := i.next.(rag.DocumentDeleter)
	if !ok {
		return nil
	}
	err := Do(ctx, "index", "delete", i.policy, func(ctx context.Context) error {
		return d.DeleteDocument(ctx, documentID)
	})
	return rag.E(rag.KindIndex, "index delete", err)
}

func (i *Index) CountChunks(ctx context.Context) (int, error) {
	c, ok := i.next.(rag.ChunkCounter)
	if !ok {
		return 0, nil
	}
	var n int
	err := Do(ctx, "index", "count", i.policy, func(ctx context.Context) error {
		v, err := c.CountChunks(ctx)
		n = v
		return err
	})
	if err != nil {
		return 0, rag.E(rag.KindIndex, "index count", err)
	}
	return n, nil
}

func (i *Index) EnsureSchema(ctx context.Context) error {
	s, ok := i.next.(rag.SchemaEnsurer)
	if !ok {
		return nil
	}
	return rag.E(rag.KindIndex, "ensure schema", s.EnsureSchema(ctx))
}

// Store bounds document store calls with a timeout. Writes are not
// idempotent, so nothing here is retried.
type Store struct {
	next    rag.DocumentStore
	timeout time.Duration
}

func NewStore(next rag.DocumentStore, timeout time.Duration) *Store {
	return &Store{next: next, timeout: timeout}
}

func (s *Store) Save(ctx context.Context, doc *rag.Document) error {
	err := Do(ctx, "store", "save", Policy{Timeout: s.timeout, Attempts: 1}, func(ctx context.Context) error {
		return s.next.Save(ctx, doc)
	})
	return rag.E(rag.KindStore, "store save", err)
}

func (s *Store) Get(ctx context.Context, id string) (*rag.Document, error) {
	var doc *rag.Document
	err := Do(ctx, "store", "get", Policy{Timeout: s.timeout, Attempts: 1}, func(ctx context.Context) error {
		d, err := s.next.Get(ctx, id)
		doc = d
		return err
	})
	if errors.Is(err, rag.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, rag.E(rag.KindStore, "store get", err)
	}
	return doc, nil
}
