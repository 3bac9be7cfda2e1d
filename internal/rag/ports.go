package rag

import "context"

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type VectorIndex interface {
	Add(ctx context.Context, entry IndexEntry) error
	Search(ctx context.Context, vector []float32, topK int) ([]RetrievalResult, error)
}

// DocumentDeleter is implemented by indexes that can drop all entries of a document.
type DocumentDeleter interface {
	DeleteDocument(ctx context.Context, documentID string) error
}

type ChunkCounter interface {
	CountChunks(ctx context.Context) (int, error)
}

type SchemaEnsurer interface {
	EnsureSchema(ctx context.Context) error
}

type DocumentStore interface {
	Save(ctx context.Context, doc *Document) error
	Get(ctx context.Context, id string) (*Document, error)
}
