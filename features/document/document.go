package document

import (
	"context"

	"ragline/internal/rag"
)

const DefaultListLimit = 20

// Repository persists raw documents. Both implementations assign ID and
// CreatedAt on Save and return rag.ErrNotFound for unknown ids.
type Repository interface {
	Save(ctx context.Context, doc *rag.Document) error
	Get(ctx context.Context, id string) (*rag.Document, error)
	List(ctx context.Context, limit int) ([]rag.Document, error)
	Count(ctx context.Context) (int, error)
}
