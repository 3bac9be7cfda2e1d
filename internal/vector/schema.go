package vector

import (
	"context"

	"github.com/weaviate/weaviate/entities/models"
)

const ChunkClass = "DocumentChunk"

// SchemaClient defines the Weaviate schema operations EnsureSchema needs.
type SchemaClient interface {
	ClassExists(ctx context.Context, className string) (bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	GetClass(ctx context.Context, className string) (*models.Class, error)
	AddProperty(ctx context.Context, className string, property *models.Property) error
}

// ChunkProperties is the payload stored next to each chunk vector. The text
// lives in the index so search hits resolve without a document store lookup.
func ChunkProperties() []*models.Property {
	return []*models.Property{
		{
			Name:     "content",
			DataType: []string{"text"},
		},
		{
			Name:     "documentId",
			DataType: []string{"string"}, // exact match for deletes
		},
		{
			Name:     "ordinal",
			DataType: []string{"int"},
		},
	}
}

// EnsureSchema creates the chunk class with cosine HNSW when missing and
// adds any property an older deployment lacks.
func EnsureSchema(ctx context.Context, client SchemaClient) error {
	exists, err := client.ClassExists(ctx, ChunkClass)
	if err != nil {
		return err
	}

	properties := ChunkProperties()

	if !exists {
		class := &models.Class{
			Class:             ChunkClass,
			Description:       "A token window of an ingested document",
			Vectorizer:        "none",
			VectorIndexType:   "hnsw",
			VectorIndexConfig: map[string]interface{}{"distance": "cosine"},
			Properties:        properties,
		}
		return client.CreateClass(ctx, class)
	}

	class, err := client.GetClass(ctx, ChunkClass)
	if err != nil {
		return err
	}

	existingProps := make(map[string]bool)
	for _, p := range class.Properties {
		existingProps[p.Name] = true
	}

	for _, p := range properties {
		if !existingProps[p.Name] {
			if err := client.AddProperty(ctx, ChunkClass, p); err != nil {
				return err
			}
		}
	}

	return nil
}
