package weaviate

import (
	"context"
	"fmt"
	"strconv"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"ragline/internal/rag"
	"ragline/internal/vector"
)

type Store struct {
	client *weaviate.Client
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	return vector.EnsureSchema(ctx, &schemaClient{client: s.client})
}

func (s *Store) Add(ctx context.Context, entry rag.IndexEntry) error {
	_, err := s.client.Data().Creator().
		WithClassName(vector.ChunkClass).
		WithProperties(map[string]interface{}{
			"content":    entry.Text,
			"documentId": entry.DocumentID,
			"ordinal":    entry.Ordinal,
		}).
		WithVector(entry.Vector).
		Do(ctx)
	return err
}

func (s *Store) DeleteDocument(ctx context.Context, documentID string) error {
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(vector.ChunkClass).
		WithOutput("minimal").
		WithWhere(filters.Where().
			WithPath([]string{"documentId"}).
			WithOperator(filters.Equal).
			WithValueString(documentID)).
		Do(ctx)
	return err
}

// Search runs a nearVector query. Weaviate reports cosine distance; the
// score is 1 - distance so higher means closer.
func (s *Store) Search(ctx context.Context, vec []float32, topK int) ([]rag.RetrievalResult, error) {
	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vec)

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "documentId"},
		{Name: "ordinal"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(vector.ChunkClass).
		WithNearVector(nearVector).
		WithLimit(topK).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
	}

	var results []rag.RetrievalResult
	data, _ := res.Data["Get"].(map[string]interface{})
	chunks, _ := data[vector.ChunkClass].([]interface{})
	for _, c := range chunks {
		props, ok := c.(map[string]interface{})
		if !ok {
			continue
		}
		var r rag.RetrievalResult
		r.Text, _ = props["content"].(string)
		r.DocumentID, _ = props["documentId"].(string)
		if ord, ok := props["ordinal"].(float64); ok {
			r.Ordinal = int(ord)
		}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			r.Score = 1 - toFloat32(additional["distance"])
		}
		results = append(results, r)
	}
	return results, nil
}

func (s *Store) CountChunks(ctx context.Context) (int, error) {
	res, err := s.client.GraphQL().Aggregate().
		WithClassName(vector.ChunkClass).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
	}

	agg, _ := res.Data["Aggregate"].(map[string]interface{})
	rows, _ := agg[vector.ChunkClass].([]interface{})
	if len(rows) == 0 {
		return 0, nil
	}
	row, _ := rows[0].(map[string]interface{})
	meta, _ := row["meta"].(map[string]interface{})
	count, _ := meta["count"].(float64)
	return int(count), nil
}

// Weaviate returns _additional numbers as JSON numbers or strings depending on version.
func toFloat32(v interface{}) float32 {
	switch n := v.(type) {
	case float64:
		return float32(n)
	case string:
		f, _ := strconv.ParseFloat(n, 32)
		return float32(f)
	}
	return 0
}

type schemaClient struct {
	client *weaviate.Client
}

func (a *schemaClient) ClassExists(ctx context.Context, className string) (bool, error) {
	return a.client.Schema().ClassExistenceChecker().WithClassName(className).Do(ctx)
}

func (a *schemaClient) CreateClass(ctx context.Context, class *models.Class) error {
	return a.client.Schema().ClassCreator().WithClass(class).Do(ctx)
}

func (a *schemaClient) GetClass(ctx context.Context, className string) (*models.Class, error) {
	return a.client.Schema().ClassGetter().WithClassName(className).Do(ctx)
}

func (a *schemaClient) AddProperty(ctx context.Context, className string, property *models.Property) error {
	return a.client.Schema().PropertyCreator().WithClassName(className).WithProperty(property).Do(ctx)
}
