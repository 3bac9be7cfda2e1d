package milvus

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"ragline/internal/rag"
)

const (
	fieldID         = "id"
	fieldDocumentID = "document_id"
	fieldOrdinal    = "ordinal"
	fieldContent    = "content"
	fieldVector     = "vector"
)

// Client is the subset of client.Client the index uses.
type Client interface {
	HasCollection(ctx context.Context, collName string) (bool, error)
	CreateCollection(ctx context.Context, schema *entity.Schema, shardsNum int32, opts ...client.CreateCollectionOption) error
	CreateIndex(ctx context.Context, collName string, fieldName string, idx entity.Index, async bool, opts ...client.IndexOption) error
	LoadCollection(ctx context.Context, collName string, async bool, opts ...client.LoadCollectionOption) error
	Insert(ctx context.Context, collName string, partitionName string, columns ...entity.Column) (entity.Column, error)
	Flush(ctx context.Context, collName string, async bool, opts ...client.FlushOption) error
	Delete(ctx context.Context, collName string, partitionName string, expr string) error
	Search(ctx context.Context, collName string, partitions []string, expr string, outputFields []string, vectors []entity.Vector, vectorField string, metricType entity.MetricType, topK int, sp entity.SearchParam, opts ...client.SearchQueryOptionFunc) ([]client.SearchResult, error)
	GetCollectionStatistics(ctx context.Context, collName string) (map[string]string, error)
}

type Options struct {
	Address    string
	Database   string
	Username   string
	Password   string
	Collection string
	Dimension  int
}

type Index struct {
	client     Client
	collection string
	dimension  int
}

// Dial connects to Milvus. The returned close func releases the connection.
func Dial(ctx context.Context, opts Options) (*Index, func() error, error) {
	if opts.Dimension <= 0 {
		return nil, nil, rag.Configuration("milvus.dial", fmt.Errorf("embedding dimension must be positive"))
	}
	c, err := client.NewClient(ctx, client.Config{
		Address:  opts.Address,
		DBName:   opts.Database,
		Username: opts.Username,
		Password: opts.Password,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create milvus client: %w", err)
	}
	return NewIndex(c, opts.Collection, opts.Dimension), c.Close, nil
}

func NewIndex(c Client, collection string, dimension int) *Index {
	return &Index{client: c, collection: collection, dimension: dimension}
}

func (x *Index) EnsureSchema(ctx context.Context) error {
	has, err := x.client.HasCollection(ctx, x.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if !has {
		schema := &entity.Schema{
			CollectionName: x.collection,
			Description:    "document chunks",
			Fields: []*entity.Field{
				{Name: fieldID, DataType: entity.FieldTypeVarChar, PrimaryKey: true, TypeParams: map[string]string{"max_length": "128"}},
				{Name: fieldDocumentID, DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{"max_length": "64"}},
				{Name: fieldOrdinal, DataType: entity.FieldTypeInt64},
				{Name: fieldContent, DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{"max_length": "65535"}},
				{Name: fieldVector, DataType: entity.FieldTypeFloatVector, TypeParams: map[string]string{"dim": strconv.Itoa(x.dimension)}},
			},
		}
		if err := x.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
		idx, err := entity.NewIndexHNSW(entity.COSINE, 8, 64)
		if err != nil {
			return fmt.Errorf("failed to build index params: %w", err)
		}
		if err := x.client.CreateIndex(ctx, x.collection, fieldVector, idx, false); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	if err := x.client.LoadCollection(ctx, x.collection, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	return nil
}

func (x *Index) Add(ctx context.Context, entry rag.IndexEntry) error {
	if err := rag.CheckDimension("milvus.add", x.dimension, entry.Vector); err != nil {
		return err
	}
	_, err := x.client.Insert(ctx, x.collection, "",
		entity.NewColumnVarChar(fieldID, []string{fmt.Sprintf("%s:%d", entry.DocumentID, entry.Ordinal)}),
		entity.NewColumnVarChar(fieldDocumentID, []string{entry.DocumentID}),
		entity.NewColumnInt64(fieldOrdinal, []int64{int64(entry.Ordinal)}),
		entity.NewColumnVarChar(fieldContent, []string{entry.Text}),
		entity.NewColumnFloatVector(fieldVector, x.dimension, [][]float32{entry.Vector}),
	)
	if err != nil {
		return fmt.Errorf("milvus insert failed: %w", err)
	}
	if err := x.client.Flush(ctx, x.collection, false); err != nil {
		return fmt.Errorf("milvus flush failed: %w", err)
	}
	return nil
}

func (x *Index) Search(ctx context.Context, vector []float32, topK int) ([]rag.RetrievalResult, error) {
	sp, err := entity.NewIndexHNSWSearchParam(64)
	if err != nil {
		return nil, err
	}
	res, err := x.client.Search(ctx, x.collection, []string{}, "",
		[]string{fieldDocumentID, fieldOrdinal, fieldContent},
		[]entity.Vector{entity.FloatVector(vector)},
		fieldVector, entity.COSINE, topK, sp)
	if err != nil {
		return nil, fmt.Errorf("milvus search failed: %w", err)
	}
	if len(res) == 0 {
		return []rag.RetrievalResult{}, nil
	}
	r := res[0]
	if r.Err != nil {
		return nil, fmt.Errorf("milvus search error: %w", r.Err)
	}

	var docs, contents []string
	var ordinals []int64
	for _, f := range r.Fields {
		switch f.Name() {
		case fieldDocumentID:
			if c, ok := f.(*entity.ColumnVarChar); ok {
				docs = c.Data()
			}
		case fieldOrdinal:
			if c, ok := f.(*entity.ColumnInt64); ok {
				ordinals = c.Data()
			}
		case fieldContent:
			if c, ok := f.(*entity.ColumnVarChar); ok {
				contents = c.Data()
			}
		}
	}

	out := make([]rag.RetrievalResult, 0, r.ResultCount)
	for i := 0; i < r.ResultCount; i++ {
		if i >= len(contents) {
			return nil, fmt.Errorf("milvus search: %w", rag.ErrMalformedResponse)
		}
		item := rag.RetrievalResult{Text: contents[i]}
		if i < len(r.Scores) {
			item.Score = r.Scores[i]
		}
		if i < len(docs) {
			item.DocumentID = docs[i]
		}
		if i < len(ordinals) {
			item.Ordinal = int(ordinals[i])
		}
		out = append(out, item)
	}
	return out, nil
}

func (x *Index) DeleteDocument(ctx context.Context, documentID string) error {
	expr := fmt.Sprintf("%s == %q", fieldDocumentID, documentID)
	if err := x.client.Delete(ctx, x.collection, "", expr); err != nil {
		return fmt.Errorf("milvus delete failed: %w", err)
	}
	return x.client.Flush(ctx, x.collection, false)
}

func (x *Index) CountChunks(ctx context.Context) (int, error) {
	stats, err := x.client.GetCollectionStatistics(ctx, x.collection)
	if err != nil {
		return 0, fmt.Errorf("milvus statistics failed: %w", err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(stats["row_count"]))
	if err != nil {
		return 0, fmt.Errorf("milvus row_count: %w", err)
	}
	return n, nil
}
