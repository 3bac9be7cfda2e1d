package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"ragline/internal/rag"
)

// pointNamespace seeds deterministic point ids so re-adding the same chunk
// overwrites instead of duplicating.
var pointNamespace = uuid.MustParse("2f1c6f4e-8d0b-4a57-9a3e-5b0c1e7d9f21")

// Index is a REST client for one Qdrant collection using cosine distance.
type Index struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
}

func NewIndex(url, apiKey, collection string, dimension int, client *http.Client) *Index {
	if client == nil {
		client = http.DefaultClient
	}
	return &Index{
		url:        strings.TrimRight(url, "/"),
		apiKey:     apiKey,
		collection: collection,
		dimension:  dimension,
		client:     client,
	}
}

func PointID(documentID string, ordinal int) string {
	return uuid.NewSHA1(pointNamespace, []byte(fmt.Sprintf("%s:%d", documentID, ordinal))).String()
}

func (x *Index) EnsureSchema(ctx context.Context) error {
	status, err := x.do(ctx, http.MethodGet, x.collectionURL(""), nil, nil)
	if err == nil {
		return nil
	}
	if status != http.StatusNotFound {
		return err
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     x.dimension,
			"distance": "Cosine",
		},
	}
	_, err = x.do(ctx, http.MethodPut, x.collectionURL(""), body, nil)
	return err
}

func (x *Index) Add(ctx context.Context, entry rag.IndexEntry) error {
	body := map[string]any{
		"points": []map[string]any{{
			"id":     PointID(entry.DocumentID, entry.Ordinal),
			"vector": entry.Vector,
			"payload": map[string]any{
				"document_id": entry.DocumentID,
				"ordinal":     entry.Ordinal,
				"text":        entry.Text,
			},
		}},
	}
	_, err := x.do(ctx, http.MethodPut, x.collectionURL("/points?wait=true"), body, nil)
	return err
}

type searchResponse struct {
	Result []struct {
		Score   float32        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
}

func (x *Index) Search(ctx context.Context, vector []float32, topK int) ([]rag.RetrievalResult, error) {
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp searchResponse
	if _, err := x.do(ctx, http.MethodPost, x.collectionURL("/points/search"), req, &resp); err != nil {
		return nil, err
	}

	results := make([]rag.RetrievalResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		res := rag.RetrievalResult{Score: r.Score}
		res.Text, _ = r.Payload["text"].(string)
		res.DocumentID, _ = r.Payload["document_id"].(string)
		if v, ok := r.Payload["ordinal"].(float64); ok {
			res.Ordinal = int(v)
		}
		results = append(results, res)
	}
	return results, nil
}

func (x *Index) DeleteDocument(ctx context.Context, documentID string) error {
	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{{
				"key":   "document_id",
				"match": map[string]any{"value": documentID},
			}},
		},
	}
	_, err := x.do(ctx, http.MethodPost, x.collectionURL("/points/delete?wait=true"), body, nil)
	return err
}

func (x *Index) CountChunks(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if _, err := x.do(ctx, http.MethodPost, x.collectionURL("/points/count"), map[string]any{"exact": true}, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func (x *Index) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", x.url, x.collection, suffix)
}

func (x *Index) do(ctx context.Context, method, url string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if x.apiKey != "" {
		req.Header.Set("api-key", x.apiKey)
	}

	resp, err := x.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("qdrant %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return resp.StatusCode, &rag.StatusError{Service: "qdrant", StatusCode: resp.StatusCode, Body: string(msg)}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode qdrant response: %w: %v", rag.ErrMalformedResponse, err)
		}
	}
	return resp.StatusCode, nil
}
