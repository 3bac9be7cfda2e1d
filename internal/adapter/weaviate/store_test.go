package weaviate_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	adapter "ragline/internal/adapter/weaviate"
	"ragline/internal/rag"
)

func mockWeaviate(t *testing.T, handler http.HandlerFunc) (*weaviate.Client, *httptest.Server) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.25.0"}`))
			return
		}
		handler(w, r)
	}))
	cfg := weaviate.Config{Host: ts.Listener.Addr().String(), Scheme: "http"}
	client, err := weaviate.NewClient(cfg)
	require.NoError(t, err)
	return client, ts
}

func TestStore_Add(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/objects", r.URL.Path)
		assert.Equal(t, "POST", r.Method)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "DocumentChunk", body["class"])
		props := body["properties"].(map[string]interface{})
		assert.Equal(t, "The sky is blue.", props["content"])
		assert.Equal(t, "doc-1", props["documentId"])
		assert.Equal(t, float64(2), props["ordinal"])
		assert.Len(t, body["vector"], 2)

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "6f0b6f2e-2b0e-4b36-8f55-0c3f1d7b5a11"})
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	err := store.Add(context.Background(), rag.IndexEntry{
		DocumentID: "doc-1",
		Ordinal:    2,
		Text:       "The sky is blue.",
		Vector:     []float32{0.1, 0.2},
	})
	assert.NoError(t, err)
}

func TestStore_DeleteDocument(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/batch/objects", r.URL.Path)
		assert.Equal(t, "DELETE", r.Method)
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{})
	})
	defer ts.Close()

	err := adapter.NewStore(client).DeleteDocument(context.Background(), "doc-1")
	assert.NoError(t, err)
}

func TestStore_Search(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/graphql", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		query := body["query"].(string)
		assert.Contains(t, query, "nearVector")
		assert.Contains(t, query, "limit: 5")
		assert.Contains(t, query, "distance")

		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"Get": map[string]interface{}{
					"DocumentChunk": []interface{}{
						map[string]interface{}{
							"content":     "The sky is blue.",
							"documentId":  "doc-1",
							"ordinal":     0,
							"_additional": map[string]interface{}{"distance": 0.25},
						},
						map[string]interface{}{
							"content":     "Grass is green.",
							"documentId":  "doc-2",
							"ordinal":     3,
							"_additional": map[string]interface{}{"distance": "0.5"},
						},
					},
				},
			},
		})
	})
	defer ts.Close()

	results, err := adapter.NewStore(client).Search(context.Background(), []float32{0.1, 0.2}, 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "The sky is blue.", results[0].Text)
	assert.Equal(t, "doc-1", results[0].DocumentID)
	assert.InDelta(t, 0.75, results[0].Score, 1e-6)
	assert.Equal(t, 3, results[1].Ordinal)
	assert.InDelta(t, 0.5, results[1].Score, 1e-6)
}

func TestStore_SearchGraphQLError(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"errors": []interface{}{map[string]interface{}{"message": "class not found"}},
		})
	})
	defer ts.Close()

	_, err := adapter.NewStore(client).Search(context.Background(), []float32{0.1}, 5)
	assert.Error(t, err)
}

func TestStore_CountChunks(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body["query"].(string), "Aggregate")

		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"Aggregate": map[string]interface{}{
					"DocumentChunk": []interface{}{
						map[string]interface{}{"meta": map[string]interface{}{"count": 42}},
					},
				},
			},
		})
	})
	defer ts.Close()

	n, err := adapter.NewStore(client).CountChunks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestStore_EnsureSchema_CreatesClass(t *testing.T) {
	created := false
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v1/schema/DocumentChunk":
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPost && r.URL.Path == "/v1/schema":
			created = true
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"class":"DocumentChunk"}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	})
	defer ts.Close()

	require.NoError(t, adapter.NewStore(client).EnsureSchema(context.Background()))
	assert.True(t, created)
}
