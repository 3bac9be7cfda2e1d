package qdrant_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragline/internal/adapter/qdrant"
	"ragline/internal/rag"
)

func TestIndex_Add(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/collections/chunks/points", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("wait"))
		assert.Equal(t, "k", r.Header.Get("api-key"))

		var body struct {
			Points []struct {
				ID      string         `json:"id"`
				Vector  []float32      `json:"vector"`
				Payload map[string]any `json:"payload"`
			} `json:"points"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Points, 1)
		assert.Equal(t, qdrant.PointID("doc-1", 0), body.Points[0].ID)
		assert.Equal(t, "chunk text", body.Points[0].Payload["text"])
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer ts.Close()

	idx := qdrant.NewIndex(ts.URL, "k", "chunks", 2, nil)
	err := idx.Add(context.Background(), rag.IndexEntry{DocumentID: "doc-1", Text: "chunk text", Vector: []float32{1, 0}})
	assert.NoError(t, err)
}

func TestIndex_Search(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/chunks/points/search", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(3), body["limit"])
		assert.Equal(t, true, body["with_payload"])

		w.Write([]byte(`{"result":[
			{"id":"a","score":0.9,"payload":{"text":"one","document_id":"d1","ordinal":0}},
			{"id":"b","score":0.4,"payload":{"text":"two","document_id":"d1","ordinal":1}}
		]}`))
	}))
	defer ts.Close()

	res, err := qdrant.NewIndex(ts.URL, "", "chunks", 2, nil).Search(context.Background(), []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "one", res[0].Text)
	assert.Equal(t, float32(0.9), res[0].Score)
	assert.Equal(t, 1, res[1].Ordinal)
}

func TestIndex_EnsureSchema_CreatesMissingCollection(t *testing.T) {
	var created map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			http.Error(w, `{"status":{"error":"Not found"}}`, http.StatusNotFound)
		case http.MethodPut:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
			w.Write([]byte(`{"result":true}`))
		}
	}))
	defer ts.Close()

	require.NoError(t, qdrant.NewIndex(ts.URL, "", "chunks", 768, nil).EnsureSchema(context.Background()))
	vectors := created["vectors"].(map[string]any)
	assert.Equal(t, float64(768), vectors["size"])
	assert.Equal(t, "Cosine", vectors["distance"])
}

func TestIndex_DeleteAndCount(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/collections/chunks/points/delete":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Contains(t, body, "filter")
			w.Write([]byte(`{"status":"ok"}`))
		case "/collections/chunks/points/count":
			w.Write([]byte(`{"result":{"count":7}}`))
		}
	}))
	defer ts.Close()

	idx := qdrant.NewIndex(ts.URL, "", "chunks", 2, nil)
	assert.NoError(t, idx.DeleteDocument(context.Background(), "d1"))
	n, err := idx.CountChunks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestIndex_StatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	_, err := qdrant.NewIndex(ts.URL, "", "chunks", 2, nil).Search(context.Background(), []float32{1}, 1)
	var se *rag.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 500, se.StatusCode)
}

func TestPointID_Deterministic(t *testing.T) {
	assert.Equal(t, qdrant.PointID("d", 1), qdrant.PointID("d", 1))
	assert.NotEqual(t, qdrant.PointID("d", 1), qdrant.PointID("d", 2))
}
