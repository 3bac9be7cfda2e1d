package rag_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"ragline/internal/rag"
)

func TestE_KeepsExistingKind(t *testing.T) {
	inner := rag.Configuration("embed", errors.New("dimension mismatch"))
	err := rag.E(rag.KindEmbedding, "ingest", fmt.Errorf("chunk 0: %w", inner))

	assert.Equal(t, rag.KindConfiguration, rag.KindOf(err))
	assert.Nil(t, rag.E(rag.KindStore, "save", nil))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, rag.KindStore, rag.KindOf(rag.E(rag.KindStore, "save", errors.New("boom"))))
	assert.Equal(t, rag.KindNotFound, rag.KindOf(fmt.Errorf("get: %w", rag.ErrNotFound)))
	assert.Equal(t, rag.KindInternal, rag.KindOf(errors.New("plain")))
	assert.True(t, rag.IsKind(rag.Validation("ingest", "text is required"), rag.KindValidation))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, rag.HTTPStatus(rag.KindValidation))
	assert.Equal(t, http.StatusNotFound, rag.HTTPStatus(rag.KindNotFound))
	for _, k := range []rag.Kind{rag.KindStore, rag.KindEmbedding, rag.KindIndex, rag.KindCompletion, rag.KindConfiguration} {
		assert.Equal(t, http.StatusInternalServerError, rag.HTTPStatus(k), k)
	}
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "text is required", rag.ErrorMessage(rag.Validation("ingest", "text is required")))
	assert.Equal(t, "text is required", rag.ErrorMessage(fmt.Errorf("handler: %w", rag.Validation("ingest", "text is required"))))
	assert.Equal(t, "embedding service unavailable", rag.ErrorMessage(rag.E(rag.KindEmbedding, "ingest", errors.New("dial tcp: refused"))))
	assert.Equal(t, "resource not found", rag.ErrorMessage(rag.ErrNotFound))
	assert.Equal(t, "internal server error", rag.ErrorMessage(errors.New("boom")))
}

func TestStatusError_Temporary(t *testing.T) {
	assert.True(t, (&rag.StatusError{StatusCode: 503}).Temporary())
	assert.True(t, (&rag.StatusError{StatusCode: 429}).Temporary())
	assert.False(t, (&rag.StatusError{StatusCode: 400}).Temporary())
}

func TestRankResults_StableDescending(t *testing.T) {
	in := []rag.RetrievalResult{
		{Text: "a", Score: 0.5},
		{Text: "b", Score: 0.9},
		{Text: "c", Score: 0.5},
		{Text: "d", Score: 0.7},
		{Text: "e", Score: 0.5},
	}
	out := rag.RankResults(in)

	var texts []string
	for i, r := range out {
		texts = append(texts, r.Text)
		assert.Equal(t, i, r.Rank)
		if i > 0 {
			assert.LessOrEqual(t, r.Score, out[i-1].Score)
		}
	}
	assert.Equal(t, []string{"b", "d", "a", "c", "e"}, texts)
}

func TestParseSourceKind(t *testing.T) {
	k, err := rag.ParseSourceKind("")
	assert.NoError(t, err)
	assert.Equal(t, rag.SourcePaste, k)

	k, err = rag.ParseSourceKind("file")
	assert.NoError(t, err)
	assert.Equal(t, rag.SourceFile, k)

	_, err = rag.ParseSourceKind("url")
	assert.Error(t, err)
}

func TestCheckDimension(t *testing.T) {
	assert.NoError(t, rag.CheckDimension("embed", 0, []float32{1}))
	assert.NoError(t, rag.CheckDimension("embed", 2, []float32{1, 2}))
	err := rag.CheckDimension("embed", 3, []float32{1, 2})
	assert.True(t, rag.IsKind(err, rag.KindConfiguration))
}
