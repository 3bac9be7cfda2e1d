package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"ragline/internal/rag"
)

// Index is a brute-force cosine index held in process memory.
type Index struct {
	mu      sync.RWMutex
	entries []rag.IndexEntry
}

func NewIndex() *Index { return &Index{} }

func (x *Index) Add(ctx context.Context, entry rag.IndexEntry) error {
	vec := make([]float32, len(entry.Vector))
	copy(vec, entry.Vector)
	entry.Vector = vec

	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries = append(x.entries, entry)
	return nil
}

func (x *Index) Search(ctx context.Context, vector []float32, topK int) ([]rag.RetrievalResult, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	results := make([]rag.RetrievalResult, 0, len(x.entries))
	for _, e := range x.entries {
		results = append(results, rag.RetrievalResult{
			Text:       e.Text,
			Score:      cosine(vector, e.Vector),
			DocumentID: e.DocumentID,
			Ordinal:    e.Ordinal,
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func (x *Index) DeleteDocument(ctx context.Context, documentID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	kept := x.entries[:0]
	for _, e := range x.entries {
		if e.DocumentID != documentID {
			kept = append(kept, e)
		}
	}
	x.entries = kept
	return nil
}

func (x *Index) CountChunks(ctx context.Context) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries), nil
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
