package rag

import (
	"fmt"
	"sort"
	"time"
)

type SourceKind string

const (
	SourceFile  SourceKind = "file"
	SourcePaste SourceKind = "paste"
)

func ParseSourceKind(s string) (SourceKind, error) {
	switch SourceKind(s) {
	case "":
		return SourcePaste, nil
	case SourceFile, SourcePaste:
		return SourceKind(s), nil
	}
	return "", fmt.Errorf("unknown source %q", s)
}

type Document struct {
	ID        string     `json:"id" bson:"-"`
	Text      string     `json:"text" bson:"text"`
	Source    SourceKind `json:"source" bson:"source"`
	CreatedAt time.Time  `json:"createdAt" bson:"createdAt"`
}

// Chunk is a token window [TokenStart, TokenEnd) of a document.
type Chunk struct {
	DocumentID string
	Ordinal    int
	Text       string
	TokenStart int
	TokenEnd   int
}

type IndexEntry struct {
	DocumentID string
	Ordinal    int
	Text       string
	Vector     []float32
}

type RetrievalResult struct {
	Text       string  `json:"text"`
	Score      float32 `json:"score"`
	Rank       int     `json:"rank"`
	DocumentID string  `json:"documentId,omitempty"`
	Ordinal    int     `json:"ordinal"`
}

// RankResults sorts by descending score, keeping the upstream order for ties,
// and assigns 0-based ranks.
func RankResults(results []RetrievalResult) []RetrievalResult {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	for i := range results {
		results[i].Rank = i
	}
	return results
}

// CheckDimension reports a vector whose length differs from the configured
// index dimensionality. A zero want disables the check.
func CheckDimension(op string, want int, vec []float32) error {
	if want > 0 && len(vec) != want {
		return Configuration(op, fmt.Errorf("embedding dimension %d does not match index dimension %d", len(vec), want))
	}
	return nil
}
