package text

import (
	"fmt"

	"ragline/internal/rag"
)

const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 100
)

type Chunker struct {
	tok     Tokenizer
	size    int
	overlap int
}

func NewChunker(tok Tokenizer, size, overlap int) (*Chunker, error) {
	if tok == nil {
		return nil, rag.Configuration("new chunker", fmt.Errorf("tokenizer is required"))
	}
	if size <= 0 {
		return nil, rag.Configuration("new chunker", fmt.Errorf("chunk size must be positive, got %d", size))
	}
	if overlap < 0 || overlap >= size {
		return nil, rag.Configuration("new chunker", fmt.Errorf("overlap %d must be in [0, %d)", overlap, size))
	}
	return &Chunker{tok: tok, size: size, overlap: overlap}, nil
}

func (c *Chunker) Size() int    { return c.size }
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk splits text into windows of at most size tokens. Each window starts
// size-overlap tokens after the previous one; the loop ends once the start
// reaches the token count.
func (c *Chunker) Chunk(documentID, text string) []rag.Chunk {
	tokens := c.tok.Encode(text)
	if len(tokens) == 0 {
		return nil
	}

	step := c.size - c.overlap
	chunks := make([]rag.Chunk, 0, (len(tokens)+step-1)/step)
	for start := 0; start < len(tokens); start += step {
		end := min(start+c.size, len(tokens))
		chunks = append(chunks, rag.Chunk{
			DocumentID: documentID,
			Ordinal:    len(chunks),
			Text:       c.tok.Decode(tokens[start:end]),
			TokenStart: start,
			TokenEnd:   end,
		})
	}
	return chunks
}
