package text

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// Tokenizer maps text to a reversible token sequence.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

const EncodingCL100K = "cl100k_base"

var loaderOnce sync.Once

type tiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewCL100K returns the cl100k_base tokenizer. The BPE ranks are embedded in
// the binary, so no network access is needed.
func NewCL100K() (Tokenizer, error) {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	enc, err := tiktoken.GetEncoding(EncodingCL100K)
	if err != nil {
		return nil, fmt.Errorf("load %s encoding: %w", EncodingCL100K, err)
	}
	return &tiktokenTokenizer{enc: enc}, nil
}

func (t *tiktokenTokenizer) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

// Decode may split a multi-byte rune at a window edge; such bytes become U+FFFD.
func (t *tiktokenTokenizer) Decode(tokens []int) string {
	return strings.ToValidUTF8(t.enc.Decode(tokens), "�")
}
