package retrieval

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"ragline/internal/rag"
)

// maxLoggedQuery caps the question text kept per line.
const maxLoggedQuery = 512

// QueryHit identifies one retrieved chunk without repeating its text.
type QueryHit struct {
	DocumentID string  `json:"document_id"`
	Ordinal    int     `json:"ordinal"`
	Score      float32 `json:"score"`
}

// QueryLogEntry is one line of the query log: what was asked, how many chunks
// were requested, which came back, and how the call ended.
type QueryLogEntry struct {
	Time          time.Time  `json:"time"`
	CorrelationID string     `json:"correlation_id"`
	Mode          string     `json:"mode"`
	Query         string     `json:"query"`
	Truncated     bool       `json:"truncated,omitempty"`
	TopK          int        `json:"top_k,omitempty"`
	Hits          []QueryHit `json:"hits"`
	LatencyMs     int64      `json:"latency_ms"`
	ErrorKind     rag.Kind   `json:"error_kind,omitempty"`
}

func hitsOf(results []rag.RetrievalResult) []QueryHit {
	hits := make([]QueryHit, len(results))
	for i, r := range results {
		hits[i] = QueryHit{DocumentID: r.DocumentID, Ordinal: r.Ordinal, Score: r.Score}
	}
	return hits
}

// QueryLogger appends JSON lines. Safe for concurrent use.
type QueryLogger struct {
	mu  sync.Mutex
	enc *json.Encoder
	c   io.Closer
}

func NewQueryLogger(w io.Writer) *QueryLogger {
	return &QueryLogger{enc: json.NewEncoder(w)}
}

// NewFileQueryLogger appends to path, creating its directory.
func NewFileQueryLogger(path string) (*QueryLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Clean(path), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600) // #nosec G304 -- path is from application config, not user input
	if err != nil {
		return nil, err
	}
	l := NewQueryLogger(f)
	l.c = f
	return l, nil
}

func (l *QueryLogger) Log(entry QueryLogEntry) {
	if entry.Time.IsZero() {
		entry.Time = time.Now().UTC()
	}
	if r := []rune(entry.Query); len(r) > maxLoggedQuery {
		entry.Query = string(r[:maxLoggedQuery])
		entry.Truncated = true
	}
	if entry.Hits == nil {
		entry.Hits = []QueryHit{}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.enc.Encode(entry); err != nil {
		slog.Error("failed to write query log entry", "error", err)
	}
}

func (l *QueryLogger) Close() error {
	if l.c == nil {
		return nil
	}
	return l.c.Close()
}
