package retrieval

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"ragline/internal/middleware"
	"ragline/internal/rag"
	"ragline/internal/settings"
)

const (
	DefaultTopK      = 5
	ContextSeparator = "\n---\n"

	modeSearch = "search"
)

type SettingsReader interface {
	Get(ctx context.Context) (*settings.Settings, error)
}

type Answer struct {
	Answer  string                `json:"answer"`
	Context []rag.RetrievalResult `json:"context"`
}

type Service struct {
	embedder  rag.Embedder
	index     rag.VectorIndex
	completer rag.Completer
	settings  SettingsReader
	topK      int
	logger    *QueryLogger
}

// NewService builds the query side. set and l may be nil; topK is used when no
// stored setting is available.
func NewService(e rag.Embedder, idx rag.VectorIndex, c rag.Completer, set SettingsReader, topK int, l *QueryLogger) *Service {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Service{embedder: e, index: idx, completer: c, settings: set, topK: topK, logger: l}
}

// DefaultMode is the stored ask mode, falling back to retrieval.
func (s *Service) DefaultMode(ctx context.Context) string {
	if cfg := s.stored(ctx); cfg != nil && cfg.AskMode != "" {
		return cfg.AskMode
	}
	return settings.ModeRAG
}

func (s *Service) resolveTopK(ctx context.Context, requested int) int {
	if requested > 0 {
		return min(requested, settings.MaxTopK)
	}
	if cfg := s.stored(ctx); cfg != nil && cfg.SearchTopK > 0 {
		return cfg.SearchTopK
	}
	return s.topK
}

func (s *Service) stored(ctx context.Context) *settings.Settings {
	if s.settings == nil {
		return nil
	}
	cfg, err := s.settings.Get(ctx)
	if err != nil {
		slog.WarnContext(ctx, "failed to read settings, using defaults", "error", err)
		return nil
	}
	return cfg
}

// Ask sends the question to the completion model as is.
func (s *Service) Ask(ctx context.Context, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", rag.Validation("ask", "Message is required")
	}
	start := time.Now()
	reply, err := s.completer.Complete(ctx, question)
	if err != nil {
		err = rag.E(rag.KindCompletion, "ask", err)
	}
	s.log(ctx, QueryLogEntry{Mode: settings.ModePlain, Query: question}, start, err)
	if err != nil {
		return "", err
	}
	return reply, nil
}

// AskWithContext answers from the top-K chunks most similar to the question.
// An empty index still produces an answer with an empty context.
func (s *Service) AskWithContext(ctx context.Context, question string, topK int) (*Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, rag.Validation("ask", "Message is required")
	}
	start := time.Now()
	entry := QueryLogEntry{Mode: settings.ModeRAG, Query: question, TopK: s.resolveTopK(ctx, topK)}

	results, err := s.retrieve(ctx, "ask", question, entry.TopK)
	if err != nil {
		s.log(ctx, entry, start, err)
		return nil, err
	}
	entry.Hits = hitsOf(results)

	reply, err := s.completer.Complete(ctx, BuildPrompt(question, results))
	if err != nil {
		err = rag.E(rag.KindCompletion, "ask", err)
		s.log(ctx, entry, start, err)
		return nil, err
	}

	s.log(ctx, entry, start, nil)
	return &Answer{Answer: reply, Context: results}, nil
}

func (s *Service) Search(ctx context.Context, query string, topK int) ([]rag.RetrievalResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, rag.Validation("search", "query is required")
	}
	start := time.Now()
	entry := QueryLogEntry{Mode: modeSearch, Query: query, TopK: s.resolveTopK(ctx, topK)}

	results, err := s.retrieve(ctx, "search", query, entry.TopK)
	if err == nil {
		entry.Hits = hitsOf(results)
	}
	s.log(ctx, entry, start, err)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// retrieve expects k already resolved.
func (s *Service) retrieve(ctx context.Context, op, query string, k int) ([]rag.RetrievalResult, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, rag.E(rag.KindEmbedding, op, err)
	}
	if len(vec) == 0 {
		return nil, rag.E(rag.KindEmbedding, op, rag.ErrMalformedResponse)
	}

	results, err := s.index.Search(ctx, vec, k)
	if err != nil {
		return nil, rag.E(rag.KindIndex, op, err)
	}
	if results == nil {
		results = []rag.RetrievalResult{}
	}
	return rag.RankResults(results), nil
}

func (s *Service) log(ctx context.Context, entry QueryLogEntry, start time.Time, err error) {
	if s.logger == nil {
		return
	}
	entry.LatencyMs = time.Since(start).Milliseconds()
	entry.CorrelationID = middleware.GetCorrelationID(ctx)
	if err != nil {
		entry.ErrorKind = rag.KindOf(err)
	}
	s.logger.Log(entry)
}

// BuildPrompt joins the chunk texts in rank order and wraps them with the
// question.
func BuildPrompt(question string, results []rag.RetrievalResult) string {
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Text
	}
	var b strings.Builder
	b.WriteString(`Use the following context to answer the question as accurately as possible. If the answer is not present in the context, say "I don't know".`)
	b.WriteString("\n\nContext:\n")
	b.WriteString(strings.Join(texts, ContextSeparator))
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\nAnswer:")
	return b.String()
}
