package app

import (
	"context"
	"fmt"
	"net/http"

	"ragline/internal/adapter/gemini"
	"ragline/internal/adapter/openai"
	"ragline/internal/config"
	"ragline/internal/rag"
)

type Providers struct {
	Embedder  rag.Embedder
	Completer rag.Completer

	close func() error
}

func (p *Providers) Close() error {
	if p.close == nil {
		return nil
	}
	return p.close()
}

// NewProviders builds the raw embedding and completion clients for the
// configured provider. Timeouts and retries are layered on in New.
func NewProviders(ctx context.Context, cfg *config.Config) (*Providers, error) {
	httpClient := &http.Client{}

	switch cfg.Provider {
	case config.ProviderOllama:
		c := openai.NewOllamaClient(cfg.OllamaAPIURL, cfg.OllamaAPIKey, cfg.Model, cfg.EmbedModel, httpClient)
		return &Providers{Embedder: c, Completer: c}, nil
	case config.ProviderOpenAI:
		c := openai.NewClient(openai.Options{
			BaseURL:    cfg.OpenAIAPIURL,
			APIKey:     cfg.OpenAIAPIKey,
			Model:      cfg.Model,
			EmbedModel: cfg.EmbedModel,
			HTTPClient: httpClient,
		})
		return &Providers{Embedder: c, Completer: c}, nil
	case config.ProviderGemini:
		c, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.Model, cfg.EmbedModel)
		if err != nil {
			return nil, err
		}
		return &Providers{Embedder: c, Completer: c, close: c.Close}, nil
	default:
		return nil, rag.Configuration("providers", fmt.Errorf("unknown provider %q", cfg.Provider))
	}
}
