package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"ragline/internal/rag"
)

// Client talks to any OpenAI-compatible API: OpenAI itself, or Ollama's /v1 surface.
type Client struct {
	client     *openai.Client
	service    string
	model      string
	embedModel string
}

type Options struct {
	// Service names the upstream in errors and logs.
	Service    string
	BaseURL    string
	APIKey     string
	Model      string
	EmbedModel string
	HTTPClient *http.Client
}

func NewClient(opts Options) *Client {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}
	service := opts.Service
	if service == "" {
		service = "openai"
	}
	return &Client{
		client:     openai.NewClientWithConfig(cfg),
		service:    service,
		model:      opts.Model,
		embedModel: opts.EmbedModel,
	}
}

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	slog.DebugContext(ctx, "embedding content", "service", c.service, "model", c.embedModel, "length", len(text))
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.embedModel),
	})
	if err != nil {
		return nil, c.mapError("embeddings", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%s embeddings: %w: empty data", c.service, rag.ErrMalformedResponse)
	}
	return resp.Data[0].Embedding, nil
}

func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", c.mapError("chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s chat completion: %w: no choices", c.service, rag.ErrMalformedResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

// mapError turns SDK status errors into rag.StatusError so retry
// classification does not depend on this package.
func (c *Client) mapError(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return fmt.Errorf("%s %s: %w", c.service, op, &rag.StatusError{Service: c.service, StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message})
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return fmt.Errorf("%s %s: %w", c.service, op, &rag.StatusError{Service: c.service, StatusCode: reqErr.HTTPStatusCode, Body: reqErr.Error()})
	}
	return fmt.Errorf("%s %s: %w", c.service, op, err)
}
