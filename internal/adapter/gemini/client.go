package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"ragline/internal/rag"
)

const (
	DefaultEmbedModel = "gemini-embedding-001"
	DefaultModel      = "gemini-2.0-flash"
)

type Client struct {
	client     *genai.Client
	model      string
	embedModel string
}

func NewClient(ctx context.Context, apiKey, model, embedModel string, opts ...option.ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, rag.Configuration("gemini client", fmt.Errorf("gemini api key not configured"))
	}
	if model == "" {
		model = DefaultModel
	}
	if embedModel == "" {
		embedModel = DefaultEmbedModel
	}

	opts = append(opts, option.WithAPIKey(apiKey))
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{client: client, model: model, embedModel: embedModel}, nil
}

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	slog.DebugContext(ctx, "embedding content", "model", c.embedModel, "length", len(text))
	res, err := c.client.EmbeddingModel(c.embedModel).EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("gemini embed: %w: empty embedding received", rag.ErrMalformedResponse)
	}
	return res.Embedding.Values, nil
}

func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	res, err := c.client.GenerativeModel(c.model).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini generate: %w: no candidates", rag.ErrMalformedResponse)
	}

	var sb strings.Builder
	for _, part := range res.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String(), nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
