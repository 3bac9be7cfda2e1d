package openai

import (
	"net/http"
	"strings"
)

// ollamaPlaceholderKey is sent when no key is configured; Ollama ignores it
// but the client requires one.
const ollamaPlaceholderKey = "ollama"

// NewOllamaClient points a Client at Ollama's OpenAI-compatible /v1 surface,
// serving both embeddings and chat. baseURL is the server root, as in
// OLLAMA_API_URL.
func NewOllamaClient(baseURL, apiKey, model, embedModel string, httpClient *http.Client) *Client {
	if apiKey == "" {
		apiKey = ollamaPlaceholderKey
	}
	return NewClient(Options{
		Service:    "ollama",
		BaseURL:    strings.TrimRight(baseURL, "/") + "/v1",
		APIKey:     apiKey,
		Model:      model,
		EmbedModel: embedModel,
		HTTPClient: httpClient,
	})
}
