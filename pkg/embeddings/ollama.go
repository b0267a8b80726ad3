package embeddings

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// DefaultOllamaURL is the embeddings endpoint of a local Ollama instance.
const DefaultOllamaURL = "http://localhost:11434/api/embeddings"

// OllamaEmbedder implements the Embedder interface using a remote Ollama instance.
type OllamaEmbedder struct {
	URL    string
	Model  string
	Client *http.Client
}

func NewOllamaEmbedder(url, model string, timeout time.Duration) *OllamaEmbedder {
	if url == "" {
		url = DefaultOllamaURL
	}
	return &OllamaEmbedder{URL: url, Model: model, Client: newHTTPClient(timeout)}
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp ollamaResponse
	if err := postJSON(ctx, e.Client, "ollama", e.URL, "", ollamaRequest{Model: e.Model, Prompt: text}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("ollama: %w", ErrEmptyEmbedding)
	}
	return resp.Embedding, nil
}
