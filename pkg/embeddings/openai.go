package embeddings

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const DefaultOpenAIURL = "https://api.openai.com/v1/embeddings"

// OpenAIEmbedder talks to any server exposing the OpenAI embeddings API.
type OpenAIEmbedder struct {
	URL    string
	Model  string
	APIKey string
	Client *http.Client
}

func NewOpenAIEmbedder(url, model, apiKey string, timeout time.Duration) *OpenAIEmbedder {
	if url == "" {
		url = DefaultOpenAIURL
	}
	return &OpenAIEmbedder{URL: url, Model: model, APIKey: apiKey, Client: newHTTPClient(timeout)}
}

type openAIRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

type openAIResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp openAIResponse
	if err := postJSON(ctx, e.Client, "openai", e.URL, e.APIKey, openAIRequest{Input: text, Model: e.Model}, &resp); err != nil {
		return nil, err
	}
	// A single input yields a single item at index 0.
	for _, d := range resp.Data {
		if d.Index == 0 && len(d.Embedding) > 0 {
			return d.Embedding, nil
		}
	}
	return nil, fmt.Errorf("openai: %w", ErrEmptyEmbedding)
}
