package embedding

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIEmbedder calls an external OpenAI-compatible embedding service.
//
// Works with Hugging Face TEI, LocalAI, OpenAI, or anything else that
// speaks the /v1/embeddings API.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
}

// OpenAIConfig configures the HTTP embedder.
type OpenAIConfig struct {
	// BaseURL is the base URL of the embedding service (e.g. "http://tei:8082/v1").
	BaseURL string

	// Model is the embedding model to use (e.g. "all-MiniLM-L6-v2").
	Model string

	// APIKey is optional for local services.
	APIKey string

	// Dimensions is the expected vector size. It is corrected on the first response.
	Dimensions int

	// Timeout for HTTP requests (default: 30s).
	Timeout time.Duration
}

// NewOpenAIEmbedder creates a new HTTP-based embedder.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("embedding base_url is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("embedding model is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "unused" // local services ignore the key
	}

	oc := openai.DefaultConfig(apiKey)
	oc.BaseURL = cfg.BaseURL
	oc.HTTPClient = &http.Client{Timeout: timeout}

	dims := cfg.Dimensions
	if dims <= 0 {
		dims = 384
	}
	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(oc),
		model:      cfg.Model,
		dimensions: dims,
	}, nil
}

// Generate creates embeddings by calling the external service.
func (o *OpenAIEmbedder) Generate(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(o.model),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding service returned %d vectors for %d texts", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding service returned out-of-range index %d", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	if n := len(out[0]); n > 0 && n != o.dimensions {
		o.dimensions = n
	}
	return out, nil
}

// Dimensions returns the dimensionality of embeddings produced.
func (o *OpenAIEmbedder) Dimensions() int { return o.dimensions }

// Model returns the model identifier.
func (o *OpenAIEmbedder) Model() string { return o.model }

// Close is a no-op for the HTTP client.
func (o *OpenAIEmbedder) Close() error { return nil }
