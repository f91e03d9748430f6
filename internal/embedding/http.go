package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hyperjump/kioku/internal/vector"
)

// HTTPEmbedder is a client for an Ollama-compatible embedding endpoint
// (POST /api/embeddings). The encoder is a black box: kioku sends text and
// receives a vector of the configured dimension. Returned vectors are
// L2-normalized here so that downstream dot products equal cosine similarity
// regardless of what the model emits.
type HTTPEmbedder struct {
	endpoint   string
	model      string
	dimensions int
	client     *http.Client
}

// NewHTTPEmbedder creates an embedder that calls the encoder service at
// endpoint (e.g. "http://localhost:11434") using the given model.
func NewHTTPEmbedder(endpoint, model string, dimensions int, timeout time.Duration) (*HTTPEmbedder, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("embedding endpoint is required")
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPEmbedder{
		endpoint:   endpoint,
		model:      model,
		dimensions: dimensions,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed requests an embedding for text. Failures are wrapped as
// ErrEncodingFailed; the call is not retried here.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", ErrEncodingFailed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodingFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodingFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: encoder returned %d: %s", ErrEncodingFailed, resp.StatusCode, string(b))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrEncodingFailed, err)
	}
	if len(out.Embedding) != e.dimensions {
		return nil, fmt.Errorf("%w: encoder returned %d dimensions, expected %d",
			ErrEncodingFailed, len(out.Embedding), e.dimensions)
	}
	vector.NormalizeL2(out.Embedding)
	return out.Embedding, nil
}

// EmbedBatch calls Embed for each text. The Ollama embeddings endpoint takes
// one prompt per request.
func (e *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *HTTPEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for HTTPEmbedder.
func (e *HTTPEmbedder) Close() error {
	return nil
}
