package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms/ollama"
	"golang.org/x/time/rate"
)

type EmbedderConfig struct {
	Model     string
	BaseURL   string  // Ollama server URL
	RateLimit float64 // batch calls per second against the server
}

// Embedder adapts the Ollama embedding endpoint to the pipeline's batch
// contract. The model handle is acquired once per run. Not safe for
// concurrent use; the pipeline calls it sequentially.
type Embedder struct {
	config  EmbedderConfig
	llm     *ollama.LLM
	limiter *rate.Limiter
	dim     int
}

func NewWithConfig(config EmbedderConfig) (*Embedder, error) {
	if config.Model == "" {
		config.Model = "nomic-embed-text:latest"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.RateLimit <= 0 {
		config.RateLimit = 2
	}

	emb, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding model: %w", err)
	}

	return &Embedder{
		config:  config,
		llm:     emb,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}, nil
}

// Model returns the embedding model identifier recorded in the report.
func (e *Embedder) Model() string {
	return e.config.Model
}

// Dimension returns the vector dimensionality observed so far; 0 before
// the first successful call.
func (e *Embedder) Dimension() int {
	return e.dim
}

// EmbedBatch encodes a batch of texts in one call. Dimensionality must
// stay constant for the whole run; a change is an error, not a resize.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	vectors, err := e.llm.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding call failed: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding service returned %d vectors for %d texts", len(vectors), len(texts))
	}

	for _, vector := range vectors {
		if len(vector) == 0 {
			return nil, errors.New("embedding service returned an empty vector")
		}
		if e.dim == 0 {
			e.dim = len(vector)
		}
		if len(vector) != e.dim {
			return nil, fmt.Errorf("embedding dimension changed from %d to %d", e.dim, len(vector))
		}
	}

	return vectors, nil
}
