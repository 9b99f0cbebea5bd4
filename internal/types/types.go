package types

import (
	"context"

	"github.com/mkarlin/driftscan/internal/models"
)

// Core interfaces

// Embedder maps a batch of texts to vectors of fixed, run-constant
// dimensionality. Implementations are not assumed safe for concurrent
// use unless they document it.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// DocumentSource yields the corpus documents for a run, along with the
// count of entries it had to skip (unreadable files, unresolved years).
type DocumentSource interface {
	Documents() ([]models.Document, int, error)
}

// EmbeddingCache stores embeddings keyed by (model, text) so repeat runs
// can skip already-embedded contexts. Fetch returns a slice parallel to
// texts (nil entries for misses) plus the indexes of the misses.
type EmbeddingCache interface {
	Fetch(ctx context.Context, model string, texts []string) ([][]float32, []int, error)
	Store(ctx context.Context, model string, texts []string, vectors [][]float32) error
	Close()
}
