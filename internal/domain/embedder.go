package domain

import "context"

// Embedder turns texts into dense vectors. Implementations must return one
// vector per input text, in the same order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Model reports the embedding model identifier. Stored alongside chunks
	// so a model swap invalidates stale vectors.
	Model() string
}
