// Package embeddings maps chunk and query text to fixed-dimension vectors
// for the vector index backend.
package embeddings

import "context"

// Embedder produces one vector per input text. Implementations must be
// safe for concurrent use; ingestion workers share one instance.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Name() string
}
