// Package embeddings defines the embedding-provider contract the Memory Store and
// Retrieval Pipeline embed text through, grounded on
// internal/memory/embeddings/embeddings.go.
package embeddings

import "context"

// Provider embeds text into fixed-dimension vectors.
type Provider interface {
	// Embed generates one embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates one embedding per text, same order as input. An empty
	// batch returns an empty result without a network call, per the spec's boundary
	// behavior.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Name is the stable provider identifier.
	Name() string

	// Dimension is this provider's fixed output dimensionality.
	Dimension() int

	// MaxBatchSize bounds how many texts EmbedBatch accepts per underlying call; the
	// Memory Store chunks larger batches to this size.
	MaxBatchSize() int
}
