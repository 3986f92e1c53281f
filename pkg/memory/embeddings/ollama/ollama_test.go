package ollama

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppliesDefaults(t *testing.T) {
	p, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:11434", p.baseURL)
	assert.Equal(t, "nomic-embed-text", p.model)
}

func TestNewHonorsExplicitConfig(t *testing.T) {
	p, err := New(Config{BaseURL: "http://ollama.local:11434", Model: "mxbai-embed-large"})
	require.NoError(t, err)
	assert.Equal(t, "http://ollama.local:11434", p.baseURL)
	assert.Equal(t, 1024, p.Dimension())
}

func TestDimensionDefaultsTo768(t *testing.T) {
	p, err := New(Config{Model: "some-unknown-model"})
	require.NoError(t, err)
	assert.Equal(t, 768, p.Dimension())
}

// MaxBatchSize is deliberately 1: Ollama's embeddings endpoint has no batch form.
func TestMaxBatchSizeIsOne(t *testing.T) {
	p, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, 1, p.MaxBatchSize())
}

func TestEmbedBatchEmptyInputIsNoop(t *testing.T) {
	p, err := New(Config{})
	require.NoError(t, err)

	vectors, err := p.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}
