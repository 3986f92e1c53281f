package openai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestNewAppliesDefaultModel(t *testing.T) {
	p, err := New(Config{APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-small", p.model)
	assert.Equal(t, 1536, p.Dimension())
}

func TestDimensionVariesByModel(t *testing.T) {
	p, err := New(Config{APIKey: "sk-test", Model: "text-embedding-3-large"})
	require.NoError(t, err)
	assert.Equal(t, 3072, p.Dimension())
}

func TestMaxBatchSize(t *testing.T) {
	p, err := New(Config{APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, 2048, p.MaxBatchSize())
}

func TestEmbedBatchEmptyInputIsNoop(t *testing.T) {
	p, err := New(Config{APIKey: "sk-test"})
	require.NoError(t, err)

	vectors, err := p.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}
