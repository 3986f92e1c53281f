package anthropic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscore/agentkit/pkg/errs"
	"github.com/nexuscore/agentkit/pkg/provider"
)

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(provider.Config{})
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindConfiguration))
}

func TestNewAppliesDefaultModel(t *testing.T) {
	c, err := New(provider.Config{APIKey: "test-key"})
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-20250514", c.defaultModel)
	assert.Equal(t, "anthropic", c.Name())
}

func TestNewHonorsExplicitModel(t *testing.T) {
	c, err := New(provider.Config{APIKey: "test-key", Model: "claude-opus-4-20250514"})
	require.NoError(t, err)
	assert.Equal(t, "claude-opus-4-20250514", c.defaultModel)
}

func TestModelsListsKnownModels(t *testing.T) {
	c, err := New(provider.Config{APIKey: "test-key"})
	require.NoError(t, err)
	models, err := c.Models(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, models)
	found := false
	for _, m := range models {
		if m.ID == "claude-sonnet-4-20250514" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestEmbedIsUnsupported(t *testing.T) {
	c, err := New(provider.Config{APIKey: "test-key"})
	require.NoError(t, err)
	_, err = c.Embed(context.Background(), provider.EmbeddingRequest{Input: []string{"hi"}})
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindConfiguration))
}

func TestEmbedEmptyInputIsNoop(t *testing.T) {
	c, err := New(provider.Config{APIKey: "test-key"})
	require.NoError(t, err)
	result, err := c.Embed(context.Background(), provider.EmbeddingRequest{})
	require.NoError(t, err)
	assert.Empty(t, result.Vectors)
}
