package openai

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

func TestNewAppliesDefaults(t *testing.T) {
	c, err := New(provider.Config{APIKey: "test-key"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", c.defaultModel)
	assert.Equal(t, "text-embedding-3-small", c.embedModel)
	assert.Equal(t, "openai", c.Name())
}

func TestModelFallsBackToDefault(t *testing.T) {
	c, err := New(provider.Config{APIKey: "test-key"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", c.model(provider.CompletionRequest{}))
	assert.Equal(t, "gpt-4o-mini", c.model(provider.CompletionRequest{Model: "gpt-4o-mini"}))
}

func TestToOpenAIMessagesPrependsSystem(t *testing.T) {
	msgs := toOpenAIMessages("be terse", []provider.Message{{Role: provider.RoleUser, Content: "hi"}})
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "be terse", msgs[0].Content)
	assert.Equal(t, "user", msgs[1].Role)
}

func TestEmbedEmptyInputIsNoop(t *testing.T) {
	c, err := New(provider.Config{APIKey: "test-key"})
	require.NoError(t, err)
	result, err := c.Embed(context.Background(), provider.EmbeddingRequest{})
	require.NoError(t, err)
	assert.Empty(t, result.Vectors)
}
