package bedrock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscore/agentkit/pkg/provider"
)

func TestNewAppliesRegionAndModelDefaults(t *testing.T) {
	c, err := New(context.Background(), provider.Config{})
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", c.region)
	assert.Equal(t, "anthropic.claude-3-5-sonnet-20241022-v2:0", c.defaultModel)
	assert.Equal(t, "bedrock", c.Name())
}

func TestNewHonorsExplicitRegionAndModel(t *testing.T) {
	c, err := New(context.Background(), provider.Config{AWSRegion: "us-west-2", Model: "meta.llama3-70b-instruct-v1:0"})
	require.NoError(t, err)
	assert.Equal(t, "us-west-2", c.region)
	assert.Equal(t, "meta.llama3-70b-instruct-v1:0", c.defaultModel)
}

func TestEmbedIsUnsupported(t *testing.T) {
	c, err := New(context.Background(), provider.Config{})
	require.NoError(t, err)
	_, err = c.Embed(context.Background(), provider.EmbeddingRequest{Input: []string{"hi"}})
	require.Error(t, err)
}

func TestModel(t *testing.T) {
	c, err := New(context.Background(), provider.Config{})
	require.NoError(t, err)
	assert.Equal(t, c.defaultModel, c.model(provider.CompletionRequest{}))
	assert.Equal(t, "custom-model", c.model(provider.CompletionRequest{Model: "custom-model"}))
}
