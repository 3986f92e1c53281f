// Package openai provides an embeddings.Provider backed by OpenAI's embedding
// models, grounded on internal/memory/embeddings/openai/openai.go.
package openai

import (
	"context"

	openaisdk "github.com/sashabaranov/go-openai"

	"github.com/nexuscore/agentkit/pkg/errs"
	"github.com/nexuscore/agentkit/pkg/memory/embeddings"
)

// Provider implements embeddings.Provider using OpenAI's /embeddings endpoint.
type Provider struct {
	client *openaisdk.Client
	model  string
}

var _ embeddings.Provider = (*Provider)(nil)

// Config configures a Provider.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// New constructs a Provider. cfg.APIKey is required.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errs.New(errs.KindConfiguration, "openai.New", "API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}

	oaiCfg := openaisdk.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oaiCfg.BaseURL = cfg.BaseURL
	}

	return &Provider{client: openaisdk.NewClientWithConfig(oaiCfg), model: cfg.Model}, nil
}

func (p *Provider) Name() string { return "openai" }

// Dimension returns the embedding dimension for the configured model.
func (p *Provider) Dimension() int {
	switch p.model {
	case "text-embedding-3-large":
		return 3072
	default:
		return 1536
	}
}

func (p *Provider) MaxBatchSize() int { return 2048 }

func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, errs.New(errs.KindService, "openai.Embed", "no embedding returned")
	}
	return vectors[0], nil
}

func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := p.client.CreateEmbeddings(ctx, openaisdk.EmbeddingRequest{
		Input: texts,
		Model: openaisdk.EmbeddingModel(p.model),
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindService, "openai.EmbedBatch", err)
	}

	results := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		results[d.Index] = d.Embedding
	}
	return results, nil
}
