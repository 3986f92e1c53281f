// Package ollama provides an embeddings.Provider backed by a local Ollama server,
// grounded on internal/memory/embeddings/ollama/ollama.go. Kept as a plain net/http
// client (no SDK exists in the pack for Ollama) to exercise the spec's "batch size
// selected per provider" invariant with a provider that caps batches at 1.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nexuscore/agentkit/pkg/errs"
	"github.com/nexuscore/agentkit/pkg/memory/embeddings"
)

// Provider implements embeddings.Provider against Ollama's /api/embeddings endpoint.
type Provider struct {
	baseURL string
	model   string
	client  *http.Client
}

var _ embeddings.Provider = (*Provider)(nil)

// Config configures a Provider.
type Config struct {
	BaseURL string
	Model   string
}

// New constructs a Provider, defaulting BaseURL to http://localhost:11434 and Model
// to nomic-embed-text.
func New(cfg Config) (*Provider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text"
	}
	return &Provider{baseURL: cfg.BaseURL, model: cfg.Model, client: &http.Client{Timeout: 60 * time.Second}}, nil
}

func (p *Provider) Name() string { return "ollama" }

// Dimension returns the embedding dimension for the configured model.
func (p *Provider) Dimension() int {
	switch p.model {
	case "mxbai-embed-large":
		return 1024
	case "all-minilm":
		return 384
	default:
		return 768
	}
}

// MaxBatchSize is 1: Ollama's embeddings endpoint accepts one prompt per request.
func (p *Provider) MaxBatchSize() int { return 1 }

type embeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embeddingRequest{Model: p.model, Prompt: text})
	if err != nil {
		return nil, errs.Wrap(errs.KindProcessing, "ollama.Embed", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, errs.Wrap(errs.KindNetwork, "ollama.Embed", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		e := errs.Wrap(errs.KindNetwork, "ollama.Embed", err)
		e.Transient = true
		return nil, e
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, errs.New(errs.KindService, "ollama.Embed", fmt.Sprintf("status %d: %s", resp.StatusCode, string(b)))
	}

	var result embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errs.Wrap(errs.KindStreamProtocol, "ollama.Embed", err)
	}
	return result.Embedding, nil
}

// EmbedBatch embeds each text with its own request, since Ollama has no native
// batch endpoint.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := p.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
