// Package provider selects the text generation and embedding backend.
package provider

import (
	"context"
	"fmt"

	"github.com/SynapGarden/NVIDIA-blog-mcp/config"
	"github.com/SynapGarden/NVIDIA-blog-mcp/internal/httpx"
	openai_provider "github.com/SynapGarden/NVIDIA-blog-mcp/provider/openai"
	vertex_provider "github.com/SynapGarden/NVIDIA-blog-mcp/provider/vertex"
)

// Provider is the interface every generation backend must satisfy.
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// NewProvider builds the configured backend. Construction validates
// deployment settings; a generation model pinned to an incompatible
// region fails here, not on the first query. hc carries the engine's
// configured per-call timeout and retry budget; the openai backend
// manages its own transport through its SDK config instead.
func NewProvider(cfg config.ProviderConfig, vertexCfg config.VertexConfig, hc *httpx.Client) (Provider, error) {
	switch cfg.Type {
	case "", "vertex":
		return vertex_provider.New(vertexCfg, hc)
	case "openai":
		return openai_provider.New(cfg.OpenAI)
	default:
		return nil, fmt.Errorf("unsupported provider type %q", cfg.Type)
	}
}
