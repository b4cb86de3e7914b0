// Package vertex_provider implements text generation and embeddings on
// Vertex AI publisher models over REST.
package vertex_provider

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/SynapGarden/NVIDIA-blog-mcp/config"
	"github.com/SynapGarden/NVIDIA-blog-mcp/internal/httpx"
)

// geminiRegions lists the deployment regions serving the Gemini model
// family. A config pointing a Gemini model at any other region fails at
// construction; falling back per query would mask a deploy error.
var geminiRegions = map[string]bool{
	"global":          true,
	"us-central1":     true,
	"us-east1":        true,
	"us-east4":        true,
	"us-west1":        true,
	"us-west4":        true,
	"europe-west1":    true,
	"europe-west4":    true,
	"europe-west9":    true,
	"asia-northeast1": true,
	"asia-southeast1": true,
}

type Client struct {
	http   *httpx.Client
	cfg    config.VertexConfig
	base   string
	logger *log.Logger
}

// New builds the client on the caller's HTTP client, so the per-call
// timeout and retry budget stay config-driven.
func New(cfg config.VertexConfig, hc *httpx.Client) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strings.HasPrefix(cfg.GenerationModel, "gemini") && !geminiRegions[cfg.Region] {
		return nil, fmt.Errorf("vertex: model %q is not served in region %q", cfg.GenerationModel, cfg.Region)
	}
	return &Client{
		http:   hc,
		cfg:    cfg,
		base:   fmt.Sprintf("https://%s-aiplatform.googleapis.com", cfg.Region),
		logger: log.New(log.Writer(), "[VERTEX] ", log.LstdFlags),
	}, nil
}

// WithBase overrides the API origin. Used by tests.
func (c *Client) WithBase(base string) *Client {
	c.base = base
	return c
}

func (c *Client) modelURL(model, verb string) string {
	return fmt.Sprintf("%s/v1/projects/%s/locations/%s/publishers/google/models/%s:%s",
		c.base, c.cfg.Project, c.cfg.Region, model, verb)
}

func (c *Client) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.cfg.Token()}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Generate runs a single-turn completion against the generation model.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	req := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     c.cfg.Temperature,
			MaxOutputTokens: c.cfg.MaxOutputTokens,
		},
	}

	var resp generateResponse
	url := c.modelURL(c.cfg.GenerationModel, "generateContent")
	if err := c.http.DoJSON(ctx, "POST", url, c.headers(), req, &resp); err != nil {
		return "", fmt.Errorf("vertex generate: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("vertex generate: empty candidate from %s", c.cfg.GenerationModel)
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

type predictInstance struct {
	Content string `json:"content"`
}

type predictRequest struct {
	Instances []predictInstance `json:"instances"`
}

type predictResponse struct {
	Predictions []struct {
		Embeddings struct {
			Values []float32 `json:"values"`
		} `json:"embeddings"`
	} `json:"predictions"`
}

// CreateEmbedding embeds texts with the configured embedding model.
func (c *Client) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	req := predictRequest{Instances: make([]predictInstance, len(texts))}
	for i, t := range texts {
		req.Instances[i].Content = t
	}

	var resp predictResponse
	url := c.modelURL(c.cfg.EmbeddingModel, "predict")
	if err := c.http.DoJSON(ctx, "POST", url, c.headers(), req, &resp); err != nil {
		return nil, fmt.Errorf("vertex embed: %w", err)
	}
	if len(resp.Predictions) != len(texts) {
		return nil, fmt.Errorf("vertex embed: got %d embeddings for %d inputs", len(resp.Predictions), len(texts))
	}
	vecs := make([][]float32, len(resp.Predictions))
	for i, p := range resp.Predictions {
		vecs[i] = p.Embeddings.Values
	}
	return vecs, nil
}
