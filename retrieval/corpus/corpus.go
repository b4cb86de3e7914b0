// Package corpus retrieves grounded text chunks from a Vertex AI RAG
// corpus over the retrieveContexts REST endpoint.
package corpus

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/SynapGarden/NVIDIA-blog-mcp/config"
	"github.com/SynapGarden/NVIDIA-blog-mcp/internal/httpx"
	"github.com/SynapGarden/NVIDIA-blog-mcp/retrieval"
)

// Client queries a managed RAG corpus. It satisfies retrieval.Retriever
// under the method name "rag".
type Client struct {
	http   *httpx.Client
	cfg    config.VertexConfig
	base   string
	logger *log.Logger
}

func New(cfg config.VertexConfig, hc *httpx.Client) (*Client, error) {
	if strings.TrimSpace(cfg.RAGCorpus) == "" {
		return nil, fmt.Errorf("corpus: vertex.rag_corpus is required")
	}
	return &Client{
		http:   hc,
		cfg:    cfg,
		base:   fmt.Sprintf("https://%s-aiplatform.googleapis.com", cfg.Region),
		logger: log.New(log.Writer(), "[CORPUS] ", log.LstdFlags),
	}, nil
}

// WithBase overrides the API origin. Used by tests.
func (c *Client) WithBase(base string) *Client {
	c.base = base
	return c
}

func (c *Client) Name() string { return "rag" }

type retrieveRequest struct {
	VertexRagStore struct {
		RagResources struct {
			RagCorpus string `json:"ragCorpus"`
		} `json:"ragResources"`
		VectorDistanceThreshold float64 `json:"vectorDistanceThreshold"`
	} `json:"vertexRagStore"`
	Query struct {
		Text           string `json:"text"`
		SimilarityTopK int    `json:"similarityTopK"`
	} `json:"query"`
}

type retrieveResponse struct {
	Contexts struct {
		Contexts []retrieval.Record `json:"contexts"`
	} `json:"contexts"`
}

// Retrieve runs a similarity query against the corpus. The distance
// threshold is passed to the service and re-applied client side, since
// the service treats it as advisory for some corpus types.
func (c *Client) Retrieve(ctx context.Context, query string, topK int, maxDistance float64) ([]retrieval.Record, error) {
	url := fmt.Sprintf("%s/v1/projects/%s/locations/%s:retrieveContexts",
		c.base, c.cfg.Project, c.cfg.Region)

	var req retrieveRequest
	req.VertexRagStore.RagResources.RagCorpus = c.cfg.RAGCorpus
	req.VertexRagStore.VectorDistanceThreshold = maxDistance
	req.Query.Text = query
	req.Query.SimilarityTopK = topK

	var resp retrieveResponse
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.Token()}
	if err := c.http.DoJSON(ctx, "POST", url, headers, req, &resp); err != nil {
		return nil, fmt.Errorf("%w: corpus retrieve: %v", retrieval.ErrUnavailable, err)
	}

	records := make([]retrieval.Record, 0, len(resp.Contexts.Contexts))
	for _, rec := range resp.Contexts.Contexts {
		if d, ok := retrieval.Distance(rec); ok && d > maxDistance {
			continue
		}
		records = append(records, rec)
	}
	c.logger.Printf("retrieved %d/%d contexts within distance %.2f",
		len(records), len(resp.Contexts.Contexts), maxDistance)
	return records, nil
}
