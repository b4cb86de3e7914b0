// Package vector retrieves nearest neighbors from a deployed Vertex AI
// Vector Search index. The query text is embedded first, then matched
// with findNeighbors.
package vector

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/SynapGarden/NVIDIA-blog-mcp/config"
	"github.com/SynapGarden/NVIDIA-blog-mcp/internal/httpx"
	"github.com/SynapGarden/NVIDIA-blog-mcp/retrieval"
)

// Client queries a deployed vector index. It satisfies
// retrieval.Retriever under the method name "vector".
type Client struct {
	http     *httpx.Client
	embedder retrieval.Embedder
	cfg      config.VertexConfig
	base     string
	logger   *log.Logger
}

func New(cfg config.VertexConfig, embedder retrieval.Embedder, hc *httpx.Client) (*Client, error) {
	if strings.TrimSpace(cfg.VectorIndexEndpoint) == "" {
		return nil, fmt.Errorf("vector: vertex.vector_index_endpoint is required")
	}
	if strings.TrimSpace(cfg.DeployedIndexID) == "" {
		return nil, fmt.Errorf("vector: vertex.deployed_index_id is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("vector: embedder is required")
	}
	return &Client{
		http:     hc,
		embedder: embedder,
		cfg:      cfg,
		base:     fmt.Sprintf("https://%s-aiplatform.googleapis.com", cfg.Region),
		logger:   log.New(log.Writer(), "[VECTOR] ", log.LstdFlags),
	}, nil
}

// WithBase overrides the API origin. Used by tests.
func (c *Client) WithBase(base string) *Client {
	c.base = base
	return c
}

func (c *Client) Name() string { return "vector" }

// endpointResource accepts either a bare endpoint ID or a full resource
// name and returns the full name.
func (c *Client) endpointResource() string {
	if strings.Contains(c.cfg.VectorIndexEndpoint, "/") {
		return c.cfg.VectorIndexEndpoint
	}
	return fmt.Sprintf("projects/%s/locations/%s/indexEndpoints/%s",
		c.cfg.Project, c.cfg.Region, c.cfg.VectorIndexEndpoint)
}

type findNeighborsRequest struct {
	DeployedIndexID string          `json:"deployedIndexId"`
	Queries         []neighborQuery `json:"queries"`
}

type neighborQuery struct {
	Datapoint struct {
		FeatureVector []float32 `json:"featureVector"`
	} `json:"datapoint"`
	NeighborCount int `json:"neighborCount"`
}

type findNeighborsResponse struct {
	NearestNeighbors []struct {
		Neighbors []struct {
			Datapoint struct {
				DatapointID string `json:"datapointId"`
			} `json:"datapoint"`
			Distance float64 `json:"distance"`
		} `json:"neighbors"`
	} `json:"nearestNeighbors"`
}

// Retrieve embeds the query and returns the nearest datapoints. The
// records carry only the datapoint ID and distance; the index itself
// stores no text.
func (c *Client) Retrieve(ctx context.Context, query string, topK int, maxDistance float64) ([]retrieval.Record, error) {
	vectors, err := c.embedder.CreateEmbedding(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", retrieval.ErrUnavailable, err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: embedder returned no vectors", retrieval.ErrUnavailable)
	}

	var req findNeighborsRequest
	req.DeployedIndexID = c.cfg.DeployedIndexID
	q := neighborQuery{NeighborCount: topK}
	q.Datapoint.FeatureVector = vectors[0]
	req.Queries = []neighborQuery{q}

	url := fmt.Sprintf("%s/v1/%s:findNeighbors", c.base, c.endpointResource())
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.Token()}
	var resp findNeighborsResponse
	if err := c.http.DoJSON(ctx, "POST", url, headers, req, &resp); err != nil {
		return nil, fmt.Errorf("%w: find neighbors: %v", retrieval.ErrUnavailable, err)
	}

	var records []retrieval.Record
	for _, group := range resp.NearestNeighbors {
		for _, n := range group.Neighbors {
			if n.Distance > maxDistance {
				continue
			}
			records = append(records, retrieval.Record{
				"datapoint_id": n.Datapoint.DatapointID,
				"distance":     n.Distance,
			})
		}
	}
	c.logger.Printf("matched %d neighbors within distance %.2f", len(records), maxDistance)
	return records, nil
}
