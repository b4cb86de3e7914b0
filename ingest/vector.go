package ingest

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/SynapGarden/NVIDIA-blog-mcp/config"
	"github.com/SynapGarden/NVIDIA-blog-mcp/internal/httpx"
	"github.com/SynapGarden/NVIDIA-blog-mcp/retrieval"
)

// VectorWriter embeds article text and upserts the vector into the
// Vector Search index under the item's sanitized ID, so neighbor
// lookups return IDs the corpus side also knows.
type VectorWriter struct {
	http     *httpx.Client
	embedder retrieval.Embedder
	cfg      config.VertexConfig
	base     string
	logger   *log.Logger
}

func NewVectorWriter(cfg config.VertexConfig, embedder retrieval.Embedder, hc *httpx.Client) (*VectorWriter, error) {
	if cfg.VectorIndex == "" {
		return nil, fmt.Errorf("ingest: vertex.vector_index is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("ingest: embedder is required")
	}
	return &VectorWriter{
		http:     hc,
		embedder: embedder,
		cfg:      cfg,
		base:     fmt.Sprintf("https://%s-aiplatform.googleapis.com", cfg.Region),
		logger:   log.New(log.Writer(), "[VECTOR-W] ", log.LstdFlags),
	}, nil
}

// WithBase overrides the API origin. Used by tests.
func (w *VectorWriter) WithBase(base string) *VectorWriter {
	w.base = base
	return w
}

func (w *VectorWriter) indexResource() string {
	if strings.Contains(w.cfg.VectorIndex, "/") {
		return w.cfg.VectorIndex
	}
	return fmt.Sprintf("projects/%s/locations/%s/indexes/%s",
		w.cfg.Project, w.cfg.Region, w.cfg.VectorIndex)
}

type datapoint struct {
	DatapointID   string    `json:"datapointId"`
	FeatureVector []float32 `json:"featureVector"`
}

type upsertRequest struct {
	Datapoints []datapoint `json:"datapoints"`
}

// Upsert embeds text and writes the vector under id.
func (w *VectorWriter) Upsert(ctx context.Context, id, text string) error {
	vecs, err := w.embedder.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return fmt.Errorf("embed %s: %w", id, err)
	}
	if len(vecs) == 0 {
		return fmt.Errorf("embed %s: no vector returned", id)
	}

	url := fmt.Sprintf("%s/v1/%s:upsertDatapoints", w.base, w.indexResource())
	req := upsertRequest{Datapoints: []datapoint{{DatapointID: id, FeatureVector: vecs[0]}}}
	headers := map[string]string{"Authorization": "Bearer " + w.cfg.Token()}
	var resp struct{}
	if err := w.http.DoJSON(ctx, "POST", url, headers, req, &resp); err != nil {
		return fmt.Errorf("upsert datapoint %s: %w", id, err)
	}
	w.logger.Printf("upserted %s (dim %d)", id, len(vecs[0]))
	return nil
}
