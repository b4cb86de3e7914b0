package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/SynapGarden/NVIDIA-blog-mcp/config"
	"github.com/SynapGarden/NVIDIA-blog-mcp/internal/httpx"
)

type stubEmbedder struct{ dim int }

func (s stubEmbedder) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, s.dim)
	}
	return out, nil
}

func TestVectorWriterUpsert(t *testing.T) {
	var got upsertRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "indexes/42:upsertDatapoints") {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	cfg := config.VertexConfig{Project: "p", Region: "us-central1", VectorIndex: "42"}
	w, err := NewVectorWriter(cfg, stubEmbedder{dim: 8}, httpx.New(5*time.Second, 0, 0))
	if err != nil {
		t.Fatalf("NewVectorWriter: %v", err)
	}
	if err := w.WithBase(srv.URL).Upsert(context.Background(), "post-1", "some text"); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if len(got.Datapoints) != 1 || got.Datapoints[0].DatapointID != "post-1" {
		t.Fatalf("unexpected datapoints: %+v", got.Datapoints)
	}
	if len(got.Datapoints[0].FeatureVector) != 8 {
		t.Fatalf("vector not forwarded, dim %d", len(got.Datapoints[0].FeatureVector))
	}
}

func TestCorpusWriterUpload(t *testing.T) {
	var sawUpload bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/upload/v1/projects/p/locations/us-central1/ragCorpora/7/ragFiles:upload") {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
			t.Fatalf("expected multipart upload, got %s", r.Header.Get("Content-Type"))
		}
		sawUpload = true
		_, _ = w.Write([]byte(`{"ragFile":{"name":"x"}}`))
	}))
	defer srv.Close()

	cfg := config.VertexConfig{
		Project:   "p",
		Region:    "us-central1",
		RAGCorpus: "projects/p/locations/us-central1/ragCorpora/7",
	}
	w, err := NewCorpusWriter(cfg, 768, 128)
	if err != nil {
		t.Fatalf("NewCorpusWriter: %v", err)
	}
	if err := w.WithBase(srv.URL).Upload(context.Background(), "post-1", "Post One", "cleaned text"); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !sawUpload {
		t.Fatal("upload endpoint never hit")
	}
}

func TestCorpusWriterUploadSurfacesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "concurrent operation", http.StatusBadRequest)
	}))
	defer srv.Close()

	cfg := config.VertexConfig{Project: "p", Region: "us-central1", RAGCorpus: "projects/p/locations/us-central1/ragCorpora/7"}
	w, err := NewCorpusWriter(cfg, 768, 128)
	if err != nil {
		t.Fatalf("NewCorpusWriter: %v", err)
	}
	if err := w.WithBase(srv.URL).Upload(context.Background(), "post-1", "t", "text"); err == nil {
		t.Fatal("expected error for 400 response")
	}
}
