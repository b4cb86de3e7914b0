package corpus

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SynapGarden/NVIDIA-blog-mcp/config"
	"github.com/SynapGarden/NVIDIA-blog-mcp/internal/httpx"
	"github.com/SynapGarden/NVIDIA-blog-mcp/retrieval"
)

func testConfig() config.VertexConfig {
	return config.VertexConfig{
		Project:   "proj",
		Region:    "us-central1",
		RAGCorpus: "projects/proj/locations/us-central1/ragCorpora/1",
	}
}

func newClient(t *testing.T, base string) *Client {
	t.Helper()
	c, err := New(testConfig(), httpx.New(5*time.Second, 0, 0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c.WithBase(base)
}

func TestRetrieveFiltersByDistance(t *testing.T) {
	var gotBody retrieveRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"contexts":{"contexts":[
			{"text":"a","sourceUri":"u1","distance":0.3},
			{"text":"b","sourceUri":"u2","distance":0.45},
			{"text":"c","sourceUri":"u3","distance":0.67},
			{"text":"d","sourceUri":"u4","distance":0.9}
		]}}`))
	}))
	defer srv.Close()

	records, err := newClient(t, srv.URL).Retrieve(context.Background(), "gpu memory", 10, 0.5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records within distance 0.5, got %d", len(records))
	}
	if records[0]["text"] != "a" || records[1]["text"] != "b" {
		t.Fatalf("unexpected records: %v", records)
	}
	if gotBody.Query.SimilarityTopK != 10 {
		t.Fatalf("expected topK 10 in request, got %d", gotBody.Query.SimilarityTopK)
	}
	if gotBody.VertexRagStore.RagResources.RagCorpus != testConfig().RAGCorpus {
		t.Fatalf("unexpected corpus in request: %q", gotBody.VertexRagStore.RagResources.RagCorpus)
	}
}

func TestRetrieveKeepsRecordsWithoutDistance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"contexts":{"contexts":[{"text":"a","sourceUri":"u1"}]}}`))
	}))
	defer srv.Close()

	records, err := newClient(t, srv.URL).Retrieve(context.Background(), "q", 5, 0.5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected record without distance to survive, got %d", len(records))
	}
}

func TestRetrieveEmptyIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"contexts":{"contexts":[]}}`))
	}))
	defer srv.Close()

	records, err := newClient(t, srv.URL).Retrieve(context.Background(), "q", 5, 0.5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}

func TestRetrieveWrapsTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL).Retrieve(context.Background(), "q", 5, 0.5)
	if !errors.Is(err, retrieval.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestNewRequiresCorpus(t *testing.T) {
	cfg := testConfig()
	cfg.RAGCorpus = ""
	if _, err := New(cfg, httpx.New(time.Second, 0, 0)); err == nil {
		t.Fatal("expected error for missing corpus resource")
	}
}
