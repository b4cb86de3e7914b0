// Package app wires configuration, provider, retrievers, engine and
// storage into one unit shared by the HTTP server, the MCP server and
// the CLI.
package app

import (
	"context"
	"fmt"
	"log"

	"github.com/SynapGarden/NVIDIA-blog-mcp/config"
	"github.com/SynapGarden/NVIDIA-blog-mcp/engine"
	"github.com/SynapGarden/NVIDIA-blog-mcp/internal/httpx"
	"github.com/SynapGarden/NVIDIA-blog-mcp/internal/store"
	"github.com/SynapGarden/NVIDIA-blog-mcp/provider"
	"github.com/SynapGarden/NVIDIA-blog-mcp/retrieval"
	"github.com/SynapGarden/NVIDIA-blog-mcp/retrieval/corpus"
	"github.com/SynapGarden/NVIDIA-blog-mcp/retrieval/vector"
)

type App struct {
	Cfg      *config.Config
	Provider provider.Provider
	Engine   *engine.Engine
	Store    *store.Store
	Logger   *log.Logger
}

// New builds the application. The corpus and vector retrievers are
// registered only when their resources are configured; Postgres history
// is optional the same way.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := log.New(log.Writer(), "[APP] ", log.LstdFlags)

	hc := httpx.New(cfg.Engine.CallTimeout, cfg.Engine.RetryAttempts, cfg.Engine.RetryBackoff)

	prov, err := provider.NewProvider(cfg.Provider, cfg.Vertex, hc)
	if err != nil {
		return nil, fmt.Errorf("provider: %w", err)
	}

	var retrievers []retrieval.Retriever
	if cfg.Vertex.RAGCorpus != "" {
		c, err := corpus.New(cfg.Vertex, hc)
		if err != nil {
			return nil, err
		}
		retrievers = append(retrievers, c)
	}
	if cfg.Vertex.VectorIndexEndpoint != "" {
		v, err := vector.New(cfg.Vertex, prov, hc)
		if err != nil {
			return nil, err
		}
		retrievers = append(retrievers, v)
	}
	if len(retrievers) == 0 {
		return nil, fmt.Errorf("no retrieval backend configured: set vertex.rag_corpus or vertex.vector_index_endpoint")
	}

	a := &App{
		Cfg:      cfg,
		Provider: prov,
		Engine:   engine.New(cfg.Engine, prov, retrievers...),
		Logger:   logger,
	}

	if cfg.Storage.Postgres.URL != "" || cfg.Storage.Postgres.Host != "" {
		st, err := store.NewWithDSN(ctx, cfg.Storage.Postgres.DSN())
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		a.Store = st
	}
	return a, nil
}

// Search runs the refinement pipeline and records history best-effort.
func (a *App) Search(ctx context.Context, q engine.Query) (*engine.SearchResult, error) {
	res, err := a.Engine.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	if a.Store != nil {
		if _, err := a.Store.SaveSearch(ctx, q.Method, res); err != nil {
			a.Logger.Printf("history insert failed: %v", err)
		}
	}
	return res, nil
}

// RawSearch runs the ungraded nearest-neighbor path.
func (a *App) RawSearch(ctx context.Context, q engine.Query) ([]retrieval.Record, error) {
	return a.Engine.RawSearch(ctx, q)
}

func (a *App) Close() {
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Printf("closing store: %v", err)
		}
	}
}
