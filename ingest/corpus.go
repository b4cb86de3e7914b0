package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/SynapGarden/NVIDIA-blog-mcp/config"
)

// CorpusWriter uploads cleaned article text into the RAG corpus via the
// ragFiles:upload endpoint. The service chunks server side; chunk size
// and overlap are word counts.
type CorpusWriter struct {
	client       *http.Client
	cfg          config.VertexConfig
	base         string
	chunkSize    int
	chunkOverlap int
	logger       *log.Logger
}

func NewCorpusWriter(cfg config.VertexConfig, chunkSize, chunkOverlap int) (*CorpusWriter, error) {
	if cfg.RAGCorpus == "" {
		return nil, fmt.Errorf("ingest: vertex.rag_corpus is required")
	}
	return &CorpusWriter{
		client:       &http.Client{Timeout: 5 * time.Minute},
		cfg:          cfg,
		base:         fmt.Sprintf("https://%s-aiplatform.googleapis.com", cfg.Region),
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		logger:       log.New(log.Writer(), "[CORPUS-W] ", log.LstdFlags),
	}, nil
}

// WithBase overrides the API origin. Used by tests.
func (w *CorpusWriter) WithBase(base string) *CorpusWriter {
	w.base = base
	return w
}

// Upload writes a cleaned text document into the corpus as one rag
// file identified by id.
func (w *CorpusWriter) Upload(ctx context.Context, id, displayName, text string) error {
	meta := map[string]any{
		"rag_file": map[string]any{
			"display_name": displayName,
			"description":  id,
		},
		"upload_rag_file_config": map[string]any{
			"rag_file_chunking_config": map[string]any{
				"chunk_size":    w.chunkSize,
				"chunk_overlap": w.chunkOverlap,
			},
		},
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	metaPart, err := mw.CreatePart(map[string][]string{"Content-Type": {"application/json"}})
	if err != nil {
		return err
	}
	if _, err := metaPart.Write(metaJSON); err != nil {
		return err
	}
	filePart, err := mw.CreateFormFile("file", id+".txt")
	if err != nil {
		return err
	}
	if _, err := io.WriteString(filePart, text); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	url := fmt.Sprintf("%s/upload/v1/%s/ragFiles:upload", w.base, w.cfg.RAGCorpus)
	req, err := http.NewRequestWithContext(ctx, "POST", url, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+w.cfg.Token())
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Goog-Upload-Protocol", "multipart")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("upload rag file %s: %w", id, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("upload rag file %s: status %d: %s", id, resp.StatusCode, payload)
	}
	w.logger.Printf("uploaded %s (%d bytes)", id, len(text))
	return nil
}
