package ingest

import (
	"context"
	"log"

	"github.com/SynapGarden/NVIDIA-blog-mcp/config"
	"github.com/SynapGarden/NVIDIA-blog-mcp/internal/metrics"
)

// Ingester drives one full pass over all configured feeds. Items that
// fail are logged and skipped; one broken article never blocks the
// rest of the feed.
type Ingester struct {
	cfg       config.IngestConfig
	fetcher   *Fetcher
	processed *ProcessedSet
	corpus    *CorpusWriter
	vector    *VectorWriter
	logger    *log.Logger
}

func NewIngester(cfg config.IngestConfig, fetcher *Fetcher, processed *ProcessedSet, corpus *CorpusWriter, vector *VectorWriter) *Ingester {
	return &Ingester{
		cfg:       cfg,
		fetcher:   fetcher,
		processed: processed,
		corpus:    corpus,
		vector:    vector,
		logger:    log.New(log.Writer(), "[INGEST] ", log.LstdFlags),
	}
}

// Stats summarizes one ingestion pass.
type Stats struct {
	Seen     int
	Ingested int
	Skipped  int
	Failed   int
}

// Run processes every configured feed once.
func (in *Ingester) Run(ctx context.Context) (Stats, error) {
	var total Stats
	for feed, fc := range in.cfg.Feeds {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		st, err := in.runFeed(ctx, feed, fc)
		total.Seen += st.Seen
		total.Ingested += st.Ingested
		total.Skipped += st.Skipped
		total.Failed += st.Failed
		if err != nil {
			in.logger.Printf("feed %s failed: %v", feed, err)
			continue
		}
		in.logger.Printf("feed %s: %d seen, %d ingested, %d skipped, %d failed",
			feed, st.Seen, st.Ingested, st.Skipped, st.Failed)
	}
	return total, nil
}

func (in *Ingester) runFeed(ctx context.Context, feed string, fc config.FeedConfig) (Stats, error) {
	var st Stats
	items, err := in.fetcher.FetchFeed(ctx, fc.URL)
	if err != nil {
		return st, err
	}
	st.Seen = len(items)

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		rawID := item.ID()
		if rawID == "" {
			st.Skipped++
			continue
		}
		seen, err := in.processed.Seen(ctx, feed, rawID)
		if err != nil {
			return st, err
		}
		if seen {
			st.Skipped++
			continue
		}
		ingested, err := in.ingestItem(ctx, feed, item)
		if err != nil {
			in.logger.Printf("item %s: %v", rawID, err)
			st.Failed++
			continue
		}
		if !ingested {
			// too short to index; retried on the next pass in case the
			// page was a placeholder
			st.Skipped++
			continue
		}
		if err := in.processed.Mark(ctx, feed, rawID); err != nil {
			return st, err
		}
		st.Ingested++
	}
	return st, nil
}

func (in *Ingester) ingestItem(ctx context.Context, feed string, item Item) (bool, error) {
	if item.Link == "" {
		return false, nil
	}
	id := SanitizeID(item.ID())
	html, err := in.fetcher.FetchHTML(ctx, item.Link)
	if err != nil {
		return false, err
	}
	text, err := Clean(html, Metadata{
		Title:   item.Title,
		Link:    item.Link,
		PubDate: item.PubDate,
		Feed:    feed,
	})
	if err != nil {
		return false, err
	}
	if len(text) < in.cfg.MinTextLength {
		return false, nil
	}

	if err := in.corpus.Upload(ctx, id, item.Title, text); err != nil {
		return false, err
	}
	metrics.IngestedChunks.WithLabelValues("corpus").Inc()

	if err := in.vector.Upsert(ctx, id, text); err != nil {
		return false, err
	}
	metrics.IngestedChunks.WithLabelValues("vector").Inc()
	return true, nil
}
