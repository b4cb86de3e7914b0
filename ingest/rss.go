// Package ingest mirrors published blog posts into the retrieval
// backends: RSS discovery, readability cleanup, a metadata header for
// date-grounded retrieval, then corpus upload and vector upsert.
package ingest

import (
	"context"
	"encoding/xml"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/SynapGarden/NVIDIA-blog-mcp/internal/httpx"
)

// Item is one RSS entry.
type Item struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	GUID        string `xml:"guid"`
	PubDate     string `xml:"pubDate"`
	Description string `xml:"description"`
}

// ID returns the stable identity of the item: GUID when present,
// otherwise the link.
func (it Item) ID() string {
	if s := strings.TrimSpace(it.GUID); s != "" {
		return s
	}
	return strings.TrimSpace(it.Link)
}

type rssDoc struct {
	Channel struct {
		Items []Item `xml:"item"`
	} `xml:"channel"`
}

// Fetcher downloads and parses RSS feeds and article HTML.
type Fetcher struct {
	http      *httpx.Client
	userAgent string
	logger    *log.Logger
}

func NewFetcher(hc *httpx.Client, userAgent string) *Fetcher {
	if userAgent == "" {
		userAgent = "Mozilla/5.0 (compatible; BlogIngestor/1.0)"
	}
	return &Fetcher{
		http:      hc,
		userAgent: userAgent,
		logger:    log.New(log.Writer(), "[RSS] ", log.LstdFlags),
	}
}

func (f *Fetcher) headers() map[string]string {
	return map[string]string{"User-Agent": f.userAgent}
}

// FetchFeed downloads and parses one RSS feed.
func (f *Fetcher) FetchFeed(ctx context.Context, url string) ([]Item, error) {
	body, err := f.http.Get(ctx, url, f.headers())
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", url, err)
	}
	items, err := ParseRSS(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", url, err)
	}
	f.logger.Printf("parsed %d items from %s", len(items), url)
	return items, nil
}

// FetchHTML downloads the full article body.
func (f *Fetcher) FetchHTML(ctx context.Context, url string) (string, error) {
	body, err := f.http.Get(ctx, url, f.headers())
	if err != nil {
		return "", fmt.Errorf("fetch article %s: %w", url, err)
	}
	return string(body), nil
}

// ParseRSS extracts the channel items from RSS XML.
func ParseRSS(raw []byte) ([]Item, error) {
	var doc rssDoc
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	items := doc.Channel.Items
	for i := range items {
		items[i].Title = strings.TrimSpace(items[i].Title)
		items[i].Link = strings.TrimSpace(items[i].Link)
		items[i].GUID = strings.TrimSpace(items[i].GUID)
		items[i].PubDate = strings.TrimSpace(items[i].PubDate)
	}
	return items, nil
}

var idSanitizer = regexp.MustCompile(`[^\w\-.]`)

// SanitizeID turns a GUID or URL into an identifier safe for datapoint
// IDs and file names. IDs are capped at 200 characters.
func SanitizeID(raw string) string {
	id := idSanitizer.ReplaceAllString(raw, "_")
	if len(id) > 200 {
		id = id[:200]
	}
	if id == "" || strings.Trim(id, "_") == "" {
		id = fmt.Sprintf("item_%d", time.Now().Unix())
	}
	return id
}
