package ingest

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// Metadata describes the article being cleaned. The header built from
// it is prepended to the text so date-rewritten queries can match on
// literal date phrases inside the chunk text itself.
type Metadata struct {
	Title   string
	Link    string
	PubDate string
	Feed    string
}

var (
	excessNewlines = regexp.MustCompile(`\n{3,}`)
	excessSpaces   = regexp.MustCompile(` {2,}`)

	boilerplate = []*regexp.Regexp{
		regexp.MustCompile(`(?is)Subscribe.*?Newsletter.*?\n`),
		regexp.MustCompile(`(?is)Follow us on.*?\n`),
		regexp.MustCompile(`(?is)Share this.*?\n`),
		regexp.MustCompile(`(?is)Related.*?Articles.*?\n`),
		regexp.MustCompile(`(?is)©.*?All rights reserved.*?\n`),
		regexp.MustCompile(`(?is)Privacy Policy.*?\n`),
		regexp.MustCompile(`(?is)Terms of Service.*?\n`),
		regexp.MustCompile(`(?is)Cookie Policy.*?\n`),
	}
)

// sourceName maps feed keys to display names used in the header.
func sourceName(feed string) string {
	switch feed {
	case "dev":
		return "NVIDIA Developer Blog"
	case "official":
		return "NVIDIA Official Blog"
	default:
		return feed
	}
}

// Header renders the metadata block prepended to cleaned text.
func Header(meta Metadata) string {
	var parts []string
	if meta.PubDate != "" {
		parts = append(parts, "Publication Date: "+meta.PubDate)
	}
	if meta.Title != "" {
		parts = append(parts, "Title: "+meta.Title)
	}
	if meta.Feed != "" {
		parts = append(parts, "Source: "+sourceName(meta.Feed))
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "\n") + "\n\n---\n\n"
}

// Clean extracts readable article text from HTML and prepends the
// metadata header.
func Clean(html string, meta Metadata) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", fmt.Errorf("empty html")
	}
	pageURL, err := url.Parse(meta.Link)
	if err != nil || meta.Link == "" {
		pageURL = &url.URL{Scheme: "https", Host: "blogs.nvidia.com"}
	}
	article, err := readability.FromReader(strings.NewReader(html), pageURL)
	if err != nil {
		return "", fmt.Errorf("extract article: %w", err)
	}

	text := article.TextContent
	for _, re := range boilerplate {
		text = re.ReplaceAllString(text, "")
	}
	text = excessNewlines.ReplaceAllString(text, "\n\n")
	text = excessSpaces.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	return Header(meta) + text, nil
}
