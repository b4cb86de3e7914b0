package engine

import (
	"strings"

	"github.com/SynapGarden/NVIDIA-blog-mcp/retrieval"
)

// Backends disagree on field names for the same concepts. The synonym
// lists are ordered by preference; the first populated field wins.
var (
	textKeys   = []string{"text", "content", "chunk", "snippet"}
	sourceKeys = []string{"source_uri", "sourceUri", "source", "uri", "url", "link"}
	idKeys     = []string{"id", "raw_id", "datapoint_id", "chunk_id"}
)

func firstString(rec retrieval.Record, keys []string) string {
	for _, k := range keys {
		if v, ok := rec[k]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	return ""
}

// Normalize reconciles a raw record into a RetrievedContext. A record
// with no usable text is unanswerable and is reported as not ok. A
// record carrying no distance is assumed to sit exactly at the cutoff.
func Normalize(rec retrieval.Record, maxDistance float64) (RetrievedContext, bool) {
	text := firstString(rec, textKeys)
	if text == "" {
		return RetrievedContext{}, false
	}
	rc := RetrievedContext{
		ID:        firstString(rec, idKeys),
		Text:      text,
		SourceURI: firstString(rec, sourceKeys),
	}
	if d, ok := retrieval.Distance(rec); ok {
		rc.Distance = d
	} else {
		rc.Distance = maxDistance
	}
	return rc, true
}

// NormalizeAll normalizes a batch, dropping records without text.
func NormalizeAll(recs []retrieval.Record, maxDistance float64) []RetrievedContext {
	out := make([]RetrievedContext, 0, len(recs))
	for _, rec := range recs {
		if rc, ok := Normalize(rec, maxDistance); ok {
			out = append(out, rc)
		}
	}
	return out
}
