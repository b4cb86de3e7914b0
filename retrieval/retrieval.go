// Package retrieval defines the backend contract shared by the corpus
// and vector retrievers. Backends return loosely typed records; field
// reconciliation is the engine's job.
package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
)

// ErrUnavailable marks transport or auth failures from a retrieval
// backend that persisted past the adapter's own retry budget. A backend
// that responds with zero qualifying records returns an empty slice and
// a nil error instead.
var ErrUnavailable = errors.New("retrieval backend unavailable")

// Record is a raw result as the backend returned it. Different backends
// use different field names and units; see engine.Normalize.
type Record map[string]interface{}

// Retriever is the common contract over the corpus and vector backends.
// maxDistance is a maximum-distance cutoff: records farther than it are
// excluded (smaller distance means more similar).
type Retriever interface {
	Name() string
	Retrieve(ctx context.Context, query string, topK int, maxDistance float64) ([]Record, error)
}

// Embedder supplies query embeddings for the vector backend.
type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// Distance extracts a record's distance field, coercing the loose types
// JSON decoding produces. ok is false when no distance field is present.
func Distance(r Record) (float64, bool) {
	for _, key := range []string{"distance", "dist"} {
		v, present := r[key]
		if !present {
			continue
		}
		switch x := v.(type) {
		case float64:
			return x, true
		case float32:
			return float64(x), true
		case int:
			return float64(x), true
		case json.Number:
			f, err := x.Float64()
			if err == nil {
				return f, true
			}
		case string:
			f, err := strconv.ParseFloat(x, 64)
			if err == nil {
				return f, true
			}
		}
	}
	return 0, false
}
