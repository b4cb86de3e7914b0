package engine

import "errors"

// Sentinel errors callers can distinguish with errors.Is. Transient
// backend failures surface as retrieval.ErrUnavailable wrapped with the
// last underlying cause; degraded transform/grade stages are not errors
// and are reported on the SearchResult instead.
var (
	// ErrConfiguration marks an invalid safety-relevant setting such
	// as an out-of-range top_k or distance threshold. These are never
	// silently defaulted.
	ErrConfiguration = errors.New("configuration error")

	// ErrUnknownMethod marks a method value naming no registered
	// retrieval backend.
	ErrUnknownMethod = errors.New("unknown retrieval method")

	// ErrEmptyQuery marks a request with no query text.
	ErrEmptyQuery = errors.New("empty query")
)
