// Package engine implements the query refinement loop: rewrite the
// question, retrieve context, grade the answerability of the result,
// and refine the query until the context is adequate or the refinement
// budget runs out.
package engine

import "context"

// Query is a single search request.
type Query struct {
	Text        string  `json:"text"`
	Method      string  `json:"method"` // "rag" or "vector"
	TopK        int     `json:"top_k"`
	MaxDistance float64 `json:"max_distance"`
}

// TransformedQuery is the LLM rewrite of the user's question.
type TransformedQuery struct {
	Original  string `json:"original"`
	Rewritten string `json:"rewritten"`
	Reasoning string `json:"reasoning,omitempty"`
}

// RetrievedContext is one normalized retrieval result.
type RetrievedContext struct {
	ID        string  `json:"id,omitempty"`
	Text      string  `json:"text"`
	SourceURI string  `json:"source_uri,omitempty"`
	Distance  float64 `json:"distance"`
}

// Grade is the LLM assessment of whether the retrieved context can
// answer the question. Grounded is the model's verdict on whether every
// claim an answer would make is traceable to the context; it is
// independent of Score.
type Grade struct {
	Relevance    float64 `json:"relevance"`
	Completeness float64 `json:"completeness"`
	Score        float64 `json:"score"`
	Grounded     bool    `json:"grounded"`
	Reasoning    string  `json:"reasoning,omitempty"`
}

// SearchResult is the outcome of one Search call. TransformedQuery and
// Grade are nil when the corresponding stage ran degraded.
type SearchResult struct {
	Query                string             `json:"query"`
	TransformedQuery     *TransformedQuery  `json:"transformed_query"`
	Contexts             []RetrievedContext `json:"contexts"`
	Grade                *Grade             `json:"grade"`
	RefinementIterations int                `json:"refinement_iterations"`
	Degraded             []string           `json:"degraded,omitempty"`
}

// Generator produces text completions. The provider package satisfies
// this; tests substitute their own.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
