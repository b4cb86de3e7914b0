package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
)

// Grader asks the LLM whether retrieved context can answer a question.
// The composite score is relevanceWeight*relevance +
// (1-relevanceWeight)*completeness. Grounded is the model's own verdict
// on whether an answer would be fully traceable to the context; it is
// reported as graded, independent of the score.
type Grader struct {
	gen             Generator
	relevanceWeight float64
	logger          *log.Logger
}

func NewGrader(gen Generator, relevanceWeight float64) *Grader {
	return &Grader{
		gen:             gen,
		relevanceWeight: relevanceWeight,
		logger:          log.New(log.Writer(), "[GRADE] ", log.LstdFlags),
	}
}

type gradeOutput struct {
	Relevance    float64 `json:"relevance"`
	Completeness float64 `json:"completeness"`
	Grounded     bool    `json:"grounded"`
	Reasoning    string  `json:"reasoning"`
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Grade scores contexts against the question. Empty context grades to
// zero without calling the model; there is nothing to assess.
func (g *Grader) Grade(ctx context.Context, question string, contexts []RetrievedContext) (*Grade, error) {
	if len(contexts) == 0 {
		return &Grade{
			Relevance:    0,
			Completeness: 0,
			Score:        0,
			Grounded:     false,
			Reasoning:    "no context retrieved",
		}, nil
	}

	var sb strings.Builder
	sb.WriteString("You grade whether retrieved context can answer a question.\n")
	sb.WriteString("Score relevance (is the context about the question's topic) and\n")
	sb.WriteString("completeness (does it contain enough to answer fully), each 0.0-1.0.\n")
	sb.WriteString("Report grounded: true only if every claim an answer would make is\n")
	sb.WriteString("directly traceable to the context below.\n\n")
	fmt.Fprintf(&sb, "Question: %s\n\nContext:\n", question)
	for i, c := range contexts {
		fmt.Fprintf(&sb, "[%d] %s\n", i+1, c.Text)
	}
	sb.WriteString("\nReturn ONLY strict JSON: {\"relevance\": 0.0, \"completeness\": 0.0, \"grounded\": false, \"reasoning\": \"...\"}")

	raw, err := g.gen.Generate(ctx, sb.String())
	if err != nil {
		return nil, fmt.Errorf("grade: %w", err)
	}
	jsonText, err := extractFirstJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("grade: %w", err)
	}
	var out gradeOutput
	if err := json.Unmarshal([]byte(jsonText), &out); err != nil {
		return nil, fmt.Errorf("grade: decode model output: %w", err)
	}

	rel := clamp01(out.Relevance)
	comp := clamp01(out.Completeness)
	score := g.relevanceWeight*rel + (1-g.relevanceWeight)*comp
	grade := &Grade{
		Relevance:    rel,
		Completeness: comp,
		Score:        score,
		Grounded:     out.Grounded,
		Reasoning:    out.Reasoning,
	}
	g.logger.Printf("graded context: score=%.2f grounded=%v", grade.Score, grade.Grounded)
	return grade, nil
}
