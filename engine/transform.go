package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"
)

// Transformer rewrites user questions into retrieval-friendly queries.
// Relative dates are resolved deterministically before the LLM sees the
// text, so "today" never depends on the model's notion of the date.
type Transformer struct {
	gen    Generator
	now    func() time.Time
	logger *log.Logger
}

func NewTransformer(gen Generator) *Transformer {
	return &Transformer{
		gen:    gen,
		now:    time.Now,
		logger: log.New(log.Writer(), "[TRANSFORM] ", log.LstdFlags),
	}
}

// WithClock overrides the clock. Used by tests.
func (t *Transformer) WithClock(now func() time.Time) *Transformer {
	t.now = now
	return t
}

var (
	reToday     = regexp.MustCompile(`(?i)\btoday\b`)
	reYesterday = regexp.MustCompile(`(?i)\byesterday\b`)
	reTomorrow  = regexp.MustCompile(`(?i)\btomorrow\b`)
	reThisWeek  = regexp.MustCompile(`(?i)\bthis week\b`)
	reThisMonth = regexp.MustCompile(`(?i)\bthis month\b`)
	reThisYear  = regexp.MustCompile(`(?i)\bthis year\b`)
)

// ResolveTemporal replaces relative date expressions with absolute
// dates anchored at now.
func ResolveTemporal(text string, now time.Time) string {
	const layout = "January 2, 2006"
	text = reToday.ReplaceAllString(text, now.Format(layout))
	text = reYesterday.ReplaceAllString(text, now.AddDate(0, 0, -1).Format(layout))
	text = reTomorrow.ReplaceAllString(text, now.AddDate(0, 0, 1).Format(layout))

	monday := now.AddDate(0, 0, -((int(now.Weekday()) + 6) % 7))
	text = reThisWeek.ReplaceAllString(text, "the week of "+monday.Format(layout))
	text = reThisMonth.ReplaceAllString(text, now.Format("January 2006"))
	text = reThisYear.ReplaceAllString(text, now.Format("2006"))
	return text
}

type transformOutput struct {
	Rewritten string `json:"rewritten"`
	Reasoning string `json:"reasoning"`
}

// Transform rewrites query for retrieval. feedback carries the grader's
// reasoning from the previous round and is empty on the first round.
// The caller treats an error as a degraded stage and proceeds with the
// original query.
func (t *Transformer) Transform(ctx context.Context, query, feedback string) (*TransformedQuery, error) {
	resolved := ResolveTemporal(query, t.now())

	var sb strings.Builder
	sb.WriteString("You rewrite search queries for a technical blog retrieval system.\n")
	sb.WriteString("Rewrite the question into a concise, keyword-rich search query.\n")
	sb.WriteString("Preserve every concrete date, version number, and product name.\n")
	fmt.Fprintf(&sb, "Current date: %s\n", t.now().Format("January 2, 2006"))
	sb.WriteString("Indexed articles carry literal publication dates, so resolve remaining relative time words (\"recent\", \"latest\") into month and year phrases anchored at the current date.\n")
	if feedback != "" {
		fmt.Fprintf(&sb, "The previous query retrieved inadequate context. Grader feedback: %s\n", feedback)
		sb.WriteString("Broaden or redirect the query to address the feedback.\n")
	}
	fmt.Fprintf(&sb, "\nQuestion: %s\n\n", resolved)
	sb.WriteString(`Return ONLY strict JSON: {"rewritten": "...", "reasoning": "..."}`)

	raw, err := t.gen.Generate(ctx, sb.String())
	if err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}
	jsonText, err := extractFirstJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}
	var out transformOutput
	if err := json.Unmarshal([]byte(jsonText), &out); err != nil {
		return nil, fmt.Errorf("transform: decode model output: %w", err)
	}
	if strings.TrimSpace(out.Rewritten) == "" {
		return nil, fmt.Errorf("transform: model returned empty rewrite")
	}
	t.logger.Printf("rewrote query: %q -> %q", query, out.Rewritten)
	return &TransformedQuery{
		Original:  query,
		Rewritten: out.Rewritten,
		Reasoning: out.Reasoning,
	}, nil
}

// extractFirstJSON pulls the first balanced JSON object out of model
// output that may carry prose or markdown fences around it.
func extractFirstJSON(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", fmt.Errorf("no JSON object in model output")
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unterminated JSON object in model output")
}
