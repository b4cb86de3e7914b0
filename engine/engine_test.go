package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/SynapGarden/NVIDIA-blog-mcp/config"
	"github.com/SynapGarden/NVIDIA-blog-mcp/retrieval"
)

// scriptedGen routes transform and grade prompts to separate scripts so
// loop tests can drive each stage independently.
type scriptedGen struct {
	transformResp  string
	transformErr   error
	gradeResps     []string
	gradeErr       error
	transformCalls int
	gradeCalls     int
}

func (g *scriptedGen) Generate(_ context.Context, prompt string) (string, error) {
	if strings.Contains(prompt, `"rewritten"`) {
		g.transformCalls++
		if g.transformErr != nil {
			return "", g.transformErr
		}
		return g.transformResp, nil
	}
	g.gradeCalls++
	if g.gradeErr != nil {
		return "", g.gradeErr
	}
	resp := g.gradeResps[len(g.gradeResps)-1]
	if g.gradeCalls <= len(g.gradeResps) {
		resp = g.gradeResps[g.gradeCalls-1]
	}
	return resp, nil
}

type fakeRetriever struct {
	name    string
	records []retrieval.Record
	err     error
	calls   int
	queries []string
	topKs   []int
	dists   []float64
}

func (f *fakeRetriever) Name() string { return f.name }

func (f *fakeRetriever) Retrieve(_ context.Context, query string, topK int, maxDistance float64) ([]retrieval.Record, error) {
	f.calls++
	f.queries = append(f.queries, query)
	f.topKs = append(f.topKs, topK)
	f.dists = append(f.dists, maxDistance)
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		TopKDefault:       10,
		DistanceThreshold: 0.7,
		AdequacyThreshold: 0.7,
		MaxRefinements:    2,
		RelevanceWeight:   0.5,
	}
}

func gradeJSON(rel, comp float64, grounded bool) string {
	return fmt.Sprintf(`{"relevance": %g, "completeness": %g, "grounded": %v, "reasoning": "needs more"}`, rel, comp, grounded)
}

func textRecords() []retrieval.Record {
	return []retrieval.Record{{"text": "GPU memory pooling", "source_uri": "https://x/1", "distance": 0.2}}
}

func TestSearchStopsWhenAdequate(t *testing.T) {
	gen := &scriptedGen{
		transformResp: `{"rewritten": "gpu memory pooling", "reasoning": ""}`,
		gradeResps:    []string{gradeJSON(0.9, 0.9, true)},
	}
	ret := &fakeRetriever{name: "rag", records: textRecords()}
	eng := New(testEngineConfig(), gen, ret)

	res, err := eng.Search(context.Background(), Query{Text: "how does gpu memory pooling work", Method: "rag"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if ret.calls != 1 {
		t.Fatalf("expected 1 retrieval for adequate grade, got %d", ret.calls)
	}
	if res.RefinementIterations != 0 {
		t.Fatalf("expected 0 refinement iterations, got %d", res.RefinementIterations)
	}
	if res.Grade == nil || !res.Grade.Grounded {
		t.Fatalf("expected grounded grade, got %+v", res.Grade)
	}
	if res.TransformedQuery == nil || res.TransformedQuery.Rewritten != "gpu memory pooling" {
		t.Fatalf("transformed query missing: %+v", res.TransformedQuery)
	}
	if ret.queries[0] != "gpu memory pooling" {
		t.Fatalf("retrieval did not use rewritten query: %q", ret.queries[0])
	}
}

func TestSearchAdequacyNotGroundednessEndsLoop(t *testing.T) {
	// An adequate score stops refinement even when the model judged the
	// context ungrounded; the verdict passes through to the result
	// instead of being rederived from the score.
	gen := &scriptedGen{
		transformResp: `{"rewritten": "q2", "reasoning": ""}`,
		gradeResps:    []string{gradeJSON(0.9, 0.9, false)},
	}
	ret := &fakeRetriever{name: "rag", records: textRecords()}
	eng := New(testEngineConfig(), gen, ret)

	res, err := eng.Search(context.Background(), Query{Text: "q", Method: "rag"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if ret.calls != 1 {
		t.Fatalf("adequate score must stop the loop, got %d retrievals", ret.calls)
	}
	if res.Grade == nil || res.Grade.Grounded {
		t.Fatalf("grounded=false verdict lost: %+v", res.Grade)
	}
	if res.Grade.Score < 0.7 {
		t.Fatalf("unexpected score: %v", res.Grade.Score)
	}
}

func TestSearchExhaustsRefinementBudget(t *testing.T) {
	gen := &scriptedGen{
		transformResp: `{"rewritten": "q2", "reasoning": ""}`,
		gradeResps:    []string{gradeJSON(0.1, 0.1, false)},
	}
	ret := &fakeRetriever{name: "rag", records: textRecords()}
	eng := New(testEngineConfig(), gen, ret)

	res, err := eng.Search(context.Background(), Query{Text: "q", Method: "rag"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if ret.calls != 3 {
		t.Fatalf("expected exactly 3 retrieval rounds, got %d", ret.calls)
	}
	if res.RefinementIterations != 2 {
		t.Fatalf("expected refinement_iterations 2, got %d", res.RefinementIterations)
	}
	if res.Grade == nil || res.Grade.Grounded {
		t.Fatalf("expected ungrounded final grade, got %+v", res.Grade)
	}
}

func TestSearchRetrievalBudgetHoldsForAnyGrades(t *testing.T) {
	// Scores that bounce around but never reach adequacy must not push
	// the loop past 1+max_refinements retrievals.
	gen := &scriptedGen{
		transformResp: `{"rewritten": "q2", "reasoning": ""}`,
		gradeResps:    []string{gradeJSON(0.6, 0.5, false), gradeJSON(0.0, 0.9, false), gradeJSON(0.69, 0.69, false)},
	}
	ret := &fakeRetriever{name: "rag", records: textRecords()}
	eng := New(testEngineConfig(), gen, ret)

	if _, err := eng.Search(context.Background(), Query{Text: "q", Method: "rag"}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if ret.calls > 3 {
		t.Fatalf("retrieval budget exceeded: %d calls", ret.calls)
	}
}

func TestSearchEmptyRetrievalSkipsGraderAndConsumesBudget(t *testing.T) {
	gen := &scriptedGen{transformResp: `{"rewritten": "q2", "reasoning": ""}`}
	ret := &fakeRetriever{name: "rag"} // always empty
	eng := New(testEngineConfig(), gen, ret)

	res, err := eng.Search(context.Background(), Query{Text: "q", Method: "rag"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gen.gradeCalls != 0 {
		t.Fatalf("grader invoked %d times on empty contexts", gen.gradeCalls)
	}
	if ret.calls != 3 {
		t.Fatalf("empty rounds must consume the budget, got %d calls", ret.calls)
	}
	if res.Grade == nil || res.Grade.Score != 0 || res.Grade.Grounded {
		t.Fatalf("expected zero ungrounded grade, got %+v", res.Grade)
	}
	if len(res.Contexts) != 0 {
		t.Fatalf("expected no contexts, got %d", len(res.Contexts))
	}
}

func TestSearchTransformFailureUsesOriginalQuery(t *testing.T) {
	gen := &scriptedGen{
		transformErr: errors.New("model unavailable"),
		gradeResps:   []string{gradeJSON(0.9, 0.9, true)},
	}
	ret := &fakeRetriever{name: "rag", records: textRecords()}
	eng := New(testEngineConfig(), gen, ret)

	res, err := eng.Search(context.Background(), Query{Text: "original question", Method: "rag"})
	if err != nil {
		t.Fatalf("Search must complete despite transform failure: %v", err)
	}
	if res.TransformedQuery != nil {
		t.Fatalf("expected nil transformed query, got %+v", res.TransformedQuery)
	}
	if ret.queries[0] != "original question" {
		t.Fatalf("retrieval did not fall back to original query: %q", ret.queries[0])
	}
	if len(res.Contexts) == 0 {
		t.Fatal("contexts missing from degraded result")
	}
	if len(res.Degraded) == 0 || res.Degraded[0] != "transform" {
		t.Fatalf("degraded stages not reported: %v", res.Degraded)
	}
}

func TestSearchTransformFailureOnRefinementStopsLoop(t *testing.T) {
	gen := &scriptedGen{
		transformErr: errors.New("model unavailable"),
		gradeResps:   []string{gradeJSON(0.1, 0.1, false)},
	}
	ret := &fakeRetriever{name: "rag", records: textRecords()}
	eng := New(testEngineConfig(), gen, ret)

	res, err := eng.Search(context.Background(), Query{Text: "q", Method: "rag"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	// Round 0 degrades and proceeds; round 1 cannot rewrite, so the
	// loop stops instead of repeating the identical retrieval.
	if ret.calls != 1 {
		t.Fatalf("expected 1 retrieval, got %d", ret.calls)
	}
	if res.Grade == nil || res.Grade.Grounded {
		t.Fatalf("unexpected grade: %+v", res.Grade)
	}
}

func TestSearchGradeFailureSubstitutesNeutralGrade(t *testing.T) {
	gen := &scriptedGen{
		transformResp: `{"rewritten": "q2", "reasoning": ""}`,
		gradeErr:      errors.New("model unavailable"),
	}
	ret := &fakeRetriever{name: "rag", records: textRecords()}
	eng := New(testEngineConfig(), gen, ret)

	res, err := eng.Search(context.Background(), Query{Text: "q", Method: "rag"})
	if err != nil {
		t.Fatalf("Search must complete despite grading failure: %v", err)
	}
	if ret.calls != 1 {
		t.Fatalf("degraded grading must stop refinement, got %d retrievals", ret.calls)
	}
	if res.Grade == nil || res.Grade.Score != 0 || res.Grade.Grounded {
		t.Fatalf("expected neutral grade, got %+v", res.Grade)
	}
	if !strings.Contains(res.Grade.Reasoning, "unavailable") {
		t.Fatalf("reasoning does not explain degradation: %q", res.Grade.Reasoning)
	}
}

func TestSearchHonorsCancellation(t *testing.T) {
	gen := &scriptedGen{transformResp: `{"rewritten": "q2", "reasoning": ""}`}
	ret := &fakeRetriever{name: "rag", records: textRecords()}
	eng := New(testEngineConfig(), gen, ret)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := eng.Search(ctx, Query{Text: "q", Method: "rag"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if ret.calls != 0 {
		t.Fatalf("no round may start after cancellation, got %d retrievals", ret.calls)
	}
}

func TestSearchValidation(t *testing.T) {
	eng := New(testEngineConfig(), &scriptedGen{}, &fakeRetriever{name: "rag"})

	if _, err := eng.Search(context.Background(), Query{Text: "  ", Method: "rag"}); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
	if _, err := eng.Search(context.Background(), Query{Text: "q", Method: "rag", TopK: 50}); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for top_k 50, got %v", err)
	}
	if _, err := eng.Search(context.Background(), Query{Text: "q", Method: "grep"}); !errors.Is(err, ErrUnknownMethod) {
		t.Fatalf("expected ErrUnknownMethod, got %v", err)
	}
}

func TestSearchAppliesConfiguredDefaults(t *testing.T) {
	gen := &scriptedGen{
		transformResp: `{"rewritten": "q2", "reasoning": ""}`,
		gradeResps:    []string{gradeJSON(0.9, 0.9, true)},
	}
	ret := &fakeRetriever{name: "rag", records: textRecords()}
	eng := New(testEngineConfig(), gen, ret)

	if _, err := eng.Search(context.Background(), Query{Text: "q", Method: "rag"}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if ret.topKs[0] != 10 {
		t.Fatalf("expected default top_k 10, got %d", ret.topKs[0])
	}
	if ret.dists[0] != 0.7 {
		t.Fatalf("expected default max distance 0.7, got %v", ret.dists[0])
	}
}

func TestSearchSurfacesRetrievalFailure(t *testing.T) {
	gen := &scriptedGen{transformResp: `{"rewritten": "q2", "reasoning": ""}`}
	ret := &fakeRetriever{name: "rag", err: fmt.Errorf("%w: dial tcp", retrieval.ErrUnavailable)}
	eng := New(testEngineConfig(), gen, ret)

	_, err := eng.Search(context.Background(), Query{Text: "q", Method: "rag"})
	if !errors.Is(err, retrieval.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestRawSearchBypassesTransformAndGrade(t *testing.T) {
	gen := &scriptedGen{}
	records := []retrieval.Record{{"datapoint_id": "p1_chunk_0", "distance": 0.3}}
	ret := &fakeRetriever{name: "vector", records: records}
	eng := New(testEngineConfig(), gen, ret)

	got, err := eng.RawSearch(context.Background(), Query{Text: "q", Method: "vector", TopK: 5})
	if err != nil {
		t.Fatalf("RawSearch: %v", err)
	}
	if gen.transformCalls != 0 || gen.gradeCalls != 0 {
		t.Fatal("raw search must not call the model")
	}
	if len(got) != 1 || got[0]["datapoint_id"] != "p1_chunk_0" {
		t.Fatalf("records not passed through: %v", got)
	}
	if ret.queries[0] != "q" {
		t.Fatalf("raw search must use the literal query, got %q", ret.queries[0])
	}
}
