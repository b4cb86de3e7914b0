package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/SynapGarden/NVIDIA-blog-mcp/config"
	"github.com/SynapGarden/NVIDIA-blog-mcp/internal/metrics"
	"github.com/SynapGarden/NVIDIA-blog-mcp/retrieval"
)

// Engine runs the transform/retrieve/grade refinement loop. It holds no
// per-request state; concurrent Search calls are independent.
type Engine struct {
	cfg         config.EngineConfig
	transformer *Transformer
	grader      *Grader
	retrievers  map[string]retrieval.Retriever
	tracer      trace.Tracer
	logger      *log.Logger
}

func New(cfg config.EngineConfig, gen Generator, retrievers ...retrieval.Retriever) *Engine {
	byName := make(map[string]retrieval.Retriever, len(retrievers))
	for _, r := range retrievers {
		byName[r.Name()] = r
	}
	return &Engine{
		cfg:         cfg,
		transformer: NewTransformer(gen),
		grader:      NewGrader(gen, cfg.RelevanceWeight),
		retrievers:  byName,
		tracer:      otel.Tracer("engine"),
		logger:      log.New(log.Writer(), "[ENGINE] ", log.LstdFlags),
	}
}

// Transformer exposes the engine's transformer, so callers can share
// its clock override in tests.
func (e *Engine) Transformer() *Transformer { return e.transformer }

// prepare validates and defaults a query in place.
func (e *Engine) prepare(q *Query) (retrieval.Retriever, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, ErrEmptyQuery
	}
	if q.TopK == 0 {
		q.TopK = e.cfg.TopKDefault
	}
	if q.TopK < 1 || q.TopK > 20 {
		return nil, fmt.Errorf("%w: top_k %d outside 1-20", ErrConfiguration, q.TopK)
	}
	if q.MaxDistance == 0 {
		q.MaxDistance = e.cfg.DistanceThreshold
	}
	if q.MaxDistance <= 0 {
		return nil, fmt.Errorf("%w: max_distance must be positive", ErrConfiguration)
	}
	r, ok := e.retrievers[q.Method]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, q.Method)
	}
	return r, nil
}

// Search answers a query through the full refinement pipeline.
//
// The loop runs at most 1+max_refinements rounds. Each round rewrites
// the question (carrying the prior grade's reasoning as feedback after
// the first round), retrieves, and grades. A grade whose score reaches
// the adequacy threshold ends the loop early; the grounded verdict is
// reported as graded but does not drive termination.
// Transform and grade failures degrade rather than abort:
// a failed transform falls back to the original question, a failed
// grade substitutes a neutral zero grade and stops refining, since
// there is no feedback left to refine with.
func (e *Engine) Search(ctx context.Context, q Query) (*SearchResult, error) {
	retriever, err := e.prepare(&q)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues(q.Method, "error").Inc()
		return nil, err
	}

	ctx, span := e.tracer.Start(ctx, "engine.search",
		trace.WithAttributes(
			attribute.String("method", q.Method),
			attribute.Int("top_k", q.TopK),
		))
	defer span.End()
	start := time.Now()
	defer func() {
		metrics.SearchDuration.WithLabelValues(q.Method).Observe(time.Since(start).Seconds())
	}()

	result := &SearchResult{Query: q.Text}
	degrade := func(stage string) {
		result.Degraded = append(result.Degraded, stage)
		metrics.DegradedTotal.WithLabelValues(stage).Inc()
	}

	current := q.Text
	feedback := ""
	rounds := 0
	for round := 0; round <= e.cfg.MaxRefinements; round++ {
		if err := ctx.Err(); err != nil {
			metrics.SearchesTotal.WithLabelValues(q.Method, "cancelled").Inc()
			return nil, err
		}

		tq, err := e.transformer.Transform(ctx, q.Text, feedback)
		if err != nil {
			if ctx.Err() != nil {
				metrics.SearchesTotal.WithLabelValues(q.Method, "cancelled").Inc()
				return nil, ctx.Err()
			}
			degrade("transform")
			if round > 0 {
				// A refinement round without a rewrite would repeat
				// the previous retrieval verbatim, so stop here.
				e.logger.Printf("transform degraded on refinement round %d: %v", round, err)
				break
			}
			// First round proceeds with the untransformed question.
			e.logger.Printf("transform degraded, using original query: %v", err)
		} else {
			current = tq.Rewritten
			result.TransformedQuery = tq
		}

		recs, err := retriever.Retrieve(ctx, current, q.TopK, q.MaxDistance)
		if err != nil {
			metrics.SearchesTotal.WithLabelValues(q.Method, "error").Inc()
			span.RecordError(err)
			return nil, fmt.Errorf("retrieve round %d: %w", round, err)
		}
		rounds = round + 1
		result.Contexts = NormalizeAll(recs, q.MaxDistance)
		result.RefinementIterations = round

		grade, err := e.grader.Grade(ctx, q.Text, result.Contexts)
		if err != nil {
			if ctx.Err() != nil {
				metrics.SearchesTotal.WithLabelValues(q.Method, "cancelled").Inc()
				return nil, ctx.Err()
			}
			e.logger.Printf("grading degraded: %v", err)
			degrade("grade")
			result.Grade = &Grade{Reasoning: "grading unavailable"}
			break
		}
		result.Grade = grade
		if grade.Score >= e.cfg.AdequacyThreshold {
			break
		}
		feedback = grade.Reasoning
	}

	metrics.RefinementRounds.Observe(float64(rounds))
	outcome := "ok"
	if len(result.Degraded) > 0 {
		outcome = "degraded"
	}
	metrics.SearchesTotal.WithLabelValues(q.Method, outcome).Inc()
	span.SetAttributes(attribute.Int("rounds", rounds))
	return result, nil
}

// RawSearch retrieves without transformation or grading and returns
// the backend's records as-is. This is the reduced contract used for
// nearest-neighbor lookups, where records carry IDs and distances but
// no text to grade.
func (e *Engine) RawSearch(ctx context.Context, q Query) ([]retrieval.Record, error) {
	retriever, err := e.prepare(&q)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues(q.Method, "error").Inc()
		return nil, err
	}
	ctx, span := e.tracer.Start(ctx, "engine.raw_search",
		trace.WithAttributes(attribute.String("method", q.Method)))
	defer span.End()

	recs, err := retriever.Retrieve(ctx, q.Text, q.TopK, q.MaxDistance)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues(q.Method, "error").Inc()
		span.RecordError(err)
		return nil, err
	}
	metrics.SearchesTotal.WithLabelValues(q.Method, "ok").Inc()
	return recs, nil
}
