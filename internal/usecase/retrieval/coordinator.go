package retrieval

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/expomatch/expomatch/internal/domain"
	"github.com/expomatch/expomatch/internal/domain/search/outcome"
	"github.com/expomatch/expomatch/internal/domain/search/plan"
	"github.com/expomatch/expomatch/internal/metrics"
)

// Engine coordinates a search plan end to end: one pipeline per entry,
// all pipelines concurrent, each looping search -> aggregate -> retry
// until its own machine reaches done. Pipelines are isolated; one entry
// failing never disturbs its siblings.
type Engine struct {
	exec   *Executor
	scorer Scorer
	ctrl   Controller
	tables map[string]struct{}
	logger *zap.Logger
}

// NewEngine creates a query coordinator. tables is the set of known
// entity tables; an empty list disables the table check.
func NewEngine(exec *Executor, scorer Scorer, ctrl Controller, tables []string, logger *zap.Logger) *Engine {
	known := make(map[string]struct{}, len(tables))
	for _, t := range tables {
		known[t] = struct{}{}
	}
	return &Engine{
		exec:   exec,
		scorer: scorer,
		ctrl:   ctrl,
		tables: known,
		logger: logger,
	}
}

// Run executes every plan entry and returns one outcome per entry, in
// plan order. Invalid entries fail without touching the index; valid
// ones run concurrently to completion even if the siblings fail.
func (g *Engine) Run(ctx context.Context, queries []plan.Query) []outcome.Outcome {
	outcomes := make([]outcome.Outcome, len(queries))

	var wg sync.WaitGroup
	for i := range queries {
		q := queries[i]

		if err := g.validate(q); err != nil {
			g.logger.Warn("Rejected plan entry",
				zap.Int("entry", i),
				zap.String("table", q.Table()),
				zap.Error(err))
			metrics.PipelineOutcomesTotal.WithLabelValues(q.Table(), "invalid").Inc()
			outcomes[i] = outcome.Failure(q, outcome.ReasonInvalidPlan, nil, 0, q.Mode())
			continue
		}

		wg.Add(1)
		go func(i int, q plan.Query) {
			defer wg.Done()
			outcomes[i] = g.runPipeline(ctx, q)
		}(i, q)
	}
	wg.Wait()

	return outcomes
}

// validate rejects entries that can never produce a lookup: unknown
// tables, unknown focus facets, and entries whose text was never embedded.
func (g *Engine) validate(q plan.Query) error {
	if len(q.Vector()) == 0 {
		return domain.ErrInvalidPlan
	}
	if len(g.tables) > 0 {
		if _, ok := g.tables[q.Table()]; !ok {
			return domain.ErrUnknownTable
		}
	}
	if focus := q.FacetFocus(); focus != "" && !g.exec.catalog.Contains(focus) {
		return domain.ErrUnknownFacetType
	}
	return nil
}

// runPipeline drives one entry through its retry rounds. Rounds run
// strictly one after another; only the lookups inside a round fan out.
func (g *Engine) runPipeline(ctx context.Context, q plan.Query) outcome.Outcome {
	st := g.ctrl.Initial(q)

	var results []outcome.EntityResult
	for {
		if err := ctx.Err(); err != nil {
			metrics.PipelineOutcomesTotal.WithLabelValues(q.Table(), "cancelled").Inc()
			return outcome.Failure(q, outcome.ReasonCancelled, results, st.Attempt, st.Mode)
		}

		hits, err := g.exec.Search(ctx, q, st)
		if err != nil {
			return g.failedRound(q, st, results, err)
		}

		results = g.scorer.Aggregate(hits, q.Limit())

		next := g.ctrl.Next(st, results, q)
		if next.Stage == StageDone {
			status := "ok"
			if len(results) == 0 {
				status = "empty"
			}
			metrics.PipelineOutcomesTotal.WithLabelValues(q.Table(), status).Inc()
			return outcome.Success(q, results, st.Attempt, st.Mode)
		}

		metrics.RetryTransitionsTotal.WithLabelValues(string(next.Stage)).Inc()
		g.logger.Debug("Relaxing search round",
			zap.String("table", q.Table()),
			zap.String("stage", string(next.Stage)),
			zap.Int("attempt", next.Attempt),
			zap.Float64("min_similarity", next.MinSimilarity),
			zap.Int("raw_limit", next.RawLimit))
		st = next
	}
}

func (g *Engine) failedRound(q plan.Query, st State, results []outcome.EntityResult, err error) outcome.Outcome {
	reason := outcome.ReasonIndexUnavailable
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		reason = outcome.ReasonCancelled
	}
	metrics.PipelineOutcomesTotal.WithLabelValues(q.Table(), "failed").Inc()
	g.logger.Error("Pipeline failed",
		zap.String("table", q.Table()),
		zap.String("reason", reason),
		zap.Int("attempt", st.Attempt),
		zap.Error(err))
	return outcome.Failure(q, reason, results, st.Attempt, st.Mode)
}
