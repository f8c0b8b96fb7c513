package outcome

import (
	"github.com/expomatch/expomatch/internal/domain/facet"
	"github.com/expomatch/expomatch/internal/domain/search/mode"
	"github.com/expomatch/expomatch/internal/domain/search/plan"
)

// Failure reason annotations carried on failed outcomes.
const (
	ReasonIndexUnavailable = "IndexUnavailable"
	ReasonInvalidPlan      = "InvalidPlanEntry"
	ReasonCancelled        = "cancelled"
)

// EntityResult is the aggregated evidence for one entity within one query.
// At most one record exists per entity per query.
type EntityResult struct {
	entityID      string
	matchedFacets []facet.Type
	breadth       float64
	depth         float64
	score         float64
}

// NewEntityResult creates an aggregated entity result. matchedFacets is
// retained as-is; the aggregator passes a sorted copy.
func NewEntityResult(
	entityID string, matchedFacets []facet.Type,
	breadth, depth, score float64,
) EntityResult {
	return EntityResult{
		entityID:      entityID,
		matchedFacets: matchedFacets,
		breadth:       breadth,
		depth:         depth,
		score:         score,
	}
}

// EntityID returns the entity identifier.
func (r *EntityResult) EntityID() string { return r.entityID }

// MatchedFacets returns the distinct facet types that matched.
func (r *EntityResult) MatchedFacets() []facet.Type { return r.matchedFacets }

// Breadth returns the fraction of catalog facets matched, in [0,1].
func (r *EntityResult) Breadth() float64 { return r.breadth }

// Depth returns the mean best similarity across matched facets, in [0,1].
func (r *EntityResult) Depth() float64 { return r.depth }

// Score returns the combined score in [0,10].
func (r *EntityResult) Score() float64 { return r.score }

// Outcome is the terminal artifact of one pipeline: the ranked results for
// a single plan entry plus retry and failure annotations.
type Outcome struct {
	query         plan.Query
	results       []EntityResult
	attemptsUsed  int
	finalMode     mode.Mode
	failed        bool
	failureReason string
}

// Success creates a terminal outcome for a completed pipeline. A DONE
// pipeline with zero results is a valid success, not a failure.
func Success(q plan.Query, results []EntityResult, attemptsUsed int, finalMode mode.Mode) Outcome {
	return Outcome{
		query:        q,
		results:      results,
		attemptsUsed: attemptsUsed,
		finalMode:    finalMode,
	}
}

// Failure creates a terminal outcome for a pipeline that failed. Partial
// results from completed rounds may be attached.
func Failure(q plan.Query, reason string, results []EntityResult, attemptsUsed int, finalMode mode.Mode) Outcome {
	return Outcome{
		query:         q,
		results:       results,
		attemptsUsed:  attemptsUsed,
		finalMode:     finalMode,
		failed:        true,
		failureReason: reason,
	}
}

// Query returns the originating plan entry.
func (o *Outcome) Query() plan.Query { return o.query }

// Results returns the final ranked entity results.
func (o *Outcome) Results() []EntityResult { return o.results }

// AttemptsUsed returns the number of relaxation rounds taken (0-2).
func (o *Outcome) AttemptsUsed() int { return o.attemptsUsed }

// FinalMode returns the collection mode of the terminal round.
func (o *Outcome) FinalMode() mode.Mode { return o.finalMode }

// Failed reports whether the pipeline terminated with a fatal failure.
func (o *Outcome) Failed() bool { return o.failed }

// FailureReason returns the failure annotation, or "" on success.
func (o *Outcome) FailureReason() string { return o.failureReason }
