package retrieval

import (
	"github.com/expomatch/expomatch/internal/domain/search/mode"
	"github.com/expomatch/expomatch/internal/domain/search/outcome"
	"github.com/expomatch/expomatch/internal/domain/search/plan"
)

// Stage identifies one state of the per-query retry machine.
type Stage string

// Retry stages. Every pipeline walks a strict subset of
// initial -> relaxed -> fallback -> done.
const (
	StageInitial  Stage = "initial"
	StageRelaxed  Stage = "relaxed"
	StageFallback Stage = "fallback"
	StageDone     Stage = "done"
)

// State carries the effective search parameters of one retry round.
// It is scoped to a single pipeline and never shared across queries.
type State struct {
	Stage         Stage
	Attempt       int
	MinSimilarity float64
	RawLimit      int
	Mode          mode.Mode
}

// Policy holds the relaxation constants applied between rounds.
type Policy struct {
	// RelaxedMinSimilarity replaces the entry's threshold on the first
	// relaxation and stays in effect for the fallback round.
	RelaxedMinSimilarity float64
	// RawLimitFactor multiplies the candidate bound on each relaxation,
	// capped at plan.MaxRawLimit.
	RawLimitFactor int
}

// DefaultPolicy returns the reference relaxation constants.
func DefaultPolicy() Policy {
	return Policy{RelaxedMinSimilarity: 0.15, RawLimitFactor: 2}
}

// Controller decides when a pipeline relaxes its threshold, falls back to
// the master collection, or stops. Transitions are pure functions of the
// previous round, so rounds stay strictly sequential per query.
type Controller struct {
	policy Policy
}

// NewController creates a retry controller.
func NewController(p Policy) Controller {
	if p.RelaxedMinSimilarity <= 0 {
		p.RelaxedMinSimilarity = DefaultPolicy().RelaxedMinSimilarity
	}
	if p.RawLimitFactor <= 1 {
		p.RawLimitFactor = DefaultPolicy().RawLimitFactor
	}
	return Controller{policy: p}
}

// Initial derives the first-round state from the plan entry.
func (c Controller) Initial(q plan.Query) State {
	return State{
		Stage:         StageInitial,
		Attempt:       0,
		MinSimilarity: q.MinSimilarity(),
		RawLimit:      q.RawLimit(),
		Mode:          q.Mode(),
	}
}

// Next returns the state following an executed round. Sufficient results
// terminate immediately; otherwise the threshold relaxes once, then the
// pipeline falls back to the master collection once. The fallback round is
// terminal no matter what it returns.
func (c Controller) Next(s State, results []outcome.EntityResult, q plan.Query) State {
	if s.Stage == StageDone || sufficient(results, q) {
		return done(s)
	}

	switch s.Stage {
	case StageInitial:
		return State{
			Stage:         StageRelaxed,
			Attempt:       s.Attempt + 1,
			MinSimilarity: c.policy.RelaxedMinSimilarity,
			RawLimit:      c.raiseRawLimit(s.RawLimit),
			Mode:          s.Mode,
		}
	case StageRelaxed:
		return State{
			Stage:         StageFallback,
			Attempt:       s.Attempt + 1,
			MinSimilarity: s.MinSimilarity,
			RawLimit:      c.raiseRawLimit(s.RawLimit),
			Mode:          mode.Master,
		}
	default:
		return done(s)
	}
}

func (c Controller) raiseRawLimit(current int) int {
	raised := current * c.policy.RawLimitFactor
	if raised > plan.MaxRawLimit {
		return plan.MaxRawLimit
	}
	return raised
}

// sufficient reports whether a round's aggregated results satisfy the
// entry's minimum count and optional quality floor on the top score.
func sufficient(results []outcome.EntityResult, q plan.Query) bool {
	if len(results) < q.MinResults() {
		return false
	}
	if floor := q.QualityFloor(); floor > 0 {
		return results[0].Score() >= floor
	}
	return true
}

func done(s State) State {
	s.Stage = StageDone
	return s
}
