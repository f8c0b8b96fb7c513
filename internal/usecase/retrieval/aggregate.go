package retrieval

import (
	"sort"

	"github.com/expomatch/expomatch/internal/domain"
	"github.com/expomatch/expomatch/internal/domain/facet"
	"github.com/expomatch/expomatch/internal/domain/search/hit"
	"github.com/expomatch/expomatch/internal/domain/search/outcome"
	"github.com/expomatch/expomatch/internal/domain/search/plan"
)

// Scorer folds raw facet hits into ranked per-entity results. Breadth is
// normalized against the full catalog size, so a master-collection hit
// (one synthetic facet) scores breadth 1/T just like a single facet match.
type Scorer struct {
	weights     domain.ScoringWeights
	catalogSize int
}

// NewScorer creates a scorer over a catalog of the given size.
func NewScorer(weights domain.ScoringWeights, catalogSize int) Scorer {
	return Scorer{weights: weights, catalogSize: catalogSize}
}

// Aggregate deduplicates hits by entity, keeping the best similarity per
// facet, and scores each entity as (breadth*Wb + depth*Wd) * 10. Results
// are sorted by score desc, then depth desc, then entity id asc, and
// truncated to limit. The ordering is total, so output is deterministic
// for a given hit multiset regardless of input order.
func (s Scorer) Aggregate(hits []hit.Hit, limit int) []outcome.EntityResult {
	if len(hits) == 0 {
		return nil
	}

	best := make(map[string]map[facet.Type]float64)
	for i := range hits {
		h := &hits[i]
		facets := best[h.EntityID()]
		if facets == nil {
			facets = make(map[facet.Type]float64, 2)
			best[h.EntityID()] = facets
		}
		if sim := h.Similarity(); sim > facets[h.FacetType()] {
			facets[h.FacetType()] = sim
		}
	}

	results := make([]outcome.EntityResult, 0, len(best))
	for entityID, facets := range best {
		matched := make([]facet.Type, 0, len(facets))
		var sum float64
		for ft, sim := range facets {
			matched = append(matched, ft)
			sum += sim
		}
		sort.Slice(matched, func(i, j int) bool { return matched[i] < matched[j] })

		breadth := float64(len(facets)) / float64(s.catalogSize)
		depth := sum / float64(len(facets))
		score := (breadth*s.weights.Breadth + depth*s.weights.Depth) * plan.MaxScore

		results = append(results, outcome.NewEntityResult(entityID, matched, breadth, depth, score))
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := &results[i], &results[j]
		if a.Score() != b.Score() {
			return a.Score() > b.Score()
		}
		if a.Depth() != b.Depth() {
			return a.Depth() > b.Depth()
		}
		return a.EntityID() < b.EntityID()
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}
