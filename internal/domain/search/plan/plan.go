package plan

import (
	"fmt"

	"github.com/expomatch/expomatch/internal/domain/facet"
	"github.com/expomatch/expomatch/internal/domain/search/mode"
)

// Search parameter limits.
const (
	DefaultRawLimit      = 50
	MaxRawLimit          = 500
	DefaultLimit         = 10
	MaxLimit             = 100
	DefaultMinSimilarity = 0.30
	DefaultMinResults    = 1
	MaxScore             = 10.0
)

// Query is one validated entry of a search plan, produced by the external
// planner. Immutable once handed to the engine.
type Query struct {
	table         string
	searchMode    mode.Mode
	facetFocus    facet.Type
	queryText     string
	vector        []float32
	rawLimit      int
	limit         int
	minSimilarity float64
	minResults    int
	qualityFloor  float64
}

// New validates and normalizes plan entry parameters.
// Defaults: mode=facets, rawLimit=50, limit=10, minSimilarity=0.30,
// minResults=1. The vector may be empty only when queryText is set; the
// transport boundary embeds the text before the entry reaches the engine.
func New(
	table string,
	m mode.Mode,
	focus facet.Type,
	queryText string,
	vector []float32,
	rawLimit, limit int,
	minSimilarity float64,
	minResults int,
	qualityFloor float64,
) (Query, error) {
	if table == "" {
		return Query{}, fmt.Errorf("table is required")
	}
	if m == "" {
		m = mode.Facets
	}
	if !m.IsValid() {
		return Query{}, fmt.Errorf("invalid search mode: %q", m)
	}
	if len(vector) == 0 && queryText == "" {
		return Query{}, fmt.Errorf("query vector or query text is required")
	}
	if rawLimit <= 0 {
		rawLimit = DefaultRawLimit
	}
	if rawLimit > MaxRawLimit {
		rawLimit = MaxRawLimit
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if minSimilarity < 0 || minSimilarity > 1 {
		return Query{}, fmt.Errorf("min_similarity must be between 0 and 1")
	}
	if minSimilarity == 0 {
		minSimilarity = DefaultMinSimilarity
	}
	if minResults <= 0 {
		minResults = DefaultMinResults
	}
	if qualityFloor < 0 || qualityFloor > MaxScore {
		return Query{}, fmt.Errorf("quality_floor must be between 0 and %g", MaxScore)
	}

	return Query{
		table:         table,
		searchMode:    m,
		facetFocus:    focus,
		queryText:     queryText,
		vector:        vector,
		rawLimit:      rawLimit,
		limit:         limit,
		minSimilarity: minSimilarity,
		minResults:    minResults,
		qualityFloor:  qualityFloor,
	}, nil
}

// Table returns the target entity table.
func (q Query) Table() string { return q.table }

// Mode returns the initial collection mode.
func (q Query) Mode() mode.Mode { return q.searchMode }

// FacetFocus returns the facet the planner resolved as the query intent,
// or "" to probe the full catalog.
func (q Query) FacetFocus() facet.Type { return q.facetFocus }

// QueryText returns the raw query text, if the planner supplied one.
func (q Query) QueryText() string { return q.queryText }

// Vector returns the precomputed query embedding.
func (q Query) Vector() []float32 { return q.vector }

// RawLimit returns the per-lookup candidate bound (index I/O, not output size).
func (q Query) RawLimit() int { return q.rawLimit }

// Limit returns the maximum aggregated results to return.
func (q Query) Limit() int { return q.limit }

// MinSimilarity returns the initial similarity threshold.
func (q Query) MinSimilarity() float64 { return q.minSimilarity }

// MinResults returns the sufficiency threshold on result count.
func (q Query) MinResults() int { return q.minResults }

// QualityFloor returns the sufficiency threshold on the top score
// (0 disables the check).
func (q Query) QualityFloor() float64 { return q.qualityFloor }

// WithVector returns a copy of the query carrying the given embedding.
// Used at the transport boundary to fill entries that arrived as text.
func (q Query) WithVector(vector []float32) Query {
	q.vector = vector
	return q
}
