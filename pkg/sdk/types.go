package sdk

// PlanEntry is one query of a search plan.
type PlanEntry struct {
	Table         string    `json:"table"`
	Mode          string    `json:"mode,omitempty"`
	FacetFocus    string    `json:"facet_focus,omitempty"`
	QueryText     string    `json:"query_text,omitempty"`
	Vector        []float32 `json:"vector,omitempty"`
	RawLimit      int       `json:"raw_limit,omitempty"`
	Limit         int       `json:"limit,omitempty"`
	MinSimilarity float64   `json:"min_similarity,omitempty"`
	MinResults    int       `json:"min_results,omitempty"`
	QualityFloor  float64   `json:"quality_floor,omitempty"`
}

// SearchPlan is a batch of independent plan entries.
type SearchPlan struct {
	Queries []PlanEntry `json:"queries"`
}

// EntityResult is one scored entity in an outcome.
type EntityResult struct {
	EntityID      string   `json:"entity_id"`
	MatchedFacets []string `json:"matched_facets"`
	Breadth       float64  `json:"breadth"`
	Depth         float64  `json:"depth"`
	Score         float64  `json:"score"`
}

// OutcomeError describes why a plan entry failed.
type OutcomeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Outcome is the terminal state of one plan entry, in plan order.
// Error is nil when the pipeline completed, even with zero results.
type Outcome struct {
	Table        string         `json:"table"`
	Results      []EntityResult `json:"results"`
	AttemptsUsed int            `json:"attempts_used"`
	FinalMode    string         `json:"final_mode"`
	Error        *OutcomeError  `json:"error,omitempty"`
}

// UpsertEntityRequest carries an entity's facet source texts.
type UpsertEntityRequest struct {
	Facets map[string]string `json:"facets"`
	Master string            `json:"master,omitempty"`
}

// UpsertEntityResponse confirms which vectors were written.
type UpsertEntityResponse struct {
	Table    string   `json:"table"`
	EntityID string   `json:"entity_id"`
	Facets   []string `json:"facets"`
	Master   bool     `json:"master"`
}

// HealthReport is the aggregated health of the server's components.
type HealthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
