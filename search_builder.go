package expomatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/expomatch/expomatch/internal/domain/facet"
	"github.com/expomatch/expomatch/internal/domain/search/plan"
)

// QueryBuilder is a fluent builder for one search plan entry.
type QueryBuilder struct {
	client *Client
	table  string

	text   string
	vector []float32
	m      Mode
	focus  string

	rawLimit      int
	limit         int
	minSimilarity float64
	minResults    int
	qualityFloor  float64
}

// Text sets the query text, embedded when the plan runs.
func (b *QueryBuilder) Text(q string) *QueryBuilder {
	b.text = q
	return b
}

// Vector sets a precomputed query embedding, skipping the embedder.
func (b *QueryBuilder) Vector(v []float32) *QueryBuilder {
	b.vector = v
	return b
}

// Master starts the entry against the coarse entity-level vectors
// instead of the per-facet ones.
func (b *QueryBuilder) Master() *QueryBuilder {
	b.m = ModeMaster
	return b
}

// Focus restricts the lookup to the facets paired with the given one.
func (b *QueryBuilder) Focus(facetType string) *QueryBuilder {
	b.focus = facetType
	return b
}

// RawLimit bounds candidates fetched per facet lookup (default 50).
func (b *QueryBuilder) RawLimit(n int) *QueryBuilder {
	b.rawLimit = n
	return b
}

// Limit bounds the aggregated results (default 10).
func (b *QueryBuilder) Limit(n int) *QueryBuilder {
	b.limit = n
	return b
}

// MinSimilarity sets the initial similarity threshold (default 0.30).
func (b *QueryBuilder) MinSimilarity(s float64) *QueryBuilder {
	b.minSimilarity = s
	return b
}

// MinResults sets the sufficiency threshold that triggers retry rounds
// when unmet (default 1).
func (b *QueryBuilder) MinResults(n int) *QueryBuilder {
	b.minResults = n
	return b
}

// QualityFloor requires the top result to reach the given score before
// the entry is considered sufficient (0 disables the check).
func (b *QueryBuilder) QualityFloor(score float64) *QueryBuilder {
	b.qualityFloor = score
	return b
}

// Do runs this entry as a single-item plan.
func (b *QueryBuilder) Do(ctx context.Context) (Outcome, error) {
	outcomes, err := b.client.Run(ctx, b)
	if err != nil {
		return Outcome{}, err
	}
	return outcomes[0], nil
}

// build validates the entry and embeds its text when needed.
func (b *QueryBuilder) build(ctx context.Context) (plan.Query, error) {
	vector := b.vector
	if len(vector) == 0 && b.text != "" {
		if b.client.embedder == nil {
			return plan.Query{}, errors.New("embedder not configured (use WithEmbedder or Vector)")
		}
		res, err := b.client.embedder.Embed(ctx, b.text)
		if err != nil {
			return plan.Query{}, fmt.Errorf("embed query: %w", err)
		}
		vector = res.Embedding
	}

	return plan.New(
		b.table, modeOf(b.m), facet.Type(b.focus),
		b.text, vector,
		b.rawLimit, b.limit, b.minSimilarity, b.minResults, b.qualityFloor,
	)
}
