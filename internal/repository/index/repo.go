package index

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/expomatch/expomatch/internal/db"
	"github.com/expomatch/expomatch/internal/domain"
	"github.com/expomatch/expomatch/internal/domain/facet"
	"github.com/expomatch/expomatch/internal/domain/search/hit"
	"github.com/expomatch/expomatch/internal/domain/search/mode"
)

// Hash field names shared with the catalog repository.
const (
	FieldEntityID  = "entity_id"
	FieldFacetType = "facet_type"
	FieldVector    = "__vector"
)

// store is the consumer interface for lookup operations (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Repo resolves (table, mode, facetType) to a collection and runs
// nearest-neighbor lookups against it.
type Repo struct {
	store store
}

// New creates a lookup repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// IndexName derives the FT index name for a table and mode.
func IndexName(table string, m mode.Mode) string {
	return fmt.Sprintf("%s%s:%s:idx", domain.KeyPrefix, table, m)
}

// KeyPrefix derives the document key prefix for a table and mode.
func KeyPrefix(table string, m mode.Mode) string {
	return fmt.Sprintf("%s%s:%s:", domain.KeyPrefix, table, m)
}

// NearestNeighbors looks up the topK vectors nearest to the query in the
// collection derived from (table, m, facetType), keeping only hits with
// similarity >= minSimilarity. In master mode facetType is ignored and
// every hit is tagged facet.Master. A missing index or an unreachable
// store surfaces as domain.ErrIndexUnavailable.
func (r *Repo) NearestNeighbors(
	ctx context.Context,
	table string, m mode.Mode, facetType facet.Type,
	vector []float32, topK int, minSimilarity float64,
) ([]hit.Hit, error) {
	q := &db.KNNQuery{
		IndexName:    IndexName(table, m),
		Vector:       vector,
		K:            topK,
		ReturnFields: []string{FieldEntityID, FieldFacetType, "__vector_score"},
	}
	if m == mode.Facets {
		q.Filter = &db.TagFilter{Field: FieldFacetType, Value: string(facetType)}
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) || errors.Is(err, db.ErrStoreUnavailable) {
			return nil, fmt.Errorf("%s %s/%s: %w", err, table, m, domain.ErrIndexUnavailable)
		}
		return nil, fmt.Errorf("knn %s/%s/%s: %w", table, m, facetType, err)
	}

	return parseHits(sr, table, m, minSimilarity), nil
}

// parseHits converts db.SearchResult entries into raw hits, dropping
// entries below the similarity threshold. The index bounds candidates by
// K; the threshold is applied here.
func parseHits(sr *db.SearchResult, table string, m mode.Mode, minSimilarity float64) []hit.Hit {
	if sr == nil || sr.Total == 0 {
		return nil
	}

	prefix := KeyPrefix(table, m)
	hits := make([]hit.Hit, 0, len(sr.Entries))

	for _, entry := range sr.Entries {
		if entry.Score < minSimilarity {
			continue
		}
		entityID := entry.Fields[FieldEntityID]
		if entityID == "" {
			// Fall back to the key layout <prefix><entity>[:<facet>].
			suffix := strings.TrimPrefix(entry.Key, prefix)
			entityID, _, _ = strings.Cut(suffix, ":")
		}
		if entityID == "" {
			continue
		}

		ft := facet.Master
		if m == mode.Facets {
			ft = facet.Type(entry.Fields[FieldFacetType])
		}

		hits = append(hits, hit.New(entityID, ft, entry.Score))
	}

	return hits
}
