package retrieval

import (
	"context"

	"github.com/expomatch/expomatch/internal/domain/facet"
	"github.com/expomatch/expomatch/internal/domain/search/hit"
	"github.com/expomatch/expomatch/internal/domain/search/mode"
)

// IndexSearcher defines the storage contract for facet lookups.
type IndexSearcher interface {
	NearestNeighbors(
		ctx context.Context, table string, m mode.Mode, facetType facet.Type,
		vector []float32, topK int, minSimilarity float64,
	) ([]hit.Hit, error)
}
