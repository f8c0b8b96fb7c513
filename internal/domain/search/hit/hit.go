package hit

import "github.com/expomatch/expomatch/internal/domain/facet"

// Hit is a single raw nearest-neighbor match from the index, not yet
// deduplicated by entity.
type Hit struct {
	entityID   string
	facetType  facet.Type
	similarity float64
}

// New creates a raw hit.
func New(entityID string, facetType facet.Type, similarity float64) Hit {
	return Hit{entityID: entityID, facetType: facetType, similarity: similarity}
}

// EntityID returns the matched entity identifier.
func (h *Hit) EntityID() string { return h.entityID }

// FacetType returns the facet type of the matched vector.
func (h *Hit) FacetType() facet.Type { return h.facetType }

// Similarity returns the cosine similarity in [0,1].
func (h *Hit) Similarity() float64 { return h.similarity }
