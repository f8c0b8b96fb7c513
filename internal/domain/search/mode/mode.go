package mode

// Mode selects which vector collection a lookup targets.
type Mode string

// Search mode constants.
const (
	// Facets targets the fine-grained per-facet collection.
	Facets Mode = "facets"
	// Master targets the coarse one-vector-per-entity fallback collection.
	Master Mode = "master"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Facets || m == Master
}
