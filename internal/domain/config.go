package domain

// KeyPrefix namespaces every key and index the engine creates in the store.
const KeyPrefix = "expomatch:"

// ScoringWeights combine facet breadth and match depth into the final
// 0-10 entity score: (breadth*Breadth + depth*Depth) * 10.
type ScoringWeights struct {
	Breadth float64
	Depth   float64
}

// DefaultScoringWeights returns the reference deployment weights.
func DefaultScoringWeights() ScoringWeights {
	return ScoringWeights{Breadth: 0.4, Depth: 0.6}
}

// VectorConfig holds internal vectorization settings, not exposed to clients.
type VectorConfig struct {
	Model          string
	Dimensions     int
	DistanceMetric string
	Algorithm      string
}

// DefaultVectorConfig returns the default embedding configuration.
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{
		Model:          "text-embedding-3-small",
		Dimensions:     1536,
		DistanceMetric: "cosine",
		Algorithm:      "hnsw",
	}
}
