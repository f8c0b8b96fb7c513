package expomatch

import (
	"time"

	"go.uber.org/zap"
)

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	addrs    []string
	password string

	vectorDimensions int
	hnswM            int
	hnswEFConstruct  int

	tables []string
	facets []string
	pairs  map[string][]string

	breadthWeight        float64
	depthWeight          float64
	relaxedMinSimilarity float64
	rawLimitFactor       int
	lookupTimeout        time.Duration

	embedder Embedder
	logger   *zap.Logger
}

// WithValkey sets Valkey server addresses.
func WithValkey(addrs ...string) Option {
	return func(c *clientConfig) { c.addrs = addrs }
}

// WithRedis sets Redis server addresses. Redis 8+ and Valkey 8+ speak
// the same FT.SEARCH dialect, so both options share one store.
func WithRedis(addrs ...string) Option {
	return func(c *clientConfig) { c.addrs = addrs }
}

// WithPassword sets the database password.
func WithPassword(password string) Option {
	return func(c *clientConfig) { c.password = password }
}

// WithDimensions sets the embedding vector dimensionality (default 1536).
func WithDimensions(dims int) Option {
	return func(c *clientConfig) { c.vectorDimensions = dims }
}

// WithHNSW overrides HNSW index build parameters.
func WithHNSW(m, efConstruct int) Option {
	return func(c *clientConfig) {
		c.hnswM = m
		c.hnswEFConstruct = efConstruct
	}
}

// WithTables sets the entity tables (default: exhibitors, sessions,
// speakers, attendees).
func WithTables(tables ...string) Option {
	return func(c *clientConfig) { c.tables = tables }
}

// WithFacets replaces the built-in facet catalog.
func WithFacets(facets ...string) Option {
	return func(c *clientConfig) { c.facets = facets }
}

// WithPairs sets the facet pairing table. Pairs are symmetric; facets
// without an entry match themselves.
func WithPairs(pairs map[string][]string) Option {
	return func(c *clientConfig) { c.pairs = pairs }
}

// WithScoring sets the breadth and depth weights (default 0.4 / 0.6).
func WithScoring(breadth, depth float64) Option {
	return func(c *clientConfig) {
		c.breadthWeight = breadth
		c.depthWeight = depth
	}
}

// WithRetryPolicy tunes the adaptive retry rounds: the relaxed
// similarity threshold (default 0.15) and the raw limit growth factor
// (default 2).
func WithRetryPolicy(relaxedMinSimilarity float64, rawLimitFactor int) Option {
	return func(c *clientConfig) {
		c.relaxedMinSimilarity = relaxedMinSimilarity
		c.rawLimitFactor = rawLimitFactor
	}
}

// WithLookupTimeout bounds each per-facet index lookup (default 2s).
func WithLookupTimeout(d time.Duration) Option {
	return func(c *clientConfig) { c.lookupTimeout = d }
}

// WithEmbedder supplies a text embedder for text queries and ingest.
func WithEmbedder(e Embedder) Option {
	return func(c *clientConfig) { c.embedder = e }
}

// WithLogger sets the logger (default: no-op).
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) { c.logger = l }
}
