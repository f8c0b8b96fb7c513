package expomatch

import (
	"context"
	"errors"
)

// Mode selects the collection a plan entry starts its lookups in.
type Mode string

const (
	// ModeFacets probes the per-facet vectors (default).
	ModeFacets Mode = "facets"
	// ModeMaster probes the coarse entity-level vectors.
	ModeMaster Mode = "master"
)

// Sentinel errors surfaced on failed plan entries.
var (
	// ErrIndexUnavailable means the table's vector index was missing or
	// unreachable for the whole pipeline.
	ErrIndexUnavailable = errors.New("expomatch: index unavailable")
	// ErrInvalidPlan means the entry was rejected before any lookup ran.
	ErrInvalidPlan = errors.New("expomatch: invalid plan entry")
	// ErrCancelled means the plan context was cancelled mid-pipeline.
	ErrCancelled = errors.New("expomatch: cancelled")
)

// EmbeddingResult is the output of a single embedding request.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Embedder vectorizes text. Supply one via WithEmbedder to search or
// ingest by text; precomputed vectors work without it.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// EntityResult is one scored entity in a plan entry's output.
type EntityResult struct {
	EntityID      string
	MatchedFacets []string
	Breadth       float64
	Depth         float64
	Score         float64
}

// Outcome is the terminal state of one plan entry. Err is nil when the
// pipeline completed, even if it completed with zero results after
// exhausting its retry rounds.
type Outcome struct {
	Table        string
	Results      []EntityResult
	AttemptsUsed int
	FinalMode    Mode
	Err          error
}
