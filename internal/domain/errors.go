package domain

import "errors"

var (
	// ErrIndexUnavailable signals that a vector collection or its index cannot be reached.
	ErrIndexUnavailable = errors.New("index unavailable")
	// ErrInvalidPlan signals a malformed search plan entry.
	ErrInvalidPlan = errors.New("invalid plan entry")
	// ErrUnknownTable signals a plan entry referencing an unconfigured table.
	ErrUnknownTable = errors.New("unknown table")
	// ErrUnknownFacetType signals a facet type outside the configured catalog.
	ErrUnknownFacetType = errors.New("unknown facet type")
	// ErrVectorDimMismatch signals a vector dimension mismatch on ingest.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)
