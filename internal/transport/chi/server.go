package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/expomatch/expomatch/internal/domain"
	"github.com/expomatch/expomatch/internal/domain/facet"
	"github.com/expomatch/expomatch/internal/domain/search/mode"
	"github.com/expomatch/expomatch/internal/domain/search/outcome"
	"github.com/expomatch/expomatch/internal/domain/search/plan"
	healthuc "github.com/expomatch/expomatch/internal/usecase/health"
)

const maxPlanSize = 32

// Error response codes.
const (
	codeBadRequest        = "bad_request"
	codeValidationFailed  = "validation_failed"
	codeTableNotFound     = "table_not_found"
	codeVectorDimMismatch = "vector_dim_mismatch"
	codeEmbeddingProvider = "embedding_provider_error"
	codeIndexUnavailable  = "index_unavailable"
	codeInternalError     = "internal_error"
)

// SearchEngine runs a search plan and returns one outcome per entry.
type SearchEngine interface {
	Run(ctx context.Context, queries []plan.Query) []outcome.Outcome
}

// EntityWriter ingests and removes entity vectors.
type EntityWriter interface {
	UpsertEntity(ctx context.Context, table, entityID string,
		facetVectors map[facet.Type][]float32, masterVector []float32) error
	DeleteEntity(ctx context.Context, table, entityID string, facets []facet.Type) error
}

// Embedder vectorizes plan entry and ingest texts at the boundary.
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}

// HealthService aggregates component health checks.
type HealthService interface {
	Check(ctx context.Context) healthuc.Report
}

// Server exposes the search plan, ingest, and operational endpoints.
type Server struct {
	engine   SearchEngine
	entities EntityWriter
	embedder Embedder
	health   HealthService
	catalog  facet.Catalog
	tables   map[string]struct{}
	logger   *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(
	engine SearchEngine,
	entities EntityWriter,
	embedder Embedder,
	health HealthService,
	catalog facet.Catalog,
	tables []string,
	logger *zap.Logger,
) *Server {
	known := make(map[string]struct{}, len(tables))
	for _, t := range tables {
		known[t] = struct{}{}
	}
	return &Server{
		engine:   engine,
		entities: entities,
		embedder: embedder,
		health:   health,
		catalog:  catalog,
		tables:   known,
		logger:   logger,
	}
}

// Mount registers the API routes on the given router.
func (s *Server) Mount(r chi.Router) {
	r.Post("/api/v1/search", s.Search)
	r.Put("/api/v1/tables/{table}/entities/{id}", s.UpsertEntity)
	r.Delete("/api/v1/tables/{table}/entities/{id}", s.DeleteEntity)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// --- Wire types ---

type searchPlanRequest struct {
	Queries []planEntryRequest `json:"queries"`
}

type planEntryRequest struct {
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

type searchPlanResponse struct {
	Outcomes []outcomeResponse `json:"outcomes"`
}

type outcomeResponse struct {
	Table        string             `json:"table"`
	Results      []entityResultWire `json:"results"`
	AttemptsUsed int                `json:"attempts_used"`
	FinalMode    string             `json:"final_mode"`
	Error        *outcomeErrorWire  `json:"error,omitempty"`
}

type outcomeErrorWire struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type entityResultWire struct {
	EntityID      string   `json:"entity_id"`
	MatchedFacets []string `json:"matched_facets"`
	Breadth       float64  `json:"breadth"`
	Depth         float64  `json:"depth"`
	Score         float64  `json:"score"`
}

type upsertEntityRequest struct {
	Facets map[string]string `json:"facets"`           // facet type -> source text
	Master string            `json:"master,omitempty"` // entity-level summary text
}

type upsertEntityResponse struct {
	Table    string   `json:"table"`
	EntityID string   `json:"entity_id"`
	Facets   []string `json:"facets"`
	Master   bool     `json:"master"`
}

// Search handles POST /api/v1/search. Text-only entries are embedded in
// one batch call before the plan reaches the engine; entries that cannot
// be constructed at all fail in place without blocking their siblings.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req searchPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if len(req.Queries) == 0 || len(req.Queries) > maxPlanSize {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			fmt.Sprintf("queries count must be between 1 and %d", maxPlanSize))
		return
	}

	queries := make([]plan.Query, len(req.Queries))
	rejected := make([]string, len(req.Queries)) // construction error per slot, "" = ok

	for i, e := range req.Queries {
		q, err := plan.New(
			e.Table, mode.Mode(e.Mode), facet.Type(e.FacetFocus),
			e.QueryText, e.Vector,
			e.RawLimit, e.Limit, e.MinSimilarity, e.MinResults, e.QualityFloor,
		)
		if err != nil {
			rejected[i] = err.Error()
			continue
		}
		queries[i] = q
	}

	if err := s.embedTextEntries(r.Context(), queries, rejected); err != nil {
		s.handleDomainError(w, err)
		return
	}

	// Rejected slots never reach the engine; pad them back afterwards.
	valid := make([]plan.Query, 0, len(queries))
	for i, q := range queries {
		if rejected[i] == "" {
			valid = append(valid, q)
		}
	}
	outcomes := s.engine.Run(r.Context(), valid)

	resp := searchPlanResponse{Outcomes: make([]outcomeResponse, len(req.Queries))}
	next := 0
	for i := range req.Queries {
		if rejected[i] != "" {
			resp.Outcomes[i] = rejectedOutcome(req.Queries[i], rejected[i])
			continue
		}
		resp.Outcomes[i] = outcomeToWire(&outcomes[next])
		next++
	}

	writeJSON(w, http.StatusOK, resp)
}

// embedTextEntries fills vectors for entries that arrived as text, using
// a single batch embedding call for the whole plan.
func (s *Server) embedTextEntries(ctx context.Context, queries []plan.Query, rejected []string) error {
	var texts []string
	var slots []int
	for i := range queries {
		if rejected[i] != "" || len(queries[i].Vector()) > 0 {
			continue
		}
		texts = append(texts, queries[i].QueryText())
		slots = append(slots, i)
	}
	if len(texts) == 0 {
		return nil
	}

	res, err := s.embedder.BatchEmbed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed plan entries: %w", err)
	}
	if len(res.Embeddings) != len(texts) {
		return fmt.Errorf("embed plan entries: got %d vectors for %d texts: %w",
			len(res.Embeddings), len(texts), domain.ErrEmbeddingProviderError)
	}

	for j, i := range slots {
		queries[i] = queries[i].WithVector(res.Embeddings[j])
	}
	return nil
}

// UpsertEntity handles PUT /api/v1/tables/{table}/entities/{id}.
func (s *Server) UpsertEntity(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	entityID := chi.URLParam(r, "id")

	if _, ok := s.tables[table]; !ok {
		writeError(w, http.StatusNotFound, codeTableNotFound, "unknown table: "+table)
		return
	}

	var req upsertEntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Facets) == 0 && req.Master == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "at least one facet or master text is required")
		return
	}

	facetTypes := make([]facet.Type, 0, len(req.Facets))
	for ft := range req.Facets {
		t := facet.Type(ft)
		if !s.catalog.Contains(t) {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "unknown facet type: "+ft)
			return
		}
		facetTypes = append(facetTypes, t)
	}
	sort.Slice(facetTypes, func(i, j int) bool { return facetTypes[i] < facetTypes[j] })

	texts := make([]string, 0, len(facetTypes)+1)
	for _, ft := range facetTypes {
		texts = append(texts, req.Facets[string(ft)])
	}
	if req.Master != "" {
		texts = append(texts, req.Master)
	}

	res, err := s.embedder.BatchEmbed(r.Context(), texts)
	if err != nil {
		s.handleDomainError(w, fmt.Errorf("embed entity texts: %w", err))
		return
	}
	if len(res.Embeddings) != len(texts) {
		s.handleDomainError(w, domain.ErrEmbeddingProviderError)
		return
	}

	facetVectors := make(map[facet.Type][]float32, len(facetTypes))
	for i, ft := range facetTypes {
		facetVectors[ft] = res.Embeddings[i]
	}
	var masterVector []float32
	if req.Master != "" {
		masterVector = res.Embeddings[len(res.Embeddings)-1]
	}

	if err := s.entities.UpsertEntity(r.Context(), table, entityID, facetVectors, masterVector); err != nil {
		s.handleDomainError(w, err)
		return
	}

	facetNames := make([]string, len(facetTypes))
	for i, ft := range facetTypes {
		facetNames[i] = string(ft)
	}
	writeJSON(w, http.StatusOK, upsertEntityResponse{
		Table:    table,
		EntityID: entityID,
		Facets:   facetNames,
		Master:   req.Master != "",
	})
}

// DeleteEntity handles DELETE /api/v1/tables/{table}/entities/{id}.
// Removes every facet vector plus the master vector.
func (s *Server) DeleteEntity(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	entityID := chi.URLParam(r, "id")

	if _, ok := s.tables[table]; !ok {
		writeError(w, http.StatusNotFound, codeTableNotFound, "unknown table: "+table)
		return
	}

	if err := s.entities.DeleteEntity(r.Context(), table, entityID, s.catalog.Types()); err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// --- Conversions ---

func rejectedOutcome(e planEntryRequest, msg string) outcomeResponse {
	finalMode := e.Mode
	if finalMode == "" {
		finalMode = string(mode.Facets)
	}
	return outcomeResponse{
		Table:     e.Table,
		Results:   []entityResultWire{},
		FinalMode: finalMode,
		Error: &outcomeErrorWire{
			Code:    outcome.ReasonInvalidPlan,
			Message: msg,
		},
	}
}

func outcomeToWire(o *outcome.Outcome) outcomeResponse {
	results := o.Results()
	items := make([]entityResultWire, len(results))
	for i := range results {
		r := &results[i]
		matched := make([]string, len(r.MatchedFacets()))
		for j, ft := range r.MatchedFacets() {
			matched[j] = string(ft)
		}
		items[i] = entityResultWire{
			EntityID:      r.EntityID(),
			MatchedFacets: matched,
			Breadth:       r.Breadth(),
			Depth:         r.Depth(),
			Score:         r.Score(),
		}
	}

	resp := outcomeResponse{
		Table:        o.Query().Table(),
		Results:      items,
		AttemptsUsed: o.AttemptsUsed(),
		FinalMode:    string(o.FinalMode()),
	}
	if o.Failed() {
		resp.Error = &outcomeErrorWire{
			Code:    o.FailureReason(),
			Message: failureMessage(o.FailureReason()),
		}
	}
	return resp
}

func failureMessage(reason string) string {
	switch reason {
	case outcome.ReasonIndexUnavailable:
		return "search index unavailable"
	case outcome.ReasonInvalidPlan:
		return "invalid plan entry"
	case outcome.ReasonCancelled:
		return "request cancelled"
	default:
		return "pipeline failed"
	}
}

// --- Error handling ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"code":    code,
		"message": message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrUnknownTable,
		domain.ErrUnknownFacetType,
		domain.ErrVectorDimMismatch,
		domain.ErrIndexUnavailable,
		domain.ErrEmbeddingProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)

	switch {
	case errors.Is(err, domain.ErrUnknownTable):
		writeError(w, http.StatusNotFound, codeTableNotFound, msg)
	case errors.Is(err, domain.ErrUnknownFacetType):
		writeError(w, http.StatusBadRequest, codeValidationFailed, msg)
	case errors.Is(err, domain.ErrVectorDimMismatch):
		writeError(w, http.StatusBadRequest, codeVectorDimMismatch, msg)
	case errors.Is(err, domain.ErrIndexUnavailable):
		writeError(w, http.StatusServiceUnavailable, codeIndexUnavailable, msg)
	case errors.Is(err, domain.ErrEmbeddingProviderError):
		writeError(w, http.StatusBadGateway, codeEmbeddingProvider, msg)
	default:
		s.logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}
