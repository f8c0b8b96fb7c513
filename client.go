package expomatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/expomatch/expomatch/internal/db"
	dbRedis "github.com/expomatch/expomatch/internal/db/redis"
	"github.com/expomatch/expomatch/internal/domain"
	"github.com/expomatch/expomatch/internal/domain/facet"
	"github.com/expomatch/expomatch/internal/domain/search/mode"
	"github.com/expomatch/expomatch/internal/domain/search/outcome"
	"github.com/expomatch/expomatch/internal/domain/search/plan"
	catalogrepo "github.com/expomatch/expomatch/internal/repository/catalog"
	indexrepo "github.com/expomatch/expomatch/internal/repository/index"
	"github.com/expomatch/expomatch/internal/usecase/retrieval"
)

const defaultReadinessTimeout = 10 * time.Second

// Client is the embedded expomatch entry point: it talks to the vector
// store directly, without the HTTP API in between.
type Client struct {
	store    db.Store
	catalog  facet.Catalog
	tables   map[string]struct{}
	catRepo  *catalogrepo.Repo
	engine   *retrieval.Engine
	embedder Embedder
}

// New creates a Client and connects to the database.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		vectorDimensions: domain.DefaultVectorConfig().Dimensions,
		tables:           []string{"exhibitors", "sessions", "speakers", "attendees"},
	}
	for _, o := range opts {
		o(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("expomatch: database address required (use WithValkey or WithRedis)")
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Password: cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("expomatch: create store: %w", err)
	}

	ctx := context.Background()
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("expomatch: database not ready: %w", err)
	}

	c, err := wireClient(store, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}
	return c, nil
}

func wireClient(store db.Store, cfg *clientConfig) (*Client, error) {
	catalog, pairing, err := buildCatalog(cfg)
	if err != nil {
		return nil, err
	}

	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	catRepo := catalogrepo.New(store, cfg.vectorDimensions)
	if cfg.hnswM > 0 || cfg.hnswEFConstruct > 0 {
		catRepo = catRepo.WithHNSW(catalogrepo.HNSWConfig{
			M:           cfg.hnswM,
			EFConstruct: cfg.hnswEFConstruct,
		})
	}

	weights := domain.DefaultScoringWeights()
	if cfg.breadthWeight > 0 || cfg.depthWeight > 0 {
		weights = domain.ScoringWeights{Breadth: cfg.breadthWeight, Depth: cfg.depthWeight}
	}

	executor := retrieval.NewExecutor(
		indexrepo.New(store), catalog, pairing, cfg.lookupTimeout, logger,
	)
	scorer := retrieval.NewScorer(weights, catalog.Size())
	controller := retrieval.NewController(retrieval.Policy{
		RelaxedMinSimilarity: cfg.relaxedMinSimilarity,
		RawLimitFactor:       cfg.rawLimitFactor,
	})
	engine := retrieval.NewEngine(executor, scorer, controller, cfg.tables, logger)

	known := make(map[string]struct{}, len(cfg.tables))
	for _, t := range cfg.tables {
		known[t] = struct{}{}
	}

	return &Client{
		store:    store,
		catalog:  catalog,
		tables:   known,
		catRepo:  catRepo,
		engine:   engine,
		embedder: cfg.embedder,
	}, nil
}

func buildCatalog(cfg *clientConfig) (facet.Catalog, facet.PairingTable, error) {
	catalog := facet.DefaultCatalog()
	if len(cfg.facets) > 0 {
		types := make([]facet.Type, len(cfg.facets))
		for i, f := range cfg.facets {
			types[i] = facet.Type(f)
		}
		var err error
		catalog, err = facet.NewCatalog(types)
		if err != nil {
			return facet.Catalog{}, facet.PairingTable{}, fmt.Errorf("expomatch: facets: %w", err)
		}
	}

	if len(cfg.pairs) == 0 {
		if len(cfg.facets) > 0 {
			pt, err := facet.NewPairingTable(catalog, nil)
			if err != nil {
				return facet.Catalog{}, facet.PairingTable{}, fmt.Errorf("expomatch: pairs: %w", err)
			}
			return catalog, pt, nil
		}
		return catalog, facet.DefaultPairingTable(catalog), nil
	}

	pairs := make(map[facet.Type][]facet.Type, len(cfg.pairs))
	for from, targets := range cfg.pairs {
		list := make([]facet.Type, len(targets))
		for i, to := range targets {
			list[i] = facet.Type(to)
		}
		pairs[facet.Type(from)] = list
	}
	pt, err := facet.NewPairingTable(catalog, pairs)
	if err != nil {
		return facet.Catalog{}, facet.PairingTable{}, fmt.Errorf("expomatch: pairs: %w", err)
	}
	return catalog, pt, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// EnsureTables creates the facets and master indexes for every
// configured table (idempotent).
func (c *Client) EnsureTables(ctx context.Context) error {
	tables := make([]string, 0, len(c.tables))
	for t := range c.tables {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	if err := c.catRepo.EnsureIndexes(ctx, tables); err != nil {
		return fmt.Errorf("ensure tables: %w", err)
	}
	return nil
}

// UpsertEntity embeds the given facet texts (plus the optional master
// text) and writes the entity's vectors.
func (c *Client) UpsertEntity(
	ctx context.Context, table, entityID string,
	facetTexts map[string]string, masterText string,
) error {
	if err := c.checkTable(table); err != nil {
		return err
	}
	if c.embedder == nil {
		return errors.New("expomatch: embedder not configured (use WithEmbedder or UpsertEntityVectors)")
	}

	facetTypes := make([]facet.Type, 0, len(facetTexts))
	for f := range facetTexts {
		ft := facet.Type(f)
		if !c.catalog.Contains(ft) {
			return fmt.Errorf("expomatch: unknown facet type %q", f)
		}
		facetTypes = append(facetTypes, ft)
	}
	sort.Slice(facetTypes, func(i, j int) bool { return facetTypes[i] < facetTypes[j] })

	facetVectors := make(map[facet.Type][]float32, len(facetTypes))
	for _, ft := range facetTypes {
		res, err := c.embedder.Embed(ctx, facetTexts[string(ft)])
		if err != nil {
			return fmt.Errorf("embed facet %s: %w", ft, err)
		}
		facetVectors[ft] = res.Embedding
	}

	var masterVector []float32
	if masterText != "" {
		res, err := c.embedder.Embed(ctx, masterText)
		if err != nil {
			return fmt.Errorf("embed master: %w", err)
		}
		masterVector = res.Embedding
	}

	return c.catRepo.UpsertEntity(ctx, table, entityID, facetVectors, masterVector)
}

// UpsertEntityVectors writes precomputed entity vectors; no embedder is
// required.
func (c *Client) UpsertEntityVectors(
	ctx context.Context, table, entityID string,
	facetVectors map[string][]float32, masterVector []float32,
) error {
	if err := c.checkTable(table); err != nil {
		return err
	}

	byType := make(map[facet.Type][]float32, len(facetVectors))
	for f, vec := range facetVectors {
		ft := facet.Type(f)
		if !c.catalog.Contains(ft) {
			return fmt.Errorf("expomatch: unknown facet type %q", f)
		}
		byType[ft] = vec
	}

	return c.catRepo.UpsertEntity(ctx, table, entityID, byType, masterVector)
}

// DeleteEntity removes an entity's vectors from both collections.
func (c *Client) DeleteEntity(ctx context.Context, table, entityID string) error {
	if err := c.checkTable(table); err != nil {
		return err
	}
	return c.catRepo.DeleteEntity(ctx, table, entityID, c.catalog.Types())
}

// Query starts a fluent plan entry builder for the given table.
func (c *Client) Query(table string) *QueryBuilder {
	return &QueryBuilder{client: c, table: table}
}

// Run executes a search plan: every entry runs its pipeline
// concurrently, and outcomes come back in plan order. A failed or
// rejected entry carries its error in Outcome.Err without affecting
// its siblings.
func (c *Client) Run(ctx context.Context, entries ...*QueryBuilder) ([]Outcome, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	queries := make([]plan.Query, len(entries))
	rejected := make([]error, len(entries))
	for i, b := range entries {
		q, err := b.build(ctx)
		if err != nil {
			rejected[i] = fmt.Errorf("%w: %s", ErrInvalidPlan, err)
			continue
		}
		queries[i] = q
	}

	valid := make([]plan.Query, 0, len(queries))
	for i, q := range queries {
		if rejected[i] == nil {
			valid = append(valid, q)
		}
	}
	outcomes := c.engine.Run(ctx, valid)

	out := make([]Outcome, len(entries))
	next := 0
	for i := range entries {
		if rejected[i] != nil {
			out[i] = Outcome{
				Table:     entries[i].table,
				FinalMode: ModeFacets,
				Err:       rejected[i],
			}
			continue
		}
		out[i] = toPublicOutcome(&outcomes[next])
		next++
	}
	return out, nil
}

func (c *Client) checkTable(table string) error {
	if _, ok := c.tables[table]; !ok {
		return fmt.Errorf("expomatch: unknown table %q", table)
	}
	return nil
}

func toPublicOutcome(o *outcome.Outcome) Outcome {
	results := o.Results()
	items := make([]EntityResult, len(results))
	for i := range results {
		r := &results[i]
		matched := make([]string, len(r.MatchedFacets()))
		for j, ft := range r.MatchedFacets() {
			matched[j] = string(ft)
		}
		items[i] = EntityResult{
			EntityID:      r.EntityID(),
			MatchedFacets: matched,
			Breadth:       r.Breadth(),
			Depth:         r.Depth(),
			Score:         r.Score(),
		}
	}

	pub := Outcome{
		Table:        o.Query().Table(),
		Results:      items,
		AttemptsUsed: o.AttemptsUsed(),
		FinalMode:    Mode(o.FinalMode()),
	}
	if o.Failed() {
		pub.Err = reasonToError(o.FailureReason())
	}
	return pub
}

func reasonToError(reason string) error {
	switch reason {
	case outcome.ReasonIndexUnavailable:
		return ErrIndexUnavailable
	case outcome.ReasonInvalidPlan:
		return ErrInvalidPlan
	case outcome.ReasonCancelled:
		return ErrCancelled
	default:
		return fmt.Errorf("expomatch: pipeline failed: %s", reason)
	}
}

// modeOf maps the public Mode to the internal one, defaulting to facets.
func modeOf(m Mode) mode.Mode {
	if m == "" {
		return mode.Facets
	}
	return mode.Mode(m)
}
