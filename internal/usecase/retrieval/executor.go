package retrieval

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/expomatch/expomatch/internal/domain"
	"github.com/expomatch/expomatch/internal/domain/facet"
	"github.com/expomatch/expomatch/internal/domain/search/hit"
	"github.com/expomatch/expomatch/internal/domain/search/mode"
	"github.com/expomatch/expomatch/internal/domain/search/plan"
	"github.com/expomatch/expomatch/internal/metrics"
)

// DefaultLookupTimeout bounds a single facet lookup. A slow facet is
// skipped, not a reason to fail the round.
const DefaultLookupTimeout = 2 * time.Second

// Executor resolves the facet set for one retry round and fans the
// lookups out concurrently, one per facet. Lookup timeouts and transient
// store errors are absorbed (the facet contributes no hits); a missing
// index or an unreachable store is fatal for the round.
type Executor struct {
	index         IndexSearcher
	catalog       facet.Catalog
	pairing       facet.PairingTable
	lookupTimeout time.Duration
	logger        *zap.Logger
}

// NewExecutor creates a facet search executor.
func NewExecutor(
	index IndexSearcher,
	catalog facet.Catalog,
	pairing facet.PairingTable,
	lookupTimeout time.Duration,
	logger *zap.Logger,
) *Executor {
	if lookupTimeout <= 0 {
		lookupTimeout = DefaultLookupTimeout
	}
	return &Executor{
		index:         index,
		catalog:       catalog,
		pairing:       pairing,
		lookupTimeout: lookupTimeout,
		logger:        logger,
	}
}

// Search runs one round: every facet in the probe set is looked up
// concurrently and the raw hits are merged. Returns an error only when
// the round cannot stand at all (index unavailable, request cancelled).
func (e *Executor) Search(ctx context.Context, q plan.Query, st State) ([]hit.Hit, error) {
	probes := e.probeSet(q, st)

	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		all   []hit.Hit
		fatal error
	)

	for _, ft := range probes {
		wg.Add(1)
		go func(ft facet.Type) {
			defer wg.Done()

			hits, err := e.lookup(ctx, q, st, ft)
			if err != nil {
				if errors.Is(err, domain.ErrIndexUnavailable) {
					mu.Lock()
					if fatal == nil {
						fatal = err
					}
					mu.Unlock()
				}
				return
			}

			mu.Lock()
			all = append(all, hits...)
			mu.Unlock()
		}(ft)
	}
	wg.Wait()

	if fatal != nil {
		return nil, fatal
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return all, nil
}

// lookup runs a single bounded facet lookup and classifies its error.
func (e *Executor) lookup(ctx context.Context, q plan.Query, st State, ft facet.Type) ([]hit.Hit, error) {
	lctx, cancel := context.WithTimeout(ctx, e.lookupTimeout)
	defer cancel()

	start := time.Now()
	hits, err := e.index.NearestNeighbors(lctx, q.Table(), st.Mode, ft, q.Vector(), st.RawLimit, st.MinSimilarity)
	metrics.FacetLookupDuration.WithLabelValues(q.Table(), string(st.Mode)).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.FacetLookupsTotal.WithLabelValues(q.Table(), string(st.Mode), "success").Inc()
		return hits, nil

	case errors.Is(err, domain.ErrIndexUnavailable):
		metrics.FacetLookupsTotal.WithLabelValues(q.Table(), string(st.Mode), "unavailable").Inc()
		e.logger.Error("Index unavailable",
			zap.String("table", q.Table()),
			zap.String("mode", string(st.Mode)),
			zap.Error(err))
		return nil, err

	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		// Per-lookup timeout, not the request deadline.
		metrics.FacetLookupsTotal.WithLabelValues(q.Table(), string(st.Mode), "timeout").Inc()
		e.logger.Warn("Facet lookup timed out",
			zap.String("table", q.Table()),
			zap.String("facet", string(ft)),
			zap.Duration("timeout", e.lookupTimeout))
		return nil, err

	case ctx.Err() != nil:
		return nil, ctx.Err()

	default:
		metrics.FacetLookupsTotal.WithLabelValues(q.Table(), string(st.Mode), "error").Inc()
		e.logger.Warn("Facet lookup failed",
			zap.String("table", q.Table()),
			zap.String("facet", string(ft)),
			zap.Error(err))
		return nil, err
	}
}

// probeSet picks the facets to look up this round. Master rounds probe
// the single coarse collection. A focused facets round probes the focus
// facet's pairings; an unfocused one probes the whole catalog.
func (e *Executor) probeSet(q plan.Query, st State) []facet.Type {
	if st.Mode == mode.Master {
		return []facet.Type{facet.Master}
	}
	if focus := q.FacetFocus(); focus != "" {
		return e.pairing.Resolve(focus)
	}
	return e.catalog.Types()
}
