package retrieval

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/expomatch/expomatch/internal/domain"
	"github.com/expomatch/expomatch/internal/domain/facet"
	"github.com/expomatch/expomatch/internal/domain/search/hit"
	"github.com/expomatch/expomatch/internal/domain/search/mode"
	"github.com/expomatch/expomatch/internal/domain/search/plan"
)

// --- Mocks ---

type lookupCall struct {
	table     string
	mode      mode.Mode
	facetType facet.Type
	topK      int
	minSim    float64
}

// mockIndex records every lookup and answers via fn.
type mockIndex struct {
	mu    sync.Mutex
	calls []lookupCall
	fn    func(c lookupCall) ([]hit.Hit, error)
}

func (m *mockIndex) NearestNeighbors(
	_ context.Context, table string, md mode.Mode, ft facet.Type,
	_ []float32, topK int, minSimilarity float64,
) ([]hit.Hit, error) {
	c := lookupCall{table: table, mode: md, facetType: ft, topK: topK, minSim: minSimilarity}
	m.mu.Lock()
	m.calls = append(m.calls, c)
	m.mu.Unlock()
	if m.fn != nil {
		return m.fn(c)
	}
	return nil, nil
}

func (m *mockIndex) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockIndex) probedFacets() map[facet.Type]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	probed := make(map[facet.Type]int, len(m.calls))
	for _, c := range m.calls {
		probed[c.facetType]++
	}
	return probed
}

// --- Helpers ---

func newTestExecutor(idx *mockIndex) *Executor {
	cat := facet.DefaultCatalog()
	return NewExecutor(idx, cat, facet.DefaultPairingTable(cat), 500*time.Millisecond, zap.NewNop())
}

func newTestEngine(idx *mockIndex, tables ...string) *Engine {
	return NewEngine(
		newTestExecutor(idx),
		NewScorer(domain.DefaultScoringWeights(), facet.DefaultCatalog().Size()),
		NewController(DefaultPolicy()),
		tables,
		zap.NewNop(),
	)
}

func mustQuery(t *testing.T, table string, m mode.Mode, focus facet.Type) plan.Query {
	t.Helper()
	q, err := plan.New(table, m, focus, "", []float32{0.1, 0.2, 0.3, 0.4}, 0, 0, 0, 0, 0)
	if err != nil {
		t.Fatalf("plan.New: %v", err)
	}
	return q
}
