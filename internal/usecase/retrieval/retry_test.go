package retrieval

import (
	"testing"

	"github.com/expomatch/expomatch/internal/domain/facet"
	"github.com/expomatch/expomatch/internal/domain/search/mode"
	"github.com/expomatch/expomatch/internal/domain/search/outcome"
	"github.com/expomatch/expomatch/internal/domain/search/plan"
)

func someResults(n int, topScore float64) []outcome.EntityResult {
	results := make([]outcome.EntityResult, n)
	for i := range results {
		results[i] = outcome.NewEntityResult("e", []facet.Type{facet.BuyingIntent}, 0.125, 0.5, topScore)
	}
	return results
}

func TestController_Initial(t *testing.T) {
	q, err := plan.New("exhibitors", mode.Facets, "", "", []float32{0.1}, 80, 10, 0.42, 3, 0)
	if err != nil {
		t.Fatalf("plan.New: %v", err)
	}

	st := NewController(DefaultPolicy()).Initial(q)

	if st.Stage != StageInitial || st.Attempt != 0 {
		t.Errorf("unexpected initial stage: %+v", st)
	}
	if st.MinSimilarity != 0.42 {
		t.Errorf("expected entry threshold 0.42, got %v", st.MinSimilarity)
	}
	if st.RawLimit != 80 {
		t.Errorf("expected entry raw limit 80, got %d", st.RawLimit)
	}
	if st.Mode != mode.Facets {
		t.Errorf("expected facets mode, got %s", st.Mode)
	}
}

func TestController_SufficientTerminatesImmediately(t *testing.T) {
	ctrl := NewController(DefaultPolicy())
	q := mustQuery(t, "exhibitors", mode.Facets, "")

	next := ctrl.Next(ctrl.Initial(q), someResults(1, 5.0), q)

	if next.Stage != StageDone {
		t.Fatalf("expected done after sufficient round, got %s", next.Stage)
	}
	if next.Attempt != 0 {
		t.Errorf("expected 0 attempts, got %d", next.Attempt)
	}
}

func TestController_InsufficientRelaxesThreshold(t *testing.T) {
	ctrl := NewController(DefaultPolicy())
	q := mustQuery(t, "exhibitors", mode.Facets, "")

	next := ctrl.Next(ctrl.Initial(q), nil, q)

	if next.Stage != StageRelaxed {
		t.Fatalf("expected relaxed stage, got %s", next.Stage)
	}
	if next.Attempt != 1 {
		t.Errorf("expected attempt 1, got %d", next.Attempt)
	}
	if next.MinSimilarity != 0.15 {
		t.Errorf("expected relaxed threshold 0.15, got %v", next.MinSimilarity)
	}
	if next.RawLimit != plan.DefaultRawLimit*2 {
		t.Errorf("expected raised raw limit %d, got %d", plan.DefaultRawLimit*2, next.RawLimit)
	}
	if next.Mode != mode.Facets {
		t.Errorf("relaxation must not change mode, got %s", next.Mode)
	}
}

func TestController_SecondRelaxationFallsBackToMaster(t *testing.T) {
	ctrl := NewController(DefaultPolicy())
	q := mustQuery(t, "exhibitors", mode.Facets, "")

	relaxed := ctrl.Next(ctrl.Initial(q), nil, q)
	fallback := ctrl.Next(relaxed, nil, q)

	if fallback.Stage != StageFallback {
		t.Fatalf("expected fallback stage, got %s", fallback.Stage)
	}
	if fallback.Attempt != 2 {
		t.Errorf("expected attempt 2, got %d", fallback.Attempt)
	}
	if fallback.Mode != mode.Master {
		t.Errorf("expected master mode, got %s", fallback.Mode)
	}
}

func TestController_FallbackIsTerminal(t *testing.T) {
	ctrl := NewController(DefaultPolicy())
	q := mustQuery(t, "exhibitors", mode.Facets, "")

	relaxed := ctrl.Next(ctrl.Initial(q), nil, q)
	fallback := ctrl.Next(relaxed, nil, q)

	// The fallback round produced nothing; the machine still stops.
	final := ctrl.Next(fallback, nil, q)
	if final.Stage != StageDone {
		t.Fatalf("expected done after fallback, got %s", final.Stage)
	}
	if final.Attempt != 2 {
		t.Errorf("expected 2 attempts total, got %d", final.Attempt)
	}
}

func TestController_QualityFloorForcesRelaxation(t *testing.T) {
	ctrl := NewController(DefaultPolicy())
	q, err := plan.New("exhibitors", mode.Facets, "", "", []float32{0.1}, 0, 0, 0, 1, 6.0)
	if err != nil {
		t.Fatalf("plan.New: %v", err)
	}

	// Enough results by count, but the best one scores under the floor.
	next := ctrl.Next(ctrl.Initial(q), someResults(3, 4.2), q)
	if next.Stage != StageRelaxed {
		t.Fatalf("expected relaxation on low top score, got %s", next.Stage)
	}

	next = ctrl.Next(ctrl.Initial(q), someResults(3, 6.5), q)
	if next.Stage != StageDone {
		t.Fatalf("expected done when top score clears the floor, got %s", next.Stage)
	}
}

func TestController_MinResultsForcesRelaxation(t *testing.T) {
	ctrl := NewController(DefaultPolicy())
	q, err := plan.New("exhibitors", mode.Facets, "", "", []float32{0.1}, 0, 0, 0, 5, 0)
	if err != nil {
		t.Fatalf("plan.New: %v", err)
	}

	next := ctrl.Next(ctrl.Initial(q), someResults(4, 9.0), q)
	if next.Stage != StageRelaxed {
		t.Fatalf("expected relaxation below min results, got %s", next.Stage)
	}
}

func TestController_RawLimitCapped(t *testing.T) {
	ctrl := NewController(DefaultPolicy())
	q, err := plan.New("exhibitors", mode.Facets, "", "", []float32{0.1}, 400, 0, 0, 0, 0)
	if err != nil {
		t.Fatalf("plan.New: %v", err)
	}

	next := ctrl.Next(ctrl.Initial(q), nil, q)
	if next.RawLimit != plan.MaxRawLimit {
		t.Errorf("expected raw limit capped at %d, got %d", plan.MaxRawLimit, next.RawLimit)
	}
}

func TestController_MasterEntryStillRelaxesOnce(t *testing.T) {
	ctrl := NewController(DefaultPolicy())
	q := mustQuery(t, "exhibitors", mode.Master, "")

	relaxed := ctrl.Next(ctrl.Initial(q), nil, q)
	if relaxed.Mode != mode.Master {
		t.Errorf("master entry must stay in master mode, got %s", relaxed.Mode)
	}

	fallback := ctrl.Next(relaxed, nil, q)
	if fallback.Stage != StageFallback || fallback.Mode != mode.Master {
		t.Errorf("unexpected fallback state: %+v", fallback)
	}
}
