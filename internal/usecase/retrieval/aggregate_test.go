package retrieval

import (
	"math"
	"testing"

	"github.com/expomatch/expomatch/internal/domain"
	"github.com/expomatch/expomatch/internal/domain/facet"
	"github.com/expomatch/expomatch/internal/domain/search/hit"
)

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func defaultScorer() Scorer {
	return NewScorer(domain.DefaultScoringWeights(), facet.DefaultCatalog().Size())
}

func TestAggregate_BreadthDepthScore(t *testing.T) {
	// Five of eight facets matched, best similarities averaging 0.80.
	hits := []hit.Hit{
		hit.New("e1", facet.BuyingIntent, 0.90),
		hit.New("e1", facet.SellingIntent, 0.85),
		hit.New("e1", facet.ServicesSeeking, 0.80),
		hit.New("e1", facet.ProductOfferings, 0.75),
		hit.New("e1", facet.TopicExpertise, 0.70),
	}

	results := defaultScorer().Aggregate(hits, 10)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	r := results[0]
	approx(t, "breadth", r.Breadth(), 0.625)
	approx(t, "depth", r.Depth(), 0.80)
	approx(t, "score", r.Score(), 7.3)
	if len(r.MatchedFacets()) != 5 {
		t.Errorf("expected 5 matched facets, got %v", r.MatchedFacets())
	}
}

func TestAggregate_BestSimilarityPerFacet(t *testing.T) {
	// Duplicate facet hits: only the best similarity counts, breadth stays 1/8.
	hits := []hit.Hit{
		hit.New("e1", facet.BuyingIntent, 0.40),
		hit.New("e1", facet.BuyingIntent, 0.90),
		hit.New("e1", facet.BuyingIntent, 0.60),
	}

	results := defaultScorer().Aggregate(hits, 10)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	r := results[0]
	approx(t, "breadth", r.Breadth(), 0.125)
	approx(t, "depth", r.Depth(), 0.90)
	if len(r.MatchedFacets()) != 1 {
		t.Errorf("expected 1 matched facet, got %v", r.MatchedFacets())
	}
}

func TestAggregate_MasterHit(t *testing.T) {
	hits := []hit.Hit{hit.New("e1", facet.Master, 0.80)}

	results := defaultScorer().Aggregate(hits, 10)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	r := results[0]
	approx(t, "breadth", r.Breadth(), 0.125)
	approx(t, "depth", r.Depth(), 0.80)
	approx(t, "score", r.Score(), 5.3)
}

func TestAggregate_Ordering(t *testing.T) {
	hits := []hit.Hit{
		hit.New("low", facet.BuyingIntent, 0.40),
		hit.New("high", facet.BuyingIntent, 0.90),
		hit.New("high", facet.SellingIntent, 0.90),
		hit.New("mid", facet.BuyingIntent, 0.70),
	}

	results := defaultScorer().Aggregate(hits, 10)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	want := []string{"high", "mid", "low"}
	for i, id := range want {
		if results[i].EntityID() != id {
			t.Errorf("position %d: expected %s, got %s", i, id, results[i].EntityID())
		}
	}
}

func TestAggregate_TieBrokenByEntityID(t *testing.T) {
	// Identical evidence: equal score and depth, ordered by id.
	hits := []hit.Hit{
		hit.New("zeta", facet.BuyingIntent, 0.80),
		hit.New("alpha", facet.BuyingIntent, 0.80),
		hit.New("mike", facet.BuyingIntent, 0.80),
	}

	results := defaultScorer().Aggregate(hits, 10)
	want := []string{"alpha", "mike", "zeta"}
	for i, id := range want {
		if results[i].EntityID() != id {
			t.Errorf("position %d: expected %s, got %s", i, id, results[i].EntityID())
		}
	}
}

func TestAggregate_DeterministicAcrossInputOrder(t *testing.T) {
	forward := []hit.Hit{
		hit.New("a", facet.BuyingIntent, 0.80),
		hit.New("b", facet.SellingIntent, 0.75),
		hit.New("a", facet.TopicExpertise, 0.60),
		hit.New("c", facet.Master, 0.90),
	}
	reversed := make([]hit.Hit, len(forward))
	for i, h := range forward {
		reversed[len(forward)-1-i] = h
	}

	scorer := defaultScorer()
	r1 := scorer.Aggregate(forward, 10)
	r2 := scorer.Aggregate(reversed, 10)

	if len(r1) != len(r2) {
		t.Fatalf("result counts differ: %d vs %d", len(r1), len(r2))
	}
	for i := range r1 {
		if r1[i].EntityID() != r2[i].EntityID() || r1[i].Score() != r2[i].Score() {
			t.Errorf("position %d differs: %s/%v vs %s/%v",
				i, r1[i].EntityID(), r1[i].Score(), r2[i].EntityID(), r2[i].Score())
		}
	}
}

func TestAggregate_TruncatesToLimit(t *testing.T) {
	hits := []hit.Hit{
		hit.New("a", facet.BuyingIntent, 0.90),
		hit.New("b", facet.BuyingIntent, 0.80),
		hit.New("c", facet.BuyingIntent, 0.70),
		hit.New("d", facet.BuyingIntent, 0.60),
	}

	results := defaultScorer().Aggregate(hits, 2)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].EntityID() != "a" || results[1].EntityID() != "b" {
		t.Errorf("expected top two by score, got %s, %s",
			results[0].EntityID(), results[1].EntityID())
	}
}

func TestAggregate_Empty(t *testing.T) {
	if results := defaultScorer().Aggregate(nil, 10); results != nil {
		t.Errorf("expected nil for no hits, got %v", results)
	}
}
