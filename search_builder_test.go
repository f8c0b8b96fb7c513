package expomatch

import (
	"context"
	"errors"
	"testing"

	"github.com/expomatch/expomatch/internal/domain/facet"
	"github.com/expomatch/expomatch/internal/domain/search/mode"
	"github.com/expomatch/expomatch/internal/domain/search/plan"
)

type fakeEmbedder struct {
	lastText string
	err      error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	f.lastText = text
	if f.err != nil {
		return EmbeddingResult{}, f.err
	}
	return EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}}, nil
}

// builderClient returns a Client wired enough for build(), without a store.
func builderClient(embedder Embedder) *Client {
	return &Client{
		catalog:  facet.DefaultCatalog(),
		tables:   map[string]struct{}{"exhibitors": {}, "sessions": {}},
		embedder: embedder,
	}
}

func TestQueryBuilder_VectorEntry(t *testing.T) {
	c := builderClient(nil)

	q, err := c.Query("exhibitors").Vector([]float32{0.5, 0.6}).build(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Table() != "exhibitors" {
		t.Errorf("unexpected table: %s", q.Table())
	}
	if q.Mode() != mode.Facets {
		t.Errorf("expected facets mode by default, got %s", q.Mode())
	}
	if q.RawLimit() != plan.DefaultRawLimit || q.Limit() != plan.DefaultLimit {
		t.Errorf("expected default limits, got %d/%d", q.RawLimit(), q.Limit())
	}
	if q.MinSimilarity() != plan.DefaultMinSimilarity {
		t.Errorf("expected default min similarity, got %g", q.MinSimilarity())
	}
}

func TestQueryBuilder_TextEntryEmbedded(t *testing.T) {
	emb := &fakeEmbedder{}
	c := builderClient(emb)

	q, err := c.Query("sessions").Text("AI in event marketing").build(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if emb.lastText != "AI in event marketing" {
		t.Errorf("expected query text embedded, got %q", emb.lastText)
	}
	if len(q.Vector()) != 3 {
		t.Errorf("expected embedded vector, got %v", q.Vector())
	}
}

func TestQueryBuilder_TextWithoutEmbedder(t *testing.T) {
	c := builderClient(nil)

	if _, err := c.Query("sessions").Text("anything").build(context.Background()); err == nil {
		t.Fatal("expected error when no embedder is configured")
	}
}

func TestQueryBuilder_EmbedderFailure(t *testing.T) {
	c := builderClient(&fakeEmbedder{err: errors.New("provider down")})

	if _, err := c.Query("sessions").Text("anything").build(context.Background()); err == nil {
		t.Fatal("expected embedder error to propagate")
	}
}

func TestQueryBuilder_AllKnobs(t *testing.T) {
	c := builderClient(nil)

	q, err := c.Query("exhibitors").
		Vector([]float32{0.5}).
		Focus("buying_intent").
		RawLimit(200).
		Limit(5).
		MinSimilarity(0.45).
		MinResults(3).
		QualityFloor(6.0).
		build(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.FacetFocus() != facet.BuyingIntent {
		t.Errorf("unexpected focus: %s", q.FacetFocus())
	}
	if q.RawLimit() != 200 || q.Limit() != 5 {
		t.Errorf("unexpected limits: %d/%d", q.RawLimit(), q.Limit())
	}
	if q.MinSimilarity() != 0.45 || q.MinResults() != 3 || q.QualityFloor() != 6.0 {
		t.Errorf("unexpected thresholds: %g/%d/%g",
			q.MinSimilarity(), q.MinResults(), q.QualityFloor())
	}
}

func TestQueryBuilder_MasterMode(t *testing.T) {
	c := builderClient(nil)

	q, err := c.Query("exhibitors").Vector([]float32{0.5}).Master().build(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Mode() != mode.Master {
		t.Errorf("expected master mode, got %s", q.Mode())
	}
}

func TestQueryBuilder_EmptyEntryRejected(t *testing.T) {
	c := builderClient(nil)

	if _, err := c.Query("exhibitors").build(context.Background()); err == nil {
		t.Fatal("expected error for entry without vector or text")
	}
}
