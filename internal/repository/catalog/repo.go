package catalog

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/expomatch/expomatch/internal/db"
	"github.com/expomatch/expomatch/internal/domain"
	"github.com/expomatch/expomatch/internal/domain/facet"
	"github.com/expomatch/expomatch/internal/domain/search/mode"
	idxrepo "github.com/expomatch/expomatch/internal/repository/index"
)

// store is the consumer interface for catalog operations (ISP).
type store interface {
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	Del(ctx context.Context, key string) error
}

// HNSWConfig carries index build parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo manages the per-table vector collections: index lifecycle and
// entity vector ingest.
type Repo struct {
	store     store
	vectorDim int
	hnsw      HNSWConfig
}

// New creates a catalog repository.
func New(s store, vectorDim int) *Repo {
	return &Repo{store: s, vectorDim: vectorDim}
}

// WithHNSW overrides the HNSW build parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	r.hnsw = cfg
	return r
}

// EnsureIndexes creates the facets and master FT indexes for each table.
// Existing indexes are left untouched.
func (r *Repo) EnsureIndexes(ctx context.Context, tables []string) error {
	for _, table := range tables {
		for _, m := range []mode.Mode{mode.Facets, mode.Master} {
			def, err := r.indexDefinition(table, m)
			if err != nil {
				return fmt.Errorf("define index %s/%s: %w", table, m, err)
			}
			if err := r.store.CreateIndex(ctx, def); err != nil {
				if errors.Is(err, db.ErrIndexExists) {
					continue
				}
				return fmt.Errorf("create index %s/%s: %w", table, m, err)
			}
		}
	}
	return nil
}

// IndexesReady verifies that every table has both of its FT indexes.
func (r *Repo) IndexesReady(ctx context.Context, tables []string) error {
	for _, table := range tables {
		for _, m := range []mode.Mode{mode.Facets, mode.Master} {
			name := idxrepo.IndexName(table, m)
			ok, err := r.store.IndexExists(ctx, name)
			if err != nil {
				return fmt.Errorf("check index %s: %w", name, err)
			}
			if !ok {
				return fmt.Errorf("index %s is missing", name)
			}
		}
	}
	return nil
}

func (r *Repo) indexDefinition(table string, m mode.Mode) (*db.IndexDefinition, error) {
	b := db.NewIndex(idxrepo.IndexName(table, m)).
		Prefix(idxrepo.KeyPrefix(table, m)).
		Tag(idxrepo.FieldEntityID)
	if m == mode.Facets {
		b = b.Tag(idxrepo.FieldFacetType)
	}
	return b.VectorHNSW(idxrepo.FieldVector, r.vectorDim, db.DistanceCosine, r.hnsw.M, r.hnsw.EFConstruct).
		Build()
}

// UpsertEntity writes the per-facet vectors and optional master vector of
// one entity in a single pipelined round-trip.
func (r *Repo) UpsertEntity(
	ctx context.Context,
	table, entityID string,
	facetVectors map[facet.Type][]float32,
	masterVector []float32,
) error {
	if table == "" || entityID == "" {
		return fmt.Errorf("table and entity id are required")
	}
	if len(facetVectors) == 0 && len(masterVector) == 0 {
		return fmt.Errorf("at least one vector is required")
	}

	items := make([]db.HashSetItem, 0, len(facetVectors)+1)

	for ft, vec := range facetVectors {
		if len(vec) != r.vectorDim {
			return fmt.Errorf("facet %s: got %d dims, want %d: %w",
				ft, len(vec), r.vectorDim, domain.ErrVectorDimMismatch)
		}
		items = append(items, db.HashSetItem{
			Key: FacetKey(table, entityID, ft),
			Fields: map[string]string{
				idxrepo.FieldEntityID:  entityID,
				idxrepo.FieldFacetType: string(ft),
				idxrepo.FieldVector:    vectorToBytes(vec),
			},
		})
	}

	if len(masterVector) > 0 {
		if len(masterVector) != r.vectorDim {
			return fmt.Errorf("master: got %d dims, want %d: %w",
				len(masterVector), r.vectorDim, domain.ErrVectorDimMismatch)
		}
		items = append(items, db.HashSetItem{
			Key: MasterKey(table, entityID),
			Fields: map[string]string{
				idxrepo.FieldEntityID: entityID,
				idxrepo.FieldVector:   vectorToBytes(masterVector),
			},
		})
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("upsert %s/%s: %w", table, entityID, err)
	}
	return nil
}

// DeleteEntity removes an entity's vectors from both collections.
func (r *Repo) DeleteEntity(ctx context.Context, table, entityID string, facets []facet.Type) error {
	for _, ft := range facets {
		if err := r.store.Del(ctx, FacetKey(table, entityID, ft)); err != nil {
			return fmt.Errorf("delete %s/%s/%s: %w", table, entityID, ft, err)
		}
	}
	if err := r.store.Del(ctx, MasterKey(table, entityID)); err != nil {
		return fmt.Errorf("delete %s/%s master: %w", table, entityID, err)
	}
	return nil
}

// FacetKey builds the document key for one entity facet vector.
func FacetKey(table, entityID string, ft facet.Type) string {
	return idxrepo.KeyPrefix(table, mode.Facets) + entityID + ":" + string(ft)
}

// MasterKey builds the document key for an entity's coarse vector.
func MasterKey(table, entityID string) string {
	return idxrepo.KeyPrefix(table, mode.Master) + entityID
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
