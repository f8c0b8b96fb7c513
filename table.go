package expomatch

import (
	"context"
	"fmt"

	"github.com/expomatch/expomatch/internal/domain/facet"
)

// TypedTable is a generic, schema-first handle on one entity table.
// The facet mapping is inferred from T's struct tags at construction.
type TypedTable[T any] struct {
	name   string
	client *Client
	meta   *schemaMeta
}

// NewTable creates a typed table handle. T must be a struct with
// expomatch tags. The schema is parsed once and its facet types are
// checked against the client's catalog.
func NewTable[T any](client *Client, name string) (*TypedTable[T], error) {
	if err := client.checkTable(name); err != nil {
		return nil, fmt.Errorf("new table %q: %w", name, err)
	}
	meta, err := parseSchema[T]()
	if err != nil {
		return nil, fmt.Errorf("new table %q: %w", name, err)
	}
	for _, ff := range meta.facetFields {
		if !client.catalog.Contains(facet.Type(ff.facetType)) {
			return nil, fmt.Errorf("new table %q: unknown facet type %q", name, ff.facetType)
		}
	}
	return &TypedTable[T]{name: name, client: client, meta: meta}, nil
}

// Upsert embeds the item's facet texts and writes its vectors.
func (t *TypedTable[T]) Upsert(ctx context.Context, item T) error {
	texts, master := t.meta.facetTexts(item)
	id := t.meta.entityID(item)
	if err := t.client.UpsertEntity(ctx, t.name, id, texts, master); err != nil {
		return fmt.Errorf("upsert %s: %w", id, err)
	}
	return nil
}

// UpsertBatch upserts items one by one, stopping at the first error.
func (t *TypedTable[T]) UpsertBatch(ctx context.Context, items []T) error {
	for i, item := range items {
		if err := t.Upsert(ctx, item); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

// Delete removes an entity's vectors by id.
func (t *TypedTable[T]) Delete(ctx context.Context, id string) error {
	return t.client.DeleteEntity(ctx, t.name, id)
}

// Search starts a plan entry builder against this table.
func (t *TypedTable[T]) Search() *QueryBuilder {
	return t.client.Query(t.name)
}
