package facet

import (
	"fmt"
	"sort"
)

// Type is an independently embedded semantic aspect of an entity,
// e.g. what it seeks versus what it offers.
type Type string

// Reference deployment facet types. Each entity type indexes up to
// Catalog.Size() of these; the catalog is fixed at process start.
const (
	BuyingIntent      Type = "buying_intent"
	SellingIntent     Type = "selling_intent"
	ServicesSeeking   Type = "services_seeking"
	ServicesProviding Type = "services_providing"
	ProductOfferings  Type = "product_offerings"
	IndustrySegment   Type = "industry_segment"
	TopicExpertise    Type = "topic_expertise"
	AudienceProfile   Type = "audience_profile"

	// Master tags coarse entity-level hits from the master collection.
	// It is never part of a catalog.
	Master Type = "master"
)

// Catalog is the immutable ordered set of facet types indexed per entity.
type Catalog struct {
	types []Type
	index map[Type]int
}

// NewCatalog builds a catalog from the given facet types.
func NewCatalog(types []Type) (Catalog, error) {
	if len(types) == 0 {
		return Catalog{}, fmt.Errorf("at least one facet type is required")
	}

	index := make(map[Type]int, len(types))
	for i, t := range types {
		if t == "" {
			return Catalog{}, fmt.Errorf("empty facet type at index %d", i)
		}
		if t == Master {
			return Catalog{}, fmt.Errorf("facet type %q is reserved", Master)
		}
		if _, dup := index[t]; dup {
			return Catalog{}, fmt.Errorf("duplicate facet type %q", t)
		}
		index[t] = i
	}

	cp := make([]Type, len(types))
	copy(cp, types)
	return Catalog{types: cp, index: index}, nil
}

// DefaultCatalog returns the reference deployment catalog (8 facet types).
func DefaultCatalog() Catalog {
	c, err := NewCatalog([]Type{
		BuyingIntent, SellingIntent,
		ServicesSeeking, ServicesProviding,
		ProductOfferings, IndustrySegment,
		TopicExpertise, AudienceProfile,
	})
	if err != nil {
		panic(err)
	}
	return c
}

// Size returns the total facet count T used as the breadth denominator.
func (c Catalog) Size() int { return len(c.types) }

// Types returns a copy of the catalog in declaration order.
func (c Catalog) Types() []Type {
	cp := make([]Type, len(c.types))
	copy(cp, c.types)
	return cp
}

// Contains reports whether t is part of the catalog.
func (c Catalog) Contains(t Type) bool {
	_, ok := c.index[t]
	return ok
}

// sortTypes orders facet types lexicographically for deterministic output.
func sortTypes(types []Type) {
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
}
