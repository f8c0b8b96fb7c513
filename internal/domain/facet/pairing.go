package facet

import "fmt"

// PairingTable maps each facet type to the facet types it is matched
// against. Cross-pairs let a need facet match an offer facet (a query
// focused on buying_intent probes selling_intent vectors). Symmetric by
// construction: listing A->B also registers B->A. Types without an
// explicit entry self-match.
type PairingTable struct {
	pairs map[Type][]Type
}

// NewPairingTable validates pairs against the catalog and builds the
// symmetric closure.
func NewPairingTable(catalog Catalog, pairs map[Type][]Type) (PairingTable, error) {
	closure := make(map[Type]map[Type]bool, len(pairs))

	add := func(from, to Type) {
		if closure[from] == nil {
			closure[from] = make(map[Type]bool)
		}
		closure[from][to] = true
	}

	for from, targets := range pairs {
		if !catalog.Contains(from) {
			return PairingTable{}, fmt.Errorf("pairing source %q not in catalog", from)
		}
		if len(targets) == 0 {
			return PairingTable{}, fmt.Errorf("pairing for %q has no targets", from)
		}
		for _, to := range targets {
			if !catalog.Contains(to) {
				return PairingTable{}, fmt.Errorf("pairing target %q not in catalog", to)
			}
			add(from, to)
			add(to, from)
		}
	}

	resolved := make(map[Type][]Type, len(closure))
	for from, targets := range closure {
		list := make([]Type, 0, len(targets))
		for to := range targets {
			list = append(list, to)
		}
		sortTypes(list)
		resolved[from] = list
	}

	return PairingTable{pairs: resolved}, nil
}

// DefaultPairingTable cross-pairs the intent and services facets of the
// reference deployment.
func DefaultPairingTable(catalog Catalog) PairingTable {
	pt, err := NewPairingTable(catalog, map[Type][]Type{
		BuyingIntent:    {SellingIntent},
		ServicesSeeking: {ServicesProviding},
	})
	if err != nil {
		panic(err)
	}
	return pt
}

// Resolve returns the facet types to probe for t: its explicit pairs, or
// t itself when unlisted. The result is sorted and safe to retain.
func (p PairingTable) Resolve(t Type) []Type {
	if targets, ok := p.pairs[t]; ok {
		cp := make([]Type, len(targets))
		copy(cp, targets)
		return cp
	}
	return []Type{t}
}

// PairedWith reports whether a is matched against b.
func (p PairingTable) PairedWith(a, b Type) bool {
	for _, t := range p.Resolve(a) {
		if t == b {
			return true
		}
	}
	return false
}
