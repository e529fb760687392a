// Package store holds the descriptor tables a composition pass reads from.
//
// Tables are partitioned into three tiers probed in precedence order:
// customer, then local, then global. Within each tier a module key maps to a
// base descriptor, an overlay descriptor and a localization bundle. Overlays
// have two sources per tier: code-defined overlays are consulted before
// file-defined ones.
//
// A Store is read-only once built. Each composition pass opens a Session,
// which invokes descriptor factories at most once and hands out copies.
package store

import (
	"fmt"
	"sort"

	"github.com/artpar/modcompose/core/schema"
)

// Tier is a descriptor precedence tier.
type Tier int

// Tiers, highest precedence first.
const (
	TierCustomer Tier = iota
	TierLocal
	TierGlobal
)

// Tiers lists every tier in probe order.
var Tiers = []Tier{TierCustomer, TierLocal, TierGlobal}

func (t Tier) String() string {
	switch t {
	case TierCustomer:
		return "customer"
	case TierLocal:
		return "local"
	case TierGlobal:
		return "global"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// Tables are the descriptor tables of one tier.
type Tables struct {
	Modules      map[string]schema.Entry
	Overlays     map[string]schema.Entry
	FileOverlays map[string]schema.Entry
	Bundles      map[string]schema.Bundle
}

func newTables() *Tables {
	return &Tables{
		Modules:      make(map[string]schema.Entry),
		Overlays:     make(map[string]schema.Entry),
		FileOverlays: make(map[string]schema.Entry),
		Bundles:      make(map[string]schema.Bundle),
	}
}

// overlay returns the first overlay source holding key.
func (t *Tables) overlay(key string) (schema.Entry, bool) {
	if e, ok := t.Overlays[key]; ok {
		return e, true
	}
	e, ok := t.FileOverlays[key]
	return e, ok
}

// Store is the set of all tiers.
type Store struct {
	tiers map[Tier]*Tables
}

// New creates an empty store.
func New() *Store {
	s := &Store{tiers: make(map[Tier]*Tables, len(Tiers))}
	for _, t := range Tiers {
		s.tiers[t] = newTables()
	}
	return s
}

// Tier returns the tables of a tier.
func (s *Store) Tier(t Tier) *Tables {
	tables, ok := s.tiers[t]
	if !ok {
		tables = newTables()
		s.tiers[t] = tables
	}
	return tables
}

// AddModule sets the base entry of key in a tier.
func (s *Store) AddModule(t Tier, key string, e schema.Entry) *Store {
	s.Tier(t).Modules[key] = e
	return s
}

// AddOverlay sets the code-defined overlay entry of key in a tier.
func (s *Store) AddOverlay(t Tier, key string, e schema.Entry) *Store {
	s.Tier(t).Overlays[key] = e
	return s
}

// AddFileOverlay sets the file-defined overlay entry of key in a tier.
func (s *Store) AddFileOverlay(t Tier, key string, e schema.Entry) *Store {
	s.Tier(t).FileOverlays[key] = e
	return s
}

// AddBundle sets the localization bundle of key in a tier.
func (s *Store) AddBundle(t Tier, key string, b schema.Bundle) *Store {
	s.Tier(t).Bundles[key] = b
	return s
}

// Has reports whether any tier holds a base or an overlay entry for key.
func (s *Store) Has(key string) bool {
	for _, t := range Tiers {
		tables := s.Tier(t)
		if _, ok := tables.Modules[key]; ok {
			return true
		}
		if _, ok := tables.overlay(key); ok {
			return true
		}
	}
	return false
}

// Keys returns every key with a base or overlay entry, sorted.
func (s *Store) Keys() []string {
	seen := make(map[string]bool)
	for _, t := range Tiers {
		tables := s.Tier(t)
		for k := range tables.Modules {
			seen[k] = true
		}
		for k := range tables.Overlays {
			seen[k] = true
		}
		for k := range tables.FileOverlays {
			seen[k] = true
		}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Source reports which tier provides the base of key.
func (s *Store) Source(key string) (Tier, bool) {
	for _, t := range Tiers {
		if _, ok := s.Tier(t).Modules[key]; ok {
			return t, true
		}
	}
	return 0, false
}
