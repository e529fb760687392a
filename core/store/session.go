package store

import (
	"fmt"

	"github.com/artpar/modcompose/core/schema"
)

type kind int

const (
	kindBase kind = iota
	kindOverlay
)

func (k kind) String() string {
	if k == kindOverlay {
		return "overlay"
	}
	return "base"
}

type cacheKey struct {
	kind kind
	key  string
}

type cached struct {
	desc *schema.Descriptor
	err  error
}

// Session is the view of a store for one composition pass. Factories are
// invoked with the pass state at most once per key and kind.
type Session struct {
	store *Store
	app   schema.AppState
	host  schema.Host

	cache   map[cacheKey]cached
	lookups map[string]int
}

// Session opens a session bound to the state of a pass.
func (s *Store) Session(app schema.AppState, host schema.Host) *Session {
	return &Session{
		store:   s,
		app:     app,
		host:    host,
		cache:   make(map[cacheKey]cached),
		lookups: make(map[string]int),
	}
}

// Has reports whether any tier holds a base or overlay entry for key.
func (s *Session) Has(key string) bool {
	return s.store.Has(key)
}

// Base returns a copy of the base descriptor of key from the first tier
// holding it. A nil descriptor with a nil error means no tier holds key or
// its factory produced nothing.
func (s *Session) Base(key string) (*schema.Descriptor, error) {
	s.lookups[key]++
	return s.lookup(kindBase, key, func(t *Tables) (schema.Entry, bool) {
		e, ok := t.Modules[key]
		return e, ok
	})
}

// Overlay returns a copy of the overlay descriptor of key from the first
// tier holding one.
func (s *Session) Overlay(key string) (*schema.Descriptor, error) {
	return s.lookup(kindOverlay, key, func(t *Tables) (schema.Entry, bool) {
		return t.overlay(key)
	})
}

// Bundle returns a copy of the localization bundle of key from the first
// tier holding one.
func (s *Session) Bundle(key string) schema.Bundle {
	for _, t := range Tiers {
		if b, ok := s.store.Tier(t).Bundles[key]; ok {
			return b.Clone()
		}
	}
	return nil
}

// Lookups returns how many times the base of key was requested.
func (s *Session) Lookups(key string) int {
	return s.lookups[key]
}

func (s *Session) lookup(k kind, key string, find func(*Tables) (schema.Entry, bool)) (*schema.Descriptor, error) {
	ck := cacheKey{kind: k, key: key}
	if c, ok := s.cache[ck]; ok {
		return c.desc.Clone(), c.err
	}

	var c cached
	for _, t := range Tiers {
		e, ok := find(s.store.Tier(t))
		if !ok {
			continue
		}
		c.desc, c.err = s.evaluate(e)
		if c.err != nil {
			c.err = fmt.Errorf("%s tier %s of %q: %w", t, k, key, c.err)
		}
		break
	}

	s.cache[ck] = c
	return c.desc.Clone(), c.err
}

func (s *Session) evaluate(e schema.Entry) (*schema.Descriptor, error) {
	if e.Factory != nil {
		return e.Factory(s.app, s.host)
	}
	return e.Descriptor, nil
}
