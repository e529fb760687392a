// Package formatter renders composition results for terminals and tools.
// Formatters convert module summaries and route trees to an output format
// (table, tree, json, yaml).
package formatter

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/artpar/modcompose/core/schema"
)

// Formatter renders the modules and routes of a composition pass.
type Formatter interface {
	// Name is the value accepted by --output.
	Name() string
	Description() string

	// FormatModules renders module summaries in load order.
	FormatModules(w io.Writer, modules []ModuleSummary, opts FormatOptions) error

	// FormatRoutes renders composed route trees.
	FormatRoutes(w io.Writer, routes []*schema.RouteNode, opts FormatOptions) error

	// FormatError renders a failed pass in a form the caller can parse.
	FormatError(w io.Writer, err error) error
}

// FormatOptions tune a single rendering.
type FormatOptions struct {
	NoHeader bool // tabular formats only
	Compact  bool // json only
	MaxWidth int  // table cells wider than this are shortened; 0 disables
}

// ErrUnknownFormat is returned by Lookup for names that are neither
// registered nor aliased.
var ErrUnknownFormat = errors.New("unknown output format")

// Registry holds the formatters selectable by name. Names and aliases are
// case-insensitive.
type Registry struct {
	mu       sync.RWMutex
	byName   map[string]Formatter
	aliases  map[string]string
	fallback string
}

// NewRegistry returns an empty registry whose default is "table".
func NewRegistry() *Registry {
	return &Registry{
		byName:   map[string]Formatter{},
		aliases:  map[string]string{},
		fallback: "table",
	}
}

// Register adds f under its name.
func (r *Registry) Register(f Formatter) error {
	name := strings.ToLower(f.Name())

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byName[name]; taken {
		return fmt.Errorf("formatter %q already registered", name)
	}
	if target, taken := r.aliases[name]; taken {
		return fmt.Errorf("formatter %q already registered as an alias of %q", name, target)
	}
	r.byName[name] = f
	return nil
}

// Alias makes alias resolve to the registered formatter name.
func (r *Registry) Alias(alias, name string) error {
	alias, name = strings.ToLower(alias), strings.ToLower(name)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[name]; !ok {
		return fmt.Errorf("formatter %q not registered", name)
	}
	if _, taken := r.byName[alias]; taken {
		return fmt.Errorf("alias %q shadows a registered formatter", alias)
	}
	r.aliases[alias] = name
	return nil
}

// Get returns the formatter registered under name or one of its aliases.
func (r *Registry) Get(name string) (Formatter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolve(name)
}

func (r *Registry) resolve(name string) (Formatter, bool) {
	name = strings.ToLower(name)
	if target, ok := r.aliases[name]; ok {
		name = target
	}
	f, ok := r.byName[name]
	return f, ok
}

// Lookup is Get for user input: an empty name selects the default and an
// unknown one yields an error wrapping ErrUnknownFormat that lists the
// available names.
func (r *Registry) Lookup(name string) (Formatter, error) {
	if name == "" {
		if f := r.Default(); f != nil {
			return f, nil
		}
		return nil, fmt.Errorf("%w: no formatters registered", ErrUnknownFormat)
	}
	if f, ok := r.Get(name); ok {
		return f, nil
	}
	return nil, fmt.Errorf("%w %q (available: %s)", ErrUnknownFormat, name, strings.Join(r.List(), ", "))
}

// Default returns the default formatter, or the first registered name when
// the default is missing. An empty registry yields nil.
func (r *Registry) Default() Formatter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if f, ok := r.byName[r.fallback]; ok {
		return f
	}
	if names := r.sortedNames(); len(names) > 0 {
		return r.byName[names[0]]
	}
	return nil
}

// SetDefault changes the default formatter. Aliases are accepted.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name = strings.ToLower(name)
	if target, ok := r.aliases[name]; ok {
		name = target
	}
	if _, ok := r.byName[name]; !ok {
		return fmt.Errorf("formatter %q not registered", name)
	}
	r.fallback = name
	return nil
}

// List returns the registered names in lexical order. Aliases are omitted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedNames()
}

func (r *Registry) sortedNames() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DefaultRegistry holds the built-in formatters.
var DefaultRegistry = NewRegistry()

func Register(f Formatter) error            { return DefaultRegistry.Register(f) }
func Get(name string) (Formatter, bool)     { return DefaultRegistry.Get(name) }
func Lookup(name string) (Formatter, error) { return DefaultRegistry.Lookup(name) }
func Default() Formatter                    { return DefaultRegistry.Default() }
func List() []string                        { return DefaultRegistry.List() }
