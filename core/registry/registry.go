// Package registry holds the application-scoped tables a composition pass
// fills as each module loads: filters, validators, backend module names,
// field components and localized messages.
//
// A Registry is owned by a single composition pass and is not safe for
// concurrent mutation. Once a pass is published it is only read.
package registry

import (
	"maps"
	"slices"
	"sort"
	"strings"
)

// FilterFunc transforms values. Filters are chained by ApplyFilters, each
// receiving the previous filter's output.
type FilterFunc func(args ...any) any

// ValidatorFunc validates a value. A nil error means the value is accepted.
type ValidatorFunc func(value any, params ...any) error

// Validator is a named validator entry.
type Validator struct {
	Name      string
	Validator ValidatorFunc
}

// Registry is the set of tables shared by every module of a pass.
type Registry struct {
	Filters         map[string]FilterFunc
	Validators      map[string]Validator
	BackendModules  []string
	FieldComponents map[string]any

	// I18nMessages maps a locale to its message keys.
	I18nMessages map[string]map[string]string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		Filters:         make(map[string]FilterFunc),
		Validators:      make(map[string]Validator),
		BackendModules:  []string{},
		FieldComponents: make(map[string]any),
		I18nMessages:    make(map[string]map[string]string),
	}
}

// RegisterFilters adds filters. A filter replaces any earlier one of the same name.
func (r *Registry) RegisterFilters(filters map[string]FilterFunc) {
	for name, fn := range filters {
		if fn == nil {
			continue
		}
		r.Filters[name] = fn
	}
}

// RegisterValidators wraps and adds validators. Nil entries are skipped.
func (r *Registry) RegisterValidators(validators map[string]ValidatorFunc) {
	for name, fn := range validators {
		if fn == nil {
			continue
		}
		r.Validators[name] = Validator{Name: name, Validator: fn}
	}
}

// AddBackendModules appends names not yet present, keeping first-seen order.
func (r *Registry) AddBackendModules(names ...string) {
	for _, name := range names {
		if name == "" || slices.Contains(r.BackendModules, name) {
			continue
		}
		r.BackendModules = append(r.BackendModules, name)
	}
}

// MergeMessages merges localized messages per locale. Later keys win.
func (r *Registry) MergeMessages(bundle map[string]map[string]string) {
	for locale, messages := range bundle {
		dst, ok := r.I18nMessages[locale]
		if !ok {
			dst = make(map[string]string, len(messages))
			r.I18nMessages[locale] = dst
		}
		maps.Copy(dst, messages)
	}
}

// RegisterFieldComponents adds field components. Later entries win.
func (r *Registry) RegisterFieldComponents(components map[string]any) {
	maps.Copy(r.FieldComponents, components)
}

// FilterNames returns the registered filter names, sorted.
func (r *Registry) FilterNames() []string {
	return sortedKeys(r.Filters)
}

// ValidatorNames returns the registered validator names, sorted.
func (r *Registry) ValidatorNames() []string {
	return sortedKeys(r.Validators)
}

// Locales returns the locales with at least one message, sorted.
func (r *Registry) Locales() []string {
	return sortedKeys(r.I18nMessages)
}

// ApplyFilters runs values through a filter chain.
//
// The chain is a FilterFunc, a comma-separated list of filter names, or a
// slice mixing both. Unknown names are skipped. Each filter receives the
// previous output as its arguments; an output of type []any is spread.
// The first value of the final output is returned.
func (r *Registry) ApplyFilters(chain any, values ...any) any {
	current := values
	for _, fn := range r.resolveChain(chain) {
		out := fn(current...)
		if spread, ok := out.([]any); ok {
			current = spread
		} else {
			current = []any{out}
		}
	}
	if len(current) == 0 {
		return nil
	}
	return current[0]
}

func (r *Registry) resolveChain(chain any) []FilterFunc {
	var out []FilterFunc
	switch c := chain.(type) {
	case nil:
	case FilterFunc:
		out = append(out, c)
	case func(args ...any) any:
		out = append(out, c)
	case string:
		for _, name := range strings.Split(c, ",") {
			if fn, ok := r.Filters[strings.TrimSpace(name)]; ok {
				out = append(out, fn)
			}
		}
	case []string:
		for _, name := range c {
			out = append(out, r.resolveChain(name)...)
		}
	case []FilterFunc:
		for _, fn := range c {
			if fn != nil {
				out = append(out, fn)
			}
		}
	case []any:
		for _, item := range c {
			out = append(out, r.resolveChain(item)...)
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
