package schema

import (
	"errors"
	"fmt"
)

// ErrInvalidDependency is the sentinel error wrapped by DependencyError.
var ErrInvalidDependency = errors.New("invalid dependency reference")

// DependencyRef points from one module to a module it requires.
type DependencyRef struct {
	// Name is the name the dependency is registered under.
	Name string `mapstructure:"name" yaml:"name" json:"name"`

	// Original is the descriptor key to load. Defaults to Name.
	Original string `mapstructure:"original" yaml:"original,omitempty" json:"original,omitempty"`

	// Config is merged into the dependency's config once it is resolved.
	Config Config `mapstructure:"config" yaml:"config,omitempty" json:"config,omitempty"`
}

// Key returns the descriptor key to look up.
func (r DependencyRef) Key() string {
	if r.Original != "" {
		return r.Original
	}
	return r.Name
}

// String returns the reference in "name" or "name=original" form.
func (r DependencyRef) String() string {
	if r.Original != "" && r.Original != r.Name {
		return r.Name + "=" + r.Original
	}
	return r.Name
}

// DependencyError is returned when a dependency reference cannot be decoded
// into a usable module name.
type DependencyError struct {
	Value  any
	Reason string
}

// Error implements the error interface.
func (e *DependencyError) Error() string {
	return fmt.Sprintf("invalid dependency reference %v: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidDependency so callers can use errors.Is.
func (e *DependencyError) Unwrap() error { return ErrInvalidDependency }

// ParseDependencyRef decodes a bare module name or a {name, original, config}
// map into a DependencyRef.
func ParseDependencyRef(v any) (DependencyRef, error) {
	var ref DependencyRef

	switch d := v.(type) {
	case string:
		ref = DependencyRef{Name: d}
	case DependencyRef:
		ref = d
	case *DependencyRef:
		if d == nil {
			return DependencyRef{}, &DependencyError{Value: v, Reason: "nil reference"}
		}
		ref = *d
	default:
		m, ok := asMap(v)
		if !ok {
			return DependencyRef{}, &DependencyError{Value: v, Reason: fmt.Sprintf("unsupported type %T", v)}
		}
		if err := decodeMap(m, &ref); err != nil {
			return DependencyRef{}, &DependencyError{Value: v, Reason: err.Error()}
		}
	}

	if ref.Name == "" {
		if ref.Original != "" {
			return DependencyRef{}, &DependencyError{Value: v, Reason: fmt.Sprintf("original %q given without a name", ref.Original)}
		}
		return DependencyRef{}, &DependencyError{Value: v, Reason: "name is required"}
	}
	if ref.Original == "" {
		ref.Original = ref.Name
	}
	return ref, nil
}

// ParseDependencyRefs decodes a list of references.
func ParseDependencyRefs(items []any) ([]DependencyRef, error) {
	refs := make([]DependencyRef, 0, len(items))
	for i, item := range items {
		ref, err := ParseDependencyRef(item)
		if err != nil {
			return nil, fmt.Errorf("modules[%d]: %w", i, err)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}
