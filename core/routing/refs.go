// Package routing links the route trees of composed modules.
//
// Route references ("users>admin>list") are replaced by the route they point
// at, and view overrides rewrite the component and props of matching leaf
// routes. Both run after every module of a pass has loaded and
// its routers have been evaluated.
package routing

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/artpar/modcompose/core/schema"
)

var (
	// ErrReference is wrapped by every ReferenceError.
	ErrReference = errors.New("route reference error")

	// ErrRoutersNotEvaluated is returned when a reference targets a module
	// whose routers are still a builder.
	ErrRoutersNotEvaluated = errors.New("routers not evaluated")

	// ErrReferenceCycle is returned when following references revisits an
	// expression.
	ErrReferenceCycle = errors.New("route reference cycle")
)

// ReferenceError describes a route reference that cannot be resolved.
type ReferenceError struct {
	// Expr is the reference expression, Source the module declaring it.
	Expr   string
	Source string

	// Module and Segment locate the failure within the target tree.
	Module  string
	Segment string

	Reason string
	Err    error
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("resolve route %q in module %q: %s", e.Expr, e.Source, e.Reason)
}

// Unwrap returns ErrReference and the underlying cause, if any.
func (e *ReferenceError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrReference, e.Err}
	}
	return []error{ErrReference}
}

// Modules gives access to the modules of a pass by name.
type Modules interface {
	Module(name string) (*schema.Descriptor, bool)
}

// ModuleTable is a Modules backed by a map.
type ModuleTable map[string]*schema.Descriptor

// Module implements Modules.
func (t ModuleTable) Module(name string) (*schema.Descriptor, bool) {
	d, ok := t[name]
	return d, ok && d != nil
}

// RefResolver dereferences route references.
type RefResolver struct {
	Modules Modules
}

// NewRefResolver creates a resolver over modules.
func NewRefResolver(modules Modules) *RefResolver {
	return &RefResolver{Modules: modules}
}

// ResolveAll resolves every node of a module's route list in place.
func (r *RefResolver) ResolveAll(source string, nodes []*schema.RouteNode) error {
	for i, n := range nodes {
		resolved, err := r.ResolveNode(source, n)
		if err != nil {
			return err
		}
		nodes[i] = resolved
	}
	return nil
}

// ResolveNode resolves a route node declared by module source.
//
// A bare reference is replaced by its target node itself, so the referencing
// tree and the target module share it and later view overrides of the target
// module show up in both. A map-form reference is replaced by a copy of the
// target with the reference's own non-zero fields overlaid; the target is
// left untouched. Concrete nodes are returned as is after their children
// have been resolved in place. References found inside the target subtree
// are resolved as well.
func (r *RefResolver) ResolveNode(source string, n *schema.RouteNode) (*schema.RouteNode, error) {
	return r.resolve(source, n, nil)
}

func (r *RefResolver) resolve(source string, n *schema.RouteNode, chain []string) (*schema.RouteNode, error) {
	if n == nil {
		return nil, nil
	}

	if !n.IsRef() {
		for i, c := range n.Children {
			resolved, err := r.resolve(source, c, chain)
			if err != nil {
				return nil, err
			}
			n.Children[i] = resolved
		}
		return n, nil
	}

	if slices.Contains(chain, n.Ref) {
		cycle := append(slices.Clone(chain), n.Ref)
		return nil, &ReferenceError{
			Expr:   n.Ref,
			Source: source,
			Reason: "reference cycle " + strings.Join(cycle, " -> "),
			Err:    ErrReferenceCycle,
		}
	}

	target, err := r.Lookup(source, n.Ref)
	if err != nil {
		return nil, err
	}

	out := target
	if !n.Bare {
		out = target.Clone()
		out.Overlay(n)
	}

	module, _, _ := schema.SplitRef(n.Ref)
	return r.resolve(module, out, append(chain, n.Ref))
}

// Lookup returns the node addressed by expr without copying it. An
// expression naming only a module addresses its first top-level route, and
// an empty segment addresses the index route of its level.
func (r *RefResolver) Lookup(source, expr string) (*schema.RouteNode, error) {
	module, segments, err := schema.SplitRef(expr)
	if err != nil {
		return nil, &ReferenceError{Expr: expr, Source: source, Reason: err.Error()}
	}

	mod, ok := r.Modules.Module(module)
	if !ok {
		return nil, &ReferenceError{
			Expr:   expr,
			Source: source,
			Module: module,
			Reason: fmt.Sprintf("module `%s` is not loaded", module),
		}
	}
	if !mod.Routers.Evaluated() {
		return nil, &ReferenceError{
			Expr:   expr,
			Source: source,
			Module: module,
			Reason: fmt.Sprintf("routers of `%s` have not been evaluated", module),
			Err:    ErrRoutersNotEvaluated,
		}
	}

	candidates := mod.Routers.Nodes
	if len(candidates) == 0 {
		return nil, &ReferenceError{
			Expr:   expr,
			Source: source,
			Module: module,
			Reason: fmt.Sprintf("module `%s` has no routers", module),
		}
	}
	if len(segments) == 0 {
		return candidates[0], nil
	}

	var found *schema.RouteNode
	for i, seg := range segments {
		found = nil
		for _, c := range candidates {
			if c.Matches(seg) {
				found = c
				break
			}
		}
		if found == nil {
			return nil, &ReferenceError{
				Expr:    expr,
				Source:  source,
				Module:  module,
				Segment: seg,
				Reason:  fmt.Sprintf("child router `%s` is not found in `%s`", seg, module),
			}
		}
		if i < len(segments)-1 {
			candidates = found.Children
		}
	}
	return found, nil
}
