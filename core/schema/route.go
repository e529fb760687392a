package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mitchellh/copystructure"
	"gopkg.in/yaml.v3"
)

// RefSeparator separates the segments of a route reference expression.
const RefSeparator = ">"

// RouteNode is one entry of a module's route tree.
//
// A node carrying Ref is a reference node. Bare is set when the reference was
// declared as a plain string instead of a map; bare references are replaced by
// their target verbatim while map-form references overlay their own fields.
type RouteNode struct {
	Path      string         `mapstructure:"path" yaml:"path" json:"path" toml:"path"`
	Name      string         `mapstructure:"name" yaml:"name,omitempty" json:"name,omitempty" toml:"name,omitempty"`
	Redirect  string         `mapstructure:"redirect" yaml:"redirect,omitempty" json:"redirect,omitempty" toml:"redirect,omitempty"`
	Component any            `mapstructure:"component" yaml:"component,omitempty" json:"component,omitempty" toml:"component,omitempty"`
	Props     any            `mapstructure:"props" yaml:"props,omitempty" json:"props,omitempty" toml:"props,omitempty"`
	Meta      map[string]any `mapstructure:"meta" yaml:"meta,omitempty" json:"meta,omitempty" toml:"meta,omitempty"`
	Children  []*RouteNode   `mapstructure:"children" yaml:"children,omitempty" json:"children,omitempty" toml:"children,omitempty"`
	Ref       string         `mapstructure:"ref" yaml:"ref,omitempty" json:"ref,omitempty" toml:"ref,omitempty"`
	Bare      bool           `mapstructure:"-" yaml:"-" json:"-" toml:"-"`
}

// RefNode returns a bare reference node for expr.
func RefNode(expr string) *RouteNode {
	return &RouteNode{Ref: expr, Bare: true}
}

// IsRef reports whether the node points into another module's routes.
func (n *RouteNode) IsRef() bool {
	return n != nil && n.Ref != ""
}

// HasIndexChild reports whether a child has an empty path.
func (n *RouteNode) HasIndexChild() bool {
	for _, c := range n.Children {
		if c != nil && c.Path == "" && !c.IsRef() {
			return true
		}
	}
	return false
}

// Matches reports whether the node is addressed by a reference segment:
// its name or path equals seg, with or without a leading slash. The empty
// segment addresses an index route, one whose path is empty or "/".
func (n *RouteNode) Matches(seg string) bool {
	if n == nil {
		return false
	}
	if seg == "" {
		return n.Path == "" || n.Path == "/"
	}
	slashed := "/" + seg
	return n.Name == seg || n.Path == seg || n.Name == slashed || n.Path == slashed
}

// Clone returns a deep copy of the node and its children. Component is shared.
func (n *RouteNode) Clone() *RouteNode {
	if n == nil {
		return nil
	}
	out := *n
	out.Props = copyValue(n.Props)
	if n.Meta != nil {
		out.Meta = map[string]any(Config(n.Meta).Clone())
	}
	if n.Children != nil {
		out.Children = make([]*RouteNode, len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = c.Clone()
		}
	}
	return &out
}

// Overlay copies the non-zero fields of from onto n. Ref and Bare are kept.
func (n *RouteNode) Overlay(from *RouteNode) {
	if from == nil {
		return
	}
	if from.Path != "" {
		n.Path = from.Path
	}
	if from.Name != "" {
		n.Name = from.Name
	}
	if from.Redirect != "" {
		n.Redirect = from.Redirect
	}
	if from.Component != nil {
		n.Component = from.Component
	}
	if from.Props != nil {
		n.Props = copyValue(from.Props)
	}
	if from.Meta != nil {
		merged := MergeShallow(Config(n.Meta), Config(from.Meta))
		n.Meta = map[string]any(merged)
	}
	if from.Children != nil {
		n.Children = make([]*RouteNode, len(from.Children))
		for i, c := range from.Children {
			n.Children[i] = c.Clone()
		}
	}
}

// Walk calls fn for n and every descendant, depth first, with the
// accumulated path of each node. Walking stops when fn returns false.
func (n *RouteNode) Walk(prefix string, fn func(path string, node *RouteNode) bool) bool {
	if n == nil {
		return true
	}
	p := prefix + "/" + n.Path
	if !fn(p, n) {
		return false
	}
	for _, c := range n.Children {
		if !c.Walk(p, fn) {
			return false
		}
	}
	return true
}

// CountNodes returns the number of nodes in the given trees.
func CountNodes(nodes []*RouteNode) int {
	count := 0
	for _, n := range nodes {
		n.Walk("", func(string, *RouteNode) bool {
			count++
			return true
		})
	}
	return count
}

// SplitRef splits a reference expression into its module and path segments.
// Only the module segment is required; empty path segments such as the
// trailing one of "A>admin>" address index routes.
func SplitRef(expr string) (module string, segments []string, err error) {
	parts := strings.Split(expr, RefSeparator)
	if strings.TrimSpace(parts[0]) == "" {
		return "", nil, fmt.Errorf("reference %q does not name a module", expr)
	}
	return parts[0], parts[1:], nil
}

// UnmarshalYAML accepts either a scalar reference or a route map.
func (n *RouteNode) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var expr string
		if err := value.Decode(&expr); err != nil {
			return err
		}
		*n = RouteNode{Ref: expr, Bare: true}
		return nil
	}
	type plain RouteNode
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*n = RouteNode(p)
	return nil
}

// UnmarshalJSON accepts either a string reference or a route object.
func (n *RouteNode) UnmarshalJSON(data []byte) error {
	var expr string
	if err := json.Unmarshal(data, &expr); err == nil {
		*n = RouteNode{Ref: expr, Bare: true}
		return nil
	}
	type plain RouteNode
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*n = RouteNode(p)
	return nil
}

// RouteNodesFrom converts loosely typed data, as produced by generic
// decoders, into route nodes. Strings become bare references.
func RouteNodesFrom(v any) ([]*RouteNode, error) {
	if v == nil {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		if maps, ok := v.([]map[string]any); ok {
			for _, m := range maps {
				items = append(items, m)
			}
		} else {
			return nil, fmt.Errorf("decode routers: expected a list, got %T", v)
		}
	}

	nodes := make([]*RouteNode, 0, len(items))
	for i, item := range items {
		node, err := routeNodeFrom(item)
		if err != nil {
			return nil, fmt.Errorf("decode routers[%d]: %w", i, err)
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func routeNodeFrom(v any) (*RouteNode, error) {
	if expr, ok := v.(string); ok {
		return RefNode(expr), nil
	}
	m, ok := asMap(v)
	if !ok {
		return nil, fmt.Errorf("expected a string or a map, got %T", v)
	}

	var (
		node   RouteNode
		fields = make(map[string]any, len(m))
		extra  = make(map[string]any)
	)
	for k, val := range m {
		switch k {
		case "children":
		case "path", "name", "redirect", "component", "props", "meta", "ref":
			fields[k] = val
		default:
			extra[k] = val
		}
	}
	if err := decode(fields, &node, false); err != nil {
		return nil, err
	}
	// Keys the router understands but the composer does not are kept in Meta.
	if len(extra) > 0 {
		node.Meta = map[string]any(MergeShallow(Config(extra), Config(node.Meta)))
	}
	if children, ok := m["children"]; ok && children != nil {
		nodes, err := RouteNodesFrom(children)
		if err != nil {
			return nil, err
		}
		node.Children = nodes
	}
	return &node, nil
}

func copyValue(v any) any {
	if v == nil {
		return nil
	}
	cpy, err := copystructure.Copy(v)
	if err != nil {
		return v
	}
	return cpy
}

// Routers is either a concrete route tree or a builder evaluated once every
// module of the pass has loaded.
type Routers struct {
	Nodes   []*RouteNode
	Builder RouterBuilder

	evaluated bool
}

// NodeRouters wraps a concrete route tree.
func NodeRouters(nodes ...*RouteNode) Routers {
	if nodes == nil {
		nodes = []*RouteNode{}
	}
	return Routers{Nodes: nodes, evaluated: true}
}

// BuilderRouters wraps a route builder.
func BuilderRouters(b RouterBuilder) Routers {
	return Routers{Builder: b}
}

// IsSet reports whether any route tree or builder was declared.
func (r Routers) IsSet() bool {
	return r.evaluated || r.Nodes != nil || r.Builder != nil
}

// Evaluated reports whether the routers are a concrete tree.
func (r Routers) Evaluated() bool {
	return r.Builder == nil && (r.evaluated || r.Nodes != nil)
}

// Clone deep-copies a concrete tree. Builders are shared.
func (r Routers) Clone() Routers {
	out := r
	if r.Nodes != nil {
		out.Nodes = make([]*RouteNode, len(r.Nodes))
		for i, n := range r.Nodes {
			out.Nodes[i] = n.Clone()
		}
	}
	return out
}

// MarshalJSON encodes the concrete tree. Builders encode as null.
func (r Routers) MarshalJSON() ([]byte, error) {
	if r.Builder != nil {
		return []byte("null"), nil
	}
	return json.Marshal(r.Nodes)
}

// UnmarshalJSON decodes a list of route nodes.
func (r *Routers) UnmarshalJSON(data []byte) error {
	var nodes []*RouteNode
	if err := json.Unmarshal(data, &nodes); err != nil {
		return err
	}
	*r = NodeRouters(nodes...)
	return nil
}

// MarshalYAML encodes the concrete tree.
func (r Routers) MarshalYAML() (any, error) {
	if r.Builder != nil {
		return nil, nil
	}
	return r.Nodes, nil
}

// UnmarshalYAML decodes a sequence of route nodes.
func (r *Routers) UnmarshalYAML(value *yaml.Node) error {
	var nodes []*RouteNode
	if err := value.Decode(&nodes); err != nil {
		return err
	}
	*r = NodeRouters(nodes...)
	return nil
}

// UnmarshalTOML decodes the generic array produced by the TOML decoder.
func (r *Routers) UnmarshalTOML(data any) error {
	nodes, err := RouteNodesFrom(data)
	if err != nil {
		return err
	}
	*r = NodeRouters(nodes...)
	return nil
}
