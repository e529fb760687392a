package routing

import (
	"errors"
	"strings"
	"testing"

	"github.com/artpar/modcompose/core/schema"
	"github.com/google/go-cmp/cmp"
)

func module(nodes ...*schema.RouteNode) *schema.Descriptor {
	return &schema.Descriptor{Routers: schema.NodeRouters(nodes...)}
}

func TestResolveNode_SingleSegment(t *testing.T) {
	home := &schema.RouteNode{Name: "home", Path: "home", Component: "Home"}
	r := NewRefResolver(ModuleTable{"A": module(home)})

	got, err := r.ResolveNode("B", schema.RefNode("A>home"))
	if err != nil {
		t.Fatalf("ResolveNode() error = %v", err)
	}
	if diff := cmp.Diff(home, got); diff != "" {
		t.Errorf("ResolveNode() mismatch (-want +got):\n%s", diff)
	}
	if got != home {
		t.Error("a bare reference should resolve to the target node itself")
	}
}

func TestResolveNode_IndexSegment(t *testing.T) {
	index := &schema.RouteNode{Path: "", Component: "Dashboard"}
	admin := &schema.RouteNode{Name: "admin", Path: "admin", Children: []*schema.RouteNode{
		{Path: "users"},
		index,
	}}
	r := NewRefResolver(ModuleTable{"A": module(admin), "B": module(&schema.RouteNode{Path: "leaf", Children: []*schema.RouteNode{{Path: "x"}}})})

	got, err := r.ResolveNode("C", schema.RefNode("A>admin>"))
	if err != nil {
		t.Fatalf("ResolveNode() error = %v", err)
	}
	if got != index {
		t.Errorf("A>admin> = %+v, want the index route", got)
	}

	if _, err := r.ResolveNode("C", schema.RefNode("B>leaf>")); !errors.Is(err, ErrReference) {
		t.Errorf("reference to a missing index route error = %v, want ErrReference", err)
	}
}

func TestResolveNode_MultiSegment(t *testing.T) {
	users := &schema.RouteNode{Name: "users", Path: "users"}
	admin := &schema.RouteNode{Name: "admin", Path: "admin", Children: []*schema.RouteNode{users}}
	r := NewRefResolver(ModuleTable{"A": module(admin)})

	got, err := r.ResolveNode("B", schema.RefNode("A>admin>users"))
	if err != nil {
		t.Fatalf("ResolveNode() error = %v", err)
	}
	if diff := cmp.Diff(users, got); diff != "" {
		t.Errorf("ResolveNode() mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveNode_SlashedSegments(t *testing.T) {
	settings := &schema.RouteNode{Path: "/settings"}
	r := NewRefResolver(ModuleTable{"A": module(&schema.RouteNode{Name: "first"}, settings)})

	got, err := r.ResolveNode("B", schema.RefNode("A>settings"))
	if err != nil {
		t.Fatalf("ResolveNode() error = %v", err)
	}
	if got.Path != "/settings" {
		t.Errorf("Path = %q, want /settings", got.Path)
	}
}

func TestResolveNode_FirstMatchWins(t *testing.T) {
	r := NewRefResolver(ModuleTable{"A": module(
		&schema.RouteNode{Name: "home", Path: "one"},
		&schema.RouteNode{Name: "home", Path: "two"},
	)})

	got, err := r.ResolveNode("B", schema.RefNode("A>home"))
	if err != nil {
		t.Fatalf("ResolveNode() error = %v", err)
	}
	if got.Path != "one" {
		t.Errorf("Path = %q, want one", got.Path)
	}
}

func TestResolveNode_ModuleOnly(t *testing.T) {
	r := NewRefResolver(ModuleTable{"A": module(&schema.RouteNode{Path: "root"}, &schema.RouteNode{Path: "other"})})

	got, err := r.ResolveNode("B", schema.RefNode("A"))
	if err != nil {
		t.Fatalf("ResolveNode() error = %v", err)
	}
	if got.Path != "root" {
		t.Errorf("Path = %q, want root", got.Path)
	}
}

func TestResolveNode_ObjectOverride(t *testing.T) {
	home := &schema.RouteNode{Name: "home", Path: "home", Component: "Home", Props: map[string]any{"x": 1}}
	r := NewRefResolver(ModuleTable{"A": module(home)})

	got, err := r.ResolveNode("B", &schema.RouteNode{Ref: "A>home", Path: "start"})
	if err != nil {
		t.Fatalf("ResolveNode() error = %v", err)
	}

	want := &schema.RouteNode{Name: "home", Path: "start", Component: "Home", Props: map[string]any{"x": 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ResolveNode() mismatch (-want +got):\n%s", diff)
	}
	if home.Path != "home" {
		t.Errorf("target was modified: Path = %q", home.Path)
	}
}

func TestResolveNode_Missing(t *testing.T) {
	r := NewRefResolver(ModuleTable{"A": module(&schema.RouteNode{Name: "home", Path: "home"})})

	_, err := r.ResolveNode("B", schema.RefNode("A>missing"))
	if !errors.Is(err, ErrReference) {
		t.Fatalf("ResolveNode() error = %v, want ErrReference", err)
	}

	var refErr *ReferenceError
	if !errors.As(err, &refErr) {
		t.Fatalf("error %v is not a *ReferenceError", err)
	}
	if refErr.Segment != "missing" || refErr.Module != "A" {
		t.Errorf("ReferenceError = %+v, want segment missing in module A", refErr)
	}
	if !strings.Contains(err.Error(), "missing") || !strings.Contains(err.Error(), "`A`") {
		t.Errorf("error %q should name the segment and the module", err)
	}
}

func TestResolveNode_Failures(t *testing.T) {
	builder := &schema.Descriptor{Routers: schema.BuilderRouters(
		func(schema.AppState, *schema.Descriptor, schema.Host) ([]*schema.RouteNode, error) { return nil, nil },
	)}
	modules := ModuleTable{
		"built": builder,
		"empty": module(),
		"A":     module(&schema.RouteNode{Name: "admin", Path: "admin"}),
	}

	tests := []struct {
		name    string
		expr    string
		wantErr error
	}{
		{"unknown module", "nope>home", ErrReference},
		{"not evaluated", "built>home", ErrRoutersNotEvaluated},
		{"no routers", "empty>home", ErrReference},
		{"missing intermediate", "A>users>list", ErrReference},
		{"descend past leaf", "A>admin>users", ErrReference},
		{"empty segment", "A>>admin", ErrReference},
	}

	r := NewRefResolver(modules)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.ResolveNode("B", schema.RefNode(tt.expr))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ResolveNode(%q) error = %v, want %v", tt.expr, err, tt.wantErr)
			}
		})
	}
}

func TestResolveNode_ConcreteChildrenInPlace(t *testing.T) {
	r := NewRefResolver(ModuleTable{"A": module(&schema.RouteNode{Name: "home", Path: "home"})})

	parent := &schema.RouteNode{Path: "shell", Children: []*schema.RouteNode{
		{Path: "local"},
		schema.RefNode("A>home"),
	}}

	got, err := r.ResolveNode("B", parent)
	if err != nil {
		t.Fatalf("ResolveNode() error = %v", err)
	}
	if got != parent {
		t.Error("concrete nodes should be returned as is")
	}
	if parent.Children[1].Path != "home" || parent.Children[1].IsRef() {
		t.Errorf("child = %+v, want resolved home route", parent.Children[1])
	}
}

func TestResolveNode_NestedReferences(t *testing.T) {
	modules := ModuleTable{
		"A": module(&schema.RouteNode{Name: "wrap", Path: "wrap", Children: []*schema.RouteNode{schema.RefNode("C>leaf")}}),
		"C": module(&schema.RouteNode{Name: "leaf", Path: "leaf"}),
	}
	r := NewRefResolver(modules)

	got, err := r.ResolveNode("B", schema.RefNode("A>wrap"))
	if err != nil {
		t.Fatalf("ResolveNode() error = %v", err)
	}
	if got.Children[0].Path != "leaf" {
		t.Errorf("nested reference not resolved: %+v", got.Children[0])
	}
	if modules["A"].Routers.Nodes[0].Children[0] != modules["C"].Routers.Nodes[0] {
		t.Error("nested reference inside the shared target should resolve in place")
	}
}

func TestResolveNode_Cycle(t *testing.T) {
	modules := ModuleTable{
		"A": module(&schema.RouteNode{Name: "a", Path: "a", Children: []*schema.RouteNode{schema.RefNode("B>b")}}),
		"B": module(&schema.RouteNode{Name: "b", Path: "b", Children: []*schema.RouteNode{schema.RefNode("A>a")}}),
	}

	_, err := NewRefResolver(modules).ResolveNode("C", schema.RefNode("A>a"))
	if !errors.Is(err, ErrReferenceCycle) {
		t.Fatalf("ResolveNode() error = %v, want ErrReferenceCycle", err)
	}
	if !errors.Is(err, ErrReference) {
		t.Errorf("cycle error %v should also wrap ErrReference", err)
	}
}

func TestResolveAll(t *testing.T) {
	r := NewRefResolver(ModuleTable{"A": module(&schema.RouteNode{Name: "home", Path: "home"})})
	nodes := []*schema.RouteNode{schema.RefNode("A>home"), {Path: "own"}}

	if err := r.ResolveAll("B", nodes); err != nil {
		t.Fatalf("ResolveAll() error = %v", err)
	}
	if nodes[0].Path != "home" || nodes[1].Path != "own" {
		t.Errorf("ResolveAll() = %+v, %+v", nodes[0], nodes[1])
	}
}
