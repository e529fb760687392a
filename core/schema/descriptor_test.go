package schema

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMerge(t *testing.T) {
	base := &Descriptor{
		Config:     Config{"a": 1, "b": 2},
		Routes:     []Record{{"path": "base"}},
		Pages:      []Record{{"name": "base"}},
		Routers:    NodeRouters(&RouteNode{Path: "base"}),
		Components: map[string]any{"Header": "base", "Footer": "base"},
	}
	overlay := &Descriptor{
		Config:     Config{"b": 3, "c": 4},
		Routes:     []Record{{"path": "overlay"}},
		Components: map[string]any{"Header": "overlay"},
	}

	got := Merge(base, overlay)

	if diff := cmp.Diff(Config{"a": 1, "b": 3, "c": 4}, got.Config); diff != "" {
		t.Errorf("Config mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Record{{"path": "base"}, {"path": "overlay"}}, got.Routes); diff != "" {
		t.Errorf("Routes mismatch (-want +got):\n%s", diff)
	}
	if len(got.Pages) != 1 {
		t.Errorf("Pages has %d entries, want 1", len(got.Pages))
	}
	if len(got.Routers.Nodes) != 1 || got.Routers.Nodes[0].Path != "base" {
		t.Errorf("Routers = %+v, want base routers kept", got.Routers.Nodes)
	}
	if diff := cmp.Diff(map[string]any{"Header": "overlay", "Footer": "base"}, got.Components); diff != "" {
		t.Errorf("Components mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_NilSides(t *testing.T) {
	d := &Descriptor{Name: "only", Config: Config{"a": 1}}

	if got := Merge(nil, d); got.Name != "only" || got.Config["a"] != 1 {
		t.Errorf("Merge(nil, d) = %+v", got)
	}
	if got := Merge(d, nil); got.Name != "only" || got.Config["a"] != 1 {
		t.Errorf("Merge(d, nil) = %+v", got)
	}
}

func TestMerge_OverlayRoutersWin(t *testing.T) {
	base := &Descriptor{Routers: NodeRouters(&RouteNode{Path: "base"})}
	overlay := &Descriptor{Routers: NodeRouters()}

	got := Merge(base, overlay)
	if len(got.Routers.Nodes) != 0 {
		t.Errorf("Routers = %+v, want the overlay's empty tree", got.Routers.Nodes)
	}
}

func TestDescriptor_Clone(t *testing.T) {
	called := 0
	orig := &Descriptor{
		Name:    "users",
		Config:  Config{"nested": map[string]any{"x": 1}},
		Routers: NodeRouters(&RouteNode{Path: "users"}),
		Mock:    func(any) { called++ },
	}

	cpy := orig.Clone()
	cpy.Config["nested"].(map[string]any)["x"] = 2
	cpy.Routers.Nodes[0].Path = "changed"
	cpy.Mock(nil)

	if orig.Config["nested"].(map[string]any)["x"] != 1 {
		t.Error("Clone() shares config")
	}
	if orig.Routers.Nodes[0].Path != "users" {
		t.Error("Clone() shares routers")
	}
	if called != 1 {
		t.Errorf("Mock called %d times, want 1", called)
	}
	if orig.Key() != "users" {
		t.Errorf("Key() = %q, want users", orig.Key())
	}
}
