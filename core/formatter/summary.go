package formatter

import (
	"encoding/json"
	"fmt"

	"github.com/artpar/modcompose/core/compose"
	"github.com/artpar/modcompose/core/schema"
)

// ModuleSummary describes one module of a pass.
type ModuleSummary struct {
	Name                string         `json:"name" yaml:"name"`
	Original            string         `json:"original,omitempty" yaml:"original,omitempty"`
	Dependencies        []string       `json:"dependencies" yaml:"dependencies"`
	BackendDependencies []string       `json:"backendDependencies,omitempty" yaml:"backendDependencies,omitempty"`
	Routes              int            `json:"routes" yaml:"routes"`
	Components          int            `json:"components" yaml:"components"`
	Config              map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// Summarize lists the loaded modules of a pass in load order. Config holds the
// merged composition config of each module with reserved keys removed.
func Summarize(app *compose.App) []ModuleSummary {
	out := make([]ModuleSummary, 0, len(app.ModuleNames))
	for _, name := range app.ModuleNames {
		mod, ok := app.Modules[name]
		if !ok {
			continue
		}
		out = append(out, Summary(name, mod, app.ModuleConfig(name)))
	}
	return out
}

// Summary describes one module.
func Summary(name string, mod *schema.Descriptor, cfg schema.Config) ModuleSummary {
	s := ModuleSummary{
		Name:                name,
		Dependencies:        []string{},
		BackendDependencies: mod.Config.BackendDependencies(),
		Routes:              schema.CountNodes(mod.Routers.Nodes),
		Components:          len(mod.Components),
	}
	if mod.Original != "" && mod.Original != name {
		s.Original = mod.Original
	}
	if deps, err := mod.Config.Dependencies(); err == nil {
		for _, d := range deps {
			s.Dependencies = append(s.Dependencies, d.String())
		}
	}
	if len(cfg) > 0 {
		s.Config = make(map[string]any, len(cfg))
		for k, v := range cfg {
			switch k {
			case schema.KeyDependencies, schema.KeyBackendDependencies, schema.KeyViews:
				continue
			}
			s.Config[k] = v
		}
	}
	return s
}

// Route is the printable form of a route node. Components are rendered as
// strings.
type Route struct {
	Path      string         `json:"path" yaml:"path"`
	FullPath  string         `json:"fullPath" yaml:"fullPath"`
	Name      string         `json:"name,omitempty" yaml:"name,omitempty"`
	Redirect  string         `json:"redirect,omitempty" yaml:"redirect,omitempty"`
	Component string         `json:"component,omitempty" yaml:"component,omitempty"`
	Props     any            `json:"props,omitempty" yaml:"props,omitempty"`
	Meta      map[string]any `json:"meta,omitempty" yaml:"meta,omitempty"`
	Children  []Route        `json:"children,omitempty" yaml:"children,omitempty"`
}

// Routes converts route nodes into their printable form.
func Routes(nodes []*schema.RouteNode) []Route {
	return routesUnder("", nodes)
}

func routesUnder(prefix string, nodes []*schema.RouteNode) []Route {
	out := make([]Route, 0, len(nodes))
	for _, n := range nodes {
		if n == nil {
			continue
		}
		full := prefix + "/" + n.Path
		r := Route{
			Path:      n.Path,
			FullPath:  full,
			Name:      n.Name,
			Redirect:  n.Redirect,
			Component: ComponentName(n.Component),
			Props:     n.Props,
			Meta:      n.Meta,
		}
		if len(n.Children) > 0 {
			r.Children = routesUnder(full, n.Children)
		}
		out = append(out, r)
	}
	return out
}

// ComponentName renders a component value for display. Strings are printed
// as is, other data as JSON and everything else by type.
func ComponentName(c any) string {
	switch v := c.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}
	if b, err := json.Marshal(c); err == nil {
		return string(b)
	}
	return fmt.Sprintf("%T", c)
}
