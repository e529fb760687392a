package schema

import (
	"maps"

	"github.com/artpar/modcompose/core/registry"
)

// Record is a plain key/value entry such as a page or an action definition.
type Record = map[string]any

// MockFunc initializes mock endpoints for a module. The argument is the host's
// mock server, opaque to the composer.
type MockFunc func(server any)

// RouterBuilder produces a module's route tree once every module has loaded.
type RouterBuilder func(app AppState, mod *Descriptor, host Host) ([]*RouteNode, error)

// Descriptor is the unit of composition.
type Descriptor struct {
	// Name is the identifier of the module within a composition pass.
	Name string `yaml:"name,omitempty" json:"name,omitempty" toml:"name,omitempty"`

	// Original is the descriptor key the module was loaded from.
	// Equal to Name unless the module is an alias.
	Original string `yaml:"original,omitempty" json:"original,omitempty" toml:"original,omitempty"`

	// Config holds arbitrary module configuration. Reserved keys are
	// dependencies, backendDependencies and views.
	Config Config `yaml:"config,omitempty" json:"config,omitempty" toml:"config,omitempty"`

	Routes  []Record `yaml:"routes,omitempty" json:"routes,omitempty" toml:"routes,omitempty"`
	Pages   []Record `yaml:"pages,omitempty" json:"pages,omitempty" toml:"pages,omitempty"`
	Actions []Record `yaml:"actions,omitempty" json:"actions,omitempty" toml:"actions,omitempty"`

	// Routers is the module's route tree, either concrete or built lazily.
	Routers Routers `yaml:"routers,omitempty" json:"routers,omitempty" toml:"routers,omitempty"`

	// Components and FieldComponents map names to renderable units.
	Components      map[string]any `yaml:"components,omitempty" json:"components,omitempty" toml:"components,omitempty"`
	FieldComponents map[string]any `yaml:"fieldComponents,omitempty" json:"fieldComponents,omitempty" toml:"fieldComponents,omitempty"`

	// Filters and Validators can only be declared in Go.
	Filters    map[string]registry.FilterFunc    `yaml:"-" json:"-" toml:"-"`
	Validators map[string]registry.ValidatorFunc `yaml:"-" json:"-" toml:"-"`

	Mock MockFunc `yaml:"-" json:"-" toml:"-"`
}

// Key returns the descriptor key used for store lookups.
func (d *Descriptor) Key() string {
	if d.Original != "" {
		return d.Original
	}
	return d.Name
}

// Clone returns a copy of the descriptor. Data is copied deeply; functions
// and opaque components are shared.
func (d *Descriptor) Clone() *Descriptor {
	if d == nil {
		return nil
	}
	out := *d
	out.Config = d.Config.Clone()
	out.Routes = cloneRecords(d.Routes)
	out.Pages = cloneRecords(d.Pages)
	out.Actions = cloneRecords(d.Actions)
	out.Routers = d.Routers.Clone()
	out.Components = maps.Clone(d.Components)
	out.FieldComponents = maps.Clone(d.FieldComponents)
	out.Filters = maps.Clone(d.Filters)
	out.Validators = maps.Clone(d.Validators)
	return &out
}

// Merge combines a base descriptor with its overlay. Routes, pages and actions
// are concatenated base first. Everything else is merged with the overlay
// winning; config is merged deeply. Either argument may be nil.
func Merge(base, overlay *Descriptor) *Descriptor {
	if base == nil {
		base = &Descriptor{}
	}
	if overlay == nil {
		overlay = &Descriptor{}
	}

	out := &Descriptor{
		Name:     firstNonEmpty(overlay.Name, base.Name),
		Original: firstNonEmpty(overlay.Original, base.Original),
		Config:   MergeDeep(base.Config, overlay.Config),
		Routes:   concatRecords(base.Routes, overlay.Routes),
		Pages:    concatRecords(base.Pages, overlay.Pages),
		Actions:  concatRecords(base.Actions, overlay.Actions),
		Routers:  base.Routers,
		Mock:     base.Mock,
	}
	if overlay.Routers.IsSet() {
		out.Routers = overlay.Routers
	}
	if overlay.Mock != nil {
		out.Mock = overlay.Mock
	}

	out.Components = mergeMaps(base.Components, overlay.Components)
	out.FieldComponents = mergeMaps(base.FieldComponents, overlay.FieldComponents)
	out.Filters = mergeMaps(base.Filters, overlay.Filters)
	out.Validators = mergeMaps(base.Validators, overlay.Validators)

	return out
}

func mergeMaps[V any](base, overlay map[string]V) map[string]V {
	if base == nil && overlay == nil {
		return nil
	}
	out := make(map[string]V, len(base)+len(overlay))
	maps.Copy(out, base)
	maps.Copy(out, overlay)
	return out
}

func concatRecords(a, b []Record) []Record {
	out := make([]Record, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

func cloneRecords(in []Record) []Record {
	if in == nil {
		return nil
	}
	out := make([]Record, len(in))
	for i, r := range in {
		out[i] = Record(Config(r).Clone())
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
