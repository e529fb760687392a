package compose

import (
	"slices"
	"sort"

	"github.com/artpar/modcompose/core/registry"
	"github.com/artpar/modcompose/core/schema"
)

// App is the state of one composition pass.
type App struct {
	*registry.Registry

	// PassID identifies the pass.
	PassID string

	// RootModule restricts Routes to one module when set.
	RootModule string

	// Modules holds every module registered in the pass, by name.
	Modules map[string]*schema.Descriptor

	// ModuleNames lists completed modules, dependencies first.
	ModuleNames []string

	// Config holds global keys and the merged config of each module under
	// its name.
	Config map[string]any

	// Routes is the final route list.
	Routes []*schema.RouteNode
}

func newApp(passID, root string) *App {
	return &App{
		Registry:    registry.New(),
		PassID:      passID,
		RootModule:  root,
		Modules:     make(map[string]*schema.Descriptor),
		ModuleNames: []string{},
		Config:      make(map[string]any),
	}
}

// Module returns the module registered under name. When no module has that
// name, the first module loaded from the descriptor key name is returned.
func (a *App) Module(name string) (*schema.Descriptor, bool) {
	if mod, ok := a.Modules[name]; ok {
		return mod, true
	}
	for _, n := range a.ModuleNames {
		if mod := a.Modules[n]; mod.Original == name {
			return mod, true
		}
	}

	// Modules still resolving their dependencies are not in ModuleNames yet.
	names := make([]string, 0, len(a.Modules))
	for n := range a.Modules {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if mod := a.Modules[n]; mod.Original == name {
			return mod, true
		}
	}
	return nil, false
}

// ModuleConfig returns the composition-level config of a module.
func (a *App) ModuleConfig(name string) schema.Config {
	cfg, _ := schema.AsConfig(a.Config[name])
	return cfg
}

// Loaded returns a copy of ModuleNames.
func (a *App) Loaded() []string {
	return slices.Clone(a.ModuleNames)
}

// ConfigKeys returns the global config keys of the pass, sorted. Module
// configs are excluded.
func (a *App) ConfigKeys() []string {
	keys := make([]string, 0, len(a.Config))
	for k := range a.Config {
		if _, ok := a.Modules[k]; ok {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var _ schema.AppState = (*App)(nil)
