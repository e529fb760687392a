package compose

import (
	"context"
	"fmt"
	"slices"

	"github.com/artpar/modcompose/core/schema"
	"github.com/artpar/modcompose/core/store"
	"github.com/rs/zerolog"
)

// Resolver loads modules into an App. It is bound to a single pass.
type Resolver struct {
	ctx     context.Context
	app     *App
	session *store.Session
	host    schema.Host
	log     zerolog.Logger

	newBuilder BuilderFactory
	builder    Builder

	// stack holds the modules whose dependencies are being resolved.
	stack []string
}

func newResolver(ctx context.Context, app *App, st *store.Store, host schema.Host, factory BuilderFactory, log zerolog.Logger) *Resolver {
	return &Resolver{
		ctx:        ctx,
		app:        app,
		session:    st.Session(app, host),
		host:       host,
		log:        log,
		newBuilder: factory,
	}
}

// Builder returns the builder of the pass, creating it on first use.
func (r *Resolver) Builder() Builder {
	if r.builder == nil {
		if r.newBuilder != nil {
			r.builder = r.newBuilder(r.app, r.host)
		}
		if r.builder == nil {
			r.builder = NopBuilder{}
		}
	}
	return r.builder
}

// Session returns the store session of the pass.
func (r *Resolver) Session() *store.Session {
	return r.session
}

// Resolve loads a module and its dependencies. A module is loaded at most
// once per pass; later calls return the registered descriptor.
func (r *Resolver) Resolve(ref schema.DependencyRef) (*schema.Descriptor, error) {
	name, key := ref.Name, ref.Key()

	if i := slices.Index(r.stack, name); i >= 0 {
		cycle := append(slices.Clone(r.stack[i:]), name)
		return nil, &CycleError{Cycle: cycle}
	}
	if mod, ok := r.app.Modules[name]; ok {
		return mod, nil
	}
	if err := r.ctx.Err(); err != nil {
		return nil, err
	}

	mod, err := r.load(name, key)
	if err != nil {
		return nil, err
	}

	b := r.Builder()
	if err := b.BuildConfig(mod); err != nil {
		return nil, stepError(StepConfig, name, err)
	}

	r.app.Modules[name] = mod
	r.stack = append(r.stack, name)
	defer func() { r.stack = r.stack[:len(r.stack)-1] }()

	deps, err := mod.Config.Dependencies()
	if err != nil {
		return nil, fmt.Errorf("module %q: %w", name, err)
	}
	if _, ok := mod.Config[schema.KeyDependencies]; !ok {
		mod.Config[schema.KeyDependencies] = []any{}
	}

	depNames := make([]string, 0, len(deps))
	for _, dep := range deps {
		dm, err := r.Resolve(dep)
		if err != nil {
			return nil, fmt.Errorf("dependency %q of module %q: %w", dep.Name, name, err)
		}
		if len(dep.Config) > 0 {
			dm.Config = schema.MergeShallow(dm.Config, dep.Config)
			r.app.Config[dep.Name] = schema.MergeShallow(r.app.ModuleConfig(dep.Name), dep.Config)
		}
		depNames = append(depNames, dep.Name)
	}

	mod.Config = schema.MergeShallow(mod.Config, r.app.ModuleConfig(name))
	r.app.Config[name] = mod.Config

	r.app.RegisterFilters(mod.Filters)
	r.app.RegisterValidators(mod.Validators)
	r.app.MergeMessages(r.session.Bundle(key))

	if !slices.Contains(r.app.ModuleNames, name) {
		r.app.ModuleNames = append(r.app.ModuleNames, name)
	}
	r.app.AddBackendModules(mod.Config.BackendDependencies()...)

	if err := buildSteps(b, mod); err != nil {
		return nil, err
	}

	r.log.Debug().
		Str("module", name).
		Str("original", key).
		Strs("dependencies", depNames).
		Msg("module loaded")

	return mod, nil
}

// load fetches and merges the base and overlay descriptors of key.
func (r *Resolver) load(name, key string) (*schema.Descriptor, error) {
	if !r.session.Has(key) {
		return nil, &LoadError{Name: name, Original: key, Err: ErrNotFound}
	}

	base, err := r.session.Base(key)
	if err != nil {
		return nil, &LoadError{Name: name, Original: key, Err: fmt.Errorf("%w: %w", ErrLoadFailed, err)}
	}
	overlay, err := r.session.Overlay(key)
	if err != nil {
		return nil, &LoadError{Name: name, Original: key, Err: fmt.Errorf("%w: %w", ErrLoadFailed, err)}
	}
	if base == nil && overlay == nil {
		return nil, &LoadError{Name: name, Original: key, Err: ErrLoadFailed}
	}

	mod := schema.Merge(base, overlay)
	mod.Name = name
	mod.Original = key
	if mod.Config == nil {
		mod.Config = schema.Config{}
	}
	return mod, nil
}
