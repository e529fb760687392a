// Package compose resolves a list of modules into a linked application.
//
// A pass loads every declared module and its dependencies from a
// store.Store, merging base and overlay descriptors and configuration,
// then evaluates each module's routers, resolves route references across
// modules and applies view overrides. All failures abort the pass.
//
//	res, err := compose.Compose(ctx, compose.Options{
//		Modules: []any{"shell", map[string]any{"name": "admin", "original": "console"}},
//		Store:   st,
//		Host:    host,
//	})
package compose

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/artpar/modcompose/core/routing"
	"github.com/artpar/modcompose/core/schema"
	"github.com/artpar/modcompose/core/store"
	"github.com/artpar/modcompose/ports"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Options configures a composition pass.
type Options struct {
	// Modules lists the modules to compose: names, dependency maps or
	// schema.DependencyRef values.
	Modules []any

	// RootModule restricts the result routes to one module.
	RootModule string

	// I18n is merged over the module bundles.
	I18n schema.Bundle

	// Builder creates the build pipeline. NopBuilder is used when nil.
	Builder BuilderFactory

	// Config holds global keys and per-module overrides keyed by module name.
	Config map[string]any

	Store *store.Store
	Host  schema.Host

	Logger   zerolog.Logger
	Observer ports.CompositionObserver
	IDs      ports.IDGenerator
	Clock    ports.Clock
}

// Result is the outcome of a pass.
type Result struct {
	App    *App
	Routes []*schema.RouteNode

	StartedAt time.Time
	Duration  time.Duration
}

// Stats summarizes the result.
func (r *Result) Stats() ports.PassStats {
	return ports.PassStats{
		PassID:     r.App.PassID,
		RootModule: r.App.RootModule,
		StartedAt:  r.StartedAt,
		Duration:   r.Duration,
		Modules:    len(r.App.ModuleNames),
		Routes:     schema.CountNodes(r.Routes),
		Locales:    len(r.App.I18nMessages),
	}
}

// Compose runs one composition pass.
func Compose(ctx context.Context, opts Options) (*Result, error) {
	if opts.Host == nil {
		return nil, fmt.Errorf("%w: host is not initialized", ErrPrecondition)
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("%w: descriptor store is not initialized", ErrPrecondition)
	}

	now := time.Now
	if opts.Clock != nil {
		now = opts.Clock.Now
	}
	passID := uuid.NewString()
	if opts.IDs != nil {
		passID = opts.IDs.New()
	}

	started := now()
	app := newApp(passID, opts.RootModule)
	log := opts.Logger.With().Str("pass_id", passID).Logger()

	res, err := compose(ctx, app, opts, log)

	stats := ports.PassStats{
		PassID:     passID,
		RootModule: opts.RootModule,
		StartedAt:  started,
		Duration:   now().Sub(started),
		Modules:    len(app.ModuleNames),
		Routes:     schema.CountNodes(app.Routes),
		Locales:    len(app.I18nMessages),
	}
	if err != nil {
		log.Error().Err(err).Int("modules", stats.Modules).Msg("composition failed")
		if opts.Observer != nil {
			opts.Observer.PassFailed(stats, err)
		}
		return nil, err
	}

	res.StartedAt = started
	res.Duration = stats.Duration
	log.Info().
		Int("modules", stats.Modules).
		Int("routes", stats.Routes).
		Dur("duration", stats.Duration).
		Msg("composition completed")
	if opts.Observer != nil {
		opts.Observer.PassCompleted(stats)
	}
	return res, nil
}

func compose(ctx context.Context, app *App, opts Options, log zerolog.Logger) (*Result, error) {
	refs, err := schema.ParseDependencyRefs(opts.Modules)
	if err != nil {
		return nil, err
	}

	app.Config["modules"] = opts.Modules
	if opts.RootModule != "" {
		app.Config["rootModule"] = opts.RootModule
	}
	for k, v := range opts.Config {
		if cfg, ok := schema.AsConfig(v); ok {
			v = cfg.Clone()
		}
		app.Config[k] = v
	}

	r := newResolver(ctx, app, opts.Store, opts.Host, opts.Builder, log)
	for _, ref := range refs {
		if _, err := r.Resolve(ref); err != nil {
			return nil, err
		}
	}

	if err := evaluateRouters(ctx, r, app, opts.Host); err != nil {
		return nil, err
	}
	if err := linkRoutes(ctx, app, opts.Host); err != nil {
		return nil, err
	}
	if err := applyViews(ctx, app, log); err != nil {
		return nil, err
	}

	app.MergeMessages(opts.I18n)
	app.Routes = collectRoutes(app, refs, log)

	return &Result{App: app, Routes: app.Routes}, nil
}

// evaluateRouters re-merges the final config of every module, turns router
// builders into concrete trees and runs the routes hook.
func evaluateRouters(ctx context.Context, r *Resolver, app *App, host schema.Host) error {
	b := r.Builder()
	for _, name := range app.ModuleNames {
		if err := ctx.Err(); err != nil {
			return err
		}
		mod := app.Modules[name]
		mod.Config = schema.MergeShallow(mod.Config, app.ModuleConfig(name))
		app.Config[name] = mod.Config

		switch {
		case mod.Routers.Builder != nil:
			nodes, err := mod.Routers.Builder(app, mod, host)
			if err != nil {
				return fmt.Errorf("evaluate routers of module %q: %w", name, err)
			}
			mod.Routers = schema.NodeRouters(nodes...)
		case !mod.Routers.IsSet():
			mod.Routers = schema.NodeRouters()
		}

		if err := b.BuildRoutes(mod, mod.Routers.Nodes); err != nil {
			return stepError(StepRoutes, name, err)
		}
	}
	return nil
}

// linkRoutes resolves route references and installs components and mocks.
// References address modules by their registered name only.
func linkRoutes(ctx context.Context, app *App, host schema.Host) error {
	refs := routing.NewRefResolver(routing.ModuleTable(app.Modules))
	for _, name := range app.ModuleNames {
		if err := ctx.Err(); err != nil {
			return err
		}
		mod := app.Modules[name]
		if err := refs.ResolveAll(name, mod.Routers.Nodes); err != nil {
			return err
		}

		components := make([]string, 0, len(mod.Components))
		for c := range mod.Components {
			components = append(components, c)
		}
		sort.Strings(components)
		for _, c := range components {
			host.RegisterComponent(c, mod.Components[c])
		}

		app.RegisterFieldComponents(mod.FieldComponents)

		if mod.Mock != nil {
			if server := host.MockServer(); server != nil {
				mod.Mock(server)
			}
		}
	}
	return nil
}

// applyViews applies the view overrides declared by every module.
func applyViews(ctx context.Context, app *App, log zerolog.Logger) error {
	for _, name := range app.ModuleNames {
		if err := ctx.Err(); err != nil {
			return err
		}
		views, err := app.Modules[name].Config.Views()
		if err != nil {
			return fmt.Errorf("module %q: %w", name, err)
		}
		for _, view := range views {
			if !view.Valid() {
				continue
			}
			target, ok := app.Modules[view.Module]
			if !ok {
				log.Warn().
					Str("module", name).
					Str("target", view.Module).
					Str("view", view.View).
					Msg("view targets a module that is not loaded, skipping")
				continue
			}
			n, err := routing.ApplyView(target.Routers.Nodes, view, "")
			if err != nil {
				return fmt.Errorf("module %q: %w", name, err)
			}
			log.Debug().
				Str("module", name).
				Str("target", view.Module).
				Str("view", view.View).
				Int("matched", n).
				Msg("view applied")
		}
	}
	return nil
}

// collectRoutes returns the routes of the declared modules in declaration
// order, or only those of the root module when one is set. A module declared
// more than once contributes its routes once per declaration.
func collectRoutes(app *App, refs []schema.DependencyRef, log zerolog.Logger) []*schema.RouteNode {
	routes := []*schema.RouteNode{}
	if app.RootModule != "" {
		mod, ok := app.Modules[app.RootModule]
		if !ok {
			log.Warn().Str("root_module", app.RootModule).Msg("root module is not loaded, no routes collected")
			return routes
		}
		return append(routes, mod.Routers.Nodes...)
	}

	for _, ref := range refs {
		routes = append(routes, app.Modules[ref.Name].Routers.Nodes...)
	}
	return routes
}
