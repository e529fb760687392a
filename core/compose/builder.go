package compose

import (
	"fmt"

	"github.com/artpar/modcompose/core/schema"
)

// Build steps, in the order the resolver runs them.
const (
	StepConfig     = "config"
	StepComponents = "components"
	StepPages      = "pages"
	StepRoutes     = "routes"
	StepActions    = "actions"
	StepValidators = "validators"
	StepStore      = "store"
	StepForConfig  = "for-config"
	StepI18n       = "i18n"
)

// Builder materializes a resolved module in the host runtime. The composer
// calls every method once per module, in a fixed order; what they do is up
// to the host.
type Builder interface {
	BuildConfig(mod *schema.Descriptor) error
	BuildComponents(mod *schema.Descriptor) error
	BuildPages(mod *schema.Descriptor) error
	BuildRoutes(mod *schema.Descriptor, nodes []*schema.RouteNode) error
	BuildActions(mod *schema.Descriptor) error
	BuildValidators(mod *schema.Descriptor) error
	BuildStore(mod *schema.Descriptor) error
	BuildForConfig(mod *schema.Descriptor) error
	BuildI18n(mod *schema.Descriptor) error
}

// BuilderFactory creates the builder of a pass. It is called once, when the
// first module loads.
type BuilderFactory func(app *App, host schema.Host) Builder

// NopBuilder does nothing.
type NopBuilder struct{}

func (NopBuilder) BuildConfig(*schema.Descriptor) error                     { return nil }
func (NopBuilder) BuildComponents(*schema.Descriptor) error                 { return nil }
func (NopBuilder) BuildPages(*schema.Descriptor) error                      { return nil }
func (NopBuilder) BuildRoutes(*schema.Descriptor, []*schema.RouteNode) error { return nil }
func (NopBuilder) BuildActions(*schema.Descriptor) error                    { return nil }
func (NopBuilder) BuildValidators(*schema.Descriptor) error                 { return nil }
func (NopBuilder) BuildStore(*schema.Descriptor) error                      { return nil }
func (NopBuilder) BuildForConfig(*schema.Descriptor) error                  { return nil }
func (NopBuilder) BuildI18n(*schema.Descriptor) error                       { return nil }

// Hooks adapts optional functions to a Builder. Nil hooks are skipped.
type Hooks struct {
	Config     func(mod *schema.Descriptor) error
	Components func(mod *schema.Descriptor) error
	Pages      func(mod *schema.Descriptor) error
	Routes     func(mod *schema.Descriptor, nodes []*schema.RouteNode) error
	Actions    func(mod *schema.Descriptor) error
	Validators func(mod *schema.Descriptor) error
	Store      func(mod *schema.Descriptor) error
	ForConfig  func(mod *schema.Descriptor) error
	I18n       func(mod *schema.Descriptor) error
}

func call(fn func(*schema.Descriptor) error, mod *schema.Descriptor) error {
	if fn == nil {
		return nil
	}
	return fn(mod)
}

func (h Hooks) BuildConfig(mod *schema.Descriptor) error     { return call(h.Config, mod) }
func (h Hooks) BuildComponents(mod *schema.Descriptor) error { return call(h.Components, mod) }
func (h Hooks) BuildPages(mod *schema.Descriptor) error      { return call(h.Pages, mod) }
func (h Hooks) BuildActions(mod *schema.Descriptor) error    { return call(h.Actions, mod) }
func (h Hooks) BuildValidators(mod *schema.Descriptor) error { return call(h.Validators, mod) }
func (h Hooks) BuildStore(mod *schema.Descriptor) error      { return call(h.Store, mod) }
func (h Hooks) BuildForConfig(mod *schema.Descriptor) error  { return call(h.ForConfig, mod) }
func (h Hooks) BuildI18n(mod *schema.Descriptor) error       { return call(h.I18n, mod) }

func (h Hooks) BuildRoutes(mod *schema.Descriptor, nodes []*schema.RouteNode) error {
	if h.Routes == nil {
		return nil
	}
	return h.Routes(mod, nodes)
}

// Chain runs several builders in order, stopping at the first error.
type Chain []Builder

func (c Chain) each(fn func(Builder) error) error {
	for _, b := range c {
		if err := fn(b); err != nil {
			return err
		}
	}
	return nil
}

func (c Chain) BuildConfig(mod *schema.Descriptor) error {
	return c.each(func(b Builder) error { return b.BuildConfig(mod) })
}

func (c Chain) BuildComponents(mod *schema.Descriptor) error {
	return c.each(func(b Builder) error { return b.BuildComponents(mod) })
}

func (c Chain) BuildPages(mod *schema.Descriptor) error {
	return c.each(func(b Builder) error { return b.BuildPages(mod) })
}

func (c Chain) BuildRoutes(mod *schema.Descriptor, nodes []*schema.RouteNode) error {
	return c.each(func(b Builder) error { return b.BuildRoutes(mod, nodes) })
}

func (c Chain) BuildActions(mod *schema.Descriptor) error {
	return c.each(func(b Builder) error { return b.BuildActions(mod) })
}

func (c Chain) BuildValidators(mod *schema.Descriptor) error {
	return c.each(func(b Builder) error { return b.BuildValidators(mod) })
}

func (c Chain) BuildStore(mod *schema.Descriptor) error {
	return c.each(func(b Builder) error { return b.BuildStore(mod) })
}

func (c Chain) BuildForConfig(mod *schema.Descriptor) error {
	return c.each(func(b Builder) error { return b.BuildForConfig(mod) })
}

func (c Chain) BuildI18n(mod *schema.Descriptor) error {
	return c.each(func(b Builder) error { return b.BuildI18n(mod) })
}

var (
	_ Builder = NopBuilder{}
	_ Builder = Hooks{}
	_ Builder = Chain{}
)

// buildSteps runs the hooks that follow dependency resolution.
func buildSteps(b Builder, mod *schema.Descriptor) error {
	steps := []struct {
		name string
		fn   func(*schema.Descriptor) error
	}{
		{StepComponents, b.BuildComponents},
		{StepPages, b.BuildPages},
		{StepActions, b.BuildActions},
		{StepValidators, b.BuildValidators},
		{StepStore, b.BuildStore},
		{StepForConfig, b.BuildForConfig},
		{StepI18n, b.BuildI18n},
	}
	for _, s := range steps {
		if err := s.fn(mod); err != nil {
			return stepError(s.name, mod.Name, err)
		}
	}
	return nil
}

func stepError(step, module string, err error) error {
	return fmt.Errorf("build %s for module %q: %w", step, module, err)
}
