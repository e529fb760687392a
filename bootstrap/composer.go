package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/artpar/modcompose/adapters/fsloader"
	"github.com/artpar/modcompose/adapters/idgen"
	"github.com/artpar/modcompose/config"
	"github.com/artpar/modcompose/core/compose"
	"github.com/artpar/modcompose/core/formatter"
	"github.com/artpar/modcompose/core/schema"
	"github.com/artpar/modcompose/core/store"
	"github.com/artpar/modcompose/ports"
	"github.com/rs/zerolog"
)

// ComposerOptions holds the optional collaborators of a Composer.
type ComposerOptions struct {
	Logger    zerolog.Logger
	Host      schema.Host
	Observer  ports.CompositionObserver
	Snapshots ports.SnapshotStore
	Results   *Holder
	IDs       ports.IDGenerator
	Clock     ports.Clock
	Builder   compose.BuilderFactory

	// Reloads is notified of recompositions triggered by changes.
	Reloads ReloadObserver
}

// ReloadObserver counts recompositions.
type ReloadObserver interface {
	ReloadSucceeded()
	ReloadFailed()
}

// Composer runs composition passes over the descriptors named by a
// configuration. Passes are serialized.
type Composer struct {
	mu   sync.Mutex
	cfg  *config.Config
	opts ComposerOptions
}

// NewComposer creates a composer. A StaticHost, a result Holder and UUID
// pass IDs are used when the options leave them unset.
func NewComposer(cfg *config.Config, opts ComposerOptions) *Composer {
	if opts.Host == nil {
		opts.Host = NewStaticHost()
	}
	if opts.Results == nil {
		opts.Results = &Holder{}
	}
	if opts.IDs == nil {
		opts.IDs = idgen.UUID{}
	}
	return &Composer{cfg: cfg, opts: opts}
}

// Config returns the configuration used by the next pass.
func (c *Composer) Config() *config.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// SetConfig replaces the configuration used by later passes.
func (c *Composer) SetConfig(cfg *config.Config) {
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
}

// Results returns the holder passes are published to.
func (c *Composer) Results() *Holder {
	return c.opts.Results
}

// Sources returns the descriptor roots of a configuration.
func Sources(cfg *config.Config) fsloader.Sources {
	return fsloader.Sources{
		CustomerDir: cfg.Sources.CustomerDir,
		LocalDir:    cfg.Sources.LocalDir,
		GlobalDir:   cfg.Sources.GlobalDir,
		Prefix:      cfg.Sources.Prefix,
	}
}

// Compose loads the descriptors, runs a pass, records a snapshot when a
// snapshot store is set and publishes the result.
func (c *Composer) Compose(ctx context.Context) (*compose.Result, error) {
	return c.run(ctx, true)
}

// DryRun loads the descriptors and runs a pass without recording or
// publishing it.
func (c *Composer) DryRun(ctx context.Context) (*compose.Result, error) {
	return c.run(ctx, false)
}

// Recompose runs Compose and counts it as a reload.
func (c *Composer) Recompose(ctx context.Context) (*compose.Result, error) {
	res, err := c.Compose(ctx)
	if c.opts.Reloads != nil {
		if err != nil {
			c.opts.Reloads.ReloadFailed()
		} else {
			c.opts.Reloads.ReloadSucceeded()
		}
	}
	return res, err
}

// Load builds the descriptor store from the configured sources.
func (c *Composer) Load() (*store.Store, error) {
	return fsloader.Load(Sources(c.Config()))
}

func (c *Composer) run(ctx context.Context, record bool) (*compose.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cfg := c.cfg
	passID := c.opts.IDs.New()
	started := c.now()

	st, err := fsloader.Load(Sources(cfg))
	if err != nil {
		stats := ports.PassStats{PassID: passID, RootModule: cfg.Composition.RootModule, StartedAt: started}
		if c.opts.Observer != nil {
			c.opts.Observer.PassFailed(stats, err)
		}
		c.opts.Logger.Error().Err(err).Str("pass_id", passID).Msg("loading module descriptors failed")
		if record {
			c.record(ctx, failedSnapshot(stats, err))
		}
		return nil, err
	}

	var rec *failureRecorder
	observer := c.opts.Observer
	if record {
		rec = &failureRecorder{next: observer}
		observer = rec
	}

	res, err := compose.Compose(ctx, compose.Options{
		Modules:    cfg.Composition.Modules,
		RootModule: cfg.Composition.RootModule,
		I18n:       cfg.Composition.I18n,
		Config:     cfg.Composition.Config,
		Builder:    c.opts.Builder,
		Store:      st,
		Host:       c.opts.Host,
		Logger:     c.opts.Logger,
		Observer:   observer,
		IDs:        idgen.Fixed(passID),
		Clock:      c.opts.Clock,
	})
	if err != nil {
		if rec != nil && rec.failed {
			c.record(ctx, failedSnapshot(rec.stats, err))
		}
		return nil, err
	}

	if !record {
		return res, nil
	}

	snap, err := SnapshotOf(res)
	if err != nil {
		c.opts.Logger.Error().Err(err).Msg("encode snapshot")
	} else {
		c.record(ctx, snap)
	}
	c.opts.Results.Publish(res)
	return res, nil
}

func (c *Composer) now() time.Time {
	if c.opts.Clock != nil {
		return c.opts.Clock.Now()
	}
	return time.Now()
}

// record saves a snapshot and prunes old ones. Storage errors are logged.
func (c *Composer) record(ctx context.Context, snap ports.Snapshot) {
	if c.opts.Snapshots == nil {
		return
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = c.now()
	}
	if _, err := c.opts.Snapshots.Save(ctx, snap); err != nil {
		c.opts.Logger.Error().Err(err).Str("pass_id", snap.PassID).Msg("save snapshot")
		return
	}
	if keep := c.cfg.Snapshots.Keep; keep > 0 {
		if n, err := c.opts.Snapshots.Prune(ctx, keep); err != nil {
			c.opts.Logger.Error().Err(err).Msg("prune snapshots")
		} else if n > 0 {
			c.opts.Logger.Debug().Int("deleted", n).Msg("pruned snapshots")
		}
	}
}

// SnapshotOf summarizes a result for storage.
func SnapshotOf(res *compose.Result) (ports.Snapshot, error) {
	routes, err := json.Marshal(formatter.Routes(res.Routes))
	if err != nil {
		return ports.Snapshot{}, fmt.Errorf("encode routes: %w", err)
	}
	stats := res.Stats()
	return ports.Snapshot{
		PassID:         stats.PassID,
		CreatedAt:      stats.StartedAt,
		Duration:       stats.Duration,
		RootModule:     stats.RootModule,
		Modules:        res.App.Loaded(),
		BackendModules: append([]string{}, res.App.BackendModules...),
		Locales:        res.App.Locales(),
		Routes:         routes,
	}, nil
}

func failedSnapshot(stats ports.PassStats, err error) ports.Snapshot {
	return ports.Snapshot{
		PassID:     stats.PassID,
		CreatedAt:  stats.StartedAt,
		Duration:   stats.Duration,
		RootModule: stats.RootModule,
		Error:      err.Error(),
	}
}

// failureRecorder keeps the stats of a failed pass and forwards every event.
type failureRecorder struct {
	next   ports.CompositionObserver
	failed bool
	stats  ports.PassStats
}

func (r *failureRecorder) PassCompleted(stats ports.PassStats) {
	if r.next != nil {
		r.next.PassCompleted(stats)
	}
}

func (r *failureRecorder) PassFailed(stats ports.PassStats, err error) {
	r.failed = true
	r.stats = stats
	if r.next != nil {
		r.next.PassFailed(stats, err)
	}
}
