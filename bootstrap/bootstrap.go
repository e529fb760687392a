// Package bootstrap wires all dependencies and starts the application.
// Configuration comes from a YAML file, with MODCOMPOSE_* environment
// variables as overrides or as the only source when no file exists.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"reflect"
	"sync"
	"syscall"
	"time"

	"github.com/artpar/modcompose/adapters/clock"
	"github.com/artpar/modcompose/adapters/fsloader"
	apihttp "github.com/artpar/modcompose/adapters/http"
	"github.com/artpar/modcompose/adapters/memory"
	"github.com/artpar/modcompose/adapters/metrics"
	"github.com/artpar/modcompose/adapters/sqlite"
	"github.com/artpar/modcompose/config"
	"github.com/artpar/modcompose/core/events"
	"github.com/artpar/modcompose/core/schema"
	"github.com/artpar/modcompose/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Options configures application initialization.
type Options struct {
	// ConfigPath is the configuration file. When it does not exist the
	// configuration is read from the environment.
	ConfigPath string

	// Config is used as is when set; ConfigPath is then ignored.
	Config *config.Config

	// Host receives component registrations. Defaults to a StaticHost.
	Host schema.Host

	// Watch forces descriptor watching regardless of watch.enabled.
	Watch bool

	// LogOutput receives log lines. Defaults to stderr.
	LogOutput io.Writer
}

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Holder
	DB         *sqlite.DB
	Snapshots  ports.SnapshotStore
	Metrics    *metrics.Collector
	Registry   *prometheus.Registry
	Events     *events.Bus
	Composer   *Composer
	Results    *Holder
	HTTPServer *http.Server

	watch     bool
	watchMu   sync.Mutex
	watcher   *fsloader.Watcher
	lastCfg   *config.Config
	closeOnce sync.Once
}

// New creates and initializes the application.
func New(opts Options) (*App, error) {
	cfg, fromFile, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	logger := NewLogger(cfg.Logging.Level, cfg.Logging.Format, opts.LogOutput)

	var holder *config.Holder
	if fromFile {
		if holder, err = config.NewHolder(opts.ConfigPath, logger); err != nil {
			return nil, err
		}
		cfg = holder.Get()
	}

	logger.Info().Int("modules", len(cfg.Composition.Modules)).Msg("initializing modcompose")

	a := &App{
		Logger:  logger,
		Config:  holder,
		Results: &Holder{},
		watch:   opts.Watch || cfg.Watch.Enabled,
		lastCfg: cfg,
	}

	if cfg.Snapshots.Enabled {
		switch cfg.Snapshots.Backend {
		case "memory":
			a.Snapshots = memory.NewSnapshotStore()
			logger.Info().Msg("recording snapshots in memory")
		default:
			if err := a.initDatabase(cfg.Database.DSN); err != nil {
				return nil, fmt.Errorf("init database: %w", err)
			}
		}
	}

	if cfg.Metrics.Enabled {
		a.Registry = prometheus.NewRegistry()
		a.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		a.Metrics = metrics.NewWithRegistry(a.Registry)
		logger.Info().Str("path", cfg.Metrics.Path).Msg("prometheus metrics enabled")
	}

	a.Events = events.NewBus(logger)
	if a.Metrics != nil {
		a.Events.Observe(a.Metrics)
	}
	a.Events.Subscribe(events.SourcesChanged, a.recompose)
	a.Events.Subscribe(events.ConfigChanged, a.recompose)

	copts := ComposerOptions{
		Logger:   logger,
		Host:     opts.Host,
		Observer: a.Events,
		Reloads:  a.Events,
		Results:  a.Results,
		Clock:    clock.Real{},
	}
	if a.Snapshots != nil {
		copts.Snapshots = a.Snapshots
	}
	a.Composer = NewComposer(cfg, copts)

	a.initHTTPServer(cfg)
	return a, nil
}

// loadConfig returns the configuration and whether it came from a file.
func loadConfig(opts Options) (*config.Config, bool, error) {
	if opts.Config != nil {
		return opts.Config, false, nil
	}
	if opts.ConfigPath != "" {
		if _, err := os.Stat(opts.ConfigPath); err == nil {
			cfg, err := config.Load(opts.ConfigPath)
			return cfg, err == nil, err
		}
	}
	cfg, err := config.LoadWithFallback(opts.ConfigPath)
	return cfg, false, err
}

func (a *App) initDatabase(dsn string) error {
	db, err := sqlite.Open(dsn)
	if err != nil {
		return err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return fmt.Errorf("migrate: %w", err)
	}
	a.DB = db
	a.Snapshots = sqlite.NewSnapshotStore(db)
	a.Logger.Info().Str("dsn", dsn).Msg("database initialized")
	return nil
}

func (a *App) initHTTPServer(cfg *config.Config) {
	var snapshots ports.SnapshotStore
	if a.Snapshots != nil {
		snapshots = a.Snapshots
	}
	handler := apihttp.NewInspectHandler(a.Results, a.Composer, snapshots, a.Logger)

	rcfg := apihttp.RouterConfig{MetricsPath: cfg.Metrics.Path}
	if a.Metrics != nil {
		rcfg.Metrics = a.Metrics
		rcfg.MetricsHandler = promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})
	}

	a.HTTPServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      apihttp.NewRouter(handler, a.Logger, rcfg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

// Start runs the first composition pass and starts the watchers. A failed
// first pass is logged; the inspection API reports it until a pass succeeds.
func (a *App) Start(ctx context.Context) error {
	if _, err := a.Composer.Compose(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("initial composition failed")
	}

	if a.Config != nil {
		a.Config.OnChange(a.configChanged)
		if err := a.Config.WatchFile(); err != nil {
			a.Logger.Warn().Err(err).Msg("config file watching disabled")
		}
		a.Config.WatchSignals()
	}

	if a.watch {
		return a.startWatcher(a.Composer.Config())
	}
	return nil
}

func (a *App) startWatcher(cfg *config.Config) error {
	a.watchMu.Lock()
	defer a.watchMu.Unlock()

	if a.watcher != nil {
		a.watcher.Stop()
		a.watcher = nil
	}
	w := fsloader.NewWatcher(Sources(cfg), cfg.Watch.Debounce, a.Logger)
	err := w.Start(func() {
		a.Events.Publish(context.Background(), events.Event{Name: events.SourcesChanged})
	})
	if err != nil {
		return fmt.Errorf("watch modules: %w", err)
	}
	a.watcher = w
	return nil
}

func (a *App) recompose(ctx context.Context, e events.Event) error {
	a.Logger.Info().Str("trigger", e.Name).Msg("recomposing")
	if _, err := a.Composer.Recompose(ctx); err != nil {
		return fmt.Errorf("recompose: %w", err)
	}
	return nil
}

func (a *App) configChanged(cfg *config.Config) {
	a.Composer.SetConfig(cfg)

	a.watchMu.Lock()
	prev := a.lastCfg
	a.lastCfg = cfg
	restart := a.watcher != nil && !reflect.DeepEqual(prev.Sources, cfg.Sources)
	a.watchMu.Unlock()

	if restart {
		if err := a.startWatcher(cfg); err != nil {
			a.Logger.Error().Err(err).Msg("restarting module watcher failed")
		}
	}
	a.Events.Publish(context.Background(), events.Event{Name: events.ConfigChanged})
}

// Run starts the HTTP server and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	if err := a.Start(context.Background()); err != nil {
		return err
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt or error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		a.Shutdown()
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application. It is safe to call more than
// once.
func (a *App) Shutdown() error {
	var shutdownErr error
	a.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		a.watchMu.Lock()
		if a.watcher != nil {
			a.watcher.Stop()
			a.watcher = nil
		}
		a.watchMu.Unlock()

		if a.Config != nil {
			a.Config.Stop()
		}

		if a.HTTPServer != nil {
			if err := a.HTTPServer.Shutdown(ctx); err != nil {
				a.Logger.Error().Err(err).Msg("http server shutdown error")
				shutdownErr = err
			}
		}

		if a.DB != nil {
			if err := a.DB.Close(); err != nil {
				a.Logger.Error().Err(err).Msg("database close error")
				shutdownErr = err
			}
		}

		a.Logger.Info().Msg("shutdown complete")
	})
	return shutdownErr
}
