// Package config provides configuration loading and hot reload.
package config

import (
	"crypto/sha256"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"reflect"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// field is one comparable section of the configuration.
type field struct {
	name       string
	reloadable bool
	value      func(*Config) any
}

var fields = []field{
	{"composition.modules", true, func(c *Config) any { return c.Composition.Modules }},
	{"composition.root_module", true, func(c *Config) any { return c.Composition.RootModule }},
	{"composition.i18n", true, func(c *Config) any { return c.Composition.I18n }},
	{"composition.config", true, func(c *Config) any { return c.Composition.Config }},
	{"sources", true, func(c *Config) any { return c.Sources }},
	{"snapshots.keep", true, func(c *Config) any { return c.Snapshots.Keep }},
	{"server.host", false, func(c *Config) any { return c.Server.Host }},
	{"server.port", false, func(c *Config) any { return c.Server.Port }},
	{"database.dsn", false, func(c *Config) any { return c.Database.DSN }},
	{"snapshots.backend", false, func(c *Config) any { return c.Snapshots.Backend }},
	{"logging.level", false, func(c *Config) any { return c.Logging.Level }},
	{"logging.format", false, func(c *Config) any { return c.Logging.Format }},
	{"metrics.path", false, func(c *Config) any { return c.Metrics.Path }},
}

// ReloadableFields returns the fields a running server applies on reload.
func ReloadableFields() []string { return fieldNames(true) }

// NonReloadableFields returns the fields that only take effect after a restart.
func NonReloadableFields() []string { return fieldNames(false) }

func fieldNames(reloadable bool) []string {
	var out []string
	for _, f := range fields {
		if f.reloadable == reloadable {
			out = append(out, f.name)
		}
	}
	return out
}

// Diff returns the names of the known fields whose values differ between
// prev and next, in declaration order.
func Diff(prev, next *Config) []string {
	if prev == nil || next == nil {
		return nil
	}
	var changed []string
	for _, f := range fields {
		if !reflect.DeepEqual(f.value(prev), f.value(next)) {
			changed = append(changed, f.name)
		}
	}
	return changed
}

// Holder keeps the active configuration of a file-backed server and swaps
// it when the file changes. Listeners only run when the file content differs
// from the last successful load.
type Holder struct {
	path   string
	logger zerolog.Logger

	mu        sync.RWMutex
	current   *Config
	digest    [sha256.Size]byte
	listeners []func(*Config)

	watcher *fsnotify.Watcher
	done    chan struct{}
	once    sync.Once
}

// NewHolder loads path and returns a holder for it.
func NewHolder(path string, logger zerolog.Logger) (*Holder, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	cfg, digest, err := readConfig(abs)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &Holder{
		path:    abs,
		logger:  logger.With().Str("config", abs).Logger(),
		current: cfg,
		digest:  digest,
		done:    make(chan struct{}),
	}, nil
}

func readConfig(path string) (*Config, [sha256.Size]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, [sha256.Size]byte{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, [sha256.Size]byte{}, err
	}
	return cfg, sha256.Sum256(data), nil
}

// Path returns the absolute path of the configuration file.
func (h *Holder) Path() string { return h.path }

// Get returns the active configuration.
func (h *Holder) Get() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// OnChange registers fn to receive every configuration that replaces the
// active one.
func (h *Holder) OnChange(fn func(*Config)) {
	h.mu.Lock()
	h.listeners = append(h.listeners, fn)
	h.mu.Unlock()
}

// Reload reads the file again. An invalid file leaves the active
// configuration in place and returns the error. Unchanged content is a no-op.
func (h *Holder) Reload() error {
	cfg, digest, err := readConfig(h.path)
	if err != nil {
		h.logger.Error().Err(err).Msg("config reload rejected, keeping active config")
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	if digest == h.digest {
		h.mu.Unlock()
		h.logger.Debug().Msg("config content unchanged")
		return nil
	}
	prev := h.current
	h.current, h.digest = cfg, digest
	listeners := make([]func(*Config), len(h.listeners))
	copy(listeners, h.listeners)
	h.mu.Unlock()

	for _, name := range Diff(prev, cfg) {
		if slices.Contains(NonReloadableFields(), name) {
			h.logger.Warn().Str("field", name).Msg("config field changed, restart required to apply")
			continue
		}
		h.logger.Info().Str("field", name).Msg("config field changed")
	}

	for _, fn := range listeners {
		fn(cfg)
	}
	h.logger.Info().Int("listeners", len(listeners)).Msg("config reloaded")
	return nil
}

// WatchFile reloads the configuration when its file is written. The parent
// directory is watched so that editors replacing the file are seen too.
// Bursts of events are coalesced using watch.debounce.
func (h *Holder) WatchFile() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(h.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch config directory: %w", err)
	}
	h.watcher = w
	go h.watch(w)
	h.logger.Info().Msg("watching config file")
	return nil
}

func (h *Holder) watch(w *fsnotify.Watcher) {
	var (
		pending *time.Timer
		fire    = make(chan struct{}, 1)
	)
	defer func() {
		if pending != nil {
			pending.Stop()
		}
	}()

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != h.path || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(h.debounce(), func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			if err := h.Reload(); err != nil {
				h.logger.Debug().Err(err).Msg("watched config not applied")
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Msg("config watcher error")
		case <-h.done:
			return
		}
	}
}

func (h *Holder) debounce() time.Duration {
	if d := h.Get().Watch.Debounce; d > 0 {
		return d
	}
	return 200 * time.Millisecond
}

// WatchSignals reloads the configuration on SIGHUP until Stop is called.
func (h *Holder) WatchSignals() {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		defer signal.Stop(hup)
		for {
			select {
			case <-hup:
				h.logger.Info().Msg("SIGHUP received")
				_ = h.Reload()
			case <-h.done:
				return
			}
		}
	}()
}

// Stop ends file and signal watching. It is safe to call more than once.
func (h *Holder) Stop() {
	h.once.Do(func() {
		close(h.done)
		if h.watcher != nil {
			h.watcher.Close()
		}
	})
}
