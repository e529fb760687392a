// Package config provides configuration loading and hot reload.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/modcompose/core/schema"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Composition CompositionConfig `yaml:"composition"`
	Sources     SourcesConfig     `yaml:"sources"`
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Snapshots   SnapshotsConfig   `yaml:"snapshots"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Watch       WatchConfig       `yaml:"watch"`
}

// CompositionConfig is the input of a composition pass.
type CompositionConfig struct {
	// Modules lists module names or {name, original, config} maps.
	Modules    []any          `yaml:"modules"`
	RootModule string         `yaml:"root_module"`
	I18n       schema.Bundle  `yaml:"i18n"`
	Config     map[string]any `yaml:"config"`
}

// SourcesConfig locates module descriptors on disk.
type SourcesConfig struct {
	CustomerDir string `yaml:"customer_dir"`
	LocalDir    string `yaml:"local_dir"`
	GlobalDir   string `yaml:"global_dir"`
	Prefix      string `yaml:"prefix"`
}

// ServerConfig configures the inspection server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig configures snapshot storage.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// SnapshotsConfig controls recording of composition passes.
type SnapshotsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Backend string `yaml:"backend"` // "sqlite" or "memory"
	Keep    int    `yaml:"keep"`    // Snapshots kept after pruning (0 = keep all)
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures the metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // Enable /metrics endpoint
	Path    string `yaml:"path"`    // Custom path (default: /metrics)
}

// WatchConfig controls recomposition on file changes.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// Load reads configuration from a YAML file.
// Environment variables in the form ${VAR} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes configuration from YAML, then applies environment overrides
// and defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return finish(&cfg)
}

// LoadFromEnv creates configuration purely from environment variables.
// MODCOMPOSE_MODULES holds a comma separated module list.
func LoadFromEnv() (*Config, error) {
	return finish(&Config{})
}

// LoadWithFallback loads the file at path when it exists and falls back to
// environment variables otherwise.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	if HasEnvConfig() {
		return LoadFromEnv()
	}

	return nil, fmt.Errorf("no configuration found: provide a config file or set MODCOMPOSE_MODULES")
}

// HasEnvConfig reports whether the environment names the modules to compose.
func HasEnvConfig() bool {
	return os.Getenv("MODCOMPOSE_MODULES") != ""
}

func finish(cfg *Config) (*Config, error) {
	applyEnvOverrides(cfg)
	setDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies MODCOMPOSE_* environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MODCOMPOSE_MODULES"); v != "" {
		cfg.Composition.Modules = nil
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				cfg.Composition.Modules = append(cfg.Composition.Modules, name)
			}
		}
	}
	if v := os.Getenv("MODCOMPOSE_ROOT_MODULE"); v != "" {
		cfg.Composition.RootModule = v
	}

	if v := os.Getenv("MODCOMPOSE_CUSTOMER_DIR"); v != "" {
		cfg.Sources.CustomerDir = v
	}
	if v := os.Getenv("MODCOMPOSE_LOCAL_DIR"); v != "" {
		cfg.Sources.LocalDir = v
	}
	if v := os.Getenv("MODCOMPOSE_GLOBAL_DIR"); v != "" {
		cfg.Sources.GlobalDir = v
	}
	if v := os.Getenv("MODCOMPOSE_PREFIX"); v != "" {
		cfg.Sources.Prefix = v
	}

	if v := os.Getenv("MODCOMPOSE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("MODCOMPOSE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("MODCOMPOSE_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("MODCOMPOSE_SNAPSHOTS_ENABLED"); v != "" {
		cfg.Snapshots.Enabled = parseBool(v)
	}
	if v := os.Getenv("MODCOMPOSE_SNAPSHOTS_BACKEND"); v != "" {
		cfg.Snapshots.Backend = v
	}

	if v := os.Getenv("MODCOMPOSE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MODCOMPOSE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("MODCOMPOSE_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("MODCOMPOSE_WATCH_ENABLED"); v != "" {
		cfg.Watch.Enabled = parseBool(v)
	}
}

func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Sources.CustomerDir == "" {
		cfg.Sources.CustomerDir = "src/modules"
	}
	if cfg.Sources.LocalDir == "" {
		cfg.Sources.LocalDir = "src/modules"
	}
	if cfg.Sources.GlobalDir == "" {
		cfg.Sources.GlobalDir = "node_modules"
	}
	if cfg.Sources.Prefix == "" {
		cfg.Sources.Prefix = "free-fe-"
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 10 * time.Second
	}

	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "modcompose.db"
	}
	if cfg.Snapshots.Backend == "" {
		cfg.Snapshots.Backend = "sqlite"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 200 * time.Millisecond
	}
}

func validate(cfg *Config) error {
	if len(cfg.Composition.Modules) == 0 {
		return fmt.Errorf("composition.modules must list at least one module")
	}
	if _, err := schema.ParseDependencyRefs(cfg.Composition.Modules); err != nil {
		return fmt.Errorf("composition.%w", err)
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	if cfg.Snapshots.Backend != "sqlite" && cfg.Snapshots.Backend != "memory" {
		return fmt.Errorf("snapshots.backend must be 'sqlite' or 'memory', got %q", cfg.Snapshots.Backend)
	}
	if cfg.Snapshots.Keep < 0 {
		return fmt.Errorf("snapshots.keep must not be negative")
	}
	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/', got %q", cfg.Metrics.Path)
	}

	return nil
}
