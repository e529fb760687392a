package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/artpar/modcompose/config"
	"github.com/artpar/modcompose/core/schema"
	"github.com/google/go-cmp/cmp"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
composition:
  modules:
    - shell
    - {name: admin, original: console, config: {title: Admin}}
  root_module: shell
  i18n:
    en: {hello: Hello}
  config:
    apiBase: /api
    shell: {theme: dark}

sources:
  customer_dir: app/modules
  local_dir: app/modules
  global_dir: vendor/modules
  prefix: "acme-"

server:
  host: "0.0.0.0"
  port: 9090
  read_timeout: 5s

database:
  dsn: ":memory:"

snapshots:
  enabled: true
  keep: 20

metrics:
  enabled: true

watch:
  enabled: true
  debounce: 1s
`

	cfg := writeAndLoad(t, content)

	if len(cfg.Composition.Modules) != 2 {
		t.Fatalf("len(Modules) = %d, want 2", len(cfg.Composition.Modules))
	}
	refs, err := schema.ParseDependencyRefs(cfg.Composition.Modules)
	if err != nil {
		t.Fatalf("ParseDependencyRefs() error = %v", err)
	}
	if refs[1].Name != "admin" || refs[1].Original != "console" || refs[1].Config["title"] != "Admin" {
		t.Errorf("Modules[1] = %+v, want admin=console with title", refs[1])
	}
	if cfg.Composition.RootModule != "shell" {
		t.Errorf("RootModule = %s, want shell", cfg.Composition.RootModule)
	}
	if diff := cmp.Diff(schema.Bundle{"en": {"hello": "Hello"}}, cfg.Composition.I18n); diff != "" {
		t.Errorf("I18n mismatch (-want +got):\n%s", diff)
	}
	if cfg.Composition.Config["apiBase"] != "/api" {
		t.Errorf("Config[apiBase] = %v, want /api", cfg.Composition.Config["apiBase"])
	}

	want := config.SourcesConfig{CustomerDir: "app/modules", LocalDir: "app/modules", GlobalDir: "vendor/modules", Prefix: "acme-"}
	if cfg.Sources != want {
		t.Errorf("Sources = %+v, want %+v", cfg.Sources, want)
	}
	if cfg.Server.Addr() != "0.0.0.0:9090" {
		t.Errorf("Addr() = %s, want 0.0.0.0:9090", cfg.Server.Addr())
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("ReadTimeout = %v, want 5s", cfg.Server.ReadTimeout)
	}
	if !cfg.Snapshots.Enabled || cfg.Snapshots.Keep != 20 {
		t.Errorf("Snapshots = %+v, want enabled keep 20", cfg.Snapshots)
	}
	if cfg.Watch.Debounce != time.Second {
		t.Errorf("Watch.Debounce = %v, want 1s", cfg.Watch.Debounce)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := writeAndLoad(t, "composition:\n  modules: [shell]\n")

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"customer dir", cfg.Sources.CustomerDir, "src/modules"},
		{"local dir", cfg.Sources.LocalDir, "src/modules"},
		{"global dir", cfg.Sources.GlobalDir, "node_modules"},
		{"prefix", cfg.Sources.Prefix, "free-fe-"},
		{"host", cfg.Server.Host, "127.0.0.1"},
		{"port", cfg.Server.Port, 8090},
		{"write timeout", cfg.Server.WriteTimeout, 10 * time.Second},
		{"dsn", cfg.Database.DSN, "modcompose.db"},
		{"log level", cfg.Logging.Level, "info"},
		{"log format", cfg.Logging.Format, "json"},
		{"metrics path", cfg.Metrics.Path, "/metrics"},
		{"snapshots", cfg.Snapshots.Enabled, false},
		{"snapshot backend", cfg.Snapshots.Backend, "sqlite"},
		{"debounce", cfg.Watch.Debounce, 200 * time.Millisecond},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("default %s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_MODULES_DIR", "/srv/modules")

	content := `
composition:
  modules: [shell]
sources:
  customer_dir: "${TEST_MODULES_DIR}"
`

	cfg := writeAndLoad(t, content)

	if cfg.Sources.CustomerDir != "/srv/modules" {
		t.Errorf("CustomerDir = %s, want /srv/modules", cfg.Sources.CustomerDir)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MODCOMPOSE_ROOT_MODULE", "admin")
	t.Setenv("MODCOMPOSE_PREFIX", "x-")
	t.Setenv("MODCOMPOSE_SERVER_PORT", "7000")
	t.Setenv("MODCOMPOSE_LOG_FORMAT", "console")
	t.Setenv("MODCOMPOSE_METRICS_ENABLED", "yes")
	t.Setenv("MODCOMPOSE_SNAPSHOTS_ENABLED", "1")
	t.Setenv("MODCOMPOSE_WATCH_ENABLED", "on")
	t.Setenv("MODCOMPOSE_DATABASE_DSN", "/tmp/x.db")

	cfg := writeAndLoad(t, "composition:\n  modules: [shell]\n  root_module: shell\n")

	if cfg.Composition.RootModule != "admin" {
		t.Errorf("RootModule = %s, want admin", cfg.Composition.RootModule)
	}
	if cfg.Sources.Prefix != "x-" {
		t.Errorf("Prefix = %s, want x-", cfg.Sources.Prefix)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("Port = %d, want 7000", cfg.Server.Port)
	}
	if cfg.Logging.Format != "console" {
		t.Errorf("Logging.Format = %s, want console", cfg.Logging.Format)
	}
	if !cfg.Metrics.Enabled || !cfg.Snapshots.Enabled || !cfg.Watch.Enabled {
		t.Errorf("boolean overrides not applied: metrics=%v snapshots=%v watch=%v",
			cfg.Metrics.Enabled, cfg.Snapshots.Enabled, cfg.Watch.Enabled)
	}
	if cfg.Database.DSN != "/tmp/x.db" {
		t.Errorf("DSN = %s, want /tmp/x.db", cfg.Database.DSN)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MODCOMPOSE_MODULES", "shell, admin,,core")

	if !config.HasEnvConfig() {
		t.Fatal("HasEnvConfig() = false")
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if diff := cmp.Diff([]any{"shell", "admin", "core"}, cfg.Composition.Modules); diff != "" {
		t.Errorf("Modules mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadWithFallback(t *testing.T) {
	t.Setenv("MODCOMPOSE_MODULES", "")

	path := filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := config.LoadWithFallback(path); err == nil {
		t.Fatal("LoadWithFallback() error = nil, want no configuration found")
	}

	t.Setenv("MODCOMPOSE_MODULES", "shell")
	cfg, err := config.LoadWithFallback(path)
	if err != nil {
		t.Fatalf("LoadWithFallback() error = %v", err)
	}
	if len(cfg.Composition.Modules) != 1 {
		t.Errorf("Modules = %v, want [shell]", cfg.Composition.Modules)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "no modules",
			content: "server: {port: 8080}\n",
			wantErr: "at least one module",
		},
		{
			name:    "module without name",
			content: "composition:\n  modules: [{original: console}]\n",
			wantErr: "composition.modules[0]",
		},
		{
			name:    "port out of range",
			content: "composition: {modules: [a]}\nserver: {port: 70000}\n",
			wantErr: "server.port",
		},
		{
			name:    "bad log format",
			content: "composition: {modules: [a]}\nlogging: {format: xml}\n",
			wantErr: "logging.format",
		},
		{
			name:    "unknown snapshot backend",
			content: "composition: {modules: [a]}\nsnapshots: {backend: redis}\n",
			wantErr: "snapshots.backend",
		},
		{
			name:    "negative keep",
			content: "composition: {modules: [a]}\nsnapshots: {keep: -1}\n",
			wantErr: "snapshots.keep",
		},
		{
			name:    "relative metrics path",
			content: "composition: {modules: [a]}\nmetrics: {path: metrics}\n",
			wantErr: "metrics.path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := writeAndLoadErr(t, tt.content)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := writeAndLoadErr(t, "composition: [\n"); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected read error")
	}
}

// Helpers

func writeAndLoad(t *testing.T, content string) *config.Config {
	t.Helper()
	cfg, err := writeAndLoadErr(t, content)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return cfg
}

func writeAndLoadErr(t *testing.T, content string) (*config.Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "modcompose.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return config.Load(path)
}
