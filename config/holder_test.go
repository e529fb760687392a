package config_test

import (
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/artpar/modcompose/config"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

const shellConfig = `
composition:
  modules:
    - shell
    - name: admin
      original: console
  root_module: shell
`

func newHolder(t *testing.T, content string) (*config.Holder, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "modcompose.yaml")
	rewrite(t, path, content)
	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder() error = %v", err)
	}
	t.Cleanup(h.Stop)
	return h, path
}

func rewrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestNewHolder(t *testing.T) {
	h, _ := newHolder(t, shellConfig)

	if got := h.Get().Composition.RootModule; got != "shell" {
		t.Errorf("RootModule = %q, want shell", got)
	}
	if !filepath.IsAbs(h.Path()) {
		t.Errorf("Path() = %q, want an absolute path", h.Path())
	}

	if _, err := config.NewHolder(filepath.Join(t.TempDir(), "missing.yaml"), zerolog.Nop()); err == nil {
		t.Error("NewHolder() on a missing file succeeded")
	}
}

func TestHolder_Reload(t *testing.T) {
	h, path := newHolder(t, shellConfig)

	var got *config.Config
	h.OnChange(func(cfg *config.Config) { got = cfg })

	rewrite(t, path, `
composition:
  modules: [shell, admin]
  root_module: admin
`)
	if err := h.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if got == nil {
		t.Fatal("listener was not called")
	}
	if got != h.Get() {
		t.Error("listener received a config other than the active one")
	}
	if got.Composition.RootModule != "admin" || len(got.Composition.Modules) != 2 {
		t.Errorf("reloaded composition = %+v", got.Composition)
	}
}

func TestHolder_ReloadUnchanged(t *testing.T) {
	h, _ := newHolder(t, shellConfig)
	before := h.Get()

	calls := 0
	h.OnChange(func(*config.Config) { calls++ })

	for i := 0; i < 3; i++ {
		if err := h.Reload(); err != nil {
			t.Fatalf("Reload() error = %v", err)
		}
	}
	if calls != 0 {
		t.Errorf("listener called %d times for identical content", calls)
	}
	if h.Get() != before {
		t.Error("identical content replaced the active config")
	}
}

func TestHolder_ReloadInvalid(t *testing.T) {
	h, path := newHolder(t, shellConfig)

	calls := 0
	h.OnChange(func(*config.Config) { calls++ })

	rewrite(t, path, "server:\n  port: 8080\n")
	if err := h.Reload(); err == nil {
		t.Fatal("Reload() accepted a config without modules")
	}
	if got := h.Get().Composition.RootModule; got != "shell" {
		t.Errorf("active RootModule = %q, want shell", got)
	}
	if calls != 0 {
		t.Errorf("listener called %d times for a rejected config", calls)
	}
}

func TestHolder_WatchFile(t *testing.T) {
	h, path := newHolder(t, shellConfig+"watch:\n  debounce: 20ms\n")

	changed := make(chan *config.Config, 4)
	h.OnChange(func(cfg *config.Config) {
		changed <- cfg
	})
	if err := h.WatchFile(); err != nil {
		t.Fatalf("WatchFile() error = %v", err)
	}

	rewrite(t, path, "composition:\n  modules: [shell]\n  root_module: watched\nwatch:\n  debounce: 20ms\n")

	select {
	case cfg := <-changed:
		if cfg.Composition.RootModule != "watched" {
			t.Errorf("RootModule = %q, want watched", cfg.Composition.RootModule)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not reload the file")
	}
	if got := h.Get().Composition.RootModule; got != "watched" {
		t.Errorf("active RootModule = %q, want watched", got)
	}
}

func TestHolder_StopIsIdempotent(t *testing.T) {
	h, _ := newHolder(t, shellConfig)
	h.WatchSignals()
	if err := h.WatchFile(); err != nil {
		t.Fatalf("WatchFile() error = %v", err)
	}
	h.Stop()
	h.Stop()
}

func TestHolder_ConcurrentAccess(t *testing.T) {
	h, path := newHolder(t, shellConfig)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if h.Get() == nil {
					t.Error("Get() returned nil")
					return
				}
			}
		}()
	}
	rewrite(t, path, shellConfig+"snapshots:\n  keep: 5\n")
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.Reload()
		}()
	}
	wg.Wait()

	if got := h.Get().Snapshots.Keep; got != 5 {
		t.Errorf("Snapshots.Keep = %d, want 5", got)
	}
}

func TestDiff(t *testing.T) {
	base, err := config.Parse([]byte(shellConfig))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   []string
	}{
		{"identical", func(*config.Config) {}, nil},
		{"root module", func(c *config.Config) { c.Composition.RootModule = "admin" }, []string{"composition.root_module"}},
		{
			"sources and port",
			func(c *config.Config) {
				c.Sources.LocalDir = "elsewhere"
				c.Server.Port = 9999
			},
			[]string{"sources", "server.port"},
		},
		{"untracked field", func(c *config.Config) { c.Server.ReadTimeout = time.Hour }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := config.Parse([]byte(shellConfig))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			tt.mutate(next)
			if diff := cmp.Diff(tt.want, config.Diff(base, next)); diff != "" {
				t.Errorf("Diff() mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if got := config.Diff(nil, base); got != nil {
		t.Errorf("Diff(nil, cfg) = %v, want nil", got)
	}
}

func TestReloadableFields(t *testing.T) {
	reloadable := config.ReloadableFields()
	fixed := config.NonReloadableFields()

	for _, f := range []string{"composition.modules", "sources", "snapshots.keep"} {
		if !slices.Contains(reloadable, f) {
			t.Errorf("%s missing from ReloadableFields()", f)
		}
	}
	for _, f := range []string{"server.host", "server.port", "database.dsn", "snapshots.backend"} {
		if !slices.Contains(fixed, f) {
			t.Errorf("%s missing from NonReloadableFields()", f)
		}
	}
	for _, f := range reloadable {
		if slices.Contains(fixed, f) {
			t.Errorf("%s is listed as both reloadable and fixed", f)
		}
	}
}
