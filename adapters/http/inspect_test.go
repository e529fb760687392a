package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	apihttp "github.com/artpar/modcompose/adapters/http"
	"github.com/artpar/modcompose/adapters/metrics"
	"github.com/artpar/modcompose/adapters/sqlite"
	"github.com/artpar/modcompose/core/compose"
	"github.com/artpar/modcompose/core/schema"
	"github.com/artpar/modcompose/core/store"
	"github.com/artpar/modcompose/ports"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type nopHost struct{}

func (nopHost) RegisterComponent(string, any) {}
func (nopHost) MockServer() any               { return nil }
func (nopHost) Store() any                    { return nil }

// results is a Results and Recomposer backed by a store.
type results struct {
	mu      sync.Mutex
	current *compose.Result
	store   *store.Store
	modules []any
}

func (r *results) Current() *compose.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *results) Recompose(ctx context.Context) (*compose.Result, error) {
	res, err := compose.Compose(ctx, compose.Options{
		Modules: r.modules,
		Store:   r.store,
		Host:    nopHost{},
	})
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.current = res
	r.mu.Unlock()
	return res, nil
}

func testStore() *store.Store {
	return store.New().
		AddModule(store.TierLocal, "core", schema.Static(&schema.Descriptor{
			Config: schema.Config{
				"apiBase":                     "/api",
				schema.KeyBackendDependencies: []any{"auth-api"},
			},
			Routers: schema.NodeRouters(&schema.RouteNode{Path: "login", Name: "login", Component: "Login"}),
		})).
		AddBundle(store.TierLocal, "core", schema.Bundle{"en": {"hello": "Hello"}, "de": {"hello": "Hallo"}}).
		AddModule(store.TierCustomer, "shell", schema.Static(&schema.Descriptor{
			Config: schema.Config{schema.KeyDependencies: []any{"core"}},
			Routers: schema.NodeRouters(&schema.RouteNode{
				Path:      "app",
				Component: "Layout",
				Children:  []*schema.RouteNode{schema.RefNode("core>login")},
			}),
		}))
}

type fixture struct {
	server  *httptest.Server
	results *results
	snaps   *sqlite.SnapshotStore
	reg     *prometheus.Registry
}

func setup(t *testing.T, composeFirst bool) *fixture {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "snapshots.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	f := &fixture{
		results: &results{store: testStore(), modules: []any{"shell"}},
		snaps:   sqlite.NewSnapshotStore(db),
		reg:     prometheus.NewRegistry(),
	}
	if composeFirst {
		if _, err := f.results.Recompose(context.Background()); err != nil {
			t.Fatalf("Recompose() error = %v", err)
		}
	}

	h := apihttp.NewInspectHandler(f.results, f.results, f.snaps, zerolog.Nop())
	router := apihttp.NewRouter(h, zerolog.Nop(), apihttp.RouterConfig{
		Metrics:        metrics.NewWithRegistry(f.reg),
		MetricsHandler: promhttp.HandlerFor(f.reg, promhttp.HandlerOpts{}),
	})
	f.server = httptest.NewServer(router)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+path, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, body, err)
		}
	}
	return resp.StatusCode
}

func TestInspect_BeforeFirstPass(t *testing.T) {
	f := setup(t, false)

	var health apihttp.HealthResponse
	if status := f.do(t, "GET", "/healthz", &health); status != http.StatusServiceUnavailable {
		t.Errorf("healthz status = %d, want 503", status)
	}
	if health.Status != "starting" {
		t.Errorf("healthz status field = %q, want starting", health.Status)
	}

	for _, path := range []string{"/modules", "/routes", "/i18n", "/backend-modules"} {
		var body apihttp.ErrorResponseBody
		if status := f.do(t, "GET", path, &body); status != http.StatusServiceUnavailable {
			t.Errorf("GET %s status = %d, want 503", path, status)
		}
		if body.Error.Code != "not_composed" {
			t.Errorf("GET %s error code = %q, want not_composed", path, body.Error.Code)
		}
	}
}

func TestInspect_Modules(t *testing.T) {
	f := setup(t, true)

	var health apihttp.HealthResponse
	if status := f.do(t, "GET", "/healthz", &health); status != http.StatusOK || health.PassID == "" {
		t.Errorf("healthz = %d %+v, want 200 with a pass id", status, health)
	}

	var list struct {
		Count   int `json:"count"`
		Modules []struct {
			Name         string   `json:"name"`
			Dependencies []string `json:"dependencies"`
		} `json:"modules"`
	}
	if status := f.do(t, "GET", "/modules", &list); status != http.StatusOK {
		t.Fatalf("GET /modules status = %d", status)
	}
	if list.Count != 2 || list.Modules[0].Name != "core" || list.Modules[1].Name != "shell" {
		t.Errorf("modules = %+v, want core then shell", list)
	}
	if diff := cmp.Diff([]string{"core"}, list.Modules[1].Dependencies); diff != "" {
		t.Errorf("shell dependencies mismatch (-want +got):\n%s", diff)
	}

	var core struct {
		Name                string         `json:"name"`
		BackendDependencies []string       `json:"backendDependencies"`
		Config              map[string]any `json:"config"`
	}
	if status := f.do(t, "GET", "/modules/core", &core); status != http.StatusOK {
		t.Fatalf("GET /modules/core status = %d", status)
	}
	if core.Config["apiBase"] != "/api" {
		t.Errorf("core config = %v, want apiBase", core.Config)
	}
	if _, ok := core.Config[schema.KeyBackendDependencies]; ok {
		t.Error("reserved keys should not be listed in module config")
	}

	var missing apihttp.ErrorResponseBody
	if status := f.do(t, "GET", "/modules/ghost", &missing); status != http.StatusNotFound || missing.Error.Code != "not_found" {
		t.Errorf("GET /modules/ghost = %d %+v, want 404 not_found", status, missing)
	}
}

func TestInspect_Routes(t *testing.T) {
	f := setup(t, true)

	type route struct {
		Path      string  `json:"path"`
		FullPath  string  `json:"fullPath"`
		Component string  `json:"component"`
		Children  []route `json:"children"`
	}
	var all struct {
		Count  int     `json:"count"`
		Routes []route `json:"routes"`
	}
	if status := f.do(t, "GET", "/routes", &all); status != http.StatusOK {
		t.Fatalf("GET /routes status = %d", status)
	}
	// Routes of every declared module: only shell, whose child references core.
	if all.Count != 2 || len(all.Routes) != 1 {
		t.Fatalf("routes = %+v, want shell's tree", all)
	}
	if got := all.Routes[0].Children[0]; got.FullPath != "/app/login" || got.Component != "Login" {
		t.Errorf("resolved reference = %+v, want /app/login Login", got)
	}

	var core struct {
		Count int `json:"count"`
	}
	if status := f.do(t, "GET", "/routes?module=core", &core); status != http.StatusOK || core.Count != 1 {
		t.Errorf("GET /routes?module=core = %d count %d, want 200 count 1", status, core.Count)
	}

	if status := f.do(t, "GET", "/routes?module=ghost", nil); status != http.StatusNotFound {
		t.Errorf("GET /routes?module=ghost status = %d, want 404", status)
	}
}

func TestInspect_I18nAndBackend(t *testing.T) {
	f := setup(t, true)

	var all struct {
		Locales []string `json:"locales"`
	}
	f.do(t, "GET", "/i18n", &all)
	if diff := cmp.Diff([]string{"de", "en"}, all.Locales); diff != "" {
		t.Errorf("locales mismatch (-want +got):\n%s", diff)
	}

	var de struct {
		Messages map[string]string `json:"messages"`
	}
	if status := f.do(t, "GET", "/i18n/de", &de); status != http.StatusOK || de.Messages["hello"] != "Hallo" {
		t.Errorf("GET /i18n/de = %d %+v", status, de)
	}
	if status := f.do(t, "GET", "/i18n/fr", nil); status != http.StatusNotFound {
		t.Errorf("GET /i18n/fr status = %d, want 404", status)
	}

	var backend struct {
		BackendModules []string `json:"backend_modules"`
	}
	f.do(t, "GET", "/backend-modules", &backend)
	if diff := cmp.Diff([]string{"auth-api"}, backend.BackendModules); diff != "" {
		t.Errorf("backend modules mismatch (-want +got):\n%s", diff)
	}
}

func TestInspect_RecomposeAndSnapshots(t *testing.T) {
	f := setup(t, false)

	var pass apihttp.PassResponse
	if status := f.do(t, "POST", "/recompose", &pass); status != http.StatusOK {
		t.Fatalf("POST /recompose status = %d", status)
	}
	if pass.Modules != 2 || pass.Routes != 2 {
		t.Errorf("pass = %+v, want 2 modules and 2 routes", pass)
	}
	if f.results.Current() == nil {
		t.Fatal("recompose did not publish a result")
	}

	if status := f.do(t, "GET", "/recompose", nil); status != http.StatusMethodNotAllowed {
		t.Errorf("GET /recompose status = %d, want 405", status)
	}

	ctx := context.Background()
	id, err := f.snaps.Save(ctx, ports.Snapshot{PassID: pass.PassID, Modules: []string{"core", "shell"}, Routes: []byte(`[]`)})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := f.snaps.Save(ctx, ports.Snapshot{PassID: "failed-pass", Error: "boom"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	var list struct {
		Count     int                        `json:"count"`
		Snapshots []apihttp.SnapshotResponse `json:"snapshots"`
	}
	if status := f.do(t, "GET", "/snapshots?limit=10", &list); status != http.StatusOK {
		t.Fatalf("GET /snapshots status = %d", status)
	}
	if list.Count != 2 || list.Snapshots[0].PassID != "failed-pass" || list.Snapshots[0].Error != "boom" {
		t.Errorf("snapshots = %+v, want failed-pass first", list)
	}

	var snap apihttp.SnapshotResponse
	if status := f.do(t, "GET", "/snapshots/"+pass.PassID, &snap); status != http.StatusOK || snap.ID != id {
		t.Errorf("GET snapshot by pass id = %d %+v, want id %d", status, snap, id)
	}
	if status := f.do(t, "GET", "/snapshots/9999", nil); status != http.StatusNotFound {
		t.Errorf("GET /snapshots/9999 status = %d, want 404", status)
	}
	if status := f.do(t, "GET", "/snapshots?limit=-3", nil); status != http.StatusBadRequest {
		t.Errorf("GET /snapshots?limit=-3 status = %d, want 400", status)
	}
}

// failing always fails to compose.
type failing struct{}

func (failing) Current() *compose.Result { return nil }
func (failing) Recompose(context.Context) (*compose.Result, error) {
	return nil, errors.New("Failed to load module: `ghost`")
}

func TestInspect_RecomposeFailure(t *testing.T) {
	h := apihttp.NewInspectHandler(failing{}, failing{}, nil, zerolog.Nop())
	server := httptest.NewServer(apihttp.NewRouter(h, zerolog.Nop(), apihttp.RouterConfig{}))
	defer server.Close()

	resp, err := http.Post(server.URL+"/recompose", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /recompose: %v", err)
	}
	defer resp.Body.Close()

	var body apihttp.ErrorResponseBody
	json.NewDecoder(resp.Body).Decode(&body)
	if resp.StatusCode != http.StatusUnprocessableEntity || body.Error.Code != "composition_failed" {
		t.Errorf("POST /recompose = %d %+v, want 422 composition_failed", resp.StatusCode, body)
	}
	if !strings.Contains(body.Error.Message, "ghost") {
		t.Errorf("message = %q, want the composition error", body.Error.Message)
	}

	// Snapshots disabled
	resp, err = http.Get(server.URL + "/snapshots")
	if err != nil {
		t.Fatalf("GET /snapshots: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotImplemented {
		t.Errorf("GET /snapshots status = %d, want 501", resp.StatusCode)
	}

	// No metrics endpoint without a collector
	resp, err = http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET /metrics status = %d, want 404", resp.StatusCode)
	}
}

func TestInspect_Metrics(t *testing.T) {
	f := setup(t, true)

	f.do(t, "GET", "/modules", nil)
	f.do(t, "GET", "/modules/core", nil)
	f.do(t, "GET", "/modules/ghost", nil)

	resp, err := http.Get(f.server.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	out := string(body)

	for _, want := range []string{
		`modcompose_http_requests_total{method="GET",route="/modules",status="2xx"} 1`,
		`modcompose_http_requests_total{method="GET",route="/modules/{name}",status="2xx"} 1`,
		`modcompose_http_requests_total{method="GET",route="/modules/{name}",status="4xx"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output does not contain %s", want)
		}
	}
}

func TestVersion(t *testing.T) {
	h := apihttp.NewInspectHandler(failing{}, nil, nil, zerolog.Nop())
	rec := httptest.NewRecorder()
	apihttp.NewRouter(h, zerolog.Nop(), apihttp.RouterConfig{}).ServeHTTP(rec, httptest.NewRequest("GET", "/version", nil))

	var v apihttp.VersionResponse
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.Service != "modcompose" || v.Version != apihttp.Version {
		t.Errorf("version = %+v", v)
	}
}
