// Package http serves the inspection API of a running composer.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/artpar/modcompose/core/compose"
	"github.com/artpar/modcompose/core/formatter"
	"github.com/artpar/modcompose/core/schema"
	"github.com/artpar/modcompose/ports"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Results exposes the last published composition result.
type Results interface {
	// Current returns the published result, or nil before the first
	// successful pass.
	Current() *compose.Result
}

// Recomposer runs a composition pass on demand.
type Recomposer interface {
	Recompose(ctx context.Context) (*compose.Result, error)
}

// ErrorResponseBody is the JSON body of every error response.
type ErrorResponseBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes an error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// VersionResponse represents the version endpoint response.
type VersionResponse struct {
	Version string `json:"version"`
	Service string `json:"service"`
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status string `json:"status"`
	PassID string `json:"pass_id,omitempty"`
}

// PassResponse summarizes a composition pass.
type PassResponse struct {
	PassID     string    `json:"pass_id"`
	RootModule string    `json:"root_module,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS float64   `json:"duration_ms"`
	Modules    int       `json:"modules"`
	Routes     int       `json:"routes"`
	Locales    int       `json:"locales"`
}

// SnapshotResponse is the JSON form of a stored snapshot.
type SnapshotResponse struct {
	ID             int64           `json:"id"`
	PassID         string          `json:"pass_id"`
	CreatedAt      time.Time       `json:"created_at"`
	DurationMS     float64         `json:"duration_ms"`
	RootModule     string          `json:"root_module,omitempty"`
	Modules        []string        `json:"modules"`
	BackendModules []string        `json:"backend_modules"`
	Locales        []string        `json:"locales"`
	Routes         json.RawMessage `json:"routes,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// InspectHandler serves read-only views of the published composition.
type InspectHandler struct {
	results    Results
	recomposer Recomposer
	snapshots  ports.SnapshotStore
	logger     zerolog.Logger
}

// NewInspectHandler creates an inspection handler. recomposer and snapshots
// may be nil; the matching endpoints then answer 501.
func NewInspectHandler(results Results, recomposer Recomposer, snapshots ports.SnapshotStore, logger zerolog.Logger) *InspectHandler {
	return &InspectHandler{
		results:    results,
		recomposer: recomposer,
		snapshots:  snapshots,
		logger:     logger,
	}
}

// current returns the published result or writes 503.
func (h *InspectHandler) current(w http.ResponseWriter) (*compose.Result, bool) {
	res := h.results.Current()
	if res == nil {
		writeError(w, http.StatusServiceUnavailable, "not_composed", "No composition has been published yet")
		return nil, false
	}
	return res, true
}

// Health reports whether a composition has been published.
func (h *InspectHandler) Health(w http.ResponseWriter, r *http.Request) {
	res := h.results.Current()
	if res == nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "starting"})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", PassID: res.App.PassID})
}

// ListModules returns every loaded module in load order.
func (h *InspectHandler) ListModules(w http.ResponseWriter, r *http.Request) {
	res, ok := h.current(w)
	if !ok {
		return
	}
	modules := formatter.Summarize(res.App)
	writeJSON(w, http.StatusOK, map[string]any{
		"pass_id": res.App.PassID,
		"count":   len(modules),
		"modules": modules,
	})
}

// GetModule returns one module.
func (h *InspectHandler) GetModule(w http.ResponseWriter, r *http.Request) {
	res, ok := h.current(w)
	if !ok {
		return
	}
	name := chi.URLParam(r, "name")
	mod, ok := res.App.Modules[name]
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "Module `"+name+"` is not loaded")
		return
	}
	writeJSON(w, http.StatusOK, formatter.Summary(name, mod, res.App.ModuleConfig(name)))
}

// ListRoutes returns the composed routes, or the routes of one module with
// ?module=name.
func (h *InspectHandler) ListRoutes(w http.ResponseWriter, r *http.Request) {
	res, ok := h.current(w)
	if !ok {
		return
	}

	nodes := res.Routes
	if name := r.URL.Query().Get("module"); name != "" {
		mod, ok := res.App.Modules[name]
		if !ok {
			writeError(w, http.StatusNotFound, "not_found", "Module `"+name+"` is not loaded")
			return
		}
		nodes = mod.Routers.Nodes
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":  schema.CountNodes(nodes),
		"routes": formatter.Routes(nodes),
	})
}

// ListLocales returns every locale with its messages.
func (h *InspectHandler) ListLocales(w http.ResponseWriter, r *http.Request) {
	res, ok := h.current(w)
	if !ok {
		return
	}
	messages := res.App.I18nMessages
	writeJSON(w, http.StatusOK, map[string]any{
		"locales":  sortedLocales(messages),
		"messages": messages,
	})
}

// GetLocale returns the messages of one locale.
func (h *InspectHandler) GetLocale(w http.ResponseWriter, r *http.Request) {
	res, ok := h.current(w)
	if !ok {
		return
	}
	locale := chi.URLParam(r, "locale")
	messages, ok := res.App.I18nMessages[locale]
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "Locale `"+locale+"` has no messages")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"locale":   locale,
		"messages": messages,
	})
}

// ListBackendModules returns the backend module names collected in the pass.
func (h *InspectHandler) ListBackendModules(w http.ResponseWriter, r *http.Request) {
	res, ok := h.current(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"backend_modules": res.App.BackendModules,
	})
}

// Recompose runs a pass and returns its summary.
func (h *InspectHandler) Recompose(w http.ResponseWriter, r *http.Request) {
	if h.recomposer == nil {
		writeError(w, http.StatusNotImplemented, "not_supported", "Recomposition is not available")
		return
	}
	res, err := h.recomposer.Recompose(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("recompose request failed")
		writeError(w, http.StatusUnprocessableEntity, "composition_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, passResponse(res.Stats()))
}

// ListSnapshots returns recent snapshots without their routes.
func (h *InspectHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		writeError(w, http.StatusNotImplemented, "not_supported", "Snapshots are disabled")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "bad_request", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	snaps, err := h.snapshots.List(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("list snapshots")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to list snapshots")
		return
	}

	out := make([]SnapshotResponse, 0, len(snaps))
	for _, s := range snaps {
		resp := snapshotResponse(s)
		resp.Routes = nil
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":     len(out),
		"snapshots": out,
	})
}

// GetSnapshot returns one snapshot by ID or pass ID.
func (h *InspectHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		writeError(w, http.StatusNotImplemented, "not_supported", "Snapshots are disabled")
		return
	}
	id := chi.URLParam(r, "id")
	snap, err := h.snapshots.Get(r.Context(), id)
	if errors.Is(err, ports.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "Snapshot `"+id+"` does not exist")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("id", id).Msg("get snapshot")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to load snapshot")
		return
	}
	writeJSON(w, http.StatusOK, snapshotResponse(snap))
}

func passResponse(s ports.PassStats) PassResponse {
	return PassResponse{
		PassID:     s.PassID,
		RootModule: s.RootModule,
		StartedAt:  s.StartedAt,
		DurationMS: float64(s.Duration) / float64(time.Millisecond),
		Modules:    s.Modules,
		Routes:     s.Routes,
		Locales:    s.Locales,
	}
}

func snapshotResponse(s ports.Snapshot) SnapshotResponse {
	return SnapshotResponse{
		ID:             s.ID,
		PassID:         s.PassID,
		CreatedAt:      s.CreatedAt,
		DurationMS:     float64(s.Duration) / float64(time.Millisecond),
		RootModule:     s.RootModule,
		Modules:        nonNil(s.Modules),
		BackendModules: nonNil(s.BackendModules),
		Locales:        nonNil(s.Locales),
		Routes:         s.Routes,
		Error:          s.Error,
	}
}

func sortedLocales(messages map[string]map[string]string) []string {
	locales := make([]string, 0, len(messages))
	for locale := range messages {
		locales = append(locales, locale)
	}
	sort.Strings(locales)
	return locales
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponseBody{Error: ErrorDetail{Code: code, Message: message}})
}
