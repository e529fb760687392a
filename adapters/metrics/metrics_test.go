package metrics_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/artpar/modcompose/adapters/metrics"
	"github.com/artpar/modcompose/ports"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func counterValue(f *dto.MetricFamily, label string) float64 {
	for _, m := range f.GetMetric() {
		for _, l := range m.GetLabel() {
			if l.GetValue() == label {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestNew(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	if m == nil {
		t.Fatal("NewWithRegistry returned nil")
	}
	if m.PassesTotal == nil || m.PassDuration == nil || m.ModulesLoaded == nil {
		t.Error("composition metrics not initialized")
	}
	if m.Reloads == nil || m.ReloadErrors == nil {
		t.Error("reload metrics not initialized")
	}
	if m.RequestsTotal == nil || m.RequestDuration == nil {
		t.Error("request metrics not initialized")
	}
}

func TestPassCompleted(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	started := time.Unix(1700000000, 0)
	m.PassCompleted(ports.PassStats{StartedAt: started, Duration: 2 * time.Second, Modules: 4, Routes: 9})

	families := gather(t, reg)

	if got := counterValue(families["modcompose_passes_total"], metrics.ResultSuccess); got != 1 {
		t.Errorf("passes_total{result=success} = %v, want 1", got)
	}
	if got := families["modcompose_modules_loaded"].GetMetric()[0].GetGauge().GetValue(); got != 4 {
		t.Errorf("modules_loaded = %v, want 4", got)
	}
	if got := families["modcompose_routes_resolved"].GetMetric()[0].GetGauge().GetValue(); got != 9 {
		t.Errorf("routes_resolved = %v, want 9", got)
	}
	if got := families["modcompose_last_pass_timestamp"].GetMetric()[0].GetGauge().GetValue(); got != 1700000002 {
		t.Errorf("last_pass_timestamp = %v, want 1700000002", got)
	}
	if got := families["modcompose_pass_duration_seconds"].GetMetric()[0].GetHistogram().GetSampleCount(); got != 1 {
		t.Errorf("pass_duration_seconds count = %d, want 1", got)
	}
}

func TestPassFailed(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.PassFailed(ports.PassStats{}, errors.New("boom"))
	m.PassFailed(ports.PassStats{}, context.Canceled)
	m.PassFailed(ports.PassStats{}, errors.New("again"))

	f := gather(t, reg)["modcompose_passes_total"]
	if got := counterValue(f, metrics.ResultFailure); got != 2 {
		t.Errorf("passes_total{result=failure} = %v, want 2", got)
	}
	if got := counterValue(f, metrics.ResultCancelled); got != 1 {
		t.Errorf("passes_total{result=cancelled} = %v, want 1", got)
	}
}

func TestReloads(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.ReloadSucceeded()
	m.ReloadSucceeded()
	m.ReloadFailed()

	families := gather(t, reg)
	if got := families["modcompose_reloads_total"].GetMetric()[0].GetCounter().GetValue(); got != 3 {
		t.Errorf("reloads_total = %v, want 3", got)
	}
	if got := families["modcompose_reload_errors_total"].GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Errorf("reload_errors_total = %v, want 1", got)
	}
}
