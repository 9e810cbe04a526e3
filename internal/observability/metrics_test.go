package observability

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"go.opentelemetry.io/otel"
)

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	collector, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	return collector, reg
}

func TestCatalogFetchMetrics(t *testing.T) {
	collector, reg := newTestCollector(t)

	collector.ObserveCatalogFetch("live", 120*time.Millisecond)
	collector.ObserveCatalogFetch("fallback", 5*time.Millisecond)
	collector.ObserveCatalogFetch("fallback", 5*time.Millisecond)
	collector.ObserveEnrichment("ok")
	collector.ObserveEnrichment("error")
	collector.SetCatalogSize(42)

	if got := testutil.ToFloat64(collector.CatalogFetches.WithLabelValues("fallback")); got != 2 {
		t.Fatalf("catalog_fetch_total{source=fallback} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.CatalogEnrichments.WithLabelValues("error")); got != 1 {
		t.Fatalf("catalog_enrichment_total{result=error} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.CatalogAsteroids); got != 42 {
		t.Fatalf("catalog_asteroids = %v, want 42", got)
	}
	if count := histogramSampleCount(t, reg, "catalog_fetch_duration_seconds", nil); count != 3 {
		t.Fatalf("catalog_fetch_duration_seconds sample_count = %d, want 3", count)
	}
}

func TestHTTPRequestMetrics(t *testing.T) {
	collector, reg := newTestCollector(t)

	collector.ObserveHTTPRequest("GET /api/asteroids/{id}", http.StatusNotFound, 3*time.Millisecond)
	collector.ObserveHTTPRequest("", http.StatusNotFound, time.Millisecond)

	if got := testutil.ToFloat64(collector.HTTPRequests.WithLabelValues("GET /api/asteroids/{id}", "404")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.HTTPRequests.WithLabelValues("unmatched", "404")); got != 1 {
		t.Fatalf("http_requests_total{route=unmatched} = %v, want 1", got)
	}
	if count := histogramSampleCount(t, reg, "http_request_duration_seconds", map[string]string{
		"route": "GET /api/asteroids/{id}",
	}); count != 1 {
		t.Fatalf("http_request_duration_seconds sample_count = %d, want 1", count)
	}
}

func TestNewCollectorReusesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	second, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("second NewCollector: %v", err)
	}

	first.IncImpactSimulations()
	second.IncImpactSimulations()
	if got := testutil.ToFloat64(first.ImpactSimulations); got != 2 {
		t.Fatalf("impact_simulations_total = %v, want 2 across both collectors", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.ObserveCatalogFetch("live", time.Second)
	c.ObserveEnrichment("ok")
	c.SetCatalogSize(1)
	c.ObserveDensityLookup("raster")
	c.IncImpactSimulations()
	c.ObserveHTTPRequest("GET /healthz", 200, time.Millisecond)
	if c.Gatherer() != nil {
		t.Fatalf("nil collector should have no gatherer")
	}
}

func TestMetricsHandlerExposesSimulatorMetrics(t *testing.T) {
	collector, _ := newTestCollector(t)
	collector.ObserveCatalogFetch("live", time.Second)
	collector.ObserveEnrichment("ok")
	collector.SetCatalogSize(7)
	collector.ObserveDensityLookup("analytic")
	collector.IncImpactSimulations()
	collector.ObserveHTTPRequest("GET /healthz", 200, time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"catalog_fetch_total",
		"catalog_fetch_duration_seconds",
		"catalog_enrichment_total",
		"catalog_asteroids 7",
		`density_lookups_total{path="analytic"} 1`,
		"impact_simulations_total 1",
		"http_requests_total",
		"http_request_duration_seconds",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}

func TestInitTracingStdout(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.Background()
	shutdown, err := InitTracing(ctx, TracingConfig{Enabled: true, Exporter: "stdout", Writer: &buf}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}

	_, span := otel.Tracer("test").Start(ctx, "unit-span")
	span.End()
	ShutdownWithTimeout(ctx, shutdown, nil)

	if !strings.Contains(buf.String(), "unit-span") {
		t.Fatalf("stdout exporter did not receive the span: %q", buf.String())
	}

	// Restore the global noop provider for other tests.
	if _, err := InitTracing(ctx, TracingConfig{}, nil); err != nil {
		t.Fatalf("InitTracing disabled: %v", err)
	}
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	if _, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin"}, nil); err == nil {
		t.Fatalf("expected error for unsupported exporter")
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
