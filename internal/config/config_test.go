package config

import (
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Catalog.APIKey != "DEMO_KEY" {
		t.Fatalf("api key = %q, want DEMO_KEY", cfg.Catalog.APIKey)
	}
	if cfg.Catalog.WindowDays != 7 || cfg.Catalog.EnrichLimit != 40 || cfg.Catalog.MaxAsteroids != 100 || cfg.Catalog.FallbackCount != 50 {
		t.Fatalf("catalog defaults = %+v", cfg.Catalog)
	}
	if cfg.Catalog.EnrichTimeout != 10*time.Second {
		t.Fatalf("enrich timeout = %v, want 10s", cfg.Catalog.EnrichTimeout)
	}
	if cfg.HTTP.Addr != ":8080" || cfg.Metrics.Addr != ":9090" {
		t.Fatalf("listen addrs = %q / %q", cfg.HTTP.Addr, cfg.Metrics.Addr)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("IMPACT_CATALOG_API_KEY", "secret")
	t.Setenv("IMPACT_CATALOG_ENRICH_TIMEOUT", "2s")
	t.Setenv("IMPACT_HTTP_ADDR", ":7000")
	t.Setenv("IMPACT_TRACING_ENABLED", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Catalog.APIKey != "secret" {
		t.Fatalf("api key = %q, want secret", cfg.Catalog.APIKey)
	}
	if cfg.Catalog.EnrichTimeout != 2*time.Second {
		t.Fatalf("enrich timeout = %v, want 2s", cfg.Catalog.EnrichTimeout)
	}
	if cfg.HTTP.Addr != ":7000" || !cfg.Tracing.Enabled {
		t.Fatalf("env overrides not applied: http=%q tracing=%v", cfg.HTTP.Addr, cfg.Tracing.Enabled)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "impact.yaml")
	content := `
catalog:
  base_url: http://localhost:9999/neo/
  enrich_limit: 5
  fallback_count: 0
density:
  map_path: /data/density.png
  bounds: [10, 20, 370, 200]
log:
  format: json
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Catalog.BaseURL != "http://localhost:9999/neo" {
		t.Fatalf("base url = %q, want trailing slash trimmed", cfg.Catalog.BaseURL)
	}
	if cfg.Catalog.EnrichLimit != 5 || cfg.Catalog.FallbackCount != 0 {
		t.Fatalf("catalog overrides = %+v", cfg.Catalog)
	}
	if cfg.Density.MapPath != "/data/density.png" || cfg.Log.Format != "json" {
		t.Fatalf("file overrides not applied: %+v", cfg)
	}
	if got, want := cfg.Density.Rect(), image.Rect(10, 20, 370, 200); got != want {
		t.Fatalf("density rect = %v, want %v", got, want)
	}
	// Values absent from the file keep their defaults.
	if cfg.Catalog.MaxAsteroids != 100 {
		t.Fatalf("max asteroids = %d, want 100", cfg.Catalog.MaxAsteroids)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestApplyDefaultsRepairsInvalidValues(t *testing.T) {
	cfg := Config{
		Catalog: CatalogConfig{
			WindowDays:        -1,
			EnrichLimit:       -3,
			EnrichConcurrency: 0,
			EnrichRate:        -2,
			FallbackCount:     -1,
			Retries:           -4,
		},
		Tracing: TracingConfig{SampleRatio: 3},
	}.ApplyDefaults()

	if cfg.Catalog.WindowDays != 7 || cfg.Catalog.EnrichLimit != 40 || cfg.Catalog.EnrichConcurrency != 40 {
		t.Fatalf("catalog not repaired: %+v", cfg.Catalog)
	}
	if cfg.Catalog.EnrichRate != 0 || cfg.Catalog.FallbackCount != 50 || cfg.Catalog.Retries != 0 {
		t.Fatalf("catalog not repaired: %+v", cfg.Catalog)
	}
	if cfg.Tracing.SampleRatio != 1 {
		t.Fatalf("sample ratio = %v, want 1", cfg.Tracing.SampleRatio)
	}
}

func TestDensityRectRejectsMalformedBounds(t *testing.T) {
	for _, b := range [][]int{nil, {1, 2, 3}, {5, 5, 5, 5}} {
		if r := (DensityConfig{Bounds: b}).Rect(); !r.Empty() {
			t.Fatalf("Rect(%v) = %v, want empty", b, r)
		}
	}
}
