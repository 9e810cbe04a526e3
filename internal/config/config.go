// Package config loads simulator settings from defaults, an optional config
// file, and IMPACT_-prefixed environment variables, in that order of
// precedence (later wins).
package config

import (
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. IMPACT_CATALOG_API_KEY.
const EnvPrefix = "IMPACT"

// Config is the full simulator configuration.
type Config struct {
	Catalog CatalogConfig `mapstructure:"catalog"`
	Density DensityConfig `mapstructure:"density"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Log     LogConfig     `mapstructure:"log"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// CatalogConfig controls the near-Earth object catalog adapter.
type CatalogConfig struct {
	BaseURL string `mapstructure:"base_url"`
	// APIKey is passed through to the catalog service unchanged.
	APIKey     string `mapstructure:"api_key"`
	WindowDays int    `mapstructure:"window_days"`

	// EnrichLimit caps how many asteroids get an orbital detail lookup.
	EnrichLimit       int           `mapstructure:"enrich_limit"`
	EnrichConcurrency int           `mapstructure:"enrich_concurrency"`
	EnrichTimeout     time.Duration `mapstructure:"enrich_timeout"`
	// EnrichRate limits detail lookups per second; 0 disables the limit.
	EnrichRate float64 `mapstructure:"enrich_rate"`

	MaxAsteroids    int           `mapstructure:"max_asteroids"`
	FallbackCount   int           `mapstructure:"fallback_count"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	Timeout         time.Duration `mapstructure:"timeout"`
	// Retries is the number of extra feed attempts after a failure.
	Retries int `mapstructure:"retries"`
}

// DensityConfig locates the population density map.
type DensityConfig struct {
	MapPath     string `mapstructure:"map_path"`
	MapURL      string `mapstructure:"map_url"`
	Interactive bool   `mapstructure:"interactive"`
	// Bounds is the pixel box [minX, minY, maxX, maxY] covering the globe;
	// empty means the whole image.
	Bounds      []int         `mapstructure:"bounds"`
	LoadTimeout time.Duration `mapstructure:"load_timeout"`
}

// HTTPConfig configures the JSON API listener.
type HTTPConfig struct {
	Addr              string        `mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
}

// MetricsConfig configures the Prometheus listener.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LogConfig mirrors logging.Config.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TracingConfig mirrors observability.TracingConfig.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Exporter    string  `mapstructure:"exporter"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Catalog: CatalogConfig{
			BaseURL:           "https://api.nasa.gov/neo/rest/v1",
			APIKey:            "DEMO_KEY",
			WindowDays:        7,
			EnrichLimit:       40,
			EnrichConcurrency: 40,
			EnrichTimeout:     10 * time.Second,
			MaxAsteroids:      100,
			FallbackCount:     50,
			RefreshInterval:   time.Hour,
			Timeout:           15 * time.Second,
		},
		Density: DensityConfig{
			Interactive: true,
			LoadTimeout: 30 * time.Second,
		},
		HTTP: HTTPConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{Addr: ":9090"},
		Log:     LogConfig{Level: "info", Format: "text"},
		Tracing: TracingConfig{Exporter: "stdout", SampleRatio: 1},
	}
}

// Load reads configuration. path may be empty, in which case only
// defaults and the environment apply.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg.ApplyDefaults(), nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("catalog.base_url", d.Catalog.BaseURL)
	v.SetDefault("catalog.api_key", d.Catalog.APIKey)
	v.SetDefault("catalog.window_days", d.Catalog.WindowDays)
	v.SetDefault("catalog.enrich_limit", d.Catalog.EnrichLimit)
	v.SetDefault("catalog.enrich_concurrency", d.Catalog.EnrichConcurrency)
	v.SetDefault("catalog.enrich_timeout", d.Catalog.EnrichTimeout)
	v.SetDefault("catalog.enrich_rate", d.Catalog.EnrichRate)
	v.SetDefault("catalog.max_asteroids", d.Catalog.MaxAsteroids)
	v.SetDefault("catalog.fallback_count", d.Catalog.FallbackCount)
	v.SetDefault("catalog.refresh_interval", d.Catalog.RefreshInterval)
	v.SetDefault("catalog.timeout", d.Catalog.Timeout)
	v.SetDefault("catalog.retries", d.Catalog.Retries)

	v.SetDefault("density.map_path", d.Density.MapPath)
	v.SetDefault("density.map_url", d.Density.MapURL)
	v.SetDefault("density.interactive", d.Density.Interactive)
	v.SetDefault("density.bounds", d.Density.Bounds)
	v.SetDefault("density.load_timeout", d.Density.LoadTimeout)

	v.SetDefault("http.addr", d.HTTP.Addr)
	v.SetDefault("http.read_header_timeout", d.HTTP.ReadHeaderTimeout)
	v.SetDefault("metrics.addr", d.Metrics.Addr)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.endpoint", d.Tracing.Endpoint)
	v.SetDefault("tracing.sample_ratio", d.Tracing.SampleRatio)
}

// ApplyDefaults replaces zero or invalid values with defaults. A zero
// FallbackCount is kept: it asks for an intentionally empty fallback.
// A zero EnrichLimit is kept as well and disables enrichment.
func (c Config) ApplyDefaults() Config {
	d := Default()

	if c.Catalog.BaseURL == "" {
		c.Catalog.BaseURL = d.Catalog.BaseURL
	}
	c.Catalog.BaseURL = strings.TrimRight(c.Catalog.BaseURL, "/")
	if c.Catalog.APIKey == "" {
		c.Catalog.APIKey = d.Catalog.APIKey
	}
	if c.Catalog.WindowDays <= 0 {
		c.Catalog.WindowDays = d.Catalog.WindowDays
	}
	if c.Catalog.EnrichLimit < 0 {
		c.Catalog.EnrichLimit = d.Catalog.EnrichLimit
	}
	if c.Catalog.EnrichConcurrency <= 0 {
		c.Catalog.EnrichConcurrency = d.Catalog.EnrichConcurrency
	}
	if c.Catalog.EnrichTimeout <= 0 {
		c.Catalog.EnrichTimeout = d.Catalog.EnrichTimeout
	}
	if c.Catalog.EnrichRate < 0 {
		c.Catalog.EnrichRate = 0
	}
	if c.Catalog.MaxAsteroids <= 0 {
		c.Catalog.MaxAsteroids = d.Catalog.MaxAsteroids
	}
	if c.Catalog.FallbackCount < 0 {
		c.Catalog.FallbackCount = d.Catalog.FallbackCount
	}
	if c.Catalog.RefreshInterval < 0 {
		c.Catalog.RefreshInterval = 0
	}
	if c.Catalog.Timeout <= 0 {
		c.Catalog.Timeout = d.Catalog.Timeout
	}
	if c.Catalog.Retries < 0 {
		c.Catalog.Retries = 0
	}

	if c.Density.LoadTimeout <= 0 {
		c.Density.LoadTimeout = d.Density.LoadTimeout
	}

	if c.HTTP.Addr == "" {
		c.HTTP.Addr = d.HTTP.Addr
	}
	if c.HTTP.ReadHeaderTimeout <= 0 {
		c.HTTP.ReadHeaderTimeout = d.HTTP.ReadHeaderTimeout
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = d.Tracing.Exporter
	}
	if c.Tracing.SampleRatio <= 0 || c.Tracing.SampleRatio > 1 {
		c.Tracing.SampleRatio = d.Tracing.SampleRatio
	}
	return c
}

// Rect returns the configured pixel box, or the zero rectangle when
// Bounds is not a valid four-element box.
func (d DensityConfig) Rect() image.Rectangle {
	if len(d.Bounds) != 4 {
		return image.Rectangle{}
	}
	r := image.Rect(d.Bounds[0], d.Bounds[1], d.Bounds[2], d.Bounds[3])
	if r.Empty() {
		return image.Rectangle{}
	}
	return r
}
