package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the Prometheus metrics of the impact simulator. It
// satisfies the recorder interfaces of the catalog adapter, the density
// estimator, the catalog store, and the HTTP API.
type Collector struct {
	gatherer prometheus.Gatherer

	CatalogFetches        *prometheus.CounterVec
	CatalogFetchDurations prometheus.Histogram
	CatalogEnrichments    *prometheus.CounterVec
	CatalogAsteroids      prometheus.Gauge

	DensityLookups    *prometheus.CounterVec
	ImpactSimulations prometheus.Counter

	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec
}

// NewCollector registers the simulator metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
// Registering twice against the same registry reuses the existing
// collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	fetches, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_fetch_total",
		Help: "Catalog fetch cycles, labeled by the source that served them (live, fallback or aborted).",
	}, []string{"source"}), "catalog_fetch_total")
	if err != nil {
		return nil, err
	}

	fetchDurations, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_fetch_duration_seconds",
		Help:    "Wall time of a full catalog fetch including enrichment.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
	}), "catalog_fetch_duration_seconds")
	if err != nil {
		return nil, err
	}

	enrichments, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_enrichment_total",
		Help: "Per-asteroid orbital enrichment outcomes (ok, error, no_orbit, invalid).",
	}, []string{"result"}), "catalog_enrichment_total")
	if err != nil {
		return nil, err
	}

	asteroids, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_asteroids",
		Help: "Number of asteroids in the current catalog snapshot.",
	}), "catalog_asteroids")
	if err != nil {
		return nil, err
	}

	lookups, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "density_lookups_total",
		Help: "Population density lookups, labeled by the path that answered (default, cache, raster, analytic).",
	}, []string{"path"}), "density_lookups_total")
	if err != nil {
		return nil, err
	}

	simulations, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "impact_simulations_total",
		Help: "Impact effect computations served.",
	}), "impact_simulations_total")
	if err != nil {
		return nil, err
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Handled API requests, labeled by route pattern and HTTP status code.",
	}, []string{"route", "code"}), "http_requests_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "API request latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"route"}), "http_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:              gatherer,
		CatalogFetches:        fetches,
		CatalogFetchDurations: fetchDurations,
		CatalogEnrichments:    enrichments,
		CatalogAsteroids:      asteroids,
		DensityLookups:        lookups,
		ImpactSimulations:     simulations,
		HTTPRequests:          requests,
		HTTPDurations:         durations,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *Collector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveCatalogFetch records one completed fetch cycle.
func (c *Collector) ObserveCatalogFetch(source string, d time.Duration) {
	if c == nil {
		return
	}
	if c.CatalogFetches != nil {
		c.CatalogFetches.WithLabelValues(source).Inc()
	}
	if c.CatalogFetchDurations != nil {
		c.CatalogFetchDurations.Observe(d.Seconds())
	}
}

// ObserveEnrichment records the outcome of one orbital enrichment.
func (c *Collector) ObserveEnrichment(result string) {
	if c == nil || c.CatalogEnrichments == nil {
		return
	}
	c.CatalogEnrichments.WithLabelValues(result).Inc()
}

// SetCatalogSize satisfies the kb.MetricsRecorder interface.
func (c *Collector) SetCatalogSize(n int) {
	if c == nil || c.CatalogAsteroids == nil {
		return
	}
	c.CatalogAsteroids.Set(float64(n))
}

// ObserveDensityLookup satisfies population.MetricsRecorder.
func (c *Collector) ObserveDensityLookup(path string) {
	if c == nil || c.DensityLookups == nil {
		return
	}
	c.DensityLookups.WithLabelValues(path).Inc()
}

// IncImpactSimulations counts one served impact computation.
func (c *Collector) IncImpactSimulations() {
	if c == nil || c.ImpactSimulations == nil {
		return
	}
	c.ImpactSimulations.Inc()
}

// ObserveHTTPRequest records one handled API request.
func (c *Collector) ObserveHTTPRequest(route string, code int, d time.Duration) {
	if c == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	if c.HTTPRequests != nil {
		c.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	}
	if c.HTTPDurations != nil {
		c.HTTPDurations.WithLabelValues(route).Observe(d.Seconds())
	}
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
