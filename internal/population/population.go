// Package population resolves a population density (people/km²) for a
// geographic coordinate. A loaded raster density map is preferred; an
// analytic model of major population centres answers whenever the map is
// absent, still loading, or does not cover the point.
package population

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/signalsfoundry/impact-simulator/internal/logging"
	"github.com/signalsfoundry/impact-simulator/model"
)

const (
	// DefaultDensity is returned when no usable coordinate is supplied.
	DefaultDensity = 120.0
	// MaxDensity caps every estimate.
	MaxDensity = 30000.0

	defaultLoadTimeout = 30 * time.Second
)

// Lookup paths reported to the metrics recorder.
const (
	PathDefault  = "default"
	PathCache    = "cache"
	PathRaster   = "raster"
	PathAnalytic = "analytic"
)

// ErrMapUnavailable reports that the density map could not be obtained.
var ErrMapUnavailable = errors.New("population: density map unavailable")

// Loader fetches and decodes the density map.
type Loader func(ctx context.Context) (image.Image, error)

// MetricsRecorder receives one observation per Estimate call.
type MetricsRecorder interface {
	ObserveDensityLookup(path string)
}

// Config controls an Estimator.
type Config struct {
	// Interactive makes the first Estimate call start loading the map.
	// Headless callers leave it false and rely on the analytic model
	// unless they call EnsureLoaded themselves.
	Interactive bool
	// Bounds is the pixel rectangle covering lng -180..180, lat 90..-90.
	// The zero value uses the whole image.
	Bounds      image.Rectangle
	Loader      Loader
	LoadTimeout time.Duration
}

// Option customizes an Estimator.
type Option func(*Estimator)

// WithLogger sets the logger used for map load outcomes.
func WithLogger(log logging.Logger) Option {
	return func(e *Estimator) {
		if log != nil {
			e.log = log
		}
	}
}

// WithMetricsRecorder wires a lookup-path recorder.
func WithMetricsRecorder(rec MetricsRecorder) Option {
	return func(e *Estimator) { e.metrics = rec }
}

// Estimator owns the density cache and the lazily loaded map. It is safe
// for concurrent use and is meant to be constructed once per process.
type Estimator struct {
	cfg     Config
	log     logging.Logger
	metrics MetricsRecorder

	mu    sync.RWMutex
	cache map[string]float64
	img   image.Image

	loadOnce sync.Once
	loaded   chan struct{}
	loadErr  error
}

// NewEstimator builds an Estimator. Nothing is loaded until EnsureLoaded
// runs, either explicitly or on the first interactive Estimate.
func NewEstimator(cfg Config, opts ...Option) *Estimator {
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = defaultLoadTimeout
	}
	e := &Estimator{
		cfg:    cfg,
		log:    logging.Noop(),
		cache:  make(map[string]float64),
		loaded: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Estimate returns the density at p, clamped to [0, MaxDensity]. It never
// blocks on the map load.
func (e *Estimator) Estimate(p *model.GeoPoint) float64 {
	if p == nil || !finite(p.Lat) || !finite(p.Lng) {
		e.observe(PathDefault)
		return DefaultDensity
	}
	if e.cfg.Interactive {
		e.EnsureLoaded()
	}

	key := CacheKey(p.Lat, p.Lng)
	if v, ok := e.Lookup(key); ok {
		e.observe(PathCache)
		return v
	}

	if v, ok := e.raster(p.Lat, p.Lng); ok {
		e.mu.Lock()
		e.cache[key] = v
		e.mu.Unlock()
		e.observe(PathRaster)
		return v
	}

	e.observe(PathAnalytic)
	return Analytic(p.Lat, p.Lng)
}

// EnsureLoaded starts the map load at most once per Estimator. Concurrent
// callers share the same in-flight load; the call itself returns at once.
func (e *Estimator) EnsureLoaded() {
	e.loadOnce.Do(func() {
		go e.load()
	})
}

// Loaded reports whether the map is available for raster lookups.
func (e *Estimator) Loaded() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.img != nil
}

// WaitLoaded starts the load if needed and blocks until it finishes or ctx
// is done. It returns the load error, if any.
func (e *Estimator) WaitLoaded(ctx context.Context) error {
	e.EnsureLoaded()
	select {
	case <-e.loaded:
		return e.loadErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Lookup returns a cached density for a key produced by CacheKey.
func (e *Estimator) Lookup(key string) (float64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.cache[key]
	return v, ok
}

// CacheKey quantizes a coordinate to three decimals.
func CacheKey(lat, lng float64) string {
	return fmt.Sprintf("%.3f,%.3f", lat, lng)
}

func (e *Estimator) load() {
	defer close(e.loaded)

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.LoadTimeout)
	defer cancel()
	ctx, span := otel.Tracer("impact-simulator/population").Start(ctx, "population.LoadDensityMap")
	defer span.End()

	if e.cfg.Loader == nil {
		e.loadErr = fmt.Errorf("%w: no loader configured", ErrMapUnavailable)
		span.SetStatus(codes.Error, e.loadErr.Error())
		e.log.Warn(ctx, "density map not configured; using analytic model")
		return
	}

	img, err := e.cfg.Loader(ctx)
	if err != nil {
		e.loadErr = err
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.log.Warn(ctx, "density map load failed; using analytic model", logging.Err(err))
		return
	}
	if img == nil || img.Bounds().Empty() {
		e.loadErr = fmt.Errorf("%w: empty image", ErrMapUnavailable)
		span.SetStatus(codes.Error, e.loadErr.Error())
		e.log.Warn(ctx, "density map is empty; using analytic model")
		return
	}

	b := img.Bounds()
	span.SetAttributes(attribute.Int("width", b.Dx()), attribute.Int("height", b.Dy()))
	e.mu.Lock()
	e.img = img
	e.mu.Unlock()
	e.log.Info(ctx, "density map loaded",
		logging.Int("width", b.Dx()),
		logging.Int("height", b.Dy()),
	)
}

func (e *Estimator) raster(lat, lng float64) (float64, bool) {
	e.mu.RLock()
	img := e.img
	e.mu.RUnlock()
	if img == nil {
		return 0, false
	}
	return sample(img, e.cfg.Bounds, lat, lng)
}

func (e *Estimator) observe(path string) {
	if e.metrics != nil {
		e.metrics.ObserveDensityLookup(path)
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
