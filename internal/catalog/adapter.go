// Package catalog turns a near-Earth object feed into model.Asteroid values,
// enriching the leading entries with orbital geometry and substituting a
// synthetic catalog when the feed is unavailable.
package catalog

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/signalsfoundry/impact-simulator/core"
	"github.com/signalsfoundry/impact-simulator/internal/logging"
	"github.com/signalsfoundry/impact-simulator/model"
)

// Source identifies which path produced a Result.
type Source string

const (
	SourceLive     Source = "live"
	SourceFallback Source = "fallback"
	// SourceAborted marks a cycle cut short by its caller's context. It
	// carries no asteroids and must not replace an installed catalog.
	SourceAborted Source = "aborted"
)

// Enrichment outcomes reported to the metrics recorder.
const (
	EnrichOK      = "ok"
	EnrichError   = "error"
	EnrichNoOrbit = "no_orbit"
	EnrichInvalid = "invalid"
)

const (
	// Placeholder positions spread miss distances over this scene radius.
	minSceneRadius = 15.0
	maxSceneRadius = 75.0
	// maxMissKm maps to maxSceneRadius; farther objects are clamped.
	maxMissKm = 7.5e7

	// SceneUnitsPerAU scales heliocentric positions of enriched asteroids.
	SceneUnitsPerAU = 30.0
)

// Result is the outcome of one fetch cycle. Reason is set for fallback
// and aborted results.
type Result struct {
	Asteroids []model.Asteroid
	Source    Source
	Reason    error
	FetchedAt time.Time
}

// Live reports whether the result came from the catalog service.
func (r Result) Live() bool { return r.Source == SourceLive }

// Aborted reports whether the caller's context ended the cycle.
func (r Result) Aborted() bool { return r.Source == SourceAborted }

// Fetcher is the upstream the adapter reads from. *Client implements it.
type Fetcher interface {
	FetchFeed(ctx context.Context, start, end time.Time) ([]Record, error)
	FetchOrbit(ctx context.Context, id string) (*model.OrbitalElements, error)
}

// MetricsRecorder receives fetch and enrichment observations.
type MetricsRecorder interface {
	ObserveCatalogFetch(source string, d time.Duration)
	ObserveEnrichment(result string)
}

// Config sizes a fetch cycle.
type Config struct {
	WindowDays        int
	EnrichLimit       int
	EnrichConcurrency int
	EnrichTimeout     time.Duration
	// EnrichRate caps orbital lookups per second; 0 means unlimited.
	EnrichRate    float64
	MaxAsteroids  int
	FallbackCount int
}

// DefaultConfig returns the standard cycle sizing.
func DefaultConfig() Config {
	return Config{
		WindowDays:        7,
		EnrichLimit:       40,
		EnrichConcurrency: 40,
		EnrichTimeout:     10 * time.Second,
		MaxAsteroids:      100,
		FallbackCount:     50,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.WindowDays <= 0 {
		c.WindowDays = d.WindowDays
	}
	if c.EnrichLimit < 0 {
		c.EnrichLimit = d.EnrichLimit
	}
	if c.EnrichConcurrency <= 0 {
		c.EnrichConcurrency = d.EnrichConcurrency
	}
	if c.EnrichTimeout <= 0 {
		c.EnrichTimeout = d.EnrichTimeout
	}
	if c.EnrichRate < 0 {
		c.EnrichRate = 0
	}
	if c.MaxAsteroids <= 0 {
		c.MaxAsteroids = d.MaxAsteroids
	}
	if c.FallbackCount < 0 {
		c.FallbackCount = d.FallbackCount
	}
	return c
}

// Option customizes an Adapter.
type Option func(*Adapter)

// WithLogger sets the adapter logger.
func WithLogger(log logging.Logger) Option {
	return func(a *Adapter) {
		if log != nil {
			a.log = log
		}
	}
}

// WithMetricsRecorder wires fetch and enrichment metrics.
func WithMetricsRecorder(rec MetricsRecorder) Option {
	return func(a *Adapter) { a.metrics = rec }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) {
		if now != nil {
			a.now = now
		}
	}
}

// WithRandSource seeds placeholder placement, making it reproducible.
func WithRandSource(src rand.Source) Option {
	return func(a *Adapter) { a.src = src }
}

// Adapter normalizes catalog records into asteroids.
type Adapter struct {
	fetcher Fetcher
	cfg     Config
	log     logging.Logger
	metrics MetricsRecorder
	now     func() time.Time
	src     rand.Source
	tracer  trace.Tracer
}

// NewAdapter builds an Adapter over fetcher.
func NewAdapter(fetcher Fetcher, cfg Config, opts ...Option) *Adapter {
	a := &Adapter{
		fetcher: fetcher,
		cfg:     cfg.withDefaults(),
		log:     logging.Noop(),
		now:     time.Now,
		tracer:  otel.Tracer("impact-simulator/catalog"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// FetchAsteroids runs one fetch cycle. It never returns an error: a failed
// feed request yields a fallback Result carrying the synthetic catalog and
// the failure reason. If ctx ends first, the Result is aborted instead;
// cancellation is not an upstream failure.
func (a *Adapter) FetchAsteroids(ctx context.Context) Result {
	started := time.Now()
	now := a.now()

	ctx, span := a.tracer.Start(ctx, "catalog.FetchAsteroids")
	defer span.End()

	res := a.fetch(ctx, now)
	res.FetchedAt = now

	span.SetAttributes(
		attribute.String("catalog.source", string(res.Source)),
		attribute.Int("catalog.asteroids", len(res.Asteroids)),
	)
	if res.Reason != nil {
		span.RecordError(res.Reason)
		span.SetStatus(codes.Error, res.Reason.Error())
	}
	if a.metrics != nil {
		a.metrics.ObserveCatalogFetch(string(res.Source), time.Since(started))
	}
	return res
}

func (a *Adapter) fetch(ctx context.Context, now time.Time) Result {
	if a.fetcher == nil {
		return a.fallback(ctx, now, errors.New("catalog: no fetcher configured"))
	}

	end := now.UTC().Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -a.cfg.WindowDays)
	records, err := a.fetcher.FetchFeed(ctx, start, end)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return a.aborted(ctx, ctxErr)
		}
		return a.fallback(ctx, now, err)
	}

	rng := a.rand(now)
	asteroids := make([]model.Asteroid, 0, len(records))
	for _, rec := range records {
		if ast, ok := Normalize(rec, rng); ok {
			asteroids = append(asteroids, ast)
		}
	}
	if dropped := len(records) - len(asteroids); dropped > 0 {
		a.log.Debug(ctx, "skipped incomplete catalog records", logging.Int("count", dropped))
	}

	a.enrich(ctx, asteroids)
	// Orbits lost to cancellation would otherwise pass as a live result.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return a.aborted(ctx, ctxErr)
	}

	if len(asteroids) > a.cfg.MaxAsteroids {
		asteroids = asteroids[:a.cfg.MaxAsteroids]
	}
	a.log.Info(ctx, "catalog fetched",
		logging.Int("records", len(records)),
		logging.Int("asteroids", len(asteroids)),
	)
	return Result{Asteroids: asteroids, Source: SourceLive}
}

func (a *Adapter) fallback(ctx context.Context, now time.Time, reason error) Result {
	a.log.Warn(ctx, "catalog feed unavailable; serving synthetic catalog",
		logging.Err(reason),
		logging.Int("count", a.cfg.FallbackCount),
	)
	return Result{
		Asteroids: Synthetic(a.cfg.FallbackCount, now),
		Source:    SourceFallback,
		Reason:    reason,
	}
}

func (a *Adapter) aborted(ctx context.Context, reason error) Result {
	a.log.Info(ctx, "catalog fetch cycle aborted", logging.Err(reason))
	return Result{Source: SourceAborted, Reason: reason}
}

// enrich fetches orbital elements for the leading asteroids concurrently.
// Each goroutine writes only its own slice element; failures leave the
// asteroid on its default angles.
func (a *Adapter) enrich(ctx context.Context, asteroids []model.Asteroid) {
	n := min(len(asteroids), a.cfg.EnrichLimit)
	if n == 0 {
		return
	}

	var limiter *rate.Limiter
	if a.cfg.EnrichRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(a.cfg.EnrichRate), 1)
	}

	var g errgroup.Group
	g.SetLimit(a.cfg.EnrichConcurrency)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			result := a.enrichOne(ctx, limiter, &asteroids[i])
			if a.metrics != nil {
				a.metrics.ObserveEnrichment(result)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (a *Adapter) enrichOne(ctx context.Context, limiter *rate.Limiter, ast *model.Asteroid) string {
	ctx, span := a.tracer.Start(ctx, "catalog.EnrichOrbit",
		trace.WithAttributes(attribute.String("asteroid.id", ast.ID)))
	defer span.End()

	log := a.log.With(logging.String("asteroid_id", ast.ID))

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			span.RecordError(err)
			log.Warn(ctx, "orbital enrichment skipped", logging.Err(err))
			return EnrichError
		}
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.EnrichTimeout)
	defer cancel()

	el, err := a.fetcher.FetchOrbit(ctx, ast.ID)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrNoOrbitalData) {
			log.Debug(ctx, "no orbital data")
			return EnrichNoOrbit
		}
		span.SetStatus(codes.Error, err.Error())
		log.Warn(ctx, "orbital enrichment failed", logging.Err(err))
		return EnrichError
	}

	g := core.ComputeOrbitalGeometry(el, ast.VelocityKms)
	if g == nil {
		log.Debug(ctx, "orbital elements unusable")
		return EnrichInvalid
	}

	enriched := ast.WithOrbit(g)
	enriched.Position = core.OrbitPosition(g).Scale(SceneUnitsPerAU).Model()
	*ast = enriched
	span.SetAttributes(
		attribute.Float64("impact.angle_deg", g.ImpactAngleDeg),
		attribute.Float64("impact.azimuth_deg", g.ImpactAzimuthDeg),
	)
	return EnrichOK
}

func (a *Adapter) rand(now time.Time) *rand.Rand {
	if a.src != nil {
		return rand.New(a.src)
	}
	seed := uint64(now.UnixNano())
	return rand.New(rand.NewPCG(seed, seed>>17|1))
}

// Normalize converts one raw record. Records without diameter bounds or
// close-approach data, or with a non-positive diameter, are rejected.
func Normalize(rec Record, rng *rand.Rand) (model.Asteroid, bool) {
	if rec.EstimatedDiameter == nil || rec.EstimatedDiameter.Kilometers == nil || len(rec.CloseApproaches) == 0 {
		return model.Asteroid{}, false
	}
	km := rec.EstimatedDiameter.Kilometers
	diameter := (km.Min + km.Max) / 2
	if !(diameter > 0) || math.IsInf(diameter, 0) {
		return model.Asteroid{}, false
	}

	approach := rec.CloseApproaches[0]
	kms, _ := approach.RelativeVelocity.KilometersPerSecond.Float()
	kmh, ok := approach.RelativeVelocity.KilometersPerHour.Float()
	if !ok {
		kmh = kms * 3600
	}
	miss, _ := approach.MissDistance.Kilometers.Float()

	var date time.Time
	if t, err := time.Parse(dateLayout, approach.Date); err == nil {
		date = t
	}

	return model.Asteroid{
		ID:                rec.ID,
		Name:              rec.Name,
		DiameterKm:        diameter,
		VelocityKmh:       kmh,
		VelocityKms:       kms,
		AbsoluteMagnitude: rec.AbsoluteMagnitude,
		Hazardous:         rec.Hazardous,
		MissDistanceKm:    miss,
		CloseApproachDate: date,
		Position:          PlaceholderPosition(miss, rng),
		ImpactAngleDeg:    model.DefaultImpactAngleDeg,
		ImpactAzimuthDeg:  model.DefaultImpactAzimuthDeg,
	}, true
}

// PlaceholderPosition places an object at a radius proportional to its
// miss distance, within [15, 75] scene units, at random angles. The
// result is cosmetic until enrichment replaces it.
func PlaceholderPosition(missKm float64, rng *rand.Rand) model.Vec {
	frac := 0.0
	if missKm > 0 && !math.IsInf(missKm, 0) {
		frac = math.Min(missKm/maxMissKm, 1)
	}
	r := minSceneRadius + frac*(maxSceneRadius-minSceneRadius)

	theta := rng.Float64() * 2 * math.Pi
	phi := (rng.Float64() - 0.5) * math.Pi / 3
	return model.Vec{
		X: r * math.Cos(phi) * math.Cos(theta),
		Y: r * math.Sin(phi),
		Z: r * math.Cos(phi) * math.Sin(theta),
	}
}
