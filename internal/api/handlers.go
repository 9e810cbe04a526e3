// Package api serves the asteroid catalog, density lookups and impact
// simulations over HTTP/JSON.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/impact-simulator/core"
	"github.com/signalsfoundry/impact-simulator/internal/logging"
	"github.com/signalsfoundry/impact-simulator/internal/population"
	"github.com/signalsfoundry/impact-simulator/kb"
	"github.com/signalsfoundry/impact-simulator/model"
)

// Catalog is the read side of kb.Catalog.
type Catalog interface {
	Get(id string) (model.Asteroid, bool)
	Snapshot() kb.Snapshot
	Len() int
}

// DensityEstimator is the part of population.Estimator the API exposes.
type DensityEstimator interface {
	core.DensityEstimator
	Lookup(key string) (float64, bool)
	Loaded() bool
}

// RefreshFunc runs one catalog fetch cycle and returns the installed
// generation.
type RefreshFunc func(ctx context.Context) kb.Snapshot

// RefreshTicker reports the periodic refresh loop's progress.
// *timectrl.TimeController implements it.
type RefreshTicker interface {
	LastTick() (time.Time, int)
}

// MetricsRecorder receives request and simulation counts.
type MetricsRecorder interface {
	ObserveHTTPRequest(route string, code int, d time.Duration)
	IncImpactSimulations()
}

// Option customizes a Handler.
type Option func(*Handler)

// WithLogger sets the base logger; request loggers derive from it.
func WithLogger(log logging.Logger) Option {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

// WithMetricsRecorder wires request metrics.
func WithMetricsRecorder(rec MetricsRecorder) Option {
	return func(h *Handler) { h.metrics = rec }
}

// WithRefresher enables POST /api/refresh.
func WithRefresher(fn RefreshFunc) Option {
	return func(h *Handler) { h.refresh = fn }
}

// WithRefreshTicker adds refresh loop progress to /healthz.
func WithRefreshTicker(t RefreshTicker) Option {
	return func(h *Handler) { h.ticker = t }
}

// WithClock replaces time.Now for impact epochs of undated asteroids.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// Handler wires the catalog store and density estimator to HTTP routes.
type Handler struct {
	catalog Catalog
	density DensityEstimator
	refresh RefreshFunc
	events  EventSource
	ticker  RefreshTicker
	metrics MetricsRecorder
	log     logging.Logger
	now     func() time.Time
}

// NewHandler constructs a Handler. A nil catalog serves an empty store and
// a nil density estimator falls back to the headless analytic model.
func NewHandler(catalog Catalog, density DensityEstimator, opts ...Option) *Handler {
	if catalog == nil {
		catalog = kb.NewCatalog()
	}
	if density == nil {
		density = population.NewEstimator(population.Config{})
	}
	h := &Handler{
		catalog: catalog,
		density: density,
		log:     logging.Noop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register attaches API routes to the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	h.handle(mux, "GET /api/asteroids", h.handleList)
	h.handle(mux, "GET /api/asteroids/{id}", h.handleGet)
	h.handle(mux, "GET /api/asteroids/{id}/impact", h.handleImpact)
	h.handle(mux, "GET /api/density", h.handleDensity)
	h.handle(mux, "POST /api/refresh", h.handleRefresh)
	h.handle(mux, "GET /api/stream", h.handleStream)
	h.handle(mux, "GET /healthz", h.handleHealth)
}

// Routes returns a ready-to-serve handler with request IDs attached.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	h.Register(mux)
	return RequestID(h.log, mux)
}

func (h *Handler) handle(mux *http.ServeMux, pattern string, fn http.HandlerFunc) {
	mux.Handle(pattern, h.instrument(pattern, fn))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, h.catalog.Snapshot())
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	a, err := h.lookup(r.PathValue("id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, a)
}

type impactResponse struct {
	Asteroid model.Asteroid     `json:"asteroid"`
	Target   *model.GeoPoint    `json:"target,omitempty"`
	Report   model.ImpactReport `json:"report"`
	Site     *model.ImpactSite  `json:"site,omitempty"`
}

func (h *Handler) handleImpact(w http.ResponseWriter, r *http.Request) {
	a, err := h.lookup(r.PathValue("id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	target, err := parseTarget(r.URL.Query(), false)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	_, span := startChildSpan(r.Context(), "impact.ComputeEffects",
		attribute.String("asteroid_id", a.ID),
		attribute.Bool("targeted", target != nil),
	)
	fx := core.ComputeImpactEffects(a, target, h.density)
	span.SetAttributes(attribute.Float64("energy_mt", fx.EnergyMt))
	span.End()

	resp := impactResponse{Asteroid: a, Target: target, Report: core.Report(fx)}
	if target != nil {
		epoch := a.CloseApproachDate
		if epoch.IsZero() {
			epoch = h.now()
		}
		site := core.ImpactSite(*target, epoch)
		resp.Site = &site
	}
	if h.metrics != nil {
		h.metrics.IncImpactSimulations()
	}

	logging.FromContext(r.Context(), h.log).Debug(r.Context(), "impact simulated",
		logging.String("asteroid_id", a.ID),
		logging.Float("energy_mt", fx.EnergyMt),
		logging.Any("total_deaths", fx.TotalDeaths),
	)
	h.respondJSON(w, resp)
}

type densityResponse struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Density   float64 `json:"density"`
	Cached    bool    `json:"cached"`
	MapLoaded bool    `json:"map_loaded"`
}

func (h *Handler) handleDensity(w http.ResponseWriter, r *http.Request) {
	target, err := parseTarget(r.URL.Query(), true)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	density := h.density.Estimate(target)
	_, cached := h.density.Lookup(population.CacheKey(target.Lat, target.Lng))
	h.respondJSON(w, densityResponse{
		Lat:       target.Lat,
		Lng:       target.Lng,
		Density:   density,
		Cached:    cached,
		MapLoaded: h.density.Loaded(),
	})
}

type refreshResponse struct {
	Source    string    `json:"source"`
	Reason    string    `json:"reason,omitempty"`
	Count     int       `json:"count"`
	FetchedAt time.Time `json:"fetched_at"`
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if h.refresh == nil {
		h.respondError(w, r, fmt.Errorf("catalog refresh: %w", ErrUnavailable))
		return
	}
	snap := h.refresh(r.Context())
	h.respondJSON(w, refreshResponse{
		Source:    snap.Source,
		Reason:    snap.Reason,
		Count:     len(snap.Asteroids),
		FetchedAt: snap.FetchedAt,
	})
}

type healthResponse struct {
	Status       string     `json:"status"`
	CatalogSize  int        `json:"catalog_size"`
	Source       string     `json:"source"`
	MapLoaded    bool       `json:"density_map_loaded"`
	LastRefresh  *time.Time `json:"last_refresh,omitempty"`
	RefreshTicks int        `json:"refresh_ticks"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := h.catalog.Snapshot()
	resp := healthResponse{
		Status:      "ok",
		CatalogSize: len(snap.Asteroids),
		Source:      snap.Source,
		MapLoaded:   h.density.Loaded(),
	}
	if h.ticker != nil {
		last, ticks := h.ticker.LastTick()
		if !last.IsZero() {
			resp.LastRefresh = &last
		}
		resp.RefreshTicks = ticks
	}
	h.respondJSON(w, resp)
}

func (h *Handler) lookup(id string) (model.Asteroid, error) {
	a, ok := h.catalog.Get(id)
	if !ok {
		return model.Asteroid{}, fmt.Errorf("asteroid %q: %w", id, ErrNotFound)
	}
	return a, nil
}

// parseTarget reads lat and lng. When required is false and both are
// absent it returns nil, meaning no target was selected.
func parseTarget(q url.Values, required bool) (*model.GeoPoint, error) {
	latRaw, lngRaw := q.Get("lat"), q.Get("lng")
	if latRaw == "" && lngRaw == "" && !required {
		return nil, nil
	}
	lat, err := parseCoord("lat", latRaw, 90)
	if err != nil {
		return nil, err
	}
	lng, err := parseCoord("lng", lngRaw, 180)
	if err != nil {
		return nil, err
	}
	return &model.GeoPoint{Lat: lat, Lng: lng}, nil
}

func parseCoord(name, raw string, limit float64) (float64, error) {
	if raw == "" {
		return 0, fmt.Errorf("%w: %s is required", ErrInvalidArgument, name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %s must be a number, got %q", ErrInvalidArgument, name, raw)
	}
	if v < -limit || v > limit {
		return 0, fmt.Errorf("%w: %s must be within ±%g", ErrInvalidArgument, name, limit)
	}
	return v, nil
}

func (h *Handler) respondJSON(w http.ResponseWriter, payload any) {
	h.respondJSONStatus(w, http.StatusOK, payload)
}

func (h *Handler) respondJSONStatus(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Warn(context.Background(), "encode response", logging.Err(err))
	}
}
