package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/signalsfoundry/impact-simulator/core"
	"github.com/signalsfoundry/impact-simulator/internal/catalog"
	"github.com/signalsfoundry/impact-simulator/internal/config"
	"github.com/signalsfoundry/impact-simulator/internal/logging"
	"github.com/signalsfoundry/impact-simulator/internal/population"
	"github.com/signalsfoundry/impact-simulator/model"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "simulator: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	diameterKm  float64
	velocityKms float64
	angleDeg    float64
	target      string
	orbit       string
	densityMap  string
	fetch       bool
	id          string
	configPath  string
	now         string
}

type output struct {
	Asteroid model.Asteroid     `json:"asteroid"`
	Target   *model.GeoPoint    `json:"target,omitempty"`
	Report   model.ImpactReport `json:"report"`
	Site     *model.ImpactSite  `json:"site,omitempty"`
}

// run simulates one impact and writes the report as JSON to stdout.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("simulator", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.Float64Var(&opts.diameterKm, "diameter", 0.5, "impactor diameter in km")
	fs.Float64Var(&opts.velocityKms, "velocity", 20, "impact velocity in km/s")
	fs.Float64Var(&opts.angleDeg, "angle", model.DefaultImpactAngleDeg, "entry angle in degrees, overridden by -orbit")
	fs.StringVar(&opts.target, "target", "", "impact point as \"lat,lng\" in degrees; empty means no target")
	fs.StringVar(&opts.orbit, "orbit", "", "classical elements \"e,i,node,peri,M,a\" (degrees, AU) used to derive entry geometry")
	fs.StringVar(&opts.densityMap, "density-map", "", "optional PNG/JPEG population density map")
	fs.BoolVar(&opts.fetch, "fetch", false, "simulate an asteroid from the live catalog instead of the flags")
	fs.StringVar(&opts.id, "id", "", "catalog ID to simulate with -fetch; defaults to the largest object")
	fs.StringVar(&opts.configPath, "config", "", "config file for -fetch")
	fs.StringVar(&opts.now, "epoch", "", "RFC 3339 epoch for the impact site; defaults to the close-approach date or now")
	if err := fs.Parse(args); err != nil {
		return err
	}

	target, err := parseTarget(opts.target)
	if err != nil {
		return err
	}

	log := logging.New(logging.Config{Level: "warn", Writer: stderr})

	var asteroid model.Asteroid
	if opts.fetch {
		asteroid, err = fetchAsteroid(ctx, opts, log)
	} else {
		asteroid, err = flagAsteroid(opts)
	}
	if err != nil {
		return err
	}

	estimator, err := newEstimator(ctx, opts.densityMap, log)
	if err != nil {
		return err
	}

	fx := core.ComputeImpactEffects(asteroid, target, estimator)
	out := output{Asteroid: asteroid, Target: target, Report: core.Report(fx)}
	if target != nil {
		epoch, err := impactEpoch(opts.now, asteroid)
		if err != nil {
			return err
		}
		site := core.ImpactSite(*target, epoch)
		out.Site = &site
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func flagAsteroid(opts options) (model.Asteroid, error) {
	if opts.diameterKm <= 0 {
		return model.Asteroid{}, fmt.Errorf("diameter must be positive, got %v", opts.diameterKm)
	}
	a := model.Asteroid{
		ID:               "cli",
		Name:             "command-line impactor",
		DiameterKm:       opts.diameterKm,
		VelocityKms:      opts.velocityKms,
		VelocityKmh:      opts.velocityKms * 3600,
		ImpactAngleDeg:   opts.angleDeg,
		ImpactAzimuthDeg: model.DefaultImpactAzimuthDeg,
	}
	if opts.orbit == "" {
		return a, nil
	}

	el, err := parseElements(opts.orbit)
	if err != nil {
		return model.Asteroid{}, err
	}
	g := core.ComputeOrbitalGeometry(el, opts.velocityKms)
	if g == nil {
		return model.Asteroid{}, errors.New("orbit: elements do not describe a bound orbit")
	}
	return a.WithOrbit(g), nil
}

func fetchAsteroid(ctx context.Context, opts options, log logging.Logger) (model.Asteroid, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return model.Asteroid{}, err
	}
	client := catalog.NewClient(
		catalog.WithBaseURL(cfg.Catalog.BaseURL),
		catalog.WithAPIKey(cfg.Catalog.APIKey),
		catalog.WithTimeout(cfg.Catalog.Timeout),
		catalog.WithRetries(cfg.Catalog.Retries, 500*time.Millisecond),
	)
	adapter := catalog.NewAdapter(client, catalog.Config{
		WindowDays:        cfg.Catalog.WindowDays,
		EnrichLimit:       cfg.Catalog.EnrichLimit,
		EnrichConcurrency: cfg.Catalog.EnrichConcurrency,
		EnrichTimeout:     cfg.Catalog.EnrichTimeout,
		EnrichRate:        cfg.Catalog.EnrichRate,
		MaxAsteroids:      cfg.Catalog.MaxAsteroids,
		FallbackCount:     cfg.Catalog.FallbackCount,
	}, catalog.WithLogger(log))

	res := adapter.FetchAsteroids(ctx)
	if res.Aborted() {
		return model.Asteroid{}, res.Reason
	}
	if !res.Live() {
		log.Warn(ctx, "catalog unavailable; simulating a synthetic asteroid", logging.Err(res.Reason))
	}
	return pickAsteroid(res.Asteroids, opts.id)
}

// pickAsteroid returns the asteroid with the given ID, or the largest one
// when id is empty.
func pickAsteroid(asteroids []model.Asteroid, id string) (model.Asteroid, error) {
	if len(asteroids) == 0 {
		return model.Asteroid{}, errors.New("catalog is empty")
	}
	best := -1
	for i, a := range asteroids {
		if id != "" {
			if a.ID == id {
				return a, nil
			}
			continue
		}
		if best < 0 || a.DiameterKm > asteroids[best].DiameterKm {
			best = i
		}
	}
	if best < 0 {
		return model.Asteroid{}, fmt.Errorf("asteroid %q not in catalog", id)
	}
	return asteroids[best], nil
}

// newEstimator returns a headless estimator. With a map path the map is
// loaded up front so the one-shot run can use raster densities.
func newEstimator(ctx context.Context, mapPath string, log logging.Logger) (*population.Estimator, error) {
	if mapPath == "" {
		return population.NewEstimator(population.Config{}, population.WithLogger(log)), nil
	}
	est := population.NewEstimator(population.Config{Loader: population.FileLoader(mapPath)}, population.WithLogger(log))
	if err := est.WaitLoaded(ctx); err != nil {
		return nil, fmt.Errorf("density map: %w", err)
	}
	return est, nil
}

func impactEpoch(raw string, a model.Asteroid) (time.Time, error) {
	switch {
	case raw != "":
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, fmt.Errorf("epoch: %w", err)
		}
		return t, nil
	case !a.CloseApproachDate.IsZero():
		return a.CloseApproachDate, nil
	default:
		return time.Now().UTC(), nil
	}
}

func parseTarget(raw string) (*model.GeoPoint, error) {
	if raw == "" {
		return nil, nil
	}
	vals, err := parseFloats(raw, 2)
	if err != nil {
		return nil, fmt.Errorf("target: %w", err)
	}
	if vals[0] < -90 || vals[0] > 90 || vals[1] < -180 || vals[1] > 180 {
		return nil, fmt.Errorf("target %q out of range", raw)
	}
	return &model.GeoPoint{Lat: vals[0], Lng: vals[1]}, nil
}

func parseElements(raw string) (*model.OrbitalElements, error) {
	vals, err := parseFloats(raw, 6)
	if err != nil {
		return nil, fmt.Errorf("orbit: %w", err)
	}
	return &model.OrbitalElements{
		Eccentricity:           model.DecimalOf(vals[0]),
		Inclination:            model.DecimalOf(vals[1]),
		AscendingNodeLongitude: model.DecimalOf(vals[2]),
		PerihelionArgument:     model.DecimalOf(vals[3]),
		MeanAnomaly:            model.DecimalOf(vals[4]),
		SemiMajorAxis:          model.DecimalOf(vals[5]),
	}, nil
}

func parseFloats(raw string, n int) ([]float64, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("want %d comma-separated values, got %d", n, len(parts))
	}
	out := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
