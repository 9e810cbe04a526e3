package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/impact-simulator/internal/api"
	"github.com/signalsfoundry/impact-simulator/internal/catalog"
	"github.com/signalsfoundry/impact-simulator/internal/config"
	"github.com/signalsfoundry/impact-simulator/internal/logging"
	"github.com/signalsfoundry/impact-simulator/internal/observability"
	"github.com/signalsfoundry/impact-simulator/internal/population"
	"github.com/signalsfoundry/impact-simulator/kb"
	"github.com/signalsfoundry/impact-simulator/timectrl"
)

const (
	shutdownTimeout   = 5 * time.Second
	feedRetryBackoff  = 500 * time.Millisecond
	densityMapTimeout = 60 * time.Second
)

func main() {
	configPath := flag.String("config", "", "Path to an optional YAML, JSON or TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.NewFromEnv().Error(context.Background(), "failed to load configuration", logging.Err(err))
		os.Exit(1)
	}
	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		log.Error(ctx, "failed to listen for HTTP", logging.String("addr", cfg.HTTP.Addr), logging.Err(err))
		os.Exit(1)
	}

	if err := run(ctx, cfg, log, lis); err != nil {
		log.Error(ctx, "impact server exited", logging.Err(err))
		os.Exit(1)
	}
}

// run serves the API on lis until ctx is cancelled.
func run(ctx context.Context, cfg config.Config, log logging.Logger, lis net.Listener) error {
	cfg = cfg.ApplyDefaults()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: observability.DefaultServiceName,
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
	}, log)
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewCollector(prometheus.NewRegistry())
	if err != nil {
		return err
	}
	metricsSrv := serveMetrics(cfg.Metrics.Addr, collector, log)
	clock := timectrl.NewTimeController(cfg.Catalog.RefreshInterval, timectrl.SystemClock{})

	estimator := population.NewEstimator(population.Config{
		Interactive: cfg.Density.Interactive,
		Bounds:      cfg.Density.Rect(),
		Loader:      densityLoader(cfg.Density),
		LoadTimeout: cfg.Density.LoadTimeout,
	}, population.WithLogger(log), population.WithMetricsRecorder(collector))

	client := catalog.NewClient(
		catalog.WithBaseURL(cfg.Catalog.BaseURL),
		catalog.WithAPIKey(cfg.Catalog.APIKey),
		catalog.WithTimeout(cfg.Catalog.Timeout),
		catalog.WithRetries(cfg.Catalog.Retries, feedRetryBackoff),
	)
	adapter := catalog.NewAdapter(client, catalog.Config{
		WindowDays:        cfg.Catalog.WindowDays,
		EnrichLimit:       cfg.Catalog.EnrichLimit,
		EnrichConcurrency: cfg.Catalog.EnrichConcurrency,
		EnrichTimeout:     cfg.Catalog.EnrichTimeout,
		EnrichRate:        cfg.Catalog.EnrichRate,
		MaxAsteroids:      cfg.Catalog.MaxAsteroids,
		FallbackCount:     cfg.Catalog.FallbackCount,
	}, catalog.WithLogger(log), catalog.WithMetricsRecorder(collector), catalog.WithClock(clock.Now))

	store := kb.NewCatalog(kb.WithMetricsRecorder(collector))
	unsubscribe := store.Subscribe(func(e kb.Event) {
		log.Info(ctx, "catalog replaced",
			logging.String("source", e.Snapshot.Source),
			logging.Int("count", len(e.Snapshot.Asteroids)),
			logging.String("reason", e.Snapshot.Reason),
		)
	})
	defer unsubscribe()

	refresh := newRefresher(ctx, adapter, store, log)
	clock.AddListener(refresh.OnTick)

	handler := api.NewHandler(store, estimator,
		api.WithLogger(log),
		api.WithMetricsRecorder(collector),
		api.WithRefresher(refresh.Refresh),
		api.WithEvents(store),
		api.WithRefreshTicker(clock),
		api.WithClock(clock.Now),
	)
	srv := &http.Server{
		Handler:           handler.Routes(),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		// Streams are hijacked and outlive Shutdown; tie them to ctx.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := clock.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info(ctx, "starting impact HTTP server", logging.String("addr", lis.Addr().String()))
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(ctx, "shutting down impact server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func serveMetrics(addr string, collector *observability.Collector, log logging.Logger) *http.Server {
	if collector == nil || addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: shutdownTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}

// densityLoader prefers a local map file over a URL. With neither, the
// estimator runs on the analytic model alone.
func densityLoader(cfg config.DensityConfig) population.Loader {
	switch {
	case cfg.MapPath != "":
		return population.FileLoader(cfg.MapPath)
	case cfg.MapURL != "":
		return population.HTTPLoader(&http.Client{Timeout: densityMapTimeout}, cfg.MapURL)
	default:
		return nil
	}
}
