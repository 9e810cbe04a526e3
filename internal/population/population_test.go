package population

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/signalsfoundry/impact-simulator/model"
)

// worldMap returns a one-pixel-per-degree white map with a single black
// pixel covering lat 10..11, lng 20..21 and a mid-gray pixel covering
// lat -5..-4, lng -60..-59.
func worldMap() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 360, 180))
	for y := 0; y < 180; y++ {
		for x := 0; x < 360; x++ {
			img.Set(x, y, color.White)
		}
	}
	img.Set(200, 79, color.Black)
	img.Set(120, 94, color.RGBA{R: 128, G: 128, B: 128, A: 255})
	return img
}

func staticLoader(img image.Image, calls *atomic.Int32) Loader {
	return func(context.Context) (image.Image, error) {
		if calls != nil {
			calls.Add(1)
		}
		return img, nil
	}
}

type pathCounter struct {
	mu    sync.Mutex
	paths map[string]int
}

func (p *pathCounter) ObserveDensityLookup(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paths == nil {
		p.paths = make(map[string]int)
	}
	p.paths[path]++
}

func loadedEstimator(t *testing.T, cfg Config, opts ...Option) *Estimator {
	t.Helper()
	e := NewEstimator(cfg, opts...)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := e.WaitLoaded(ctx); err != nil {
		t.Fatalf("WaitLoaded: %v", err)
	}
	return e
}

func TestEstimate_MissingCoordinatesReturnDefault(t *testing.T) {
	e := NewEstimator(Config{})
	cases := map[string]*model.GeoPoint{
		"nil":     nil,
		"NaN lat": {Lat: math.NaN(), Lng: 10},
		"NaN lng": {Lat: 10, Lng: math.NaN()},
		"Inf lat": {Lat: math.Inf(1), Lng: 10},
	}
	for name, p := range cases {
		if got := e.Estimate(p); got != DefaultDensity {
			t.Fatalf("%s: Estimate = %v, want %v", name, got, DefaultDensity)
		}
	}
}

func TestEstimate_AlwaysWithinRange(t *testing.T) {
	e := loadedEstimator(t, Config{Loader: staticLoader(worldMap(), nil)})
	headless := NewEstimator(Config{})

	rng := rand.New(rand.NewPCG(7, 11))
	for i := 0; i < 2000; i++ {
		p := &model.GeoPoint{Lat: rng.Float64()*180 - 90, Lng: rng.Float64()*360 - 180}
		for _, est := range []*Estimator{e, headless} {
			if got := est.Estimate(p); got < 0 || got > MaxDensity {
				t.Fatalf("Estimate(%+v) = %v, outside [0, %v]", p, got, MaxDensity)
			}
		}
	}
}

func TestEstimate_RasterLookup(t *testing.T) {
	rec := &pathCounter{}
	e := loadedEstimator(t, Config{Loader: staticLoader(worldMap(), nil)}, WithMetricsRecorder(rec))

	if got := e.Estimate(&model.GeoPoint{Lat: 10.5, Lng: 20.5}); got != MaxDensity {
		t.Fatalf("black pixel density = %v, want %v", got, MaxDensity)
	}
	if got := e.Estimate(&model.GeoPoint{Lat: 45, Lng: 100}); got != 0 {
		t.Fatalf("white pixel density = %v, want 0", got)
	}
	want := math.Round((1 - 128.0/255) * MaxDensity)
	if got := e.Estimate(&model.GeoPoint{Lat: -4.5, Lng: -59.5}); got != want {
		t.Fatalf("gray pixel density = %v, want %v", got, want)
	}

	if v, ok := e.Lookup(CacheKey(10.5, 20.5)); !ok || v != MaxDensity {
		t.Fatalf("cache entry = %v, %v; want %v, true", v, ok, MaxDensity)
	}
	// A second hit is served from the cache.
	e.Estimate(&model.GeoPoint{Lat: 10.5, Lng: 20.5})
	if rec.paths[PathRaster] != 3 || rec.paths[PathCache] != 1 {
		t.Fatalf("lookup paths = %v, want 3 raster and 1 cache", rec.paths)
	}
}

func TestEstimate_FarEdgesHitLastPixel(t *testing.T) {
	img := worldMap()
	img.Set(359, 179, color.Black)
	img.Set(359, 0, color.Black)
	e := loadedEstimator(t, Config{Loader: staticLoader(img, nil)})

	cases := []struct {
		lat, lng float64
		want     float64
	}{
		{-90, 180, MaxDensity},
		{90, 180, MaxDensity},
		{-90, -180, 0},
		{90, -180, 0},
	}
	for _, tc := range cases {
		if got := e.Estimate(&model.GeoPoint{Lat: tc.lat, Lng: tc.lng}); got != tc.want {
			t.Fatalf("Estimate(%v, %v) = %v, want %v", tc.lat, tc.lng, got, tc.want)
		}
		if _, ok := e.Lookup(CacheKey(tc.lat, tc.lng)); !ok {
			t.Fatalf("(%v, %v) missed the raster", tc.lat, tc.lng)
		}
	}
}

func TestEstimate_OutOfBoundsFallsBackToAnalytic(t *testing.T) {
	// The box is twice the image size, so the eastern hemisphere falls off
	// the image.
	cfg := Config{
		Loader: staticLoader(worldMap(), nil),
		Bounds: image.Rect(0, 0, 720, 360),
	}
	e := loadedEstimator(t, cfg)

	p := &model.GeoPoint{Lat: 23.8, Lng: 90.4}
	if got, want := e.Estimate(p), Analytic(p.Lat, p.Lng); got != want {
		t.Fatalf("Estimate = %v, want analytic %v", got, want)
	}
	if _, ok := e.Lookup(CacheKey(p.Lat, p.Lng)); ok {
		t.Fatalf("analytic results must not be cached")
	}
}

func TestEstimate_InteractiveLoadsOnce(t *testing.T) {
	var calls atomic.Int32
	e := NewEstimator(Config{Interactive: true, Loader: staticLoader(worldMap(), &calls)})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Estimate(&model.GeoPoint{Lat: 1, Lng: 1})
		}()
	}
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := e.WaitLoaded(ctx); err != nil {
		t.Fatalf("WaitLoaded: %v", err)
	}
	if !e.Loaded() {
		t.Fatalf("map should be loaded")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("loader called %d times, want 1", got)
	}
}

func TestEstimate_HeadlessDoesNotLoad(t *testing.T) {
	var calls atomic.Int32
	e := NewEstimator(Config{Loader: staticLoader(worldMap(), &calls)})

	p := &model.GeoPoint{Lat: 10.5, Lng: 20.5}
	if got, want := e.Estimate(p), Analytic(p.Lat, p.Lng); got != want {
		t.Fatalf("Estimate = %v, want analytic %v", got, want)
	}
	if calls.Load() != 0 || e.Loaded() {
		t.Fatalf("headless estimator must not start a load")
	}
}

func TestEstimate_BlockedLoadDoesNotBlockEstimate(t *testing.T) {
	release := make(chan struct{})
	e := NewEstimator(Config{
		Interactive: true,
		Loader: func(ctx context.Context) (image.Image, error) {
			<-release
			return worldMap(), nil
		},
	})
	defer close(release)

	done := make(chan float64, 1)
	go func() { done <- e.Estimate(&model.GeoPoint{Lat: 10.5, Lng: 20.5}) }()

	select {
	case got := <-done:
		if got != Analytic(10.5, 20.5) {
			t.Fatalf("Estimate during load = %v, want analytic value", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("Estimate blocked on the map load")
	}
}

func TestWaitLoaded_ReportsFailure(t *testing.T) {
	ctx := context.Background()

	if err := NewEstimator(Config{}).WaitLoaded(ctx); !errors.Is(err, ErrMapUnavailable) {
		t.Fatalf("missing loader error = %v, want ErrMapUnavailable", err)
	}

	boom := errors.New("boom")
	e := NewEstimator(Config{Loader: func(context.Context) (image.Image, error) { return nil, boom }})
	if err := e.WaitLoaded(ctx); !errors.Is(err, boom) {
		t.Fatalf("loader error = %v, want boom", err)
	}
	if e.Loaded() {
		t.Fatalf("failed load must leave the map unloaded")
	}
}

func TestWaitLoaded_HonoursContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	e := NewEstimator(Config{Loader: func(context.Context) (image.Image, error) {
		<-release
		return nil, nil
	}})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := e.WaitLoaded(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("WaitLoaded = %v, want deadline exceeded", err)
	}
}

func TestAnalytic_DenseCentresOutrankOcean(t *testing.T) {
	dhaka := Analytic(23.81, 90.41)
	pacific := Analytic(-30, -140)
	if dhaka <= 10000 {
		t.Fatalf("Dhaka density = %v, want > 10000", dhaka)
	}
	if pacific != 0 {
		t.Fatalf("open Pacific density = %v, want 0", pacific)
	}
	if got := Analytic(math.NaN(), 0); got != DefaultDensity {
		t.Fatalf("Analytic(NaN) = %v, want %v", got, DefaultDensity)
	}
}

func TestAnalytic_ContinentalBiasBands(t *testing.T) {
	// Stepping east from London along its parallel keeps the latitude
	// weight fixed while crossing the bias bands.
	near := Analytic(51.51, 7.0)  // ~490 km from London
	far := Analytic(51.51, 14.5)  // ~1010 km from London
	none := Analytic(51.51, 22.0) // ~1280 km from Istanbul, the closest centre

	if !(near > far && far > none) {
		t.Fatalf("bias bands not ordered: near=%v far=%v none=%v", near, far, none)
	}
}

func TestCacheKey_ThreeDecimals(t *testing.T) {
	if got := CacheKey(12.34567, -0.0004); got != "12.346,-0.000" {
		t.Fatalf("CacheKey = %q", got)
	}
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestFileLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "density.png")
	if err := os.WriteFile(path, encodePNG(t, worldMap()), 0o644); err != nil {
		t.Fatalf("write map: %v", err)
	}

	img, err := FileLoader(path)(context.Background())
	if err != nil {
		t.Fatalf("FileLoader: %v", err)
	}
	if img.Bounds().Dx() != 360 || img.Bounds().Dy() != 180 {
		t.Fatalf("bounds = %v, want 360x180", img.Bounds())
	}

	if _, err := FileLoader(filepath.Join(t.TempDir(), "missing.png"))(context.Background()); !errors.Is(err, ErrMapUnavailable) {
		t.Fatalf("missing file error = %v, want ErrMapUnavailable", err)
	}
}

func TestHTTPLoader(t *testing.T) {
	body := encodePNG(t, worldMap())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/density.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	e := loadedEstimator(t, Config{Loader: HTTPLoader(srv.Client(), srv.URL+"/density.png")})
	if got := e.Estimate(&model.GeoPoint{Lat: 10.5, Lng: 20.5}); got != MaxDensity {
		t.Fatalf("density via HTTP map = %v, want %v", got, MaxDensity)
	}

	_, err := HTTPLoader(srv.Client(), srv.URL+"/missing.png")(context.Background())
	if !errors.Is(err, ErrMapUnavailable) {
		t.Fatalf("404 error = %v, want ErrMapUnavailable", err)
	}
}
