package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/signalsfoundry/impact-simulator/internal/population"
	"github.com/signalsfoundry/impact-simulator/kb"
	"github.com/signalsfoundry/impact-simulator/model"
)

func TestStreamPushesSnapshotAndReplacements(t *testing.T) {
	store := kb.NewCatalog()
	store.Replace(kb.Snapshot{Asteroids: []model.Asteroid{testAsteroid()}, Source: "live"})

	rec := &recorder{}
	h := NewHandler(store, population.NewEstimator(population.Config{}), WithEvents(store), WithMetricsRecorder(rec))
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("status = %d, want 101", resp.StatusCode)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first streamMessage
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if first.Type != "snapshot" || len(first.Asteroids) != 1 || first.Source != "live" {
		t.Fatalf("unexpected first message %+v", first)
	}

	store.Replace(kb.Snapshot{
		Asteroids: make([]model.Asteroid, 3),
		Source:    "fallback",
		Reason:    "catalog feed: upstream error",
	})

	var next streamMessage
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatalf("read replacement: %v", err)
	}
	if next.Type != "replaced" || len(next.Asteroids) != 3 || next.Reason == "" {
		t.Fatalf("unexpected replacement message %+v", next)
	}
}

func TestStreamUnavailableWithoutEvents(t *testing.T) {
	srv, _, _ := newTestServer(t)
	if r := getJSON(t, srv, http.MethodGet, "/api/stream", nil); r.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", r.StatusCode)
	}
}

func TestStreamRejectsPlainHTTP(t *testing.T) {
	store := kb.NewCatalog()
	h := NewHandler(store, population.NewEstimator(population.Config{}), WithEvents(store))

	w := httptest.NewRecorder()
	h.Routes().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stream", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for a non-websocket request", w.Code)
	}
}
