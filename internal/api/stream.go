package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/signalsfoundry/impact-simulator/internal/logging"
	"github.com/signalsfoundry/impact-simulator/kb"
)

const (
	streamWriteTimeout = 10 * time.Second
	streamPingInterval = 30 * time.Second
)

// Visualizer clients are served from other origins.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// EventSource is the subscription side of kb.Catalog.
type EventSource interface {
	Subscribe(fn func(kb.Event)) (unsubscribe func())
}

// WithEvents enables GET /api/stream.
func WithEvents(src EventSource) Option {
	return func(h *Handler) { h.events = src }
}

type streamMessage struct {
	Type string `json:"type"`
	kb.Snapshot
}

// handleStream pushes the current catalog, then every replacement, over a
// websocket. A slow client only ever sees the newest generation.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		h.respondError(w, r, fmt.Errorf("catalog stream: %w", ErrUnavailable))
		return
	}
	log := logging.FromContext(r.Context(), h.log)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		log.Debug(r.Context(), "websocket upgrade failed", logging.Err(err))
		return
	}
	defer conn.Close()

	updates := make(chan kb.Snapshot, 1)
	unsubscribe := h.events.Subscribe(func(e kb.Event) {
		if e.Type != kb.EventCatalogReplaced {
			return
		}
		for {
			select {
			case updates <- e.Snapshot:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(msgType string, snap kb.Snapshot) error {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		return conn.WriteJSON(streamMessage{Type: msgType, Snapshot: snap})
	}
	if err := send("snapshot", h.catalog.Snapshot()); err != nil {
		log.Debug(r.Context(), "websocket write failed", logging.Err(err))
		return
	}

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-closed:
			return
		case snap := <-updates:
			if err := send("replaced", snap); err != nil {
				log.Debug(r.Context(), "websocket write failed", logging.Err(err))
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteTimeout)); err != nil {
				return
			}
		}
	}
}
