package kb

import (
	"sync"
	"time"

	"github.com/signalsfoundry/impact-simulator/model"
)

// EventType indicates what kind of change happened in the catalog.
type EventType int

const (
	EventCatalogReplaced EventType = iota
)

// Event is emitted to subscribers when something interesting happens.
type Event struct {
	Type     EventType
	Snapshot Snapshot
}

// Snapshot is one complete catalog generation. Reason is empty for live
// snapshots and describes the upstream failure for fallback ones.
type Snapshot struct {
	Asteroids []model.Asteroid `json:"asteroids"`
	Source    string           `json:"source"`
	Reason    string           `json:"reason,omitempty"`
	FetchedAt time.Time        `json:"fetched_at"`
}

// MetricsRecorder receives the catalog size after every replacement.
type MetricsRecorder interface {
	SetCatalogSize(n int)
}

// Option customizes a Catalog.
type Option func(*Catalog)

// WithMetricsRecorder wires a size gauge.
func WithMetricsRecorder(rec MetricsRecorder) Option {
	return func(c *Catalog) { c.metrics = rec }
}

// Catalog is an in-memory, thread-safe store holding the current asteroid
// catalog. Generations are replaced wholesale, never edited in place.
type Catalog struct {
	mu sync.RWMutex

	snap  Snapshot
	index map[string]int

	subs    map[int]func(Event)
	nextSub int
	metrics MetricsRecorder
}

// NewCatalog constructs an empty catalog.
func NewCatalog(opts ...Option) *Catalog {
	c := &Catalog{
		index: make(map[string]int),
		subs:  make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Replace installs a new generation and notifies subscribers. The caller's
// slice is copied. When IDs repeat, the first occurrence wins lookups.
func (c *Catalog) Replace(s Snapshot) {
	asteroids := make([]model.Asteroid, len(s.Asteroids))
	copy(asteroids, s.Asteroids)
	s.Asteroids = asteroids

	index := make(map[string]int, len(asteroids))
	for i, a := range asteroids {
		if _, dup := index[a.ID]; !dup {
			index[a.ID] = i
		}
	}

	c.mu.Lock()
	c.snap = s
	c.index = index
	subs := make([]func(Event), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	metrics := c.metrics
	c.mu.Unlock()

	if metrics != nil {
		metrics.SetCatalogSize(len(asteroids))
	}

	// Notify subscribers outside the lock to avoid deadlocks.
	event := Event{Type: EventCatalogReplaced, Snapshot: s.clone()}
	for _, sub := range subs {
		sub(event)
	}
}

// Get returns the asteroid with the given ID.
func (c *Catalog) Get(id string) (model.Asteroid, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[id]
	if !ok {
		return model.Asteroid{}, false
	}
	return c.snap.Asteroids[i], true
}

// Snapshot returns a copy of the current generation.
func (c *Catalog) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.clone()
}

// Len returns the number of asteroids in the current generation.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.snap.Asteroids)
}

// Subscribe registers a callback for catalog events. It returns an
// unsubscribe function that is safe to call more than once.
func (c *Catalog) Subscribe(fn func(Event)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.Asteroids = make([]model.Asteroid, len(s.Asteroids))
	copy(out.Asteroids, s.Asteroids)
	return out
}
