package timectrl

import (
	"context"
	"sync"
	"time"
)

// Clock is the time source shared by the catalog adapter and the refresh
// loop. Tests substitute a ManualClock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// ManualClock only moves when told to.
type ManualClock struct {
	mu  sync.RWMutex
	now time.Time
}

// NewManualClock returns a clock frozen at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the current manual time.
func (c *ManualClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Set jumps to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// TimeController fires registered listeners once at start and then on
// every Tick until its context is cancelled. Listeners run sequentially on
// the controller goroutine, so a slow refresh delays the next tick rather
// than overlapping it.
type TimeController struct {
	mu    sync.RWMutex
	Tick  time.Duration
	clock Clock

	lastTick  time.Time
	ticks     int
	listeners []func(context.Context, time.Time)
}

// NewTimeController constructs a controller. A nil clock means SystemClock.
func NewTimeController(tick time.Duration, clock Clock) *TimeController {
	if clock == nil {
		clock = SystemClock{}
	}
	return &TimeController{Tick: tick, clock: clock}
}

// Now returns the controller clock's time.
func (tc *TimeController) Now() time.Time {
	return tc.clock.Now()
}

// LastTick reports when listeners last fired and how many times they have.
func (tc *TimeController) LastTick() (time.Time, int) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.lastTick, tc.ticks
}

// AddListener registers a callback invoked on every tick.
func (tc *TimeController) AddListener(fn func(context.Context, time.Time)) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Run blocks until ctx is done. A non-positive Tick fires listeners once
// and then waits for cancellation.
func (tc *TimeController) Run(ctx context.Context) error {
	tc.fire(ctx)
	if tc.Tick <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(tc.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			tc.fire(ctx)
		}
	}
}

func (tc *TimeController) fire(ctx context.Context) {
	now := tc.clock.Now()

	tc.mu.Lock()
	tc.lastTick = now
	tc.ticks++
	listeners := append([]func(context.Context, time.Time){}, tc.listeners...)
	tc.mu.Unlock()

	for _, fn := range listeners {
		if ctx.Err() != nil {
			return
		}
		fn(ctx, now)
	}
}
