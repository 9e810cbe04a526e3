package main

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/signalsfoundry/impact-simulator/internal/catalog"
	"github.com/signalsfoundry/impact-simulator/internal/logging"
	"github.com/signalsfoundry/impact-simulator/kb"
)

// catalogFetcher is the part of *catalog.Adapter the refresher needs.
type catalogFetcher interface {
	FetchAsteroids(ctx context.Context) catalog.Result
}

const refreshCycleTimeout = 2 * time.Minute

// refresher runs fetch cycles into the catalog store. Overlapping callers
// (the periodic tick and POST /api/refresh) share one in-flight cycle.
// Cycles run under base, the server lifetime, so a departing caller never
// cuts one short.
type refresher struct {
	base    context.Context
	fetcher catalogFetcher
	store   *kb.Catalog
	log     logging.Logger
	timeout time.Duration
	group   singleflight.Group
}

func newRefresher(base context.Context, fetcher catalogFetcher, store *kb.Catalog, log logging.Logger) *refresher {
	if log == nil {
		log = logging.Noop()
	}
	return &refresher{
		base:    base,
		fetcher: fetcher,
		store:   store,
		log:     log,
		timeout: refreshCycleTimeout,
	}
}

// Refresh fetches a new generation, installs it and returns it. If ctx
// ends first, the cycle keeps running and Refresh returns the generation
// currently installed. Aborted cycles leave the store untouched.
func (r *refresher) Refresh(ctx context.Context) kb.Snapshot {
	ch := r.group.DoChan("catalog", func() (any, error) {
		cycleCtx, cancel := context.WithTimeout(r.base, r.timeout)
		defer cancel()

		res := r.fetcher.FetchAsteroids(cycleCtx)
		if res.Aborted() {
			r.log.Warn(cycleCtx, "catalog refresh aborted; keeping current generation", logging.Err(res.Reason))
			return r.store.Snapshot(), nil
		}
		snap := snapshotOf(res)
		r.store.Replace(snap)
		return snap, nil
	})
	select {
	case <-ctx.Done():
		return r.store.Snapshot()
	case res := <-ch:
		return res.Val.(kb.Snapshot)
	}
}

// OnTick adapts Refresh to a timectrl listener.
func (r *refresher) OnTick(ctx context.Context, _ time.Time) {
	snap := r.Refresh(ctx)
	r.log.Debug(ctx, "scheduled catalog refresh finished",
		logging.String("source", snap.Source),
		logging.Int("count", len(snap.Asteroids)),
	)
}

func snapshotOf(res catalog.Result) kb.Snapshot {
	snap := kb.Snapshot{
		Asteroids: res.Asteroids,
		Source:    string(res.Source),
		FetchedAt: res.FetchedAt,
	}
	if res.Reason != nil {
		snap.Reason = res.Reason.Error()
	}
	return snap
}
