// Package worker hosts the background loops that keep serving-path state
// fresh without blocking request handling.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"rag-agent/agent"
)

const (
	defaultRefreshInterval = 5 * time.Minute
	refreshTimeout         = 10 * time.Second
)

// CatalogRefresher re-lists the collection catalog from the store on a
// jittered interval into an atomic snapshot. The HTTP facade and the select
// stage read the snapshot instead of querying the store per request.
type CatalogRefresher struct {
	source   agent.CatalogSource
	interval time.Duration
	log      *slog.Logger

	snapshot atomic.Pointer[[]agent.Collection]
	stopChan chan struct{}
	doneChan chan struct{}
}

func NewCatalogRefresher(source agent.CatalogSource, interval time.Duration, log *slog.Logger) *CatalogRefresher {
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	return &CatalogRefresher{
		source:   source,
		interval: interval,
		log:      log,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start performs one synchronous refresh so the snapshot is warm when the
// server begins accepting traffic, then refreshes in the background until
// ctx is canceled or Stop is called.
func (r *CatalogRefresher) Start(ctx context.Context) {
	r.log.Info("starting catalog refresher", slog.Duration("interval", r.interval))
	r.refreshOnce(ctx)
	go r.run(ctx)
}

func (r *CatalogRefresher) Stop() {
	r.log.Info("stopping catalog refresher")
	close(r.stopChan)
	<-r.doneChan
}

func (r *CatalogRefresher) run(ctx context.Context) {
	defer close(r.doneChan)

	timer := time.NewTimer(r.jittered())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		case <-timer.C:
			r.refreshOnce(ctx)
			timer.Reset(r.jittered())
		}
	}
}

func (r *CatalogRefresher) refreshOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()
	if err := r.Refresh(ctx); err != nil {
		r.log.Warn("catalog refresh failed, keeping previous snapshot",
			slog.String("error", err.Error()))
	}
}

// Refresh performs one listing and swaps the snapshot. A failure keeps the
// previous snapshot in place.
func (r *CatalogRefresher) Refresh(ctx context.Context) error {
	catalog, err := r.source.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}
	r.snapshot.Store(&catalog)
	r.log.Debug("catalog_refreshed", slog.Int("collections", len(catalog)))
	return nil
}

// Collections returns the last refreshed catalog, nil before the first
// successful refresh.
func (r *CatalogRefresher) Collections() []agent.Collection {
	if snap := r.snapshot.Load(); snap != nil {
		return *snap
	}
	return nil
}

// ListCollections serves the snapshot, so a select stage reading the catalog
// through the refresher never waits on the store.
func (r *CatalogRefresher) ListCollections(context.Context) ([]agent.Collection, error) {
	return r.Collections(), nil
}

// jittered spreads refresh ticks so replicas do not hit the store in
// lockstep.
func (r *CatalogRefresher) jittered() time.Duration {
	return r.interval + rand.N(r.interval/10+1)
}

var _ agent.CatalogSource = (*CatalogRefresher)(nil)
