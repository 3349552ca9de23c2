// Package store keeps the latest ride event snapshot pulled from the backend
// and refreshes it on a cron schedule.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"waymatcher/internal/backend"
	appLog "waymatcher/internal/log"
	"waymatcher/internal/model"
)

// Fetcher is the subset of backend.Client the store needs.
type Fetcher interface {
	FetchEvents(ctx context.Context) (backend.FetchResult, error)
}

// Snapshot is an immutable view of the ride list. Consumers must not
// modify Events; a refresh publishes a new Snapshot instead.
type Snapshot struct {
	Events    []model.RideEvent
	FetchedAt time.Time
	FromCache bool
}

// Store publishes the latest Snapshot.
type Store struct {
	fetcher Fetcher

	mu   sync.RWMutex
	snap Snapshot

	// refreshMu serializes refreshes so an overlapping cron tick and a
	// manual refresh cannot race each other.
	refreshMu sync.Mutex
}

// New creates an empty Store.
func New(f Fetcher) *Store {
	return &Store{
		fetcher: f,
		snap:    Snapshot{Events: []model.RideEvent{}},
	}
}

// Snapshot returns the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Refresh fetches the ride list and publishes it as a new snapshot. On
// failure the previous snapshot stays in place.
func (s *Store) Refresh(ctx context.Context) (Snapshot, error) {
	if s.fetcher == nil {
		return Snapshot{}, errors.New("store: no fetcher configured")
	}

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	start := time.Now()
	res, err := s.fetcher.FetchEvents(ctx)
	if err != nil {
		appLog.Error("store refresh failed", err)
		return s.Snapshot(), err
	}

	snap := Snapshot{
		Events:    res.Events,
		FetchedAt: time.Now(),
		FromCache: res.FromCache,
	}

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()

	appLog.Info("store refreshed",
		"event_count", len(snap.Events),
		"from_cache", snap.FromCache,
		"duration", time.Since(start),
	)
	return snap, nil
}

// Refresher runs Store.Refresh on a cron schedule.
type Refresher struct {
	store *Store
	cron  *cron.Cron
	expr  string
}

// NewRefresher registers store refreshes on the cron expression expr, evaluated in loc.
func NewRefresher(st *Store, expr string, loc *time.Location) (*Refresher, error) {
	if loc == nil {
		loc = time.Local
	}
	c := cron.New(cron.WithLocation(loc))
	r := &Refresher{store: st, cron: c, expr: expr}

	if _, err := c.AddFunc(expr, r.tick); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Refresher) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	_, _ = r.store.Refresh(ctx)
}

// Start begins scheduling in the background.
func (r *Refresher) Start() {
	appLog.Info("refresher started", "refresh", r.expr)
	r.cron.Start()
}

// Stop stops scheduling and waits for a running refresh to finish or ctx to
// expire.
func (r *Refresher) Stop(ctx context.Context) {
	done := r.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	appLog.Info("refresher stopped")
}

// Next returns the next scheduled refresh time, or the zero time when the
// refresher has not been started.
func (r *Refresher) Next() time.Time {
	entries := r.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
