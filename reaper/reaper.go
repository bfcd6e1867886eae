// Package reaper deletes idle sessions and drives the worker pool that
// notifies their lingering connections.
package reaper

import (
	"log/slog"
	"sync"
	"time"

	"github.com/firasghr/GoPotluck/metrics"
	"github.com/firasghr/GoPotluck/session"
	"github.com/firasghr/GoPotluck/worker"
)

// Reaper periodically sweeps the session store for sessions idle beyond
// their TTL.
//
// Architecture:
//   - Start spawns a control goroutine that ticks at the configured
//     interval.  Each tick removes every expired session from the store in
//     one locked pass, then submits one notification job per removed
//     session to the worker pool.
//   - Notifications run on the pool rather than inline so a sweep that
//     reaps many sessions at once does not serialise their fan-outs; no
//     ordering is guaranteed across sessions anyway.
//   - A stop channel allows clean shutdown: Stop closes it and the control
//     goroutine exits after the current sweep completes.  Stop is
//     idempotent.
type Reaper struct {
	store    *session.Store
	pool     *worker.Pool
	interval time.Duration
	notify   func(sessionID string)
	metrics  *metrics.Metrics
	log      *slog.Logger

	stopCh chan struct{}
	once   sync.Once
}

// New creates a Reaper that sweeps store every interval and calls notify
// (the hub's expiry broadcast) for each session it removes.
func New(store *session.Store, pool *worker.Pool, interval time.Duration,
	notify func(sessionID string), m *metrics.Metrics, log *slog.Logger) *Reaper {
	return &Reaper{
		store:    store,
		pool:     pool,
		interval: interval,
		notify:   notify,
		metrics:  m,
		log:      log,
		stopCh:   make(chan struct{}),
	}
}

// Start begins periodic sweeping.  Non-blocking: the control goroutine runs
// in the background until Stop is called.
func (r *Reaper) Start() {
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.stopCh:
				return
			case now := <-ticker.C:
				r.sweep(now)
			}
		}
	}()
}

// sweep removes every expired session and fans out the notifications.
func (r *Reaper) sweep(now time.Time) {
	expired := r.store.Reap(now)
	for _, s := range expired {
		r.metrics.SessionsReaped.Add(1)
		r.log.Info("session expired", "session", s.ID())
		// Capture the id; the job may run after the loop moves on.
		id := s.ID()
		r.pool.Submit(func() {
			r.notify(id)
		})
	}
}

// Stop signals the Reaper to stop sweeping.  In-flight notification jobs
// are the worker pool's to finish; call Pool.Stop for that.
func (r *Reaper) Stop() {
	r.once.Do(func() {
		close(r.stopCh)
	})
}
