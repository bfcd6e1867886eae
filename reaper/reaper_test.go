package reaper_test

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/firasghr/GoPotluck/metrics"
	"github.com/firasghr/GoPotluck/reaper"
	"github.com/firasghr/GoPotluck/session"
	"github.com/firasghr/GoPotluck/worker"
)

// notifyRecorder captures the session ids the reaper hands to the worker
// pool, standing in for the hub's expiry broadcast.
type notifyRecorder struct {
	mu  sync.Mutex
	ids []string
	ch  chan string
}

func newNotifyRecorder() *notifyRecorder {
	return &notifyRecorder{ch: make(chan string, 16)}
}

func (n *notifyRecorder) notify(sessionID string) {
	n.mu.Lock()
	n.ids = append(n.ids, sessionID)
	n.mu.Unlock()
	n.ch <- sessionID
}

func (n *notifyRecorder) wait(t *testing.T, want int) []string {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		n.mu.Lock()
		got := len(n.ids)
		n.mu.Unlock()
		if got >= want {
			n.mu.Lock()
			defer n.mu.Unlock()
			return append([]string(nil), n.ids...)
		}
		select {
		case <-n.ch:
		case <-deadline:
			t.Fatalf("timed out waiting for %d notifications, got %d", want, got)
		}
	}
}

func TestReaperRemovesExpiredSessions(t *testing.T) {
	store := session.NewStore(40 * time.Millisecond)
	store.Create("S1", "U1", "Alice")
	store.Create("S2", "U2", "Bob")

	pool := worker.New(2)
	defer pool.Stop()
	rec := newNotifyRecorder()
	m := metrics.New()

	r := reaper.New(store, pool, 20*time.Millisecond, rec.notify, m, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.Start()
	defer r.Stop()

	ids := rec.wait(t, 2)
	seen := map[string]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen["S1"] || !seen["S2"] {
		t.Errorf("notified sessions = %v, want S1 and S2", ids)
	}

	if _, ok := store.Get("S1"); ok {
		t.Error("S1 still resolvable after reap")
	}
	if _, ok := store.Get("S2"); ok {
		t.Error("S2 still resolvable after reap")
	}
	if got := m.SessionsReaped.Load(); got != 2 {
		t.Errorf("SessionsReaped = %d, want 2", got)
	}
}

func TestReaperLeavesActiveSessions(t *testing.T) {
	store := session.NewStore(time.Hour)
	store.Create("S", "U1", "Alice")

	pool := worker.New(1)
	defer pool.Stop()
	rec := newNotifyRecorder()

	r := reaper.New(store, pool, 10*time.Millisecond, rec.notify, metrics.New(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.Start()
	defer r.Stop()

	time.Sleep(80 * time.Millisecond)
	if _, ok := store.Get("S"); !ok {
		t.Error("active session reaped")
	}
	rec.mu.Lock()
	notified := len(rec.ids)
	rec.mu.Unlock()
	if notified != 0 {
		t.Errorf("notifications for active session = %d, want 0", notified)
	}
}

func TestReaperActivityDefersReap(t *testing.T) {
	store := session.NewStore(60 * time.Millisecond)
	s, _ := store.Create("S", "U1", "Alice")

	pool := worker.New(1)
	defer pool.Stop()
	rec := newNotifyRecorder()

	r := reaper.New(store, pool, 15*time.Millisecond, rec.notify, metrics.New(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.Start()
	defer r.Stop()

	// Keep the session active past several sweep intervals.
	for i := 0; i < 4; i++ {
		time.Sleep(30 * time.Millisecond)
		s.SetContext("busy")
	}
	if _, ok := store.Get("S"); !ok {
		t.Error("session reaped despite ongoing activity")
	}

	// Once activity stops, the next sweeps take it.
	rec.wait(t, 1)
	if _, ok := store.Get("S"); ok {
		t.Error("idle session survived")
	}
}

func TestReaperStopIsIdempotent(t *testing.T) {
	store := session.NewStore(time.Hour)
	pool := worker.New(1)
	defer pool.Stop()

	r := reaper.New(store, pool, time.Millisecond, func(string) {}, metrics.New(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.Start()
	r.Stop()
	r.Stop()
}
