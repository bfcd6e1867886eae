// Package dashboard provides the observability HTTP server for the hub.
//
// It exposes:
//   - GET /healthz             – liveness probe
//   - GET /api/metrics         – point-in-time counters (JSON)
//   - GET /api/metrics/stream  – SSE stream of counters (1 s ticks)
//   - GET /api/sessions        – live session summaries (JSON)
//   - GET /api/config          – effective configuration (JSON)
//
// Session summaries deliberately omit document contents (ingredients,
// recipes, context): the dashboard is for operators, not participants.
// CORS is wide-open so a separately served frontend can reach the API.
package dashboard

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/firasghr/GoPotluck/config"
	"github.com/firasghr/GoPotluck/metrics"
	"github.com/firasghr/GoPotluck/session"
)

// SessionSummary is the operator-facing view of one live session.
type SessionSummary struct {
	ID           string `json:"id"`
	HostID       string `json:"hostId"`
	HostName     string `json:"hostName"`
	Participants int    `json:"participants"`
	Connected    int    `json:"connected"`
	Ingredients  int    `json:"ingredients"`
	Recipes      int    `json:"recipes"`
	CreatedAt    int64  `json:"createdAt"`
	LastActivity int64  `json:"lastActivity"`
	IdleSeconds  int64  `json:"idleSeconds"`
}

// Server serves the observability endpoints.
type Server struct {
	metrics *metrics.Metrics
	store   *session.Store
	cfg     *config.Config
	log     *slog.Logger

	subMu sync.Mutex
	subs  map[chan metrics.Snapshot]struct{}

	router chi.Router
}

// New creates a dashboard Server.  Call ListenAndServe to start accepting
// connections.
func New(m *metrics.Metrics, store *session.Store, cfg *config.Config, log *slog.Logger) *Server {
	s := &Server{
		metrics: m,
		store:   store,
		cfg:     cfg,
		log:     log,
		subs:    make(map[chan metrics.Snapshot]struct{}),
		router:  chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(cors)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/api/metrics", s.handleMetrics)
	s.router.Get("/api/metrics/stream", s.handleMetricsStream)
	s.router.Get("/api/sessions", s.handleSessions)
	s.router.Get("/api/config", s.handleConfig)
}

// ServeHTTP makes Server usable under httptest as well as ListenAndServe.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe starts the HTTP server on addr and blocks.  The write
// timeout is disabled because the SSE stream is long-lived by design;
// operators exposing the dashboard publicly should front it with a proxy.
func (s *Server) ListenAndServe(addr string) error {
	go s.ticker()
	s.log.Info("dashboard listening", "addr", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}
	return srv.ListenAndServe()
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "ok")
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.metrics.Snapshot())
}

func (s *Server) handleSessions(w http.ResponseWriter, _ *http.Request) {
	now := time.Now().UnixMilli()
	sessions := s.store.All()
	out := make([]SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		snap := sess.Snapshot()
		connected := 0
		for _, p := range snap.Participants {
			if p.IsConnected {
				connected++
			}
		}
		out = append(out, SessionSummary{
			ID:           snap.ID,
			HostID:       snap.HostID,
			HostName:     snap.HostName,
			Participants: len(snap.Participants),
			Connected:    connected,
			Ingredients:  len(snap.Ingredients),
			Recipes:      len(snap.Recipes),
			CreatedAt:    snap.CreatedAt,
			LastActivity: snap.LastActivity,
			IdleSeconds:  (now - snap.LastActivity) / 1000,
		})
	}
	writeJSON(w, out)
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.cfg)
}

// ticker pushes a metrics snapshot to every SSE subscriber once per second.
func (s *Server) ticker() {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for range t.C {
		snap := s.metrics.Snapshot()
		s.subMu.Lock()
		for ch := range s.subs {
			select {
			case ch <- snap:
			default:
				// Slow subscriber: skip this tick rather than block.
			}
		}
		s.subMu.Unlock()
	}
}

func (s *Server) handleMetricsStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan metrics.Snapshot, 4)
	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()
	defer func() {
		s.subMu.Lock()
		delete(s.subs, ch)
		s.subMu.Unlock()
	}()

	// Send one snapshot immediately so clients do not wait a full tick.
	if !writeSSE(w, flusher, s.metrics.Snapshot()) {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case snap := <-ch:
			if !writeSSE(w, flusher, snap) {
				return
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, snap metrics.Snapshot) bool {
	payload, err := json.Marshal(snap)
	if err != nil {
		return false
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return false
	}
	flusher.Flush()
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v) //nolint:errcheck
}
