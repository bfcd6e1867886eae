// Package hub is the heart of GoPotluck: it accepts WebSocket connections,
// maps them to users and sessions, routes typed commands to handlers, and
// fans the resulting events out to every live peer in the same session.
//
// Concurrency model:
//   - One readPump goroutine per connection feeds handleMessage; one
//     writePump goroutine per connection drains its buffered send queue.
//   - Per-session mutations and the broadcasts they produce run inside
//     Session.Exec, so every peer observes one session's events in the
//     order the mutations committed.  Commands on different sessions never
//     wait on each other.
//   - The broadcaster snapshots its target connections under the registry's
//     read lock and queues frames outside it; a slow or dead peer costs a
//     dropped frame and a counter bump, never a stalled session.
package hub

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/firasghr/GoPotluck/config"
	"github.com/firasghr/GoPotluck/metrics"
	"github.com/firasghr/GoPotluck/protocol"
	"github.com/firasghr/GoPotluck/session"
)

// Hub wires the connection endpoint, client registry, session store, and
// broadcaster together.  Construct once at startup; all methods are safe
// for concurrent use.
type Hub struct {
	cfg      *config.Config
	log      *slog.Logger
	store    *session.Store
	registry *Registry
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
}

// New creates a Hub backed by the given store.
func New(cfg *config.Config, log *slog.Logger, store *session.Store, m *metrics.Metrics) *Hub {
	return &Hub{
		cfg:      cfg,
		log:      log,
		store:    store,
		registry: NewRegistry(),
		metrics:  m,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: cfg.HandshakeTimeout,
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
			// The deploying operator terminates TLS and enforces origin
			// policy at the edge.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Registry exposes the client registry; used by tests and the dashboard.
func (h *Hub) Registry() *Registry { return h.registry }

// ServeWS upgrades an HTTP request to a WebSocket connection, greets it
// with connection:established, and starts its pumps.  It implements
// http.HandlerFunc.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	c := newConn(ws, h)
	h.metrics.ConnectionsOpened.Add(1)
	h.log.Debug("connection accepted", "conn", c.id, "remote", r.RemoteAddr)

	// Queue the greeting before the read pump starts so it always
	// precedes any reply to the client's first command.
	h.sendEvent(c, protocol.NewConnectionEstablished(c.id))

	go c.writePump()
	go c.readPump()
}

// handleMessage parses one inbound frame and dispatches it.  Malformed
// frames are answered with a non-fatal error event; the connection lives
// on.
func (h *Hub) handleMessage(c *Conn, raw []byte) {
	h.metrics.CommandsProcessed.Add(1)

	env, err := protocol.ParseEnvelope(raw)
	if err != nil {
		h.log.Debug("malformed frame", "conn", c.id, "err", err)
		h.sendEvent(c, protocol.NewError(protocol.MsgInvalidFormat))
		return
	}
	h.dispatch(c, env)
}

// handleDisconnect runs when a connection's transport dies for any reason.
// The participant record survives with isConnected=false; only the live
// connection is gone.
func (h *Hub) handleDisconnect(c *Conn) {
	h.metrics.ConnectionsClosed.Add(1)

	id, ok := h.registry.Unregister(c)
	if !ok {
		// Never registered, displaced by a rejoin, or purged by a
		// session end; nothing to announce.
		return
	}
	h.log.Debug("connection closed", "conn", c.id, "user", id.UserID, "session", id.SessionID)

	s, ok := h.store.Get(id.SessionID)
	if !ok {
		return
	}
	s.Exec(func() {
		name, ok := s.MarkDisconnected(id.UserID)
		if !ok {
			name = id.DisplayName
		}
		h.broadcast(s.ID(), id.UserID, protocol.NewParticipantDisconnected(id.UserID, name))
	})
}

// sendEvent queues an event to a single connection, logging and counting a
// failed delivery without propagating it.
func (h *Hub) sendEvent(c *Conn, event any) {
	if c.queueOut(event) {
		h.metrics.EventsDelivered.Add(1)
		return
	}
	h.metrics.DeliveryFailures.Add(1)
	h.log.Warn("event delivery failed", "conn", c.id)
}

// broadcast serialises event once and queues it to every live connection in
// sessionID except excludeUserID (pass "" to exclude no one).  Delivery is
// best-effort per peer: one full buffer neither blocks the others nor rolls
// back the mutation that produced the event.
func (h *Hub) broadcast(sessionID, excludeUserID string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error("marshal broadcast event", "session", sessionID, "err", err)
		return
	}
	for _, c := range h.registry.SessionConns(sessionID, excludeUserID) {
		if c.queueRaw(payload) {
			h.metrics.EventsDelivered.Add(1)
		} else {
			h.metrics.DeliveryFailures.Add(1)
			h.log.Warn("broadcast delivery failed", "session", sessionID, "conn", c.id)
		}
	}
}

// NotifyExpired tells every connection still bound to a reaped session that
// it is gone.  The connections stay open; their registry entries clear on
// their next natural disconnect.
func (h *Hub) NotifyExpired(sessionID string) {
	h.broadcast(sessionID, "", protocol.NewSessionExpired(sessionID))
}

// Shutdown closes every live connection with a going-away code.  Called on
// process termination after the reaper has stopped.
func (h *Hub) Shutdown() {
	for _, c := range h.registry.AllConns() {
		c.shutdown(websocket.CloseGoingAway, "Server shutting down")
	}
}
