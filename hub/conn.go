package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Conn wraps one accepted WebSocket connection.
//
// Lifecycle: the hub starts one readPump and one writePump goroutine per
// connection.  The readPump feeds frames to the dispatcher and triggers the
// disconnect path when the transport dies; the writePump is the only
// goroutine that writes to the socket, draining the buffered send queue and
// emitting keepalive pings.
//
// The send channel is never closed: shutdown signals the writePump through
// the done channel instead, so a broadcaster holding a stale *Conn can
// still attempt a queue without risking a send on a closed channel.  Queued
// events are flushed before the close frame goes out, which is what makes
// "broadcast session:ended, then close" arrive in that order.
type Conn struct {
	id  string
	ws  *websocket.Conn
	hub *Hub

	send chan []byte
	done chan struct{}

	closeOnce   sync.Once
	closeCode   int
	closeReason string
}

func newConn(ws *websocket.Conn, h *Hub) *Conn {
	return &Conn{
		id:   uuid.NewString(),
		ws:   ws,
		hub:  h,
		send: make(chan []byte, h.cfg.SendBuffer),
		done: make(chan struct{}),
	}
}

// ConnectionID returns the opaque per-connection id used for log
// correlation.  It is neither a session nor a user identifier.
func (c *Conn) ConnectionID() string { return c.id }

// queueOut serialises event and queues it for delivery.  Returns false if
// the event could not be queued (marshal failure, full buffer, or a
// connection already shutting down); delivery is best-effort and the caller
// only logs and counts failures.
func (c *Conn) queueOut(event any) bool {
	payload, err := json.Marshal(event)
	if err != nil {
		c.hub.log.Error("marshal outbound event", "conn", c.id, "err", err)
		return false
	}
	return c.queueRaw(payload)
}

// queueRaw queues an already-serialised frame without blocking.  A full
// buffer means the peer is too slow to keep up; dropping beats stalling the
// session's entire fan-out.
func (c *Conn) queueRaw(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// shutdown asks the writePump to flush pending events, send a close frame
// with the given code and reason, and tear the socket down.  Idempotent;
// the first caller's code and reason win.
func (c *Conn) shutdown(code int, reason string) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeReason = reason
		close(c.done)
	})
}

// readPump consumes frames until the transport fails or closes, then runs
// the hub's disconnect path.  It owns the read side entirely: read limit,
// read deadlines, and the pong handler that extends them.
func (c *Conn) readPump() {
	defer func() {
		c.hub.handleDisconnect(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(c.hub.cfg.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.hub.cfg.PongTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.hub.cfg.PongTimeout))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.hub.log.Debug("read error", "conn", c.id, "err", err)
			}
			return
		}
		c.hub.handleMessage(c, raw)
	}
}

// writePump drains the send queue and pings the peer.  It is the only
// writer to the socket, so no write-side locking is needed anywhere else.
func (c *Conn) writePump() {
	pingInterval := c.hub.cfg.PongTimeout * 9 / 10
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			if !c.writeFrame(websocket.TextMessage, payload) {
				return
			}
		case <-ticker.C:
			if !c.writeFrame(websocket.PingMessage, nil) {
				return
			}
		case <-c.done:
			c.flush()
			deadline := time.Now().Add(c.hub.cfg.WriteTimeout)
			msg := websocket.FormatCloseMessage(c.closeCode, c.closeReason)
			c.ws.WriteControl(websocket.CloseMessage, msg, deadline)
			return
		}
	}
}

// flush writes whatever is still buffered; called once, on shutdown, so the
// close frame goes out after the events that prompted it.
func (c *Conn) flush() {
	for {
		select {
		case payload := <-c.send:
			if !c.writeFrame(websocket.TextMessage, payload) {
				return
			}
		default:
			return
		}
	}
}

func (c *Conn) writeFrame(messageType int, payload []byte) bool {
	c.ws.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
	if err := c.ws.WriteMessage(messageType, payload); err != nil {
		c.hub.log.Debug("write error", "conn", c.id, "err", err)
		return false
	}
	return true
}
