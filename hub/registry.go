package hub

import "sync"

// Identity is what a connection proved about itself by completing a
// session:create or session:join.  Connections without an Identity may only
// issue those two commands; everything else from them is ignored.
type Identity struct {
	UserID      string
	SessionID   string
	DisplayName string
}

// Registry maintains the two bijections between live connections and users:
// conn → identity and userId → conn.  It owns connection state exclusively;
// session documents never hold connection handles, which keeps transient
// socket lifetimes out of long-lived session state.
//
// One active connection per user is enforced at registration: the caller is
// told which connection (if any) it displaced and decides whether that is a
// host rejoin (allowed, old connection closed) or an error.
type Registry struct {
	mu    sync.RWMutex
	conns map[*Conn]Identity
	users map[string]*Conn
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[*Conn]Identity),
		users: make(map[string]*Conn),
	}
}

// Register binds c to id, replacing any previous connection registered for
// the same user.  The displaced connection, if any, is returned so the
// caller can close it; its registry entries are already gone.
//
// A connection re-registering under a different userId releases its old
// user entry first; otherwise the old userId would stay bound to c forever
// and every future join as that user would be refused as a duplicate.
func (r *Registry) Register(c *Conn, id Identity) *Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.conns[c]; ok && old.UserID != id.UserID {
		if r.users[old.UserID] == c {
			delete(r.users, old.UserID)
		}
	}

	var displaced *Conn
	if prior, ok := r.users[id.UserID]; ok && prior != c {
		displaced = prior
		delete(r.conns, prior)
	}
	r.conns[c] = id
	r.users[id.UserID] = c
	return displaced
}

// Identity returns the identity bound to c, if any.
func (r *Registry) Identity(c *Conn) (Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.conns[c]
	return id, ok
}

// ConnFor returns the live connection registered for userID, if any.
func (r *Registry) ConnFor(userID string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.users[userID]
	return c, ok
}

// Unregister removes c from both maps and returns the identity it held.
// The user entry is only removed if it still points at c, so a connection
// displaced by a rejoin cannot evict its replacement on the way out.
func (r *Registry) Unregister(c *Conn) (Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.conns[c]
	if !ok {
		return Identity{}, false
	}
	delete(r.conns, c)
	if r.users[id.UserID] == c {
		delete(r.users, id.UserID)
	}
	return id, true
}

// SessionConns snapshots the connections bound to sessionID, skipping
// excludeUserID when non-empty.  The snapshot is taken under the read lock;
// the caller writes to the connections outside it.
func (r *Registry) SessionConns(sessionID, excludeUserID string) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Conn
	for c, id := range r.conns {
		if id.SessionID != sessionID {
			continue
		}
		if excludeUserID != "" && id.UserID == excludeUserID {
			continue
		}
		out = append(out, c)
	}
	return out
}

// PurgeSession removes every entry bound to sessionID and returns the
// affected connections so the caller can close them.
func (r *Registry) PurgeSession(sessionID string) []*Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Conn
	for c, id := range r.conns {
		if id.SessionID != sessionID {
			continue
		}
		delete(r.conns, c)
		if r.users[id.UserID] == c {
			delete(r.users, id.UserID)
		}
		out = append(out, c)
	}
	return out
}

// AllConns snapshots every registered connection; used for server shutdown.
func (r *Registry) AllConns() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Conn, 0, len(r.conns))
	for c := range r.conns {
		out = append(out, c)
	}
	return out
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
