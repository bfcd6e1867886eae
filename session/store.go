package session

import (
	"sync"
	"time"
)

// Store owns the sessionId → Session map.
//
// Concurrency model:
//   - A sync.RWMutex protects the map itself.  Lookups that may delete an
//     expired entry take the full lock; the read lock is reserved for pure
//     enumeration (Count, All).
//   - Session interiors are protected by their own locks, so holding the
//     store lock never blocks on in-flight commands.
//
// Expiry is enforced twice: eagerly, on every lookup (an expired session is
// treated as absent and removed on the spot), and periodically, by the
// reaper sweeping Reap.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
}

// NewStore creates an empty Store whose sessions expire after ttl of
// inactivity.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

// TTL returns the idle timeout applied to every session.
func (st *Store) TTL() time.Duration { return st.ttl }

// Get returns the live session with the given id.  A session idle beyond
// the TTL is removed eagerly and reported as absent, so no caller ever
// observes an expired session.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if !ok {
		return nil, false
	}
	if s.Expired(time.Now(), st.ttl) {
		delete(st.sessions, id)
		return nil, false
	}
	return s, true
}

// Create installs a new session under id with the caller as host, unless a
// live session with that id already exists, in which case the existing
// session is returned with created=false.  The check-and-insert is atomic
// under the store lock, so two racing creates cannot both win.
func (st *Store) Create(id, hostID, hostName string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[id]; ok {
		if !s.Expired(time.Now(), st.ttl) {
			return s, false
		}
		delete(st.sessions, id)
	}
	s := New(id, hostID, hostName)
	st.sessions[id] = s
	return s, true
}

// Delete removes the session with the given id and returns it.
func (st *Store) Delete(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if ok {
		delete(st.sessions, id)
	}
	return s, ok
}

// Reap removes every session idle beyond the TTL as of now and returns the
// removed sessions so the caller can notify lingering connections.
func (st *Store) Reap(now time.Time) []*Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	var expired []*Session
	for id, s := range st.sessions {
		if s.Expired(now, st.ttl) {
			expired = append(expired, s)
			delete(st.sessions, id)
		}
	}
	return expired
}

// Count returns the number of live entries, including any that would be
// expired by the next lookup or sweep.
func (st *Store) Count() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// All returns the current sessions in no particular order.  Used by the
// dashboard; callers must only touch sessions through their own locked
// methods.
func (st *Store) All() []*Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		out = append(out, s)
	}
	return out
}
