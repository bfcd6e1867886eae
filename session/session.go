// Package session provides the Session type, the authoritative in-memory
// document shared by one group of collaborators, and the Store that owns
// every live session.  All participant, ingredient, recipe, and vote state
// lives here; connection state deliberately does not (the hub's registry
// owns that), so long-lived document state never holds references to
// transient sockets.
package session

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Vote is a single user's stance on a single recipe.  Absence from the vote
// table means neutral.
type Vote string

// Valid stored vote values.  "neutral" is a wire-level command, not a stored
// value: it erases the entry instead.
const (
	VoteUp   Vote = "up"
	VoteDown Vote = "down"
)

// Participant is one user's membership record.  It outlives the user's
// connection: disconnecting flips IsConnected, it never removes the record.
type Participant struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	JoinedAt       int64  `json:"joinedAt"`
	IsConnected    bool   `json:"isConnected"`
	ReconnectedAt  int64  `json:"reconnectedAt,omitempty"`
	DisconnectedAt int64  `json:"disconnectedAt,omitempty"`
}

// Ingredient is one shopping-list entry.  Name is stored lowercased and is
// unique within a session; ID is assigned by the server on insertion.
type Ingredient struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	AddedBy string `json:"addedBy"`
	AddedAt int64  `json:"addedAt"`
}

// Recipe is an opaque client-supplied document plus four server-owned keys:
// "id" and "createdAt" are assigned on insertion, "votes" and "voterIds"
// are recomputed after every vote.  Keeping it a map preserves whatever
// body fields the client sent without the server having to understand them.
type Recipe map[string]any

// ID returns the server-assigned recipe id, or "" if the recipe has not
// been normalised yet.
func (r Recipe) ID() string {
	id, _ := r["id"].(string)
	return id
}

// Session is one collaborative document.
//
// Concurrency model:
//   - mu guards every field below it.  Each exported method takes it for
//     exactly the duration of its read-modify-write, so individual calls
//     are always safe.
//   - execMu serialises whole command executions.  The hub wraps each
//     command's "mutate, then broadcast" sequence in Exec so that events
//     leave the hub in the same order the mutations committed.  execMu is
//     never taken while holding mu, and vice versa.
type Session struct {
	id        string
	createdAt int64

	execMu sync.Mutex

	mu                    sync.RWMutex
	hostID                string
	hostName              string
	lastActivity          int64
	allowRecipeGeneration bool
	participants          []Participant
	ingredients           []Ingredient
	blacklist             []string
	context               string
	recipes               []Recipe
	votes                 map[string]map[string]Vote // userId -> recipeId -> vote
}

// New creates a live session hosted by hostID, with the host as its sole
// participant.
func New(id, hostID, hostName string) *Session {
	now := time.Now().UnixMilli()
	return &Session{
		id:           id,
		createdAt:    now,
		hostID:       hostID,
		hostName:     hostName,
		lastActivity: now,
		participants: []Participant{{
			ID:          hostID,
			Name:        hostName,
			JoinedAt:    now,
			IsConnected: true,
		}},
		blacklist: []string{},
		votes:     make(map[string]map[string]Vote),
	}
}

// Exec runs fn while holding the session's command mutex.  The hub routes
// every command for this session through Exec, which gives mutations and
// the broadcasts they produce a total order without blocking commands on
// other sessions.
func (s *Session) Exec(fn func()) {
	s.execMu.Lock()
	defer s.execMu.Unlock()
	fn()
}

// ID returns the session's immutable identifier.
func (s *Session) ID() string { return s.id }

// IsHost reports whether userID currently holds host privileges.
func (s *Session) IsHost(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return userID == s.hostID
}

// HostID returns the current host's user id.
func (s *Session) HostID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hostID
}

// Expired reports whether the session has been idle longer than ttl as of
// now.
func (s *Session) Expired(now time.Time, ttl time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return now.UnixMilli()-s.lastActivity > ttl.Milliseconds()
}

// touch must be called with mu held, as the last step of a successful
// mutation.
func (s *Session) touch() {
	if now := time.Now().UnixMilli(); now > s.lastActivity {
		s.lastActivity = now
	}
}

// Join adds userID as a participant, or marks an existing participant as
// reconnected.  It returns a copy of the participant record and whether
// this was a rejoin of a known user.
func (s *Session) Join(userID, name string) (Participant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	for i := range s.participants {
		if s.participants[i].ID == userID {
			s.participants[i].IsConnected = true
			s.participants[i].ReconnectedAt = now
			s.touch()
			return s.participants[i], true
		}
	}

	p := Participant{ID: userID, Name: name, JoinedAt: now, IsConnected: true}
	s.participants = append(s.participants, p)
	s.touch()
	return p, false
}

// MarkDisconnected flips the participant's connection flag.  The record
// itself survives; only session deletion removes participants.  The idle
// clock is deliberately not reset: an abandoned session must still expire.
func (s *Session) MarkDisconnected(userID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.participants {
		if s.participants[i].ID == userID {
			s.participants[i].IsConnected = false
			s.participants[i].DisconnectedAt = time.Now().UnixMilli()
			return s.participants[i].Name, true
		}
	}
	return "", false
}

// HasParticipant reports whether userID has ever joined this session.
func (s *Session) HasParticipant(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.participants {
		if s.participants[i].ID == userID {
			return true
		}
	}
	return false
}

// AddIngredient appends a new ingredient with a fresh server-assigned id.
// Names are lowercased; re-adding an existing name (by anyone) is an
// idempotent no-op reported by the second return value.
func (s *Session) AddIngredient(name, addedBy string) (Ingredient, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name = strings.ToLower(name)
	for i := range s.ingredients {
		if s.ingredients[i].Name == name {
			return Ingredient{}, false
		}
	}

	ing := Ingredient{
		ID:      uuid.NewString(),
		Name:    name,
		AddedBy: addedBy,
		AddedAt: time.Now().UnixMilli(),
	}
	s.ingredients = append(s.ingredients, ing)
	s.touch()
	return ing, true
}

// RemoveIngredient deletes the ingredient with the given id, if present.
func (s *Session) RemoveIngredient(id string) (Ingredient, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.ingredients {
		if s.ingredients[i].ID == id {
			removed := s.ingredients[i]
			s.ingredients = append(s.ingredients[:i], s.ingredients[i+1:]...)
			s.touch()
			return removed, true
		}
	}
	return Ingredient{}, false
}

// Blacklist adds name (lowercased) to the blacklist and, when
// fromIngredients is set, removes any ingredient carrying that name.  It
// returns copies of the updated blacklist and ingredient list for
// snapshot-semantics broadcasting: clients replace, not merge.
func (s *Session) Blacklist(name string, fromIngredients bool) ([]string, []Ingredient) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name = strings.ToLower(name)
	listed := false
	for _, b := range s.blacklist {
		if b == name {
			listed = true
			break
		}
	}
	if !listed {
		s.blacklist = append(s.blacklist, name)
	}

	if fromIngredients {
		kept := s.ingredients[:0]
		for _, ing := range s.ingredients {
			if ing.Name != name {
				kept = append(kept, ing)
			}
		}
		s.ingredients = kept
	}

	s.touch()
	return copyStrings(s.blacklist), copyIngredients(s.ingredients)
}

// AddRecipe normalises and appends a client-supplied recipe body: the id is
// always server-assigned (any client id is discarded) and the vote tallies
// start at zero regardless of what the client claimed.
func (s *Session) AddRecipe(body map[string]any) Recipe {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := make(Recipe, len(body)+4)
	for k, v := range body {
		r[k] = v
	}
	r["id"] = uuid.NewString()
	r["createdAt"] = time.Now().UnixMilli()
	r["votes"] = 0
	r["voterIds"] = []string{}

	s.recipes = append(s.recipes, r)
	s.touch()
	return copyRecipe(r)
}

// RemoveRecipe deletes the recipe with the given id, if present, along with
// any votes cast on it.
func (s *Session) RemoveRecipe(id string) (Recipe, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.recipes {
		if s.recipes[i].ID() == id {
			removed := copyRecipe(s.recipes[i])
			s.recipes = append(s.recipes[:i], s.recipes[i+1:]...)
			for _, userVotes := range s.votes {
				delete(userVotes, id)
			}
			s.touch()
			return removed, true
		}
	}
	return Recipe{}, false
}

// CastVote records userID's vote on recipeID and recomputes every recipe's
// tally.  A neutral vote erases any prior entry.  It returns a copy of the
// full recomputed recipe list, which is what gets broadcast.
func (s *Session) CastVote(userID, recipeID, voteType string) []Recipe {
	s.mu.Lock()
	defer s.mu.Unlock()

	userVotes := s.votes[userID]
	if userVotes == nil {
		userVotes = make(map[string]Vote)
		s.votes[userID] = userVotes
	}
	delete(userVotes, recipeID)
	if voteType == string(VoteUp) || voteType == string(VoteDown) {
		userVotes[recipeID] = Vote(voteType)
	}

	s.recomputeVotes()
	s.touch()
	return s.copyRecipes()
}

// recomputeVotes derives each recipe's "votes" (up minus down) and sorted
// "voterIds" from the vote table.  Must be called with mu held.
func (s *Session) recomputeVotes() {
	for _, r := range s.recipes {
		id := r.ID()
		tally := 0
		voters := []string{}
		for userID, userVotes := range s.votes {
			switch userVotes[id] {
			case VoteUp:
				tally++
			case VoteDown:
				tally--
			default:
				continue
			}
			voters = append(voters, userID)
		}
		sort.Strings(voters)
		r["votes"] = tally
		r["voterIds"] = voters
	}
}

// SetContext overwrites the free-form session context.  Authority checking
// is the dispatcher's job; the session records whatever it is told.
func (s *Session) SetContext(ctx string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.context = ctx
	s.touch()
}

// Context returns the current free-form context string.
func (s *Session) Context() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.context
}

// TransferHost hands host privileges to newHostID.  It fails only when the
// target has never joined the session; transferring to the current host is
// a valid (if pointless) operation.
func (s *Session) TransferHost(newHostID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.participants {
		if s.participants[i].ID == newHostID {
			s.hostID = newHostID
			s.hostName = s.participants[i].Name
			s.touch()
			return s.hostName, true
		}
	}
	return "", false
}

// SetAllowRecipeGeneration flips the host's advisory policy flag.
func (s *Session) SetAllowRecipeGeneration(allow bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allowRecipeGeneration = allow
	s.touch()
}

// AllowRecipeGeneration returns the advisory policy flag.
func (s *Session) AllowRecipeGeneration() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allowRecipeGeneration
}

// Snapshot is the full session state delivered on create/join and inside
// host:transferred events.  Clients replace their local state with it.
type Snapshot struct {
	ID                    string                     `json:"id"`
	HostID                string                     `json:"hostId"`
	HostName              string                     `json:"hostName"`
	CreatedAt             int64                      `json:"createdAt"`
	LastActivity          int64                      `json:"lastActivity"`
	AllowRecipeGeneration bool                       `json:"allowRecipeGeneration"`
	Participants          []Participant              `json:"participants"`
	Ingredients           []Ingredient               `json:"ingredients"`
	Blacklist             []string                   `json:"blacklist"`
	Context               string                     `json:"context"`
	Recipes               []Recipe                   `json:"recipes"`
	Votes                 map[string]map[string]Vote `json:"votes"`
}

// Snapshot returns a deep copy of the session state.  The copy shares
// nothing mutable with the live session, so it may be serialised after the
// session's lock is released.
func (s *Session) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	votes := make(map[string]map[string]Vote, len(s.votes))
	for userID, userVotes := range s.votes {
		inner := make(map[string]Vote, len(userVotes))
		for recipeID, v := range userVotes {
			inner[recipeID] = v
		}
		votes[userID] = inner
	}

	return &Snapshot{
		ID:                    s.id,
		HostID:                s.hostID,
		HostName:              s.hostName,
		CreatedAt:             s.createdAt,
		LastActivity:          s.lastActivity,
		AllowRecipeGeneration: s.allowRecipeGeneration,
		Participants:          append(make([]Participant, 0, len(s.participants)), s.participants...),
		Ingredients:           copyIngredients(s.ingredients),
		Blacklist:             copyStrings(s.blacklist),
		Context:               s.context,
		Recipes:               s.copyRecipes(),
		Votes:                 votes,
	}
}

// copyRecipes must be called with mu held (read or write).
func (s *Session) copyRecipes() []Recipe {
	out := make([]Recipe, len(s.recipes))
	for i, r := range s.recipes {
		out[i] = copyRecipe(r)
	}
	return out
}

func copyRecipe(r Recipe) Recipe {
	c := make(Recipe, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// copyStrings and copyIngredients return non-nil copies so empty lists
// serialise as [] rather than null.
func copyStrings(in []string) []string {
	return append(make([]string, 0, len(in)), in...)
}

func copyIngredients(in []Ingredient) []Ingredient {
	return append(make([]Ingredient, 0, len(in)), in...)
}
