package protocol

import "github.com/firasghr/GoPotluck/session"

// Outbound events.  Unlike inbound commands there is no data wrapper: each
// event is a flat object whose Type field carries one of the Evt constants.
// Constructors set Type so call sites cannot mismatch it.

// ConnectionEstablished greets every accepted connection.  The connectionId
// exists for log correlation only; it is neither a session nor a user id.
type ConnectionEstablished struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connectionId"`
}

func NewConnectionEstablished(connectionID string) ConnectionEstablished {
	return ConnectionEstablished{Type: EvtConnectionEstablished, ConnectionID: connectionID}
}

// SessionSnapshot carries the full session state; used for session:created
// and session:joined.
type SessionSnapshot struct {
	Type    string            `json:"type"`
	Session *session.Snapshot `json:"session"`
}

func NewSessionCreated(snap *session.Snapshot) SessionSnapshot {
	return SessionSnapshot{Type: EvtSessionCreated, Session: snap}
}

func NewSessionJoined(snap *session.Snapshot) SessionSnapshot {
	return SessionSnapshot{Type: EvtSessionJoined, Session: snap}
}

// SessionError reports a session-resolution failure to the offending
// connection.
type SessionError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewSessionError(message string) SessionError {
	return SessionError{Type: EvtSessionError, Message: message}
}

// SessionExpired notifies lingering connections that the reaper removed
// their session.  The connections stay open; clients decide what to do.
type SessionExpired struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

func NewSessionExpired(sessionID string) SessionExpired {
	return SessionExpired{Type: EvtSessionExpired, SessionID: sessionID}
}

// SessionEnded announces a host-initiated end to every participant.
type SessionEnded struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewSessionEnded(message string) SessionEnded {
	return SessionEnded{Type: EvtSessionEnded, Message: message}
}

// ParticipantJoined announces a new or reconnected participant to everyone
// except the joiner.
type ParticipantJoined struct {
	Type        string              `json:"type"`
	Participant session.Participant `json:"participant"`
}

func NewParticipantJoined(p session.Participant) ParticipantJoined {
	return ParticipantJoined{Type: EvtParticipantJoined, Participant: p}
}

// ParticipantDisconnected announces a dropped connection.  The participant
// record survives; only the live connection is gone.
type ParticipantDisconnected struct {
	Type     string `json:"type"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

func NewParticipantDisconnected(userID, username string) ParticipantDisconnected {
	return ParticipantDisconnected{Type: EvtParticipantDisconnected, UserID: userID, Username: username}
}

// IngredientAdded carries the server-normalised record, including the
// server-assigned id the originator must adopt.
type IngredientAdded struct {
	Type       string             `json:"type"`
	Ingredient session.Ingredient `json:"ingredient"`
}

func NewIngredientAdded(ing session.Ingredient) IngredientAdded {
	return IngredientAdded{Type: EvtIngredientsAdded, Ingredient: ing}
}

// IngredientRemoved carries both the id and the removed record.
type IngredientRemoved struct {
	Type         string             `json:"type"`
	IngredientID string             `json:"ingredientId"`
	Ingredient   session.Ingredient `json:"ingredient"`
}

func NewIngredientRemoved(ing session.Ingredient) IngredientRemoved {
	return IngredientRemoved{Type: EvtIngredientsRemoved, IngredientID: ing.ID, Ingredient: ing}
}

// IngredientBlacklisted carries full replacement lists, not deltas.
type IngredientBlacklisted struct {
	Type           string               `json:"type"`
	IngredientName string               `json:"ingredientName"`
	Blacklist      []string             `json:"blacklist"`
	Ingredients    []session.Ingredient `json:"ingredients"`
}

func NewIngredientBlacklisted(name string, blacklist []string, ingredients []session.Ingredient) IngredientBlacklisted {
	return IngredientBlacklisted{
		Type:           EvtIngredientsBlacklisted,
		IngredientName: name,
		Blacklist:      blacklist,
		Ingredients:    ingredients,
	}
}

// RecipeAdded carries the server-normalised recipe record.
type RecipeAdded struct {
	Type   string         `json:"type"`
	Recipe session.Recipe `json:"recipe"`
}

func NewRecipeAdded(r session.Recipe) RecipeAdded {
	return RecipeAdded{Type: EvtRecipesAdded, Recipe: r}
}

// RecipeVoted carries the full recomputed recipe list alongside the vote
// that triggered it.
type RecipeVoted struct {
	Type     string           `json:"type"`
	RecipeID string           `json:"recipeId"`
	VoteType string           `json:"voteType"`
	UserID   string           `json:"userId"`
	Recipes  []session.Recipe `json:"recipes"`
}

func NewRecipeVoted(recipeID, voteType, userID string, recipes []session.Recipe) RecipeVoted {
	return RecipeVoted{
		Type:     EvtRecipesVoted,
		RecipeID: recipeID,
		VoteType: voteType,
		UserID:   userID,
		Recipes:  recipes,
	}
}

// RecipeRemoved carries both the id and the removed record.
type RecipeRemoved struct {
	Type     string         `json:"type"`
	RecipeID string         `json:"recipeId"`
	Recipe   session.Recipe `json:"recipe"`
}

func NewRecipeRemoved(recipeID string, r session.Recipe) RecipeRemoved {
	return RecipeRemoved{Type: EvtRecipesRemoved, RecipeID: recipeID, Recipe: r}
}

// ContextUpdated is broadcast to everyone except the host, whose UI already
// holds the value it sent.
type ContextUpdated struct {
	Type    string `json:"type"`
	Context string `json:"context"`
}

func NewContextUpdated(ctx string) ContextUpdated {
	return ContextUpdated{Type: EvtContextUpdated, Context: ctx}
}

// HostTransferred announces the new host along with a fresh snapshot.
type HostTransferred struct {
	Type        string            `json:"type"`
	NewHostID   string            `json:"newHostId"`
	NewHostName string            `json:"newHostName"`
	Session     *session.Snapshot `json:"session"`
}

func NewHostTransferred(newHostID, newHostName string, snap *session.Snapshot) HostTransferred {
	return HostTransferred{
		Type:        EvtHostTransferred,
		NewHostID:   newHostID,
		NewHostName: newHostName,
		Session:     snap,
	}
}

// HostPermissionsUpdated announces the host's policy flag change.
type HostPermissionsUpdated struct {
	Type                  string            `json:"type"`
	AllowRecipeGeneration bool              `json:"allowRecipeGeneration"`
	Session               *session.Snapshot `json:"session"`
}

func NewHostPermissionsUpdated(allow bool, snap *session.Snapshot) HostPermissionsUpdated {
	return HostPermissionsUpdated{
		Type:                  EvtHostPermissionsUpdated,
		AllowRecipeGeneration: allow,
		Session:               snap,
	}
}

// ErrorEvent is the generic non-fatal error reply: protocol failures,
// unknown command types, and authority violations that are not silent.
type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewError(message string) ErrorEvent {
	return ErrorEvent{Type: EvtError, Message: message}
}
