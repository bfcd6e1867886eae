// Package protocol defines the wire schema spoken over each WebSocket
// connection: inbound commands arrive as a {type, data} envelope and are
// decoded into typed payloads; outbound events are flat JSON objects whose
// first field is always "type".
package protocol

import (
	"encoding/json"
	"fmt"
)

// Inbound command types.  The dispatcher matches on these exhaustively;
// anything else is answered with an error event.
const (
	CmdSessionCreate        = "session:create"
	CmdSessionJoin          = "session:join"
	CmdIngredientsAdd       = "ingredients:add"
	CmdIngredientsRemove    = "ingredients:remove"
	CmdIngredientsBlacklist = "ingredients:blacklist"
	CmdRecipesAdd           = "recipes:add"
	CmdRecipesVote          = "recipes:vote"
	CmdRecipesRemove        = "recipes:remove"
	CmdContextUpdate        = "context:update"
	CmdHostTransfer         = "host:transfer"
	CmdHostPermissions      = "host:permissions"
	CmdSessionEnd           = "session:end"
)

// Outbound event types.
const (
	EvtConnectionEstablished   = "connection:established"
	EvtSessionCreated          = "session:created"
	EvtSessionJoined           = "session:joined"
	EvtSessionError            = "session:error"
	EvtSessionExpired          = "session:expired"
	EvtSessionEnded            = "session:ended"
	EvtParticipantJoined       = "session:participant:joined"
	EvtParticipantDisconnected = "session:participant:disconnected"
	EvtIngredientsAdded        = "ingredients:added"
	EvtIngredientsRemoved      = "ingredients:removed"
	EvtIngredientsBlacklisted  = "ingredients:blacklisted"
	EvtRecipesAdded            = "recipes:added"
	EvtRecipesVoted            = "recipes:voted"
	EvtRecipesRemoved          = "recipes:removed"
	EvtContextUpdated          = "context:updated"
	EvtHostTransferred         = "host:transferred"
	EvtHostPermissionsUpdated  = "host:permissions:updated"
	EvtError                   = "error"
)

// Human-readable error messages carried by error / session:error events.
// These are part of the protocol: clients match on them.
const (
	MsgInvalidFormat        = "Invalid message format"
	MsgSessionExists        = "Session already exists"
	MsgSessionNotFound      = "Session not found or expired"
	MsgUserAlreadyConnected = "User already connected from another client"
	MsgOnlyHostTransfer     = "Only host can transfer privileges"
	MsgOnlyHostPermissions  = "Only host can update permissions"
	MsgOnlyHostEnd          = "Only host can end session"
	MsgNewHostNotFound      = "New host not found in session"
	MsgSessionEndedByHost   = "Session ended by host"
)

// Vote values accepted by recipes:vote.
const (
	VoteUp      = "up"
	VoteDown    = "down"
	VoteNeutral = "neutral"
)

// ValidVote reports whether v is an acceptable recipes:vote voteType.
func ValidVote(v string) bool {
	return v == VoteUp || v == VoteDown || v == VoteNeutral
}

// Envelope is the inbound framing: one JSON object per text frame, with the
// command payload left raw until the dispatcher knows its concrete type.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ParseEnvelope decodes a raw frame.  A frame that is not a JSON object or
// lacks a type is a protocol error; the caller answers with MsgInvalidFormat
// and keeps the connection.
func ParseEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("protocol: parse envelope: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("protocol: envelope missing type")
	}
	return &env, nil
}

// DecodeData unmarshals the envelope's data into dst.  A missing data field
// is decoded as an empty object so commands without payloads (session:end)
// need no special case.
func (e *Envelope) DecodeData(dst any) error {
	data := e.Data
	if len(data) == 0 {
		data = []byte("{}")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("protocol: decode %s data: %w", e.Type, err)
	}
	return nil
}

// Command payloads, one struct per inbound command type.

// SessionCreate is the payload of session:create and session:join.
type SessionCreate struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	Username  string `json:"username"`
}

// IngredientInput is the client's half of an ingredient; the server assigns
// the id and timestamp.
type IngredientInput struct {
	Name    string `json:"name"`
	AddedBy string `json:"addedBy"`
}

// IngredientsAdd is the payload of ingredients:add.
type IngredientsAdd struct {
	Ingredient IngredientInput `json:"ingredient"`
}

// IngredientsRemove is the payload of ingredients:remove.
type IngredientsRemove struct {
	IngredientID string `json:"ingredientId"`
}

// IngredientsBlacklist is the payload of ingredients:blacklist.
type IngredientsBlacklist struct {
	IngredientName  string `json:"ingredientName"`
	FromIngredients bool   `json:"fromIngredients"`
}

// RecipesAdd is the payload of recipes:add.  The body is opaque to the
// server apart from the keys it overwrites on insertion.
type RecipesAdd struct {
	Recipe map[string]any `json:"recipe"`
}

// RecipesVote is the payload of recipes:vote.
type RecipesVote struct {
	RecipeID string `json:"recipeId"`
	VoteType string `json:"voteType"`
}

// RecipesRemove is the payload of recipes:remove.
type RecipesRemove struct {
	RecipeID string `json:"recipeId"`
}

// ContextUpdate is the payload of context:update.
type ContextUpdate struct {
	Context string `json:"context"`
}

// HostTransfer is the payload of host:transfer.
type HostTransfer struct {
	NewHostID string `json:"newHostId"`
}

// HostPermissions is the payload of host:permissions.
type HostPermissions struct {
	AllowRecipeGeneration bool `json:"allowRecipeGeneration"`
}
