package hub

import (
	"github.com/gorilla/websocket"

	"github.com/firasghr/GoPotluck/protocol"
	"github.com/firasghr/GoPotluck/session"
)

// dispatch routes one parsed command to its handler.  Authority rules per
// command:
//   - session:create / session:join: any connection.
//   - ingredient, recipe, and vote commands: any registered participant.
//   - context:update: host only, non-hosts silently ignored.
//   - host:transfer, host:permissions, session:end: host only, non-hosts
//     get a typed error event.
func (h *Hub) dispatch(c *Conn, env *protocol.Envelope) {
	switch env.Type {
	case protocol.CmdSessionCreate:
		h.handleSessionCreate(c, env)
	case protocol.CmdSessionJoin:
		h.handleSessionJoin(c, env)
	case protocol.CmdIngredientsAdd:
		h.handleIngredientsAdd(c, env)
	case protocol.CmdIngredientsRemove:
		h.handleIngredientsRemove(c, env)
	case protocol.CmdIngredientsBlacklist:
		h.handleIngredientsBlacklist(c, env)
	case protocol.CmdRecipesAdd:
		h.handleRecipesAdd(c, env)
	case protocol.CmdRecipesVote:
		h.handleRecipesVote(c, env)
	case protocol.CmdRecipesRemove:
		h.handleRecipesRemove(c, env)
	case protocol.CmdContextUpdate:
		h.handleContextUpdate(c, env)
	case protocol.CmdHostTransfer:
		h.handleHostTransfer(c, env)
	case protocol.CmdHostPermissions:
		h.handleHostPermissions(c, env)
	case protocol.CmdSessionEnd:
		h.handleSessionEnd(c)
	default:
		h.sendEvent(c, protocol.NewError("Unknown message type: "+env.Type))
	}
}

// sessionFor resolves the session a registered connection belongs to.
// Unregistered connections are ignored silently; a registered connection
// whose session has meanwhile expired gets a session:error.
func (h *Hub) sessionFor(c *Conn) (*session.Session, Identity, bool) {
	id, ok := h.registry.Identity(c)
	if !ok {
		return nil, Identity{}, false
	}
	s, ok := h.store.Get(id.SessionID)
	if !ok {
		h.sendEvent(c, protocol.NewSessionError(protocol.MsgSessionNotFound))
		return nil, id, false
	}
	return s, id, true
}

func (h *Hub) handleSessionCreate(c *Conn, env *protocol.Envelope) {
	var p protocol.SessionCreate
	if err := env.DecodeData(&p); err != nil || p.SessionID == "" || p.UserID == "" {
		h.sendEvent(c, protocol.NewError(protocol.MsgInvalidFormat))
		return
	}

	s, created := h.store.Create(p.SessionID, p.UserID, p.Username)
	if created {
		h.metrics.SessionsCreated.Add(1)
		h.log.Info("session created", "session", p.SessionID, "host", p.UserID)
		h.register(c, p)
		s.Exec(func() {
			h.sendEvent(c, protocol.NewSessionCreated(s.Snapshot()))
		})
		return
	}

	if s.HostID() != p.UserID {
		h.sendEvent(c, protocol.NewSessionError(protocol.MsgSessionExists))
		return
	}

	// Host rejoin: the host reclaims its session, replacing any prior
	// live connection it still holds.
	h.log.Info("host rejoined", "session", p.SessionID, "host", p.UserID)
	h.register(c, p)
	s.Exec(func() {
		part, _ := s.Join(p.UserID, p.Username)
		h.sendEvent(c, protocol.NewSessionCreated(s.Snapshot()))
		h.broadcast(s.ID(), p.UserID, protocol.NewParticipantJoined(part))
	})
}

func (h *Hub) handleSessionJoin(c *Conn, env *protocol.Envelope) {
	var p protocol.SessionCreate
	if err := env.DecodeData(&p); err != nil || p.SessionID == "" || p.UserID == "" {
		h.sendEvent(c, protocol.NewError(protocol.MsgInvalidFormat))
		return
	}

	s, ok := h.store.Get(p.SessionID)
	if !ok {
		h.sendEvent(c, protocol.NewSessionError(protocol.MsgSessionNotFound))
		return
	}
	if prior, ok := h.registry.ConnFor(p.UserID); ok && prior != c {
		h.sendEvent(c, protocol.NewSessionError(protocol.MsgUserAlreadyConnected))
		return
	}

	h.register(c, p)
	s.Exec(func() {
		part, rejoined := s.Join(p.UserID, p.Username)
		h.sendEvent(c, protocol.NewSessionJoined(s.Snapshot()))
		h.broadcast(s.ID(), p.UserID, protocol.NewParticipantJoined(part))
		if rejoined {
			h.log.Debug("participant rejoined", "session", p.SessionID, "user", p.UserID)
		} else {
			h.log.Debug("participant joined", "session", p.SessionID, "user", p.UserID)
		}
	})
}

// register installs the connection's identity, closing any displaced prior
// connection for the same user.  A connection re-registering under a new
// userId abandons its old identity: that participant is marked disconnected
// and announced, the same as if the transport had died.
func (h *Hub) register(c *Conn, p protocol.SessionCreate) {
	prior, hadPrior := h.registry.Identity(c)
	displaced := h.registry.Register(c, Identity{
		UserID:      p.UserID,
		SessionID:   p.SessionID,
		DisplayName: p.Username,
	})
	if displaced != nil {
		displaced.shutdown(websocket.CloseNormalClosure, "Replaced by new connection")
	}
	if hadPrior && prior.UserID != p.UserID {
		if s, ok := h.store.Get(prior.SessionID); ok {
			s.Exec(func() {
				name, ok := s.MarkDisconnected(prior.UserID)
				if !ok {
					name = prior.DisplayName
				}
				h.broadcast(s.ID(), prior.UserID, protocol.NewParticipantDisconnected(prior.UserID, name))
			})
		}
	}
}

func (h *Hub) handleIngredientsAdd(c *Conn, env *protocol.Envelope) {
	var p protocol.IngredientsAdd
	if err := env.DecodeData(&p); err != nil || p.Ingredient.Name == "" {
		h.sendEvent(c, protocol.NewError(protocol.MsgInvalidFormat))
		return
	}
	s, id, ok := h.sessionFor(c)
	if !ok {
		return
	}

	addedBy := p.Ingredient.AddedBy
	if addedBy == "" {
		addedBy = id.UserID
	}
	s.Exec(func() {
		ing, added := s.AddIngredient(p.Ingredient.Name, addedBy)
		if !added {
			// Duplicate name: idempotent no-op, nothing to broadcast.
			return
		}
		h.broadcast(s.ID(), "", protocol.NewIngredientAdded(ing))
	})
}

func (h *Hub) handleIngredientsRemove(c *Conn, env *protocol.Envelope) {
	var p protocol.IngredientsRemove
	if err := env.DecodeData(&p); err != nil {
		h.sendEvent(c, protocol.NewError(protocol.MsgInvalidFormat))
		return
	}
	s, _, ok := h.sessionFor(c)
	if !ok {
		return
	}

	s.Exec(func() {
		ing, removed := s.RemoveIngredient(p.IngredientID)
		if !removed {
			return
		}
		h.broadcast(s.ID(), "", protocol.NewIngredientRemoved(ing))
	})
}

func (h *Hub) handleIngredientsBlacklist(c *Conn, env *protocol.Envelope) {
	var p protocol.IngredientsBlacklist
	if err := env.DecodeData(&p); err != nil || p.IngredientName == "" {
		h.sendEvent(c, protocol.NewError(protocol.MsgInvalidFormat))
		return
	}
	s, _, ok := h.sessionFor(c)
	if !ok {
		return
	}

	s.Exec(func() {
		blacklist, ingredients := s.Blacklist(p.IngredientName, p.FromIngredients)
		h.broadcast(s.ID(), "", protocol.NewIngredientBlacklisted(p.IngredientName, blacklist, ingredients))
	})
}

func (h *Hub) handleRecipesAdd(c *Conn, env *protocol.Envelope) {
	var p protocol.RecipesAdd
	if err := env.DecodeData(&p); err != nil || p.Recipe == nil {
		h.sendEvent(c, protocol.NewError(protocol.MsgInvalidFormat))
		return
	}
	s, _, ok := h.sessionFor(c)
	if !ok {
		return
	}

	s.Exec(func() {
		r := s.AddRecipe(p.Recipe)
		h.broadcast(s.ID(), "", protocol.NewRecipeAdded(r))
	})
}

func (h *Hub) handleRecipesVote(c *Conn, env *protocol.Envelope) {
	var p protocol.RecipesVote
	if err := env.DecodeData(&p); err != nil || p.RecipeID == "" || !protocol.ValidVote(p.VoteType) {
		h.sendEvent(c, protocol.NewError(protocol.MsgInvalidFormat))
		return
	}
	s, id, ok := h.sessionFor(c)
	if !ok {
		return
	}

	s.Exec(func() {
		recipes := s.CastVote(id.UserID, p.RecipeID, p.VoteType)
		h.broadcast(s.ID(), "", protocol.NewRecipeVoted(p.RecipeID, p.VoteType, id.UserID, recipes))
	})
}

func (h *Hub) handleRecipesRemove(c *Conn, env *protocol.Envelope) {
	var p protocol.RecipesRemove
	if err := env.DecodeData(&p); err != nil {
		h.sendEvent(c, protocol.NewError(protocol.MsgInvalidFormat))
		return
	}
	s, _, ok := h.sessionFor(c)
	if !ok {
		return
	}

	s.Exec(func() {
		r, removed := s.RemoveRecipe(p.RecipeID)
		if !removed {
			return
		}
		h.broadcast(s.ID(), "", protocol.NewRecipeRemoved(p.RecipeID, r))
	})
}

func (h *Hub) handleContextUpdate(c *Conn, env *protocol.Envelope) {
	var p protocol.ContextUpdate
	if err := env.DecodeData(&p); err != nil {
		h.sendEvent(c, protocol.NewError(protocol.MsgInvalidFormat))
		return
	}
	s, id, ok := h.sessionFor(c)
	if !ok {
		return
	}

	s.Exec(func() {
		// Non-host updates are dropped without an error event.  The
		// asymmetry with the other host-only commands is part of the
		// protocol clients were built against.
		if !s.IsHost(id.UserID) {
			return
		}
		s.SetContext(p.Context)
		h.broadcast(s.ID(), id.UserID, protocol.NewContextUpdated(p.Context))
	})
}

func (h *Hub) handleHostTransfer(c *Conn, env *protocol.Envelope) {
	var p protocol.HostTransfer
	if err := env.DecodeData(&p); err != nil || p.NewHostID == "" {
		h.sendEvent(c, protocol.NewError(protocol.MsgInvalidFormat))
		return
	}
	s, id, ok := h.sessionFor(c)
	if !ok {
		return
	}

	s.Exec(func() {
		if !s.IsHost(id.UserID) {
			h.sendEvent(c, protocol.NewError(protocol.MsgOnlyHostTransfer))
			return
		}
		newHostName, ok := s.TransferHost(p.NewHostID)
		if !ok {
			h.sendEvent(c, protocol.NewError(protocol.MsgNewHostNotFound))
			return
		}
		h.log.Info("host transferred", "session", s.ID(), "from", id.UserID, "to", p.NewHostID)
		h.broadcast(s.ID(), "", protocol.NewHostTransferred(p.NewHostID, newHostName, s.Snapshot()))
	})
}

func (h *Hub) handleHostPermissions(c *Conn, env *protocol.Envelope) {
	var p protocol.HostPermissions
	if err := env.DecodeData(&p); err != nil {
		h.sendEvent(c, protocol.NewError(protocol.MsgInvalidFormat))
		return
	}
	s, id, ok := h.sessionFor(c)
	if !ok {
		return
	}

	s.Exec(func() {
		if !s.IsHost(id.UserID) {
			h.sendEvent(c, protocol.NewError(protocol.MsgOnlyHostPermissions))
			return
		}
		s.SetAllowRecipeGeneration(p.AllowRecipeGeneration)
		h.broadcast(s.ID(), "", protocol.NewHostPermissionsUpdated(p.AllowRecipeGeneration, s.Snapshot()))
	})
}

// handleSessionEnd takes no payload: the caller's identity and registry
// binding carry everything the command needs.
func (h *Hub) handleSessionEnd(c *Conn) {
	s, id, ok := h.sessionFor(c)
	if !ok {
		return
	}

	s.Exec(func() {
		if !s.IsHost(id.UserID) {
			h.sendEvent(c, protocol.NewError(protocol.MsgOnlyHostEnd))
			return
		}
		h.broadcast(s.ID(), "", protocol.NewSessionEnded(protocol.MsgSessionEndedByHost))

		// Delete and purge before releasing the command lock: a command
		// waiting on another connection must find the session gone and its
		// peers unregistered, so nothing is ever delivered after
		// session:ended.
		h.store.Delete(s.ID())
		h.metrics.SessionsEnded.Add(1)
		h.log.Info("session ended by host", "session", s.ID(), "host", id.UserID)
		for _, pc := range h.registry.PurgeSession(s.ID()) {
			pc.shutdown(websocket.CloseNormalClosure, protocol.MsgSessionEndedByHost)
		}
	})
}
