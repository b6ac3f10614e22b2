// Package router connects the wire to the session: it decodes inbound messages
// into game events and builds the outbound messages.
package router

import (
	"github.com/janpfeifer/xemk/internal/board"
	"github.com/janpfeifer/xemk/internal/game"
	"k8s.io/klog/v2"
)

// Sender posts a message to be written on the connection. conn.Manager implements it.
type Sender interface {
	Send(v any) error
}

// Router is safe for concurrent use as long as sink is.
type Router struct {
	playerID string
	sender   Sender
	sink     func(game.Event)
}

// New creates a Router for playerID. Decoded events are passed to sink.
func New(playerID string, sender Sender, sink func(game.Event)) *Router {
	return &Router{playerID: playerID, sender: sender, sink: sink}
}

// PlayerID used in every outbound message.
func (r *Router) PlayerID() string { return r.playerID }

// HandleRaw decodes one inbound message and forwards it.
// Malformed messages are logged and dropped.
func (r *Router) HandleRaw(data []byte) {
	event, err := game.Decode(data)
	if err != nil {
		klog.Errorf("Router.HandleRaw: dropping message: %v", err)
		return
	}
	if u, ok := event.(*game.Unknown); ok {
		klog.Warningf("Router.HandleRaw: unknown message type %q", u.Type)
	} else {
		klog.V(1).Infof("Router.HandleRaw: %s", event.MessageType())
	}
	if r.sink != nil {
		r.sink(event)
	}
}

func (r *Router) send(msgType game.MessageType, msg any) error {
	klog.V(1).Infof("Router: sending %s", msgType)
	if err := r.sender.Send(msg); err != nil {
		klog.Warningf("Router: failed to send %s: %v", msgType, err)
		return err
	}
	return nil
}

// Join sends player_join.
func (r *Router) Join() error {
	return r.send(game.MsgTypePlayerJoin, game.NewPlayerJoin(r.playerID))
}

// NewRound sends start_new_round.
func (r *Router) NewRound() error {
	return r.send(game.MsgTypeStartNewRound, game.NewStartNewRound(r.playerID))
}

// PlayerAction sends the commit as player_action.
func (r *Router) PlayerAction(c *board.Commit) error {
	return r.send(game.MsgTypePlayerAction, game.NewPlayerAction(r.playerID, c.Slots))
}

// PlacementUpdate sends the advisory card_placement_update.
func (r *Router) PlacementUpdate(u board.Update) error {
	return r.send(game.MsgTypeCardPlacementUpdate,
		game.NewCardPlacementUpdate(r.playerID, u.Slot, u.Card, string(u.Action)))
}

// SpecialAction answers a special_action_request.
func (r *Router) SpecialAction(kind string) error {
	return r.send(game.MsgTypeSpecialAction, game.NewSpecialAction(r.playerID, kind))
}
