package game

import (
	"encoding/json"
	"fmt"
)

// MessageType is the "type" discriminator of every WebSocket message exchanged with the game server.
type MessageType string

// Server to client.
const (
	MsgTypeHandAssigned         MessageType = "hand_assigned"          // Server deals a new hand
	MsgTypeNumbersAssigned      MessageType = "numbers_assigned"       // Legacy name of hand_assigned
	MsgTypeGameStart            MessageType = "game_start"             // Both players joined, boards reset
	MsgTypeMoveAccepted         MessageType = "move_accepted"          // Server confirms our player_action
	MsgTypeOpponentMove         MessageType = "opponent_move"          // Opponent committed a turn
	MsgTypeSpecialActionRequest MessageType = "special_action_request" // Server asks us to pick a special action
	MsgTypeWaitingForOpponent   MessageType = "waiting_for_opponent"   // Informational
	MsgTypeOpponentDisconnected MessageType = "opponent_disconnected"  // Informational
	MsgTypeOpponentReconnected  MessageType = "opponent_reconnected"   // Informational
	MsgTypeGameFull             MessageType = "game_full"              // Join refused, both seats taken
)

// Client to server.
const (
	MsgTypePlayerJoin          MessageType = "player_join"           // Join (or rejoin) the game
	MsgTypeStartNewRound       MessageType = "start_new_round"       // Ask for a new round
	MsgTypePlayerAction        MessageType = "player_action"         // Commit the cards placed in the slots
	MsgTypeCardPlacementUpdate MessageType = "card_placement_update" // Advisory: a slot changed locally
	MsgTypeSpecialAction       MessageType = "special_action"        // Answer to special_action_request
)

// Event is a decoded server message. The set of implementations is closed:
// HandAssigned, GameStart, MoveAccepted, OpponentMove, SpecialActionRequest,
// Notice and Unknown.
type Event interface {
	MessageType() MessageType
}

// HandAssigned replaces the player's hand.
type HandAssigned struct {
	Type  MessageType `json:"type"`
	Cards []Card      `json:"cards"`
}

// GameStart resets the usage state and both boards.
type GameStart struct {
	Message    string `json:"message"`
	LastPlayer string `json:"last_player"`
}

// MoveAccepted confirms the last player_action.
// CardsPlayed may contain nulls for empty or destroyed positions.
type MoveAccepted struct {
	Message     string  `json:"message"`
	CardsPlayed []*Card `json:"cards_played"`
}

// OpponentMove reveals the opponent's committed cards.
// When Slots is present it is authoritative, otherwise the slots are inferred from CardsPlayed.
type OpponentMove struct {
	PlayerID    string    `json:"player_id,omitempty"`
	CardsPlayed []*Card   `json:"cards_played"`
	Slots       [][]*Card `json:"slots,omitempty"`
}

// SpecialActionRequest asks the player to pick one of SpecialActions.
type SpecialActionRequest struct {
	Instruction string `json:"instruction"`
}

// Notice is an informational message that doesn't change any game state:
// waiting_for_opponent, opponent_disconnected, opponent_reconnected and game_full.
type Notice struct {
	Type     MessageType `json:"type"`
	Message  string      `json:"message"`
	PlayerID string      `json:"player_id,omitempty"`
}

// Unknown is a well-formed message with a type this client doesn't handle.
type Unknown struct {
	Type MessageType
	Raw  json.RawMessage
}

func (m *HandAssigned) MessageType() MessageType {
	if m.Type == "" {
		return MsgTypeHandAssigned
	}
	return m.Type
}
func (*GameStart) MessageType() MessageType { return MsgTypeGameStart }
func (*MoveAccepted) MessageType() MessageType { return MsgTypeMoveAccepted }
func (*OpponentMove) MessageType() MessageType { return MsgTypeOpponentMove }
func (*SpecialActionRequest) MessageType() MessageType { return MsgTypeSpecialActionRequest }
func (m *Notice) MessageType() MessageType { return m.Type }
func (m *Unknown) MessageType() MessageType { return m.Type }

// DecodeError is returned by Decode for payloads that are not JSON objects or lack a "type".
type DecodeError struct {
	Raw string
	Err error
}

func (e *DecodeError) Error() string {
	raw := e.Raw
	if len(raw) > 64 {
		raw = raw[:64] + "..."
	}
	return fmt.Sprintf("failed to decode message %q: %v", raw, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

var errMissingType = fmt.Errorf("missing %q field", "type")

// Decode parses a raw server message into one of the Event types.
func Decode(data []byte) (Event, error) {
	var envelope struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, &DecodeError{Raw: string(data), Err: err}
	}
	if envelope.Type == "" {
		return nil, &DecodeError{Raw: string(data), Err: errMissingType}
	}

	var target Event
	switch envelope.Type {
	case MsgTypeHandAssigned, MsgTypeNumbersAssigned:
		target = &HandAssigned{}
	case MsgTypeGameStart:
		target = &GameStart{}
	case MsgTypeMoveAccepted:
		target = &MoveAccepted{}
	case MsgTypeOpponentMove:
		target = &OpponentMove{}
	case MsgTypeSpecialActionRequest:
		target = &SpecialActionRequest{}
	case MsgTypeWaitingForOpponent, MsgTypeOpponentDisconnected, MsgTypeOpponentReconnected, MsgTypeGameFull:
		target = &Notice{}
	default:
		return &Unknown{Type: envelope.Type, Raw: json.RawMessage(data)}, nil
	}

	if err := json.Unmarshal(data, target); err != nil {
		return nil, &DecodeError{Raw: string(data), Err: fmt.Errorf("invalid %s payload: %w", envelope.Type, err)}
	}
	return target, nil
}

// PlayerJoin is sent to join, or rejoin after a reconnection, the game.
type PlayerJoin struct {
	Type     MessageType `json:"type"`
	PlayerID string      `json:"player_id"`
}

// StartNewRound asks the server for a new round.
type StartNewRound struct {
	Type     MessageType `json:"type"`
	PlayerID string      `json:"player_id"`
}

// PlayerAction commits the cards placed in the slots.
// Slots[i] lists the cards of slot i in placement order; CardDetails is the
// flattened list and Cards their names.
type PlayerAction struct {
	Type        MessageType       `json:"type"`
	PlayerID    string            `json:"player_id"`
	Cards       []string          `json:"cards"`
	Slots       [SlotCount][]Card `json:"slots"`
	CardDetails []Card            `json:"card_details"`
}

// playedCard is the wire form of a committed card: the server looks it up by "id".
type playedCard struct {
	Name     string     `json:"name"`
	HP       int        `json:"HP"`
	ATK      int        `json:"ATK"`
	Property string     `json:"property"`
	Race     string     `json:"race"`
	Cost     []CostItem `json:"cost"`
	ID       CardID     `json:"id,omitempty"`
}

func toPlayed(cards []Card) []playedCard {
	played := make([]playedCard, 0, len(cards))
	for _, c := range cards {
		played = append(played, playedCard{
			Name:     c.Name,
			HP:       c.HP,
			ATK:      c.ATK,
			Property: c.Property,
			Race:     c.Race,
			Cost:     nonNilCost(c.Cost),
			ID:       c.CardID,
		})
	}
	return played
}

// MarshalJSON writes the committed cards with their id under "id".
func (m PlayerAction) MarshalJSON() ([]byte, error) {
	var wire struct {
		Type        MessageType             `json:"type"`
		PlayerID    string                  `json:"player_id"`
		Cards       []string                `json:"cards"`
		Slots       [SlotCount][]playedCard `json:"slots"`
		CardDetails []playedCard            `json:"card_details"`
	}
	wire.Type = m.Type
	wire.PlayerID = m.PlayerID
	wire.Cards = m.Cards
	if wire.Cards == nil {
		wire.Cards = []string{}
	}
	for i, slot := range m.Slots {
		wire.Slots[i] = toPlayed(slot)
	}
	wire.CardDetails = toPlayed(m.CardDetails)
	return json.Marshal(wire)
}

func nonNilCost(cost []CostItem) []CostItem {
	if cost == nil {
		return []CostItem{}
	}
	return cost
}

// CardPlacementUpdate advertises a local slot change. Card is nil for "clear".
type CardPlacementUpdate struct {
	Type      MessageType `json:"type"`
	PlayerID  string      `json:"player_id"`
	SlotIndex int         `json:"slot_index"`
	Card      *Card       `json:"card"`
	Action    string      `json:"action"`
}

// SpecialAction answers a SpecialActionRequest.
type SpecialAction struct {
	Type       MessageType `json:"type"`
	PlayerID   string      `json:"player_id"`
	ActionType string      `json:"action_type"`
}

// NewPlayerJoin creates a player_join message.
func NewPlayerJoin(playerID string) PlayerJoin {
	return PlayerJoin{Type: MsgTypePlayerJoin, PlayerID: playerID}
}

// NewStartNewRound creates a start_new_round message.
func NewStartNewRound(playerID string) StartNewRound {
	return StartNewRound{Type: MsgTypeStartNewRound, PlayerID: playerID}
}

// NewPlayerAction creates a player_action message. Empty slots are sent as empty arrays.
func NewPlayerAction(playerID string, slots [SlotCount][]Card) PlayerAction {
	msg := PlayerAction{
		Type:        MsgTypePlayerAction,
		PlayerID:    playerID,
		CardDetails: []Card{},
	}
	for i, slot := range slots {
		msg.Slots[i] = append([]Card{}, slot...)
		msg.CardDetails = append(msg.CardDetails, slot...)
	}
	msg.Cards = Names(msg.CardDetails)
	return msg
}

// NewCardPlacementUpdate creates a card_placement_update message. The card is copied.
func NewCardPlacementUpdate(playerID string, slot int, card *Card, action string) CardPlacementUpdate {
	if card != nil {
		c := *card
		c.Cost = nonNilCost(c.Cost)
		card = &c
	}
	return CardPlacementUpdate{
		Type:      MsgTypeCardPlacementUpdate,
		PlayerID:  playerID,
		SlotIndex: slot,
		Card:      card,
		Action:    action,
	}
}

// NewSpecialAction creates a special_action message.
func NewSpecialAction(playerID, actionType string) SpecialAction {
	return SpecialAction{Type: MsgTypeSpecialAction, PlayerID: playerID, ActionType: actionType}
}
