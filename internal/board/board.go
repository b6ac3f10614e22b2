// Package board holds the turn board: the player's own pending slots, backed by
// the hand tracker, and the opponent's revealed slots.
package board

import (
	"errors"
	"fmt"

	"github.com/janpfeifer/xemk/internal/game"
	"github.com/janpfeifer/xemk/internal/hand"
	"k8s.io/klog/v2"
)

var (
	// ErrNothingToPlay is returned by Commit when no card is placed.
	ErrNothingToPlay = errors.New("nothing to play")

	// ErrInvalidSlot is the tracker's error for slot indices outside [0, game.SlotCount).
	ErrInvalidSlot = hand.ErrInvalidSlot
)

// Action of a placement update, as sent in card_placement_update.
type Action string

const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
	ActionClear  Action = "clear"
)

// Placement is a card placed in one of the player's own slots.
type Placement struct {
	Card game.Card
	UID  string
	Slot int
}

// Update describes a change to one of the player's own slots. Card is nil for ActionClear.
type Update struct {
	Slot   int
	Card   *game.Card
	Action Action
}

// Commit is the result of Board.Commit: the cards to send and the unique ids to
// drop from the hand once the server confirms the move.
type Commit struct {
	Slots [game.SlotCount][]game.Card
	Cards []game.Card
	UIDs  map[string]struct{}
}

// Board is not safe for concurrent use: the session owns it.
type Board struct {
	tracker  *hand.Tracker
	own      [game.SlotCount][]Placement
	opponent [game.SlotCount][]game.Card

	// notify is called for every change of the own slots. Optional.
	notify func(Update)
}

// New creates an empty board backed by tracker. notify may be nil.
func New(tracker *hand.Tracker, notify func(Update)) *Board {
	return &Board{tracker: tracker, notify: notify}
}

func (b *Board) emit(u Update) {
	if b.notify != nil {
		b.notify(u)
	}
}

func checkSlot(slot int) error {
	if slot < 0 || slot >= game.SlotCount {
		return fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}
	return nil
}

// Place puts the hand card uid into slot.
//
// If the card is already in another slot it is moved: removed from there first.
// If it is already in slot, Place is a no-op.
func (b *Board) Place(slot int, uid string) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	usage, ok := b.tracker.Usage(uid)
	if !ok {
		return fmt.Errorf("%w: %q", hand.ErrUnknownCard, uid)
	}
	if usage.Used {
		if usage.Slot == slot {
			return nil
		}
		if err := b.Remove(usage.Slot, uid); err != nil {
			return err
		}
	}

	if err := b.tracker.MarkUsed(uid, slot); err != nil {
		return err
	}
	b.own[slot] = append(b.own[slot], Placement{Card: usage.Card, UID: uid, Slot: slot})
	klog.V(1).Infof("Board.Place: %s -> slot %d", uid, slot)
	card := usage.Card
	b.emit(Update{Slot: slot, Card: &card, Action: ActionAdd})
	return nil
}

// Remove takes uid out of slot and returns it to the hand.
// With an empty uid every card of the slot is removed. Removing from an empty slot,
// or a card that isn't in the slot, is a no-op.
func (b *Board) Remove(slot int, uid string) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	if len(b.own[slot]) == 0 {
		return nil
	}

	if uid == "" {
		removed := b.own[slot]
		b.own[slot] = nil
		for _, p := range removed {
			if err := b.tracker.MarkUnused(p.UID); err != nil {
				klog.Warningf("Board.Remove: slot %d held %q: %v", slot, p.UID, err)
			}
		}
		klog.V(1).Infof("Board.Remove: cleared slot %d (%d cards)", slot, len(removed))
		b.emit(Update{Slot: slot, Action: ActionClear})
		return nil
	}

	for i, p := range b.own[slot] {
		if p.UID != uid {
			continue
		}
		b.own[slot] = append(b.own[slot][:i:i], b.own[slot][i+1:]...)
		if err := b.tracker.MarkUnused(uid); err != nil {
			return err
		}
		klog.V(1).Infof("Board.Remove: %s <- slot %d", uid, slot)
		card := p.Card
		b.emit(Update{Slot: slot, Card: &card, Action: ActionRemove})
		return nil
	}
	return nil
}

// Commit gathers the placed cards, slot by slot in placement order.
// The board and the tracker are left untouched: they are only cleared once the
// server accepts the move.
func (b *Board) Commit() (*Commit, error) {
	c := &Commit{UIDs: make(map[string]struct{})}
	for slot, placements := range b.own {
		c.Slots[slot] = make([]game.Card, 0, len(placements))
		for _, p := range placements {
			c.Slots[slot] = append(c.Slots[slot], p.Card)
			c.Cards = append(c.Cards, p.Card)
			c.UIDs[p.UID] = struct{}{}
		}
	}
	if len(c.Cards) == 0 {
		return nil, ErrNothingToPlay
	}
	return c, nil
}

// ClearOwn empties the own slots, returning every placed card that is still in the hand to it.
func (b *Board) ClearOwn() {
	for slot, placements := range b.own {
		for _, p := range placements {
			// Cards already removed from the hand are expected here.
			_ = b.tracker.MarkUnused(p.UID)
		}
		b.own[slot] = nil
	}
}

// Reset clears both grids.
func (b *Board) Reset() {
	b.ClearOwn()
	b.opponent = [game.SlotCount][]game.Card{}
}

// ApplyOpponent replaces the opponent's slots.
func (b *Board) ApplyOpponent(slots [game.SlotCount][]game.Card) {
	for i := range slots {
		b.opponent[i] = append([]game.Card(nil), slots[i]...)
	}
}

// Own returns a copy of the own slots.
func (b *Board) Own() [game.SlotCount][]Placement {
	var out [game.SlotCount][]Placement
	for i, s := range b.own {
		out[i] = append([]Placement(nil), s...)
	}
	return out
}

// Opponent returns a copy of the opponent's slots.
func (b *Board) Opponent() [game.SlotCount][]game.Card {
	var out [game.SlotCount][]game.Card
	for i, s := range b.opponent {
		out[i] = append([]game.Card(nil), s...)
	}
	return out
}

// Empty reports whether no card is placed in the own slots.
func (b *Board) Empty() bool {
	for _, s := range b.own {
		if len(s) > 0 {
			return false
		}
	}
	return true
}
