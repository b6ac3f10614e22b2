// Package hand tracks the cards owned by the local player and which play slot,
// if any, each of them is currently assigned to.
package hand

import (
	"errors"
	"fmt"

	"github.com/janpfeifer/xemk/internal/game"
	"k8s.io/klog/v2"
)

var (
	// ErrUnknownCard is returned for unique ids that are not in the current hand.
	ErrUnknownCard = errors.New("unknown card")

	// ErrAlreadyPlaced is returned when marking a card used while it is used in another slot.
	ErrAlreadyPlaced = errors.New("card already placed in another slot")

	// ErrInvalidSlot is returned for slot indices outside [0, game.SlotCount).
	ErrInvalidSlot = errors.New("invalid slot index")
)

// Entry is a hand card tagged with the unique id it received when the hand was assigned.
type Entry struct {
	UID  string
	Card game.Card
}

// Usage is the per-card placement state: Used is true iff Slot is in [0, game.SlotCount).
type Usage struct {
	Card game.Card
	Used bool
	Slot int
}

// Tracker is the source of truth for "can this card be placed".
// It is not safe for concurrent use: the session owns it.
type Tracker struct {
	hand  []Entry
	usage map[string]*Usage
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{usage: make(map[string]*Usage)}
}

// AssignHand replaces the hand and resets every usage entry.
// Unique ids are derived from each card's position in cards.
// Placements on the board referring to the previous hand become invalid: the caller must clear them.
func (t *Tracker) AssignHand(cards []game.Card) {
	t.hand = make([]Entry, 0, len(cards))
	t.usage = make(map[string]*Usage, len(cards))
	for i, card := range cards {
		uid := game.UniqueID(card.Name, i)
		t.hand = append(t.hand, Entry{UID: uid, Card: card})
		t.usage[uid] = &Usage{Card: card, Slot: -1}
	}
	klog.V(1).Infof("AssignHand: %d cards", len(t.hand))
}

// MarkUsed records that the card is placed in slot.
// Moving a card between slots must go through MarkUnused first.
func (t *Tracker) MarkUsed(uid string, slot int) error {
	u, ok := t.usage[uid]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCard, uid)
	}
	if slot < 0 || slot >= game.SlotCount {
		return fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}
	if u.Used && u.Slot != slot {
		return fmt.Errorf("%w: %q is in slot %d", ErrAlreadyPlaced, uid, u.Slot)
	}
	u.Used = true
	u.Slot = slot
	return nil
}

// MarkUnused records that the card is back in the hand.
func (t *Tracker) MarkUnused(uid string) error {
	u, ok := t.usage[uid]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCard, uid)
	}
	u.Used = false
	u.Slot = -1
	return nil
}

// ResetUsage marks every card of the hand as unused.
func (t *Tracker) ResetUsage() {
	for _, u := range t.usage {
		u.Used = false
		u.Slot = -1
	}
}

// RemovePermanently drops the given cards from the hand and from the usage map.
// Unknown ids are ignored. The remaining cards keep their unique ids.
func (t *Tracker) RemovePermanently(uids map[string]struct{}) {
	if len(uids) == 0 {
		return
	}
	kept := t.hand[:0]
	for _, e := range t.hand {
		if _, found := uids[e.UID]; found {
			delete(t.usage, e.UID)
			continue
		}
		kept = append(kept, e)
	}
	t.hand = kept
}

// Usage returns a copy of the usage entry for uid.
func (t *Tracker) Usage(uid string) (Usage, bool) {
	u, ok := t.usage[uid]
	if !ok {
		return Usage{}, false
	}
	return *u, true
}

// Hand returns a copy of the current hand, in hand order.
func (t *Tracker) Hand() []Entry {
	return append([]Entry(nil), t.hand...)
}

// Len returns the number of cards in the hand.
func (t *Tracker) Len() int {
	return len(t.hand)
}
