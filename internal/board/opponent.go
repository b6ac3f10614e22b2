package board

import "github.com/janpfeifer/xemk/internal/game"

// CardsPerInferredSlot is how many cards go in each slot when the opponent's
// slots have to be inferred from the flat list of played cards.
const CardsPerInferredSlot = 2

// OpponentSlots computes the opponent's slots from an opponent_move.
//
// An explicit, non-empty Slots array of at most game.SlotCount entries is
// authoritative. Otherwise the slots are filled in order from CardsPlayed,
// skipping nulls, CardsPerInferredSlot cards per slot, and extra cards dropped.
func OpponentSlots(move *game.OpponentMove) [game.SlotCount][]game.Card {
	var slots [game.SlotCount][]game.Card
	if len(move.Slots) > 0 && len(move.Slots) <= game.SlotCount {
		for i, slot := range move.Slots {
			for _, card := range slot {
				if card != nil {
					slots[i] = append(slots[i], *card)
				}
			}
		}
		return slots
	}

	slot := 0
	for _, card := range move.CardsPlayed {
		if card == nil {
			continue
		}
		if slot >= game.SlotCount {
			break
		}
		slots[slot] = append(slots[slot], *card)
		if len(slots[slot]) >= CardsPerInferredSlot {
			slot++
		}
	}
	return slots
}
