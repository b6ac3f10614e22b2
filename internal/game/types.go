package game

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// CostItem is one entry of a card's play cost.
type CostItem struct {
	Resource string  `json:"resource"`
	Amount   float64 `json:"amount"`
}

// CardID is the server-issued card identifier. The server may send it as a JSON
// string or number; it is kept as an opaque string and written back as a number
// whenever it is numeric.
type CardID string

func (id CardID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id *CardID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = CardID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("card id must be a string or a number: %w", err)
	}
	*id = CardID(n.String())
	return nil
}

// Card is an immutable card value as sent by the server.
// Cards with the same name are distinct game objects: identity is given by UniqueID.
type Card struct {
	Name     string     `json:"name"`
	HP       int        `json:"HP"`
	ATK      int        `json:"ATK"`
	Property string     `json:"property"`
	Race     string     `json:"race"`
	Cost     []CostItem `json:"cost"`
	CardID   CardID     `json:"card_id,omitempty"`
}

// UnmarshalJSON accepts "id" as an alias of "card_id".
func (c *Card) UnmarshalJSON(data []byte) error {
	type plain Card
	var aux struct {
		plain
		ID CardID `json:"id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*c = Card(aux.plain)
	if c.CardID == "" {
		c.CardID = aux.ID
	}
	return nil
}

// CostString formats the cost as "resource: amount, ...", or "-" if the card is free.
func (c Card) CostString() string {
	if len(c.Cost) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(c.Cost))
	for _, item := range c.Cost {
		parts = append(parts, fmt.Sprintf("%s: %g", item.Resource, item.Amount))
	}
	return strings.Join(parts, ", ")
}

func (c Card) String() string {
	return fmt.Sprintf("%s (HP=%d, ATK=%d)", c.Name, c.HP, c.ATK)
}

// UniqueID returns the key identifying the card at position within the current hand.
func UniqueID(name string, position int) string {
	return fmt.Sprintf("%s_%d", name, position)
}

// Names returns the names of the given cards, in order.
func Names(cards []Card) []string {
	names := make([]string, 0, len(cards))
	for _, c := range cards {
		names = append(names, c.Name)
	}
	return names
}
