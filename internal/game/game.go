package game

// Version of the client.
// Bumping this number will eventually make browser clients reload the WASM.
var Version = "v0.1.0"

// SlotCount is the number of play slots on each side of the turn board.
const SlotCount = 4

// DefaultPort is the port the game server listens on.
const DefaultPort = 8002

// Special actions offered when the server sends a special_action_request.
const (
	SpecialSquirrels = "squirrels" // Draw squirrel cards
	SpecialCreations = "creations" // Draw creature cards
)

// SpecialActions lists the choices offered for a special_action_request, in display order.
var SpecialActions = []string{SpecialSquirrels, SpecialCreations}

// IsSpecialAction reports whether kind is one of SpecialActions.
func IsSpecialAction(kind string) bool {
	for _, a := range SpecialActions {
		if a == kind {
			return true
		}
	}
	return false
}
