package session

import (
	"time"

	"github.com/janpfeifer/xemk/internal/board"
	"github.com/janpfeifer/xemk/internal/conn"
	"github.com/janpfeifer/xemk/internal/game"
)

// LogEntry is one line of the activity log.
type LogEntry struct {
	Time time.Time
	Text string
}

// HandCard is a card of the hand with its usage.
type HandCard struct {
	UID  string
	Card game.Card
	Used bool
	Slot int // -1 if not placed.
}

// Snapshot is a copy of the session state. It is never modified after creation.
type Snapshot struct {
	PlayerID   string
	Conn       conn.Status
	Phase      Phase
	Round      int
	LastPlayer string

	Hand     []HandCard
	Own      [game.SlotCount][]board.Placement
	Opponent [game.SlotCount][]game.Card

	// SpecialPending is set while the server waits for ChooseSpecial.
	SpecialPending     bool
	SpecialInstruction string

	// CanEndTurn: some card is placed and no commit is pending.
	CanEndTurn bool

	Log []LogEntry
}

// Snapshot returns the state as of the last processed event or intent.
func (s *Session) Snapshot() *Snapshot {
	s.muSnapshot.RLock()
	defer s.muSnapshot.RUnlock()
	return s.snapshot
}

// publish rebuilds the snapshot. Called on the session goroutine.
func (s *Session) publish() {
	snap := &Snapshot{
		PlayerID:   s.opts.PlayerID,
		Conn:       s.status,
		Phase:      s.phase,
		Round:      s.round,
		LastPlayer: s.lastPlayer,
		Own:        s.board.Own(),
		Opponent:   s.board.Opponent(),
		CanEndTurn: s.pending == nil && !s.board.Empty(),
		Log:        append([]LogEntry(nil), s.log...),
	}
	if s.prompt != nil {
		snap.SpecialPending = true
		snap.SpecialInstruction = s.prompt.Instruction
	}
	for _, e := range s.tracker.Hand() {
		u, _ := s.tracker.Usage(e.UID)
		snap.Hand = append(snap.Hand, HandCard{UID: e.UID, Card: e.Card, Used: u.Used, Slot: u.Slot})
	}

	s.muSnapshot.Lock()
	s.snapshot = snap
	s.muSnapshot.Unlock()
}
