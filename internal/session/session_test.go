package session

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/janpfeifer/xemk/internal/board"
	"github.com/janpfeifer/xemk/internal/conn"
	"github.com/janpfeifer/xemk/internal/game"
	"github.com/janpfeifer/xemk/internal/hand"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOut records the outbound messages. It is only called from the session goroutine.
type fakeOut struct {
	sent     []string
	commits  []*board.Commit
	updates  []board.Update
	specials []string
	err      error
}

func (f *fakeOut) record(name string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, name)
	return nil
}

func (f *fakeOut) Join() error     { return f.record("player_join") }
func (f *fakeOut) NewRound() error { return f.record("start_new_round") }

func (f *fakeOut) PlayerAction(c *board.Commit) error {
	if err := f.record("player_action"); err != nil {
		return err
	}
	f.commits = append(f.commits, c)
	return nil
}

func (f *fakeOut) PlacementUpdate(u board.Update) error {
	if err := f.record("card_placement_update"); err != nil {
		return err
	}
	f.updates = append(f.updates, u)
	return nil
}

func (f *fakeOut) SpecialAction(kind string) error {
	if err := f.record("special_action"); err != nil {
		return err
	}
	f.specials = append(f.specials, kind)
	return nil
}

func (f *fakeOut) count(name string) int {
	n := 0
	for _, s := range f.sent {
		if s == name {
			n++
		}
	}
	return n
}

func start(t *testing.T, opts Options) (*Session, *fakeOut) {
	t.Helper()
	if opts.PlayerID == "" {
		opts.PlayerID = "player1"
	}
	out := &fakeOut{}
	s := New(opts, out)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-errc
	})
	return s, out
}

// flush waits until everything queued so far has been processed.
func flush(t *testing.T, s *Session) {
	t.Helper()
	require.NoError(t, s.do(context.Background(), func() error { return nil }))
}

func deal(t *testing.T, s *Session, names ...string) {
	t.Helper()
	cards := make([]game.Card, 0, len(names))
	for _, n := range names {
		cards = append(cards, game.Card{Name: n, HP: 1, ATK: 1})
	}
	s.HandleEvent(&game.HandAssigned{Type: game.MsgTypeHandAssigned, Cards: cards})
	flush(t, s)
}

func handUIDs(snap *Snapshot) []string {
	var uids []string
	for _, c := range snap.Hand {
		uids = append(uids, c.UID)
	}
	return uids
}

func TestInitialSnapshot(t *testing.T) {
	s := New(Options{PlayerID: "player1"}, &fakeOut{})
	snap := s.Snapshot()
	assert.Equal(t, AwaitingHand, snap.Phase)
	assert.Equal(t, "player1", snap.PlayerID)
	assert.False(t, snap.CanEndTurn)
	assert.Empty(t, snap.Hand)
}

func TestCommitAccepted(t *testing.T) {
	s, out := start(t, Options{})
	ctx := context.Background()
	deal(t, s, "CardA", "CardB")
	assert.Equal(t, HandReady, s.Snapshot().Phase)
	assert.Equal(t, 1, s.Snapshot().Round)

	require.NoError(t, s.Place(ctx, 0, "CardA_0"))
	assert.Equal(t, Placing, s.Snapshot().Phase)
	require.NoError(t, s.Place(ctx, 0, "CardB_1"))
	assert.True(t, s.Snapshot().CanEndTurn)

	require.NoError(t, s.EndTurn(ctx))
	require.Len(t, out.commits, 1)
	cardA, cardB := game.Card{Name: "CardA", HP: 1, ATK: 1}, game.Card{Name: "CardB", HP: 1, ATK: 1}
	assert.Equal(t, [game.SlotCount][]game.Card{{cardA, cardB}, {}, {}, {}}, out.commits[0].Slots)
	assert.Equal(t, []game.Card{cardA, cardB}, out.commits[0].Cards)

	// Confirm-then-apply: the cards stay until the server accepts.
	snap := s.Snapshot()
	assert.Equal(t, Committed, snap.Phase)
	assert.False(t, snap.CanEndTurn)
	assert.Len(t, snap.Own[0], 2)
	assert.Equal(t, []string{"CardA_0", "CardB_1"}, handUIDs(snap))

	assert.ErrorIs(t, s.Place(ctx, 1, "CardA_0"), ErrCommitPending)
	assert.ErrorIs(t, s.Remove(ctx, 0, ""), ErrCommitPending)
	assert.ErrorIs(t, s.EndTurn(ctx), ErrCommitPending)

	s.HandleEvent(&game.MoveAccepted{CardsPlayed: []*game.Card{&cardA, &cardB}})
	flush(t, s)
	snap = s.Snapshot()
	assert.Equal(t, HandReady, snap.Phase)
	assert.Empty(t, snap.Hand)
	assert.Empty(t, snap.Own[0])
	assert.False(t, snap.CanEndTurn)
}

func TestMoveAcceptedKeepsUnplayedCards(t *testing.T) {
	s, _ := start(t, Options{})
	ctx := context.Background()
	deal(t, s, "A", "B", "C")
	require.NoError(t, s.Place(ctx, 2, "B_1"))
	require.NoError(t, s.EndTurn(ctx))
	s.HandleEvent(&game.MoveAccepted{})
	flush(t, s)

	snap := s.Snapshot()
	assert.Equal(t, []string{"A_0", "C_2"}, handUIDs(snap), "unique ids are kept after removals")
	for _, c := range snap.Hand {
		assert.False(t, c.Used)
		assert.Equal(t, -1, c.Slot)
	}
	require.NoError(t, s.Place(ctx, 0, "C_2"))
}

func TestEndTurnNothingToPlay(t *testing.T) {
	s, out := start(t, Options{})
	deal(t, s, "CardA")
	assert.ErrorIs(t, s.EndTurn(context.Background()), board.ErrNothingToPlay)
	assert.Empty(t, out.sent)
	assert.Equal(t, HandReady, s.Snapshot().Phase)
}

func TestEndTurnSendFailure(t *testing.T) {
	s, out := start(t, Options{})
	ctx := context.Background()
	deal(t, s, "CardA")
	require.NoError(t, s.Place(ctx, 0, "CardA_0"))

	out.err = conn.ErrNotConnected
	assert.ErrorIs(t, s.EndTurn(ctx), conn.ErrNotConnected)
	snap := s.Snapshot()
	assert.Equal(t, Placing, snap.Phase, "nothing is pending if the message wasn't queued")
	assert.True(t, snap.CanEndTurn)

	out.err = nil
	require.NoError(t, s.EndTurn(ctx))
	assert.Equal(t, Committed, s.Snapshot().Phase)
}

func TestPlaceErrors(t *testing.T) {
	s, _ := start(t, Options{})
	ctx := context.Background()
	assert.ErrorIs(t, s.Place(ctx, 0, "CardA_0"), hand.ErrUnknownCard, "no hand yet")
	assert.Equal(t, AwaitingHand, s.Snapshot().Phase)

	deal(t, s, "CardA")
	assert.ErrorIs(t, s.Place(ctx, 0, "CardZ_9"), hand.ErrUnknownCard)
	assert.ErrorIs(t, s.Place(ctx, 4, "CardA_0"), board.ErrInvalidSlot)
	assert.Equal(t, HandReady, s.Snapshot().Phase)
}

func TestPlacementUpdates(t *testing.T) {
	s, out := start(t, Options{})
	ctx := context.Background()
	deal(t, s, "CardA", "CardB")

	require.NoError(t, s.Place(ctx, 0, "CardA_0"))
	require.NoError(t, s.Place(ctx, 1, "CardA_0"))
	require.NoError(t, s.Remove(ctx, 1, ""))
	assert.Equal(t, HandReady, s.Snapshot().Phase)

	var got []string
	for _, u := range out.updates {
		got = append(got, fmt.Sprintf("%s@%d", u.Action, u.Slot))
	}
	assert.Equal(t, []string{"add@0", "remove@0", "add@1", "clear@1"}, got)
}

func TestPlacementUpdateFailureKeepsBoard(t *testing.T) {
	s, out := start(t, Options{})
	ctx := context.Background()
	deal(t, s, "CardA", "CardB")

	out.err = conn.ErrNotConnected
	require.NoError(t, s.Place(ctx, 0, "CardA_0"), "card_placement_update is advisory")
	require.NoError(t, s.Place(ctx, 2, "CardB_1"))
	snap := s.Snapshot()
	assert.Equal(t, Placing, snap.Phase)
	require.Len(t, snap.Own[0], 1)
	assert.Equal(t, "CardA_0", snap.Own[0][0].UID)
	require.Len(t, snap.Own[2], 1)
	assert.Empty(t, out.updates)

	out.err = nil
	require.NoError(t, s.Remove(ctx, 2, ""))
	require.Len(t, out.updates, 1)
	assert.Equal(t, 2, out.updates[0].Slot)
}

func TestHandAssignedVoidsCommit(t *testing.T) {
	s, _ := start(t, Options{})
	ctx := context.Background()
	deal(t, s, "A", "B")
	s.HandleEvent(&game.OpponentMove{CardsPlayed: []*game.Card{{Name: "X"}}})
	s.HandleEvent(&game.SpecialActionRequest{Instruction: "pick one"})
	require.NoError(t, s.Place(ctx, 0, "A_0"))
	require.NoError(t, s.EndTurn(ctx))

	deal(t, s, "C", "D", "E")
	snap := s.Snapshot()
	assert.Equal(t, HandReady, snap.Phase)
	assert.Equal(t, 2, snap.Round)
	assert.Equal(t, []string{"C_0", "D_1", "E_2"}, handUIDs(snap))
	assert.Empty(t, snap.Own[0])
	assert.False(t, snap.SpecialPending)
	assert.Equal(t, "X", snap.Opponent[0][0].Name, "opponent grid is kept")

	// The late move_accepted of the voided commit doesn't touch the new hand.
	s.HandleEvent(&game.MoveAccepted{})
	flush(t, s)
	assert.Len(t, s.Snapshot().Hand, 3)
	require.NoError(t, s.Place(ctx, 3, "E_2"))
}

func TestGameStartResets(t *testing.T) {
	s, _ := start(t, Options{})
	ctx := context.Background()
	deal(t, s, "A", "B")
	s.HandleEvent(&game.OpponentMove{Slots: [][]*game.Card{{{Name: "X"}}}})
	require.NoError(t, s.Place(ctx, 1, "B_1"))
	require.NoError(t, s.EndTurn(ctx))

	s.HandleEvent(&game.GameStart{Message: "Game begins", LastPlayer: "player2"})
	flush(t, s)
	snap := s.Snapshot()
	assert.Equal(t, HandReady, snap.Phase)
	assert.Equal(t, "player2", snap.LastPlayer)
	assert.Empty(t, snap.Own[1])
	assert.Empty(t, snap.Opponent[0])
	for _, c := range snap.Hand {
		assert.False(t, c.Used)
	}
	assert.Equal(t, "Game begins", snap.Log[len(snap.Log)-1].Text)
	require.NoError(t, s.Place(ctx, 0, "B_1"))
}

func TestOpponentMove(t *testing.T) {
	s, _ := start(t, Options{})
	x, y, z, w := &game.Card{Name: "X"}, &game.Card{Name: "Y"}, &game.Card{Name: "Z"}, &game.Card{Name: "W"}

	s.HandleEvent(&game.OpponentMove{CardsPlayed: []*game.Card{x, y, z, nil, w}})
	flush(t, s)
	snap := s.Snapshot()
	assert.Equal(t, []string{"X", "Y"}, game.Names(snap.Opponent[0]))
	assert.Equal(t, []string{"Z", "W"}, game.Names(snap.Opponent[1]))
	assert.Equal(t, AwaitingHand, snap.Phase, "own state machine unaffected")

	s.HandleEvent(&game.OpponentMove{CardsPlayed: []*game.Card{y, z}, Slots: [][]*game.Card{{x}, {}, {}, {}}})
	flush(t, s)
	snap = s.Snapshot()
	assert.Equal(t, []string{"X"}, game.Names(snap.Opponent[0]))
	assert.Empty(t, snap.Opponent[1])
}

func TestSpecialAction(t *testing.T) {
	s, out := start(t, Options{})
	ctx := context.Background()
	assert.ErrorIs(t, s.ChooseSpecial(ctx, game.SpecialSquirrels), ErrNoSpecialAction)

	s.HandleEvent(&game.SpecialActionRequest{Instruction: "Choose squirrels or creations"})
	flush(t, s)
	snap := s.Snapshot()
	assert.True(t, snap.SpecialPending)
	assert.Equal(t, "Choose squirrels or creations", snap.SpecialInstruction)

	assert.ErrorIs(t, s.ChooseSpecial(ctx, "dragons"), ErrUnknownAction)
	assert.True(t, s.Snapshot().SpecialPending)

	require.NoError(t, s.ChooseSpecial(ctx, game.SpecialCreations))
	assert.Equal(t, []string{game.SpecialCreations}, out.specials)
	assert.False(t, s.Snapshot().SpecialPending)
	assert.ErrorIs(t, s.ChooseSpecial(ctx, game.SpecialCreations), ErrNoSpecialAction)
}

func TestAutoJoin(t *testing.T) {
	s, out := start(t, Options{AutoJoin: true})
	s.HandleStatus(conn.Status{State: conn.Connecting, ConnID: "c1"})
	s.HandleStatus(conn.Status{State: conn.Connected, ConnID: "c1"})
	s.HandleStatus(conn.Status{State: conn.Connected, ConnID: "c1"})
	flush(t, s)
	assert.Equal(t, 1, out.count("player_join"))
	assert.Equal(t, conn.Connected, s.Snapshot().Conn.State)

	s.HandleStatus(conn.Status{State: conn.Disconnected, Attempt: 1, MaxAttempts: 5, ConnID: "c1"})
	s.HandleStatus(conn.Status{State: conn.Connecting, Attempt: 1, MaxAttempts: 5, ConnID: "c2"})
	s.HandleStatus(conn.Status{State: conn.Connected, ConnID: "c2"})
	flush(t, s)
	assert.Equal(t, 2, out.count("player_join"), "rejoin after reconnection")
}

func TestNoAutoJoin(t *testing.T) {
	s, out := start(t, Options{})
	s.HandleStatus(conn.Status{State: conn.Connected, ConnID: "c1"})
	flush(t, s)
	assert.Zero(t, out.count("player_join"))

	require.NoError(t, s.Join(context.Background()))
	require.NoError(t, s.NewRound(context.Background()))
	assert.Equal(t, []string{"player_join", "start_new_round"}, out.sent)
}

func TestNotices(t *testing.T) {
	s, _ := start(t, Options{LogSize: 2})
	s.HandleEvent(&game.Notice{Type: game.MsgTypeWaitingForOpponent, Message: "Waiting for opponent"})
	s.HandleEvent(&game.Notice{Type: game.MsgTypeOpponentDisconnected})
	s.HandleEvent(&game.Unknown{Type: "victory_dance"})
	s.HandleEvent(&game.Notice{Type: game.MsgTypeGameFull, Message: "Game is full"})
	flush(t, s)

	var texts []string
	for _, e := range s.Snapshot().Log {
		texts = append(texts, e.Text)
	}
	assert.Equal(t, []string{"opponent_disconnected", "Game is full"}, texts, "log is bounded")
}

func TestListeners(t *testing.T) {
	s, _ := start(t, Options{})
	calls := make(chan *Snapshot, 16)
	s.Listen("test", func() { calls <- s.Snapshot() })
	deal(t, s, "A")
	snap := <-calls
	assert.Equal(t, HandReady, snap.Phase)

	s.Unlisten("test")
	flush(t, s)
	for len(calls) > 0 {
		<-calls
	}
	deal(t, s, "B")
	select {
	case <-calls:
		t.Fatal("listener called after Unlisten")
	default:
	}
}

func TestStopped(t *testing.T) {
	s := New(Options{PlayerID: "player1"}, &fakeOut{})
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx) }()
	cancel()
	assert.True(t, errors.Is(<-errc, context.Canceled))
	assert.ErrorIs(t, s.Join(context.Background()), ErrStopped)
	s.HandleEvent(&game.MoveAccepted{}) // Must not block.
}
