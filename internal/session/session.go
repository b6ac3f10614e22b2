// Package session implements the turn state machine of one player.
//
// All the game state (hand, board, pending commit, special action prompt) is
// owned by the goroutine running Session.Run: server events, connection status
// changes and user intents are posted to its queue and applied in order.
// Readers get immutable copies through Snapshot.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/janpfeifer/xemk/internal/board"
	"github.com/janpfeifer/xemk/internal/conn"
	"github.com/janpfeifer/xemk/internal/game"
	"github.com/janpfeifer/xemk/internal/hand"
	"k8s.io/klog/v2"
)

var (
	// ErrCommitPending is returned by intents that would change the board while
	// the last player_action hasn't been accepted yet.
	ErrCommitPending = errors.New("turn already committed, waiting for the server")

	// ErrNoSpecialAction is returned by ChooseSpecial when the server didn't ask for one.
	ErrNoSpecialAction = errors.New("no special action requested")

	// ErrUnknownAction is returned by ChooseSpecial for kinds other than game.SpecialActions.
	ErrUnknownAction = errors.New("unknown special action")

	// ErrStopped is returned by intents once Run has returned.
	ErrStopped = errors.New("session stopped")
)

// Phase of the turn.
type Phase int

const (
	AwaitingHand Phase = iota // No hand assigned yet.
	HandReady                 // Hand assigned, nothing placed.
	Placing                   // At least one card placed.
	Committed                 // player_action sent, waiting for move_accepted.
)

func (p Phase) String() string {
	switch p {
	case AwaitingHand:
		return "AwaitingHand"
	case HandReady:
		return "HandReady"
	case Placing:
		return "Placing"
	case Committed:
		return "Committed"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Outbound messages the session sends. router.Router implements it.
type Outbound interface {
	Join() error
	NewRound() error
	PlayerAction(c *board.Commit) error
	PlacementUpdate(u board.Update) error
	SpecialAction(kind string) error
}

// Options of a Session.
type Options struct {
	PlayerID string

	// AutoJoin sends player_join every time the connection is (re-)established.
	AutoJoin bool

	// LogSize is the number of activity log entries kept. Default 100.
	LogSize int

	// QueueSize of the event queue. Default 64.
	QueueSize int
}

// Session of one player. Create it with New and start it with Run.
type Session struct {
	opts Options
	out  Outbound

	queue chan func()
	done  chan struct{}

	// Owned by the Run goroutine.
	tracker    *hand.Tracker
	board      *board.Board
	phase      Phase
	round      int
	lastPlayer string
	pending    *board.Commit
	prompt     *game.SpecialActionRequest
	status     conn.Status
	log        []LogEntry

	muSnapshot sync.RWMutex
	snapshot   *Snapshot

	muListeners sync.Mutex
	listeners   map[string]func()
}

// New creates a Session sending its messages through out. Call SetOutbound
// before Run if out isn't available yet.
func New(opts Options, out Outbound) *Session {
	if opts.LogSize <= 0 {
		opts.LogSize = 100
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	s := &Session{
		opts:      opts,
		out:       out,
		queue:     make(chan func(), opts.QueueSize),
		done:      make(chan struct{}),
		tracker:   hand.New(),
		listeners: make(map[string]func()),
	}
	s.board = board.New(s.tracker, s.onPlacement)
	s.publish()
	return s
}

// SetOutbound sets the message sink. It must be called before Run.
func (s *Session) SetOutbound(out Outbound) {
	s.out = out
}

// Run processes the queue until ctx is done. It must be called exactly once.
func (s *Session) Run(ctx context.Context) error {
	klog.Infof("Session.Run: started for player %q", s.opts.PlayerID)
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			klog.Infof("Session.Run: stopped: %v", ctx.Err())
			return ctx.Err()
		case fn := <-s.queue:
			fn()
			s.publish()
			s.Notify()
		}
	}
}

// post queues fn to run on the session goroutine.
func (s *Session) post(ctx context.Context, fn func()) error {
	select {
	case s.queue <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrStopped
	}
}

// do runs fn on the session goroutine and waits for its result.
func (s *Session) do(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	if err := s.post(ctx, func() { errc <- fn() }); err != nil {
		return err
	}
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		select {
		case err := <-errc:
			return err
		default:
			return ErrStopped
		}
	}
}

// HandleEvent queues a server event. It is the router's sink.
func (s *Session) HandleEvent(e game.Event) {
	if err := s.post(context.Background(), func() { s.apply(e) }); err != nil {
		klog.Warningf("Session.HandleEvent: dropping %s: %v", e.MessageType(), err)
	}
}

// HandleStatus queues a connection status change. It is the connection manager's OnStatus.
func (s *Session) HandleStatus(st conn.Status) {
	if err := s.post(context.Background(), func() { s.applyStatus(st) }); err != nil {
		klog.V(1).Infof("Session.HandleStatus: dropping %s: %v", st, err)
	}
}

// Place puts the hand card uid in slot, moving it if it is already placed elsewhere.
func (s *Session) Place(ctx context.Context, slot int, uid string) error {
	return s.do(ctx, func() error {
		if s.pending != nil {
			return ErrCommitPending
		}
		if err := s.board.Place(slot, uid); err != nil {
			return err
		}
		s.updatePhase()
		return nil
	})
}

// Remove takes uid out of slot; an empty uid clears the slot.
func (s *Session) Remove(ctx context.Context, slot int, uid string) error {
	return s.do(ctx, func() error {
		if s.pending != nil {
			return ErrCommitPending
		}
		if err := s.board.Remove(slot, uid); err != nil {
			return err
		}
		s.updatePhase()
		return nil
	})
}

// EndTurn commits the placed cards: player_action is sent and the board waits
// for move_accepted before the cards leave the hand.
func (s *Session) EndTurn(ctx context.Context) error {
	return s.do(ctx, func() error {
		if s.pending != nil {
			return ErrCommitPending
		}
		c, err := s.board.Commit()
		if err != nil {
			return err
		}
		if err := s.out.PlayerAction(c); err != nil {
			return fmt.Errorf("sending player_action: %w", err)
		}
		s.pending = c
		s.phase = Committed
		s.logf("Played %d card(s), waiting for the server", len(c.Cards))
		return nil
	})
}

// Join sends player_join.
func (s *Session) Join(ctx context.Context) error {
	return s.do(ctx, func() error {
		if err := s.out.Join(); err != nil {
			return err
		}
		s.logf("Joining as %s", s.opts.PlayerID)
		return nil
	})
}

// NewRound asks the server for a new round.
func (s *Session) NewRound(ctx context.Context) error {
	return s.do(ctx, func() error {
		if err := s.out.NewRound(); err != nil {
			return err
		}
		s.logf("Requested a new round")
		return nil
	})
}

// ChooseSpecial answers the pending special action request with kind, one of game.SpecialActions.
func (s *Session) ChooseSpecial(ctx context.Context, kind string) error {
	return s.do(ctx, func() error {
		if s.prompt == nil {
			return ErrNoSpecialAction
		}
		if !game.IsSpecialAction(kind) {
			return fmt.Errorf("%w: %q", ErrUnknownAction, kind)
		}
		if err := s.out.SpecialAction(kind); err != nil {
			return err
		}
		s.prompt = nil
		s.logf("Chose special action %s", kind)
		return nil
	})
}

// onPlacement forwards own board changes as advisory card_placement_update.
func (s *Session) onPlacement(u board.Update) {
	if s.out == nil {
		return
	}
	if err := s.out.PlacementUpdate(u); err != nil {
		klog.V(1).Infof("Session: %s of slot %d not advertised: %v", u.Action, u.Slot, err)
	}
}

// updatePhase sets HandReady or Placing after a board change.
func (s *Session) updatePhase() {
	switch {
	case s.pending != nil:
		s.phase = Committed
	case s.phase == AwaitingHand:
		// Until a hand arrives.
	case s.board.Empty():
		s.phase = HandReady
	default:
		s.phase = Placing
	}
}

func (s *Session) apply(e game.Event) {
	switch m := e.(type) {
	case *game.HandAssigned:
		s.onHandAssigned(m)
	case *game.GameStart:
		s.onGameStart(m)
	case *game.MoveAccepted:
		s.onMoveAccepted(m)
	case *game.OpponentMove:
		s.board.ApplyOpponent(board.OpponentSlots(m))
		s.logf("Opponent played %d card(s)", countCards(m.CardsPlayed))
	case *game.SpecialActionRequest:
		s.prompt = m
		s.logf("Special action requested: %s", m.Instruction)
	case *game.Notice:
		if m.Message != "" {
			s.logf("%s", m.Message)
		} else {
			s.logf("%s", m.Type)
		}
	case *game.Unknown:
		klog.Warningf("Session: ignoring message type %q", m.Type)
	default:
		klog.Errorf("Session: unexpected event %T", e)
	}
}

// onHandAssigned replaces the hand. Any pending commit is void: the server
// moved on without confirming it.
func (s *Session) onHandAssigned(m *game.HandAssigned) {
	if s.pending != nil {
		klog.Warningf("Session: hand assigned while a commit was pending, dropping the commit")
	}
	s.board.ClearOwn()
	s.tracker.AssignHand(m.Cards)
	s.pending = nil
	s.prompt = nil
	s.round++
	s.phase = HandReady
	s.logf("Round %d: received %d card(s)", s.round, len(m.Cards))
}

func (s *Session) onGameStart(m *game.GameStart) {
	s.tracker.ResetUsage()
	s.board.Reset()
	s.pending = nil
	s.prompt = nil
	s.lastPlayer = m.LastPlayer
	if s.tracker.Len() > 0 {
		s.phase = HandReady
	} else {
		s.phase = AwaitingHand
	}
	if m.Message != "" {
		s.logf("%s", m.Message)
	} else {
		s.logf("Game started")
	}
}

func (s *Session) onMoveAccepted(m *game.MoveAccepted) {
	if s.pending == nil {
		klog.V(1).Infof("Session: move_accepted without a pending commit")
		s.board.ClearOwn()
		s.updatePhase()
		return
	}
	s.tracker.RemovePermanently(s.pending.UIDs)
	s.board.ClearOwn()
	s.pending = nil
	s.phase = HandReady
	if m.Message != "" {
		s.logf("%s", m.Message)
	} else {
		s.logf("Move accepted")
	}
}

func (s *Session) applyStatus(st conn.Status) {
	prev := s.status
	s.status = st
	if prev.State == st.State && prev.Attempt == st.Attempt && prev.Failed == st.Failed && prev.ConnID == st.ConnID {
		return
	}
	s.logf("%s", st)
	if st.State == conn.Connected && s.opts.AutoJoin && s.out != nil {
		if err := s.out.Join(); err != nil {
			klog.Errorf("Session: auto-join failed: %v", err)
			return
		}
		s.logf("Joining as %s", s.opts.PlayerID)
	}
}

func countCards(cards []*game.Card) int {
	n := 0
	for _, c := range cards {
		if c != nil {
			n++
		}
	}
	return n
}

func (s *Session) logf(format string, args ...any) {
	entry := LogEntry{Time: time.Now(), Text: fmt.Sprintf(format, args...)}
	klog.Infof("Session[%s]: %s", s.opts.PlayerID, entry.Text)
	s.log = append(s.log, entry)
	if over := len(s.log) - s.opts.LogSize; over > 0 {
		s.log = append(s.log[:0:0], s.log[over:]...)
	}
}

// Listen registers fn, called on the session goroutine after every change.
// fn must not call the session intents synchronously.
func (s *Session) Listen(name string, fn func()) {
	s.muListeners.Lock()
	defer s.muListeners.Unlock()
	s.listeners[name] = fn
}

// Unlisten removes the listener registered under name.
func (s *Session) Unlisten(name string) {
	s.muListeners.Lock()
	defer s.muListeners.Unlock()
	delete(s.listeners, name)
}

// Notify calls all listeners.
func (s *Session) Notify() {
	s.muListeners.Lock()
	fns := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.muListeners.Unlock()
	klog.V(2).Infof("Session: notifying %d listeners", len(fns))
	for _, fn := range fns {
		if fn != nil {
			fn()
		}
	}
}
