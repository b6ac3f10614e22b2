// Package console is the terminal front end of the client: it reads commands,
// one per line, and prints the session state.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/janpfeifer/xemk/internal/game"
	"github.com/janpfeifer/xemk/internal/session"
)

// ErrQuit is returned by Execute for the quit command.
var ErrQuit = errors.New("quit")

// Client is the part of client.Client the console drives.
type Client interface {
	Session() *session.Session
	Reconnect(url string)
}

const help = `Commands:
  show                    print the board
  place <slot> <card>     place a hand card (unique id, e.g. CardA_0) in slot 1-4
  remove <slot> [card]    take a card out of a slot, or clear the slot
  end                     end the turn
  join                    join the game
  round                   ask for a new round
  special <kind>          answer a special action request (squirrels, creations)
  reconnect [url]         reconnect, optionally to another server
  quit
`

// Run reads commands from in until EOF, ErrQuit or ctx is done.
func Run(ctx context.Context, c Client, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	fmt.Fprint(out, help)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return err
		case line := <-lines:
			err := Execute(ctx, c, line, out)
			if errors.Is(err, ErrQuit) {
				return nil
			}
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		}
	}
}

// Execute runs one command line.
func Execute(ctx context.Context, c Client, line string, out io.Writer) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	s := c.Session()
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	switch cmd {
	case "help", "?":
		fmt.Fprint(out, help)
	case "show", "s":
		Render(out, s.Snapshot())
	case "place", "p":
		if len(args) != 2 {
			return errors.New("usage: place <slot> <card>")
		}
		slot, err := parseSlot(args[0])
		if err != nil {
			return err
		}
		return s.Place(ctx, slot, args[1])
	case "remove", "r":
		if len(args) < 1 || len(args) > 2 {
			return errors.New("usage: remove <slot> [card]")
		}
		slot, err := parseSlot(args[0])
		if err != nil {
			return err
		}
		uid := ""
		if len(args) == 2 {
			uid = args[1]
		}
		return s.Remove(ctx, slot, uid)
	case "end", "e":
		return s.EndTurn(ctx)
	case "join":
		return s.Join(ctx)
	case "round":
		return s.NewRound(ctx)
	case "special":
		if len(args) != 1 {
			return errors.New("usage: special <kind>")
		}
		return s.ChooseSpecial(ctx, strings.ToLower(args[0]))
	case "reconnect":
		url := ""
		if len(args) > 0 {
			url = args[0]
		}
		c.Reconnect(url)
	case "quit", "exit", "q":
		return ErrQuit
	default:
		return fmt.Errorf("unknown command %q, try help", cmd)
	}
	return nil
}

// parseSlot converts the 1-based slot of the commands.
func parseSlot(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > game.SlotCount {
		return 0, fmt.Errorf("slot must be 1 to %d, got %q", game.SlotCount, arg)
	}
	return n - 1, nil
}

// Render prints the snapshot.
func Render(w io.Writer, snap *session.Snapshot) {
	fmt.Fprintf(w, "[%s] %s, round %d, %s\n", snap.PlayerID, snap.Conn, snap.Round, snap.Phase)
	if snap.SpecialPending {
		fmt.Fprintf(w, "Special action requested: %s (special %s)\n",
			snap.SpecialInstruction, strings.Join(game.SpecialActions, "|"))
	}
	fmt.Fprintln(w, "Opponent:")
	for i, cards := range snap.Opponent {
		fmt.Fprintf(w, "  %d: %s\n", i+1, strings.Join(game.Names(cards), ", "))
	}
	fmt.Fprintln(w, "Slots:")
	for i, placements := range snap.Own {
		uids := make([]string, 0, len(placements))
		for _, p := range placements {
			uids = append(uids, p.UID)
		}
		fmt.Fprintf(w, "  %d: %s\n", i+1, strings.Join(uids, ", "))
	}
	fmt.Fprintln(w, "Hand:")
	for _, c := range snap.Hand {
		mark := " "
		if c.Used {
			mark = strconv.Itoa(c.Slot + 1)
		}
		fmt.Fprintf(w, "  [%s] %-12s %s, cost %s\n", mark, c.UID, c.Card, c.Card.CostString())
	}
	if snap.CanEndTurn {
		fmt.Fprintln(w, "Ready to end the turn.")
	}
}
