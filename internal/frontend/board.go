package frontend

import (
	"context"
	"fmt"

	"github.com/janpfeifer/xemk/internal/board"
	"github.com/janpfeifer/xemk/internal/game"
	"github.com/janpfeifer/xemk/internal/session"
	"github.com/maxence-charriere/go-app/v10/pkg/app"
	"k8s.io/klog/v2"
)

// Board is the game page: opponent slots, own slots, hand and controls.
// A hand card is placed by selecting it and then clicking a slot.
type Board struct {
	app.Compo
	App *App

	snapshot *session.Snapshot
	selected string // Unique id of the selected hand card.
	Error    string
}

func (b *Board) OnAppUpdate(ctx app.Context) {
	klog.Infof("Board component: App update available, not reloading not to interrupt the game...")
}

func (b *Board) OnMount(ctx app.Context) {
	klog.Infof("Board component: OnMount called")
	if app.IsServer {
		return
	}
	s := b.App.Session()
	if s == nil {
		ctx.Navigate("/")
		return
	}
	b.snapshot = s.Snapshot()
	s.Listen("board", func() {
		snap := s.Snapshot()
		ctx.Dispatch(func(ctx app.Context) {
			b.snapshot = snap
			if b.selected != "" && !inHand(snap, b.selected) {
				b.selected = ""
			}
		})
	})
}

func (b *Board) OnDismount() {
	klog.Infof("Board component: OnDismount called")
	if s := b.App.Session(); s != nil {
		s.Unlisten("board")
	}
}

func inHand(snap *session.Snapshot, uid string) bool {
	for _, c := range snap.Hand {
		if c.UID == uid {
			return true
		}
	}
	return false
}

// intent runs fn off the UI goroutine and shows its error, if any.
func (b *Board) intent(ctx app.Context, name string, fn func(ctx context.Context, s *session.Session) error) {
	s := b.App.Session()
	if s == nil {
		return
	}
	ctx.Async(func() {
		err := fn(context.Background(), s)
		ctx.Dispatch(func(ctx app.Context) {
			if err != nil {
				klog.Warningf("Board: %s failed: %v", name, err)
				b.Error = fmt.Sprintf("%s: %v", name, err)
			} else {
				b.Error = ""
			}
		})
	})
}

func (b *Board) onSelect(uid string) app.EventHandler {
	return func(ctx app.Context, e app.Event) {
		if b.selected == uid {
			b.selected = ""
		} else {
			b.selected = uid
		}
	}
}

func (b *Board) onSlot(slot int) app.EventHandler {
	return func(ctx app.Context, e app.Event) {
		if b.selected == "" {
			return
		}
		uid := b.selected
		b.selected = ""
		b.intent(ctx, "place", func(ctx context.Context, s *session.Session) error {
			return s.Place(ctx, slot, uid)
		})
	}
}

func (b *Board) onRemove(slot int, uid string) app.EventHandler {
	return func(ctx app.Context, e app.Event) {
		e.StopImmediatePropagation()
		b.intent(ctx, "remove", func(ctx context.Context, s *session.Session) error {
			return s.Remove(ctx, slot, uid)
		})
	}
}

func (b *Board) onEndTurn(ctx app.Context, e app.Event) {
	b.intent(ctx, "end turn", func(ctx context.Context, s *session.Session) error {
		return s.EndTurn(ctx)
	})
}

func (b *Board) onNewRound(ctx app.Context, e app.Event) {
	b.intent(ctx, "new round", func(ctx context.Context, s *session.Session) error {
		return s.NewRound(ctx)
	})
}

func (b *Board) onJoin(ctx app.Context, e app.Event) {
	b.intent(ctx, "join", func(ctx context.Context, s *session.Session) error {
		return s.Join(ctx)
	})
}

func (b *Board) onSpecial(kind string) app.EventHandler {
	return func(ctx app.Context, e app.Event) {
		b.intent(ctx, "special action", func(ctx context.Context, s *session.Session) error {
			return s.ChooseSpecial(ctx, kind)
		})
	}
}

func renderCard(c game.Card) app.HTMLDiv {
	return app.Div().Class("card").Body(
		app.Strong().Text(c.Name),
		app.Small().Body(
			app.Div().Text(fmt.Sprintf("HP %d / ATK %d", c.HP, c.ATK)),
			app.Div().Text(c.Race+" "+c.Property),
			app.Div().Text("Cost: "+c.CostString()),
		),
	)
}

func (b *Board) renderOpponent(slots [game.SlotCount][]game.Card) app.UI {
	cols := make([]app.UI, 0, game.SlotCount)
	for i, cards := range slots {
		var body []app.UI
		for _, c := range cards {
			body = append(body, renderCard(c))
		}
		cols = append(cols, app.Div().Class("slot", "opponent-slot").Body(
			app.Header().Text(fmt.Sprintf("Slot %d", i+1)),
			app.Div().Body(body...),
		))
	}
	return app.Div().Class("grid", "slots").Body(cols...)
}

func (b *Board) renderOwn(slots [game.SlotCount][]board.Placement, locked bool) app.UI {
	cols := make([]app.UI, 0, game.SlotCount)
	for i, placements := range slots {
		var body []app.UI
		for _, p := range placements {
			var card app.UI = renderCard(p.Card)
			if !locked {
				card = app.Div().Class("placed").Body(
					renderCard(p.Card),
					app.Button().Class("outline", "secondary").Text("×").OnClick(b.onRemove(i, p.UID)),
				)
			}
			body = append(body, card)
		}
		slot := app.Div().Class("slot", "own-slot").Body(
			app.Header().Text(fmt.Sprintf("Slot %d", i+1)),
			app.Div().Body(body...),
		)
		if !locked && b.selected != "" {
			slot = slot.Class("droppable").OnClick(b.onSlot(i))
		}
		cols = append(cols, slot)
	}
	return app.Div().Class("grid", "slots").Body(cols...)
}

func (b *Board) renderHand(hand []session.HandCard, locked bool) app.UI {
	var cards []app.UI
	for _, c := range hand {
		card := renderCard(c.Card)
		if c.Used {
			card = card.Class("used").Title(fmt.Sprintf("In slot %d", c.Slot+1))
		} else if !locked {
			card = card.OnClick(b.onSelect(c.UID))
			if c.UID == b.selected {
				card = card.Class("selected")
			}
		}
		cards = append(cards, card)
	}
	return app.Div().Class("hand").Body(cards...)
}

func (b *Board) renderSpecial(snap *session.Snapshot) app.UI {
	if !snap.SpecialPending {
		return app.Text("")
	}
	buttons := make([]app.UI, 0, len(game.SpecialActions))
	for _, kind := range game.SpecialActions {
		buttons = append(buttons, app.Button().Text(kind).OnClick(b.onSpecial(kind)))
	}
	return app.Article().Class("special").Body(
		app.P().Text(snap.SpecialInstruction),
		app.Div().Class("grid").Body(buttons...),
	)
}

func renderLog(entries []session.LogEntry) app.UI {
	var items []app.UI
	for i := len(entries) - 1; i >= 0 && len(items) < 10; i-- {
		e := entries[i]
		items = append(items, app.Li().Text(e.Time.Format("15:04:05")+" "+e.Text))
	}
	return app.Ul().Class("activity-log").Body(items...)
}

func (b *Board) Render() app.UI {
	snap := b.snapshot
	if snap == nil {
		return app.Main().Class("container").Body(
			app.Div().Aria("busy", "true").Text("Connecting to game..."),
		)
	}

	var errorUI app.UI = app.Text("")
	if b.Error != "" {
		errorUI = app.P().Style("color", "red").Text(b.Error)
	}
	locked := snap.Phase == session.Committed

	var content app.UI
	if snap.Phase == session.AwaitingHand {
		content = app.Article().Body(
			app.P().Aria("busy", "true").Text("Waiting for a hand..."),
			app.Button().Text("Join").OnClick(b.onJoin),
		)
	} else {
		content = app.Div().Body(
			app.H4().Text("Opponent"),
			b.renderOpponent(snap.Opponent),
			app.H4().Text(fmt.Sprintf("Your slots (round %d)", snap.Round)),
			b.renderOwn(snap.Own, locked),
			app.H4().Text("Hand"),
			b.renderHand(snap.Hand, locked),
			app.Div().Class("grid").Body(
				app.Button().Text("End Turn").Disabled(!snap.CanEndTurn).OnClick(b.onEndTurn),
				app.Button().Class("secondary").Text("New Round").OnClick(b.onNewRound),
			),
		)
	}

	return app.Main().Class("container").Body(
		&TopBar{App: b.App, Snapshot: snap},
		errorUI,
		b.renderSpecial(snap),
		content,
		renderLog(snap.Log),
	)
}
