package frontend

import (
	"github.com/janpfeifer/xemk/internal/conn"
	"github.com/janpfeifer/xemk/internal/session"
	"github.com/maxence-charriere/go-app/v10/pkg/app"
)

// TopBar shows the player and the connection status, with the manual reconnect.
type TopBar struct {
	app.Compo
	App      *App
	Snapshot *session.Snapshot
}

func (t *TopBar) onReconnect(ctx app.Context, e app.Event) {
	e.PreventDefault()
	if c := t.App.Client(); c != nil {
		c.Reconnect("")
	}
}

func (t *TopBar) onLeave(ctx app.Context, e app.Event) {
	e.PreventDefault()
	t.App.Stop()
	clearLogin()
	ctx.Navigate("/")
}

func (t *TopBar) Render() app.UI {
	snap := t.Snapshot
	status := app.Span().Text(snap.Conn.String())
	if snap.Conn.State == conn.Connected {
		status = app.Span().Style("color", "var(--pico-ins-color)").Text(snap.Conn.String())
	} else if snap.Conn.Failed {
		status = app.Span().Style("color", "var(--pico-del-color)").Text(snap.Conn.String())
	}

	actions := []app.UI{
		app.Li().Body(status),
		app.Li().Body(app.Strong().Text(snap.PlayerID)),
	}
	if snap.Conn.State == conn.Disconnected {
		actions = append(actions, app.Li().Body(app.A().Href("#").OnClick(t.onReconnect).Text("Reconnect")))
	}
	actions = append(actions, app.Li().Body(app.A().Href("#").OnClick(t.onLeave).Text("Leave")))

	return app.Nav().Body(
		app.Ul().Body(app.Li().Body(app.Strong().Text("XEMK"))),
		app.Ul().Body(actions...),
	)
}
