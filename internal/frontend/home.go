package frontend

import (
	"strconv"

	"github.com/janpfeifer/xemk/internal/config"
	"github.com/janpfeifer/xemk/internal/game"
	"github.com/maxence-charriere/go-app/v10/pkg/app"
	"k8s.io/klog/v2"
)

// Home is the login page: player id and game server address.
type Home struct {
	app.Compo
	App *App

	PlayerID     string
	Host         string
	Port         string
	ErrorMessage string
}

func (h *Home) OnMount(ctx app.Context) {
	klog.V(1).Infof("Home: OnMount called")
	h.Port = strconv.Itoa(game.DefaultPort)
	if app.IsServer {
		return
	}
	h.Host = app.Window().URL().Hostname()
	if l, ok := loadLogin(); ok {
		h.PlayerID = l.PlayerID
		if l.Host != "" {
			h.Host = l.Host
		}
		if l.Port > 0 {
			h.Port = strconv.Itoa(l.Port)
		}
	}
}

func (h *Home) OnAppUpdate(ctx app.Context) {
	klog.Infof("Home component: App update available, reloading...")
	ctx.Reload()
}

func (h *Home) onInput(field *string) app.EventHandler {
	return func(ctx app.Context, e app.Event) {
		*field = ctx.JSSrc().Get("value").String()
	}
}

func (h *Home) onPlay(ctx app.Context, e app.Event) {
	e.PreventDefault()
	cfg := config.Default()
	cfg.PlayerID = h.PlayerID
	cfg.Host = h.Host
	port, err := strconv.Atoi(h.Port)
	if err != nil {
		h.ErrorMessage = "Invalid port " + h.Port
		return
	}
	cfg.Port = port

	if err := h.App.Start(cfg); err != nil {
		h.ErrorMessage = err.Error()
		return
	}
	klog.Infof("Home: playing as %q on %s", cfg.PlayerID, cfg.URL())
	saveLogin(savedLogin{PlayerID: cfg.PlayerID, Host: cfg.Host, Port: cfg.Port})
	ctx.Navigate("/play")
}

func (h *Home) Render() app.UI {
	var errorUI app.UI = app.Text("")
	if h.ErrorMessage != "" {
		errorUI = app.Div().Style("color", "red").Style("margin-bottom", "1rem").Text(h.ErrorMessage)
	}

	return app.Main().Class("container").Body(
		app.Article().Body(
			app.Header().Body(app.H2().Text("XEMK")),
			errorUI,
			app.Form().OnSubmit(h.onPlay).Body(
				app.Label().For("player").Text("Player ID"),
				app.Input().
					Type("text").
					ID("player").
					Placeholder("e.g. player1").
					Required(true).
					Value(h.PlayerID).
					AutoComplete(false).
					OnInput(h.onInput(&h.PlayerID)),
				app.Div().Class("grid").Body(
					app.Div().Body(
						app.Label().For("host").Text("Server"),
						app.Input().Type("text").ID("host").Value(h.Host).OnInput(h.onInput(&h.Host)),
					),
					app.Div().Body(
						app.Label().For("port").Text("Port"),
						app.Input().Type("number").ID("port").Value(h.Port).OnInput(h.onInput(&h.Port)),
					),
				),
				app.Button().Type("submit").Text("Play"),
			),
		),
	)
}
