// Package server serves the browser client: the go-app shell, the compiled
// WebAssembly and the static assets. The game itself is played against the
// game server the browser connects to.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/janpfeifer/xemk/internal/frontend"
	"github.com/janpfeifer/xemk/internal/game"
	"github.com/maxence-charriere/go-app/v10/pkg/app"
	"k8s.io/klog/v2"
)

// Routes registers the pages. The same routes are registered by the
// WebAssembly binary, so the server can prerender them.
func Routes(a *frontend.App) {
	app.Route("/", func() app.Composer { return &frontend.Home{App: a} })
	app.Route("/play", func() app.Composer { return &frontend.Board{App: a} })
}

// Handler returns the go-app handler of the UI.
func Handler() *app.Handler {
	return &app.Handler{
		Name:        "XEMK",
		Description: "A two-player card game",
		Version:     game.Version,
		Styles: []string{
			"https://cdn.jsdelivr.net/npm/@picocss/pico@2/css/pico.min.css",
			"/web/css/main.css",
		},
	}
}

// Run starts the server and blocks until ctx is canceled.
// If started is not nil, the address actually listened on is sent to it.
func Run(ctx context.Context, addr string, started chan<- string) error {
	if addr == "" {
		addr = "localhost:0"
	}
	Routes(&frontend.App{})

	mux := http.NewServeMux()
	mux.Handle("/web/", http.StripPrefix("/web/", http.FileServer(http.Dir("web/"))))
	mux.Handle("/", Handler())

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		klog.Infof("Server started on %s", listener.Addr())
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			klog.Errorf("Server error: %v", err)
			errCh <- err
		}
	}()
	if started != nil {
		started <- listener.Addr().String()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	// Graceful shutdown with 5 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	klog.Infof("Shutting down server...")
	return srv.Shutdown(shutdownCtx)
}
