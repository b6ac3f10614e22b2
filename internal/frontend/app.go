package frontend

import (
	"context"
	"errors"
	"sync"

	"github.com/janpfeifer/xemk/internal/client"
	"github.com/janpfeifer/xemk/internal/config"
	"github.com/janpfeifer/xemk/internal/session"
	"k8s.io/klog/v2"
)

// App holds the game client of the browser tab. It is shared by the components
// of the page: they only read session snapshots and send intents.
type App struct {
	mu     sync.Mutex
	client *client.Client
	cancel context.CancelFunc
}

// Start creates the client for cfg and runs it in the background.
// A previous client is stopped first.
func (a *App) Start(cfg *config.Config) error {
	c, err := client.New(cfg)
	if err != nil {
		return err
	}
	a.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	a.client = c
	a.cancel = cancel
	a.mu.Unlock()

	go func() {
		if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			klog.Errorf("App: client stopped: %v", err)
		}
	}()
	return nil
}

// Stop disconnects and drops the client.
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		klog.Infof("App.Stop: stopping client")
		a.cancel()
	}
	a.client = nil
	a.cancel = nil
}

// Client returns the running client, or nil.
func (a *App) Client() *client.Client {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.client
}

// Session returns the session of the running client, or nil.
func (a *App) Session() *session.Session {
	if c := a.Client(); c != nil {
		return c.Session()
	}
	return nil
}
