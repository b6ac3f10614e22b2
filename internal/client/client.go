// Package client wires the connection manager, the router and the turn session
// into one running game client.
package client

import (
	"context"

	"github.com/janpfeifer/xemk/internal/config"
	"github.com/janpfeifer/xemk/internal/conn"
	"github.com/janpfeifer/xemk/internal/router"
	"github.com/janpfeifer/xemk/internal/session"
	"k8s.io/klog/v2"
)

// Client of one player.
type Client struct {
	cfg     *config.Config
	manager *conn.Manager
	router  *router.Router
	session *session.Session
}

// New creates a client for cfg. Nothing is dialed until Run.
func New(cfg *config.Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{cfg: cfg}
	c.session = session.New(session.Options{
		PlayerID: cfg.PlayerID,
		AutoJoin: cfg.AutoJoin,
	}, nil)
	c.manager = conn.New(conn.Options{
		URL:          cfg.URL(),
		MaxAttempts:  cfg.Reconnect.MaxAttempts,
		BaseDelay:    cfg.Reconnect.BaseDelay,
		MaxDelay:     cfg.Reconnect.MaxDelay,
		DialTimeout:  cfg.DialTimeout,
		WriteTimeout: cfg.WriteTimeout,
		OnMessage:    func(data []byte) { c.router.HandleRaw(data) },
		OnStatus:     c.session.HandleStatus,
	})
	c.router = router.New(cfg.PlayerID, c.manager, c.session.HandleEvent)
	c.session.SetOutbound(c.router)
	return c, nil
}

// Run connects and processes the session until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	klog.Infof("Client.Run: player %q, server %s", c.cfg.PlayerID, c.cfg.URL())
	c.manager.Connect()
	defer c.manager.Close()
	return c.session.Run(ctx)
}

// Session to read snapshots from and send intents to.
func (c *Client) Session() *session.Session {
	return c.session
}

// Status of the connection.
func (c *Client) Status() conn.Status {
	return c.manager.Status()
}

// Reconnect retries connecting with a fresh attempt counter.
// If url is not empty it becomes the new server endpoint.
func (c *Client) Reconnect(url string) {
	if url != "" {
		c.manager.SetURL(url)
	}
	c.manager.Reconnect()
}
