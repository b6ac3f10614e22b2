// Package wstest provides an in-process WebSocket server standing in for the
// game server in tests.
package wstest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Server accepts WebSocket connections and hands them to the test as Peers.
type Server struct {
	srv   *httptest.Server
	peers chan *Peer
	done  chan struct{}
}

// Peer is the server side of one accepted connection.
type Peer struct {
	Conn *websocket.Conn
}

// NewServer starts a Server, closed at the end of the test.
func NewServer(t testing.TB) *Server {
	s := &Server{
		peers: make(chan *Peer, 16),
		done:  make(chan struct{}),
	}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Logf("wstest: accept failed: %v", err)
			return
		}
		s.peers <- &Peer{Conn: c}
		<-s.done
		_ = c.CloseNow()
	}))
	t.Cleanup(s.srv.Close)
	t.Cleanup(func() { close(s.done) })
	return s
}

// URL returns the ws:// address of the server.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

// Close stops accepting connections; new dials fail.
func (s *Server) Close() {
	s.srv.Listener.Close()
}

// Accept waits for the next client connection.
func (s *Server) Accept(t testing.TB, timeout time.Duration) *Peer {
	t.Helper()
	select {
	case p := <-s.peers:
		return p
	case <-time.After(timeout):
		t.Fatalf("wstest: no connection within %s", timeout)
		return nil
	}
}

// Send writes v as JSON.
func (p *Peer) Send(ctx context.Context, v any) error {
	return wsjson.Write(ctx, p.Conn, v)
}

// SendRaw writes a text message as is.
func (p *Peer) SendRaw(ctx context.Context, msg string) error {
	return p.Conn.Write(ctx, websocket.MessageText, []byte(msg))
}

// Receive reads the next message into a generic JSON object.
func (p *Peer) Receive(ctx context.Context) (map[string]any, error) {
	var msg map[string]any
	err := wsjson.Read(ctx, p.Conn, &msg)
	return msg, err
}

// ReceiveType reads messages until one with the given "type" arrives.
func (p *Peer) ReceiveType(ctx context.Context, msgType string) (map[string]any, error) {
	for {
		msg, err := p.Receive(ctx)
		if err != nil {
			return nil, err
		}
		if msg["type"] == msgType {
			return msg, nil
		}
	}
}

// Drop closes the connection abruptly, as a crashed server would.
func (p *Peer) Drop() {
	_ = p.Conn.CloseNow()
}
