// Package conn owns the WebSocket connection to the game server: dialing, the
// receive loop, the write queue and the bounded reconnection policy.
package conn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"k8s.io/klog/v2"
)

var (
	// ErrNotConnected is returned by Send when there is no live connection.
	ErrNotConnected = errors.New("not connected")

	// ErrQueueFull is returned by Send when the write queue is saturated.
	ErrQueueFull = errors.New("write queue full")
)

// State of the connection.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Status is reported on every state transition.
type Status struct {
	State State
	URL   string

	// Attempt is the number of consecutive failed attempts. It goes back to 0 on a successful connection.
	Attempt     int
	MaxAttempts int

	// Failed is set once MaxAttempts consecutive attempts failed: no retry is scheduled
	// until Reconnect is called.
	Failed bool

	// ConnID identifies the current (or last) connection in the logs.
	ConnID string

	// Err is the last dial or transport error, if any.
	Err error

	// Seq increases with every transition. OnStatus never sees a lower Seq after a higher one.
	Seq uint64
}

func (s Status) String() string {
	switch {
	case s.Failed:
		return fmt.Sprintf("connection to %s failed after %d attempts", s.URL, s.Attempt)
	case s.State == Disconnected && s.Attempt > 0:
		return fmt.Sprintf("disconnected, reconnecting (attempt %d/%d)", s.Attempt, s.MaxAttempts)
	case s.State == Connecting:
		return fmt.Sprintf("connecting to %s", s.URL)
	case s.State == Connected:
		return fmt.Sprintf("connected to %s", s.URL)
	}
	return "disconnected"
}

// DialFunc opens a WebSocket connection.
type DialFunc func(ctx context.Context, url string) (*websocket.Conn, error)

// Options configure a Manager. Zero values are replaced by the defaults below.
type Options struct {
	URL string

	MaxAttempts  int           // Default 5.
	BaseDelay    time.Duration // Delay after the n-th consecutive failure is n*BaseDelay. Default 1s.
	MaxDelay     time.Duration // Cap of the retry delay. Default 10s.
	DialTimeout  time.Duration // Default 10s.
	WriteTimeout time.Duration // Default 2s.
	QueueSize    int           // Outbound messages buffered per connection. Default 64.
	ReadLimit    int64         // Max inbound message size. Default 1MB.

	Dial DialFunc // Default: websocket.Dial.

	// OnMessage is called from the receive loop with each inbound message.
	OnMessage func(data []byte)

	// OnStatus is called on each state transition, one call at a time and in
	// transition order. It must not call back into the Manager.
	OnStatus func(Status)
}

func (o *Options) setDefaults() {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = time.Second
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 10 * time.Second
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = 10 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 2 * time.Second
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 1 << 20
	}
	if o.Dial == nil {
		readLimit := o.ReadLimit
		o.Dial = func(ctx context.Context, url string) (*websocket.Conn, error) {
			c, _, err := websocket.Dial(ctx, url, nil)
			if err != nil {
				return nil, err
			}
			c.SetReadLimit(readLimit)
			return c, nil
		}
	}
}

// link is one live connection with its own receive loop and writer.
type link struct {
	id     string
	conn   *websocket.Conn
	outbox chan any
	ctx    context.Context
	cancel context.CancelFunc
}

// Manager keeps at most one connection (and one receive loop, one writer and one
// retry timer) alive at a time. All methods are safe for concurrent use and none
// of them blocks on the network.
type Manager struct {
	opts   Options
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	url      string
	state    State
	attempts int
	failed   bool
	closed   bool
	timer    *time.Timer
	live     *link
	connID   string
	lastErr  error
	seq      uint64

	// emitMu orders the OnStatus calls; emitted is the Seq of the last one.
	emitMu  sync.Mutex
	emitted uint64
}

// New creates a Manager. Nothing happens until Connect is called.
func New(opts Options) *Manager {
	opts.setDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
		url:    opts.URL,
	}
}

// Status returns the current status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

func (m *Manager) statusLocked() Status {
	return Status{
		State:       m.state,
		URL:         m.url,
		Attempt:     m.attempts,
		MaxAttempts: m.opts.MaxAttempts,
		Failed:      m.failed,
		ConnID:      m.connID,
		Err:         m.lastErr,
		Seq:         m.seq,
	}
}

// transitionLocked returns the status to emit for a state change. m.mu must be held.
func (m *Manager) transitionLocked() Status {
	m.seq++
	return m.statusLocked()
}

// emit reports st, unless a later transition was already reported: the attempt
// goroutine can reach emit before the caller that started it.
func (m *Manager) emit(st Status) {
	if m.opts.OnStatus == nil {
		return
	}
	m.emitMu.Lock()
	defer m.emitMu.Unlock()
	if st.Seq <= m.emitted {
		klog.V(2).Infof("Manager: dropping stale status %d (%s)", st.Seq, st)
		return
	}
	m.emitted = st.Seq
	m.opts.OnStatus(st)
}

// Connect starts connecting in the background. It is a no-op if a connection is
// live or being established, if a retry is already scheduled, or after the
// retries are exhausted (see Reconnect).
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.closed || m.state != Disconnected || m.timer != nil || m.failed {
		m.mu.Unlock()
		return
	}
	st := m.startLocked()
	m.mu.Unlock()
	m.emit(st)
}

// Reconnect is the manual retry: it resets the attempt counter, cancels any
// scheduled retry and, unless already connected or connecting, starts a new attempt.
func (m *Manager) Reconnect() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.attempts = 0
	m.failed = false
	if m.state != Disconnected {
		m.mu.Unlock()
		return
	}
	klog.Infof("Manager.Reconnect: manual reconnection to %s", m.url)
	st := m.startLocked()
	m.mu.Unlock()
	m.emit(st)
}

// SetURL changes the endpoint used by the next attempts. A live connection is kept.
func (m *Manager) SetURL(url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.url = url
}

// Close drops the connection and stops reconnecting. The Manager can't be reused.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	l := m.live
	m.live = nil
	m.state = Disconnected
	st := m.transitionLocked()
	m.mu.Unlock()

	if l != nil {
		klog.Infof("Manager.Close: closing connection %s", l.id)
		_ = l.conn.CloseNow()
	}
	m.cancel()
	m.emit(st)
}

// Send queues v to be written as JSON on the live connection.
// It doesn't wait for the write: failures show up as a dropped connection.
func (m *Manager) Send(v any) error {
	m.mu.Lock()
	l := m.live
	m.mu.Unlock()
	if l == nil {
		return ErrNotConnected
	}
	select {
	case l.outbox <- v:
		return nil
	case <-l.ctx.Done():
		return ErrNotConnected
	default:
		return ErrQueueFull
	}
}

// startLocked launches one connection attempt. m.mu must be held.
func (m *Manager) startLocked() Status {
	m.state = Connecting
	m.connID = uuid.NewString()
	go m.attempt(m.connID, m.url)
	return m.transitionLocked()
}

func (m *Manager) attempt(id, url string) {
	klog.Infof("Manager.attempt: connecting to %s (conn %s)", url, id)
	ctx, cancel := context.WithTimeout(m.ctx, m.opts.DialTimeout)
	c, err := m.opts.Dial(ctx, url)
	cancel()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		if c != nil {
			_ = c.CloseNow()
		}
		return
	}
	if err != nil {
		klog.Errorf("Manager.attempt: dial %s failed: %v", url, err)
		st := m.failLocked(err)
		m.mu.Unlock()
		m.emit(st)
		return
	}

	lctx, lcancel := context.WithCancel(m.ctx)
	l := &link{
		id:     id,
		conn:   c,
		outbox: make(chan any, m.opts.QueueSize),
		ctx:    lctx,
		cancel: lcancel,
	}
	m.live = l
	m.state = Connected
	m.attempts = 0
	m.failed = false
	m.lastErr = nil
	st := m.transitionLocked()
	m.mu.Unlock()

	klog.Infof("Manager.attempt: connected to %s (conn %s)", url, id)
	m.emit(st)
	go m.writeLoop(l)
	go m.readLoop(l)
}

// failLocked records a failed attempt or a dropped connection and schedules the
// next attempt, unless MaxAttempts is reached. m.mu must be held.
func (m *Manager) failLocked(err error) Status {
	m.state = Disconnected
	m.lastErr = err
	m.attempts++
	if m.attempts >= m.opts.MaxAttempts {
		m.failed = true
		klog.Errorf("Manager: giving up on %s after %d attempts", m.url, m.attempts)
		return m.transitionLocked()
	}

	delay := m.retryDelay(m.attempts)
	klog.Warningf("Manager: retrying in %s (attempt %d/%d)", delay, m.attempts, m.opts.MaxAttempts)
	var t *time.Timer
	t = time.AfterFunc(delay, func() { m.retry(t) })
	m.timer = t
	return m.transitionLocked()
}

// retryDelay is the wait before the attempt following the n-th consecutive failure.
func (m *Manager) retryDelay(n int) time.Duration {
	d := m.opts.BaseDelay * time.Duration(n)
	if d > m.opts.MaxDelay {
		d = m.opts.MaxDelay
	}
	return d
}

func (m *Manager) retry(t *time.Timer) {
	m.mu.Lock()
	if m.timer != t {
		// Canceled by Reconnect or Close.
		m.mu.Unlock()
		return
	}
	m.timer = nil
	if m.closed || m.state != Disconnected {
		m.mu.Unlock()
		return
	}
	st := m.startLocked()
	m.mu.Unlock()
	m.emit(st)
}

func (m *Manager) readLoop(l *link) {
	klog.V(1).Infof("readLoop: started (conn %s)", l.id)
	for {
		_, data, err := l.conn.Read(l.ctx)
		if err != nil {
			m.dropped(l, err)
			return
		}
		klog.V(2).Infof("readLoop: received %d bytes", len(data))
		if m.opts.OnMessage != nil {
			m.opts.OnMessage(data)
		}
	}
}

func (m *Manager) writeLoop(l *link) {
	for {
		select {
		case <-l.ctx.Done():
			return
		case v := <-l.outbox:
			ctx, cancel := context.WithTimeout(l.ctx, m.opts.WriteTimeout)
			err := wsjson.Write(ctx, l.conn, v)
			cancel()
			if err != nil {
				klog.Errorf("writeLoop: write failed (conn %s): %v", l.id, err)
				// The receive loop sees the closed connection and starts the reconnection.
				_ = l.conn.CloseNow()
				return
			}
		}
	}
}

// dropped handles the end of the receive loop of l.
func (m *Manager) dropped(l *link, err error) {
	l.cancel()
	_ = l.conn.CloseNow()

	m.mu.Lock()
	if m.live != l || m.closed {
		m.mu.Unlock()
		return
	}
	m.live = nil
	klog.Warningf("Manager: connection %s lost: %v", l.id, err)
	st := m.failLocked(err)
	m.mu.Unlock()
	m.emit(st)
}
