package session

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Backoff bounds the reconnect policy. The first attempt after a drop is
// immediate; subsequent attempts wait Base doubling up to Max. The
// attempt counter resets after every successful open.
type Backoff struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int // consecutive failed attempts before giving up; 0 means never
}

// DefaultBackoff keeps the reconnect-automatically behavior while
// preventing a tight open/close loop against a dead endpoint.
func DefaultBackoff() Backoff {
	return Backoff{Base: time.Second, Max: 30 * time.Second}
}

func (b Backoff) delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	d := b.Base << (attempt - 1)
	if d > b.Max || d <= 0 {
		d = b.Max
	}
	return d
}

// Connector owns the single transport connection of one conversation.
// It is built per session and discarded with it; there is no shared
// socket state.
//
// OnStatus and OnFrame must be assigned before Activate and are invoked
// from the connector's goroutine.
type Connector struct {
	URL      string
	Backoff  Backoff
	OnStatus func(Status)
	OnFrame  func([]byte)

	dialer *websocket.Dialer

	mu     sync.Mutex
	conn   *websocket.Conn
	status Status
	closed bool
	cancel context.CancelFunc
	done   chan struct{}
}

func NewConnector(url string, b Backoff) *Connector {
	if b.Base <= 0 {
		b = DefaultBackoff()
	}
	return &Connector{
		URL:     url,
		Backoff: b,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		status:  StatusConnecting,
	}
}

// Activate starts the connect loop. It never reports a dial error to the
// caller; failures surface only as status transitions. Calling Activate
// after Deactivate is a no-op.
func (c *Connector) Activate(ctx context.Context) {
	c.mu.Lock()
	if c.closed || c.done != nil {
		c.mu.Unlock()
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	go func() {
		defer close(done)
		c.connectLoop(ctx)
	}()
}

func (c *Connector) connectLoop(ctx context.Context) {
	for attempt := 0; ; attempt++ {
		if c.Backoff.MaxAttempts > 0 && attempt >= c.Backoff.MaxAttempts {
			log.Warn().Str("url", c.URL).Int("attempts", attempt).Msg("[session] giving up on reconnect")
			return
		}
		if d := c.Backoff.delay(attempt); d > 0 {
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return
			}
		}

		c.setStatus(StatusConnecting)
		conn, _, err := c.dialer.DialContext(ctx, c.URL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Debug().Err(err).Int("attempt", attempt).Msg("[session] dial failed")
			c.setStatus(StatusDisconnected)
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			conn.Close()
			return
		}
		c.conn = conn
		c.mu.Unlock()

		c.setStatus(StatusConnected)
		// -1 so the post-increment lands on 0 and the first retry
		// after this connection drops is immediate.
		attempt = -1

		c.readLoop(conn)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()

		if ctx.Err() != nil {
			return
		}
		c.setStatus(StatusDisconnected)
	}
}

func (c *Connector) readLoop(conn *websocket.Conn) {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}
		c.mu.Lock()
		cb := c.OnFrame
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}
		if cb != nil {
			cb(frame)
		}
	}
}

// Send writes one text frame. When the transport is not connected the
// payload is silently dropped; callers gate the input form on status.
func (c *Connector) Send(payload string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || c.status != StatusConnected {
		return nil
	}
	return c.conn.WriteMessage(websocket.TextMessage, []byte(payload))
}

// Status returns the last observed transport state.
func (c *Connector) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Deactivate tears the transport down and suppresses every further
// reconnect and callback. Safe to call at any point relative to
// Activate, concurrently, and more than once.
func (c *Connector) Deactivate() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
	if done != nil {
		<-done
	}
}

func (c *Connector) setStatus(s Status) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.status = s
	cb := c.OnStatus
	c.mu.Unlock()
	if cb != nil {
		cb(s)
	}
}
