package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type statusRecorder struct {
	mu  sync.Mutex
	seq []Status
}

func (r *statusRecorder) record(s Status) {
	r.mu.Lock()
	r.seq = append(r.seq, s)
	r.mu.Unlock()
}

func (r *statusRecorder) sequence() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Status(nil), r.seq...)
}

func (r *statusRecorder) last() (Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.seq) == 0 {
		return 0, false
	}
	return r.seq[len(r.seq)-1], true
}

func newWSServer(t *testing.T, handle func(*websocket.Conn)) (*httptest.Server, string) {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handle(c)
	}))
	t.Cleanup(srv.Close)
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func fastBackoff() Backoff {
	return Backoff{Base: 10 * time.Millisecond, Max: 50 * time.Millisecond}
}

func TestConnectorOpensAndDeliversFrames(t *testing.T) {
	_, url := newWSServer(t, func(c *websocket.Conn) {
		_ = c.WriteMessage(websocket.TextMessage, []byte("hello"))
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	})

	var rec statusRecorder
	var frames struct {
		mu  sync.Mutex
		got []string
	}
	conn := NewConnector(url, fastBackoff())
	conn.OnStatus = rec.record
	conn.OnFrame = func(raw []byte) {
		frames.mu.Lock()
		frames.got = append(frames.got, string(raw))
		frames.mu.Unlock()
	}
	conn.Activate(context.Background())
	defer conn.Deactivate()

	waitFor(t, "frame delivery", func() bool {
		frames.mu.Lock()
		defer frames.mu.Unlock()
		return len(frames.got) == 1 && frames.got[0] == "hello"
	})
	waitFor(t, "connected status", func() bool {
		s, ok := rec.last()
		return ok && s == StatusConnected
	})
}

func TestConnectorReconnectsAfterServerDrop(t *testing.T) {
	var conns struct {
		mu sync.Mutex
		n  int
	}
	_, url := newWSServer(t, func(c *websocket.Conn) {
		conns.mu.Lock()
		conns.n++
		first := conns.n == 1
		conns.mu.Unlock()
		if first {
			c.Close()
			return
		}
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	})

	var rec statusRecorder
	conn := NewConnector(url, fastBackoff())
	conn.OnStatus = rec.record
	conn.Activate(context.Background())
	defer conn.Deactivate()

	waitFor(t, "second connection", func() bool {
		conns.mu.Lock()
		defer conns.mu.Unlock()
		return conns.n >= 2
	})
	waitFor(t, "reconnected status", func() bool {
		s, ok := rec.last()
		return ok && s == StatusConnected
	})

	seq := rec.sequence()
	sawDrop := false
	for _, s := range seq {
		if s == StatusDisconnected {
			sawDrop = true
		}
	}
	if !sawDrop {
		t.Fatalf("status sequence %v never reported the drop", seq)
	}
}

func TestConnectorFirstRetryAfterDropIsImmediate(t *testing.T) {
	dials := make(chan time.Time, 4)
	var conns struct {
		mu sync.Mutex
		n  int
	}
	_, url := newWSServer(t, func(c *websocket.Conn) {
		dials <- time.Now()
		conns.mu.Lock()
		conns.n++
		first := conns.n == 1
		conns.mu.Unlock()
		if first {
			c.Close()
			return
		}
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	})

	// A long base makes the sleep visible if the redial ever waits it.
	conn := NewConnector(url, Backoff{Base: 2 * time.Second, Max: 2 * time.Second})
	conn.Activate(context.Background())
	defer conn.Deactivate()

	var dropped time.Time
	select {
	case dropped = <-dials:
	case <-time.After(3 * time.Second):
		t.Fatalf("first dial never arrived")
	}

	select {
	case redial := <-dials:
		if gap := redial.Sub(dropped); gap >= time.Second {
			t.Fatalf("first retry after a drop waited %v", gap)
		}
	case <-time.After(time.Second):
		t.Fatalf("redial waited for the backoff instead of retrying immediately")
	}
}

func TestConnectorStopsAfterMaxAttempts(t *testing.T) {
	// Nothing listens here; every dial fails.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	var rec statusRecorder
	b := fastBackoff()
	b.MaxAttempts = 2
	conn := NewConnector(url, b)
	conn.OnStatus = rec.record
	conn.Activate(context.Background())
	defer conn.Deactivate()

	waitFor(t, "give-up", func() bool {
		s, ok := rec.last()
		return ok && s == StatusDisconnected && conn.Status() == StatusDisconnected
	})

	before := len(rec.sequence())
	time.Sleep(100 * time.Millisecond)
	if after := len(rec.sequence()); after != before {
		t.Fatalf("status callbacks kept firing after the retry budget: %d -> %d", before, after)
	}
}

func TestDeactivateBeforeOpenLeavesNoDanglingLoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	var rec statusRecorder
	conn := NewConnector(url, fastBackoff())
	conn.OnStatus = rec.record
	conn.Activate(context.Background())
	conn.Deactivate()

	n := len(rec.sequence())
	time.Sleep(100 * time.Millisecond)
	if after := len(rec.sequence()); after != n {
		t.Fatalf("status callbacks fired after Deactivate: %d -> %d", n, after)
	}
	if conn.Status() == StatusConnected {
		t.Fatalf("connector reports connected after Deactivate")
	}
}

func TestSendNoOpWhenDisconnected(t *testing.T) {
	conn := NewConnector("ws://127.0.0.1:1/ws", fastBackoff())
	if err := conn.Send("dropped"); err != nil {
		t.Fatalf("send while disconnected: %v", err)
	}
}

func TestSendReachesServer(t *testing.T) {
	got := make(chan string, 1)
	_, url := newWSServer(t, func(c *websocket.Conn) {
		_, p, err := c.ReadMessage()
		if err != nil {
			return
		}
		got <- string(p)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	})

	conn := NewConnector(url, fastBackoff())
	conn.Activate(context.Background())
	defer conn.Deactivate()

	waitFor(t, "open", func() bool { return conn.Status() == StatusConnected })
	if err := conn.Send("ping"); err != nil {
		t.Fatalf("send: %v", err)
	}
	select {
	case p := <-got:
		if p != "ping" {
			t.Fatalf("server saw %q", p)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("payload never arrived")
	}
}

func TestBackoffDelaySequence(t *testing.T) {
	b := Backoff{Base: time.Second, Max: 30 * time.Second}
	want := []time.Duration{
		0,
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}
	for attempt, w := range want {
		if got := b.delay(attempt); got != w {
			t.Fatalf("delay(%d) = %v, want %v", attempt, got, w)
		}
	}
}
