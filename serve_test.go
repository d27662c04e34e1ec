package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gchat/internal/protocol"
	"gchat/internal/session"
)

type stubBackend struct {
	msgs   []protocol.Message
	status session.Status
	sent   []string
}

func (s *stubBackend) Messages() []protocol.Message { return s.msgs }
func (s *stubBackend) Status() session.Status       { return s.status }
func (s *stubBackend) Send(text string) error {
	s.sent = append(s.sent, text)
	return nil
}

func testMessages(n int) []protocol.Message {
	out := make([]protocol.Message, n)
	for i := range out {
		out[i] = protocol.Message{
			ID:        int64(i + 1),
			Username:  "ann",
			Content:   "m",
			Timestamp: time.Date(2025, 6, 1, 10, 0, i, 0, time.UTC),
		}
	}
	return out
}

type stateResp struct {
	Title    string `json:"title"`
	Status   string `json:"status"`
	Count    int    `json:"count"`
	Messages []struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
		Content  string `json:"content"`
	} `json:"messages"`
}

func getState(t *testing.T, h http.Handler, since string) stateResp {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/state?since="+since, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var out stateResp
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestStateReturnsTailSinceOffset(t *testing.T) {
	b := &stubBackend{msgs: testMessages(5), status: session.StatusConnected}
	h := newWebHandler(b, "group:42")

	full := getState(t, h, "0")
	if full.Count != 5 || len(full.Messages) != 5 {
		t.Fatalf("full state = %+v", full)
	}
	if full.Status != "connected" || full.Title != "group:42" {
		t.Fatalf("header fields = %+v", full)
	}

	tail := getState(t, h, "3")
	if tail.Count != 5 || len(tail.Messages) != 2 {
		t.Fatalf("tail = %+v", tail)
	}
	if tail.Messages[0].ID != 4 {
		t.Fatalf("tail starts at id %d", tail.Messages[0].ID)
	}
}

func TestStateResetsWhenOffsetTooLarge(t *testing.T) {
	b := &stubBackend{msgs: testMessages(2)}
	h := newWebHandler(b, "t")
	out := getState(t, h, "10")
	if len(out.Messages) != 2 || out.Count != 2 {
		t.Fatalf("state = %+v", out)
	}
}

func TestSendForwardsToBackend(t *testing.T) {
	b := &stubBackend{}
	h := newWebHandler(b, "t")

	req := httptest.NewRequest(http.MethodPost, "/api/send", strings.NewReader(`{"text":"hello"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if len(b.sent) != 1 || b.sent[0] != "hello" {
		t.Fatalf("sent = %v", b.sent)
	}
}

func TestSendRejectsBadJSON(t *testing.T) {
	h := newWebHandler(&stubBackend{}, "t")
	req := httptest.NewRequest(http.MethodPost, "/api/send", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestIndexServesUI(t *testing.T) {
	h := newWebHandler(&stubBackend{}, "t")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("content type %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "/api/state") {
		t.Fatalf("ui does not reference the polling endpoint")
	}
}
