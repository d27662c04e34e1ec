// Package session implements the per-conversation chat controller: a
// connector owning the WebSocket lifecycle and an assembler merging the
// historical fetch with live frames into one ordered message log.
package session

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"gchat/internal/api"
	"gchat/internal/crypto"
	"gchat/internal/protocol"
	"gchat/internal/store"
	"gchat/internal/token"
)

// DefaultWSBase is the deployed messaging gateway.
const DefaultWSBase = "wss://ws.gchat.cloud"

// HistoryFetcher is the slice of the API client the session needs.
type HistoryFetcher interface {
	Messages(ctx context.Context, conv protocol.Conversation) ([]protocol.Message, error)
}

var _ HistoryFetcher = (*api.Client)(nil)

// Config carries the endpoints and policies shared by all sessions of
// one client instance.
type Config struct {
	WSBase  string
	Backoff Backoff
	Cache   *store.Cache // optional local history cache
}

// Session drives one conversation: exactly one per active chat view,
// discarded when the user switches conversations. Key material is
// derived once at construction and lives only on this object.
type Session struct {
	conv      protocol.Conversation
	cfg       Config
	creds     token.Provider
	history   HistoryFetcher
	connector *Connector
	assembler *Assembler

	mu        sync.Mutex
	onMessage func(protocol.Message)
	onStatus  func(Status)
	onHistory func([]protocol.Message, error)
	started   bool
}

// New builds a session for conv. history is usually *api.Client.
func New(cfg Config, conv protocol.Conversation, creds token.Provider, history HistoryFetcher) *Session {
	if cfg.WSBase == "" {
		cfg.WSBase = DefaultWSBase
	}
	var key []byte
	if conv.Protected() {
		key = crypto.DeriveKey(conv.Password, conv.TempKey)
	}
	return &Session{
		conv:      conv,
		cfg:       cfg,
		creds:     creds,
		history:   history,
		assembler: NewAssembler(key),
	}
}

// OnMessage registers the callback fired for each live message appended
// to the log. Messages buffered behind the history fetch surface through
// the OnHistory snapshot instead. Must be set before Start.
func (s *Session) OnMessage(fn func(protocol.Message)) { s.onMessage = fn }

// OnStatus registers the transport status observer. Must be set before
// Start.
func (s *Session) OnStatus(fn func(Status)) { s.onStatus = fn }

// OnHistory fires once, when the historical fetch resolves or fails. The
// snapshot holds the log exactly as of that moment; any message appended
// later arrives through OnMessage instead, so rendering the snapshot and
// then every OnMessage never shows a message twice. Must be set before
// Start.
func (s *Session) OnHistory(fn func(snapshot []protocol.Message, err error)) { s.onHistory = fn }

// Start derives the transport URL, kicks off the history fetch, and
// activates the connector. The only synchronous failure is a missing
// credential; everything later surfaces through callbacks.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("session: already started")
	}
	s.started = true
	s.mu.Unlock()

	tok, err := s.creds.Token()
	if err != nil {
		return err
	}

	if s.cfg.Cache != nil {
		if cached, err := s.cfg.Cache.Load(s.conv); err != nil {
			log.Warn().Err(err).Msg("[session] cache preload failed")
		} else if len(cached) > 0 {
			s.assembler.SetCached(cached)
		}
	}

	conn := NewConnector(s.transportURL(tok), s.cfg.Backoff)
	conn.OnStatus = s.onStatus
	conn.OnFrame = s.ingest
	s.mu.Lock()
	s.connector = conn
	s.mu.Unlock()

	go s.loadHistory(ctx)
	conn.Activate(ctx)
	return nil
}

// Close tears down the transport and stops reconnecting. The message log
// remains readable afterwards.
func (s *Session) Close() {
	if conn := s.transport(); conn != nil {
		conn.Deactivate()
	}
}

// Send encrypts text if the conversation is protected and writes it to
// the transport. Dropped silently when disconnected or not yet started.
func (s *Session) Send(text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	conn := s.transport()
	if conn == nil {
		return nil
	}
	payload, err := s.assembler.PrepareOutgoing(text)
	if err != nil {
		return err
	}
	return conn.Send(payload)
}

// Messages returns the current log in presentation order.
func (s *Session) Messages() []protocol.Message { return s.assembler.Messages() }

// Status returns the transport state.
func (s *Session) Status() Status {
	conn := s.transport()
	if conn == nil {
		return StatusConnecting
	}
	return conn.Status()
}

func (s *Session) transport() *Connector {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connector
}

// Conversation returns the immutable reference this session serves.
func (s *Session) Conversation() protocol.Conversation { return s.conv }

func (s *Session) loadHistory(ctx context.Context) {
	msgs, err := s.history.Messages(ctx, s.conv)
	if err != nil {
		log.Warn().Err(err).Str("conv", s.conv.Key()).Msg("[session] history fetch failed")
		snapshot := s.assembler.FailHistory()
		if s.onHistory != nil {
			s.onHistory(snapshot, err)
		}
		return
	}
	if s.cfg.Cache != nil {
		if err := s.cfg.Cache.PutAll(s.conv, msgs); err != nil {
			log.Warn().Err(err).Msg("[session] cache write failed")
		}
	}
	snapshot := s.assembler.SetHistory(msgs)
	if s.onHistory != nil {
		s.onHistory(snapshot, nil)
	}
}

func (s *Session) ingest(raw []byte) {
	if s.cfg.Cache != nil {
		if m, err := protocol.ParseFrame(raw); err == nil {
			if err := s.cfg.Cache.Put(s.conv, m); err != nil {
				log.Warn().Err(err).Msg("[session] cache write failed")
			}
		}
	}
	m, appended, err := s.assembler.Ingest(raw)
	if err != nil {
		log.Warn().Err(err).Msg("[session] dropped unparseable frame")
		return
	}
	if appended && s.onMessage != nil {
		s.onMessage(m)
	}
}

func (s *Session) transportURL(tok string) string {
	q := url.Values{"token": {tok}}
	if s.conv.Protected() {
		q.Set("password", s.conv.Password)
	}
	return fmt.Sprintf("%s/ws/group/%d?%s",
		strings.TrimSuffix(s.cfg.WSBase, "/"), s.conv.GroupID, q.Encode())
}
