package session

import (
	"sync"

	"gchat/internal/crypto"
	"gchat/internal/protocol"
)

// PlaceholderContent replaces a message body that failed to decrypt. The
// entry stays in the log so the conversation keeps rendering.
const PlaceholderContent = "[message could not be decrypted]"

// Assembler builds the ordered in-memory log of one conversation: a
// historical block first, then live frames in arrival order, with
// content decrypted transparently when the conversation is protected.
//
// Frames that arrive before the history fetch resolves are buffered and
// appended after the historical block, so the rendered order is always
// history first. The log is append-only and never reordered by
// timestamp; no deduplication against history is attempted.
type Assembler struct {
	mu      sync.Mutex
	key     []byte
	log     []protocol.Message
	pending []protocol.Message
	loaded  bool
}

// NewAssembler builds an assembler. key is nil for unprotected
// conversations, in which case content passes through untouched.
func NewAssembler(key []byte) *Assembler {
	return &Assembler{key: key}
}

// SetHistory installs the fetched historical block, replacing whatever
// the log held (including a cache preload), then appends any frames that
// were buffered while the fetch was in flight. It returns a snapshot of
// the resulting log, taken under the same lock, so a caller rendering it
// never races with a concurrently appended live frame.
func (a *Assembler) SetHistory(msgs []protocol.Message) []protocol.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.log = make([]protocol.Message, 0, len(msgs)+len(a.pending))
	for _, m := range msgs {
		a.log = append(a.log, a.decrypted(m))
	}
	a.log = append(a.log, a.pending...)
	a.pending = nil
	a.loaded = true
	return a.snapshot()
}

// FailHistory marks the fetch as failed. Buffered live frames are
// promoted into the log so they are not lost; the historical block stays
// absent. Like SetHistory it returns a snapshot of the resulting log.
func (a *Assembler) FailHistory() []protocol.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.log = append(a.log, a.pending...)
	a.pending = nil
	a.loaded = true
	return a.snapshot()
}

// SetCached preloads the log from the local cache. Unlike SetHistory it
// does not end the buffering window: the real fetch still replaces the
// log when it resolves.
func (a *Assembler) SetCached(msgs []protocol.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.loaded {
		return
	}
	a.log = make([]protocol.Message, 0, len(msgs))
	for _, m := range msgs {
		a.log = append(a.log, a.decrypted(m))
	}
}

// Ingest consumes one inbound transport frame. The returned bool is true
// when the message was appended to the visible log and false when it was
// buffered behind a pending history fetch. A non-nil error means the
// frame could not be parsed and was dropped.
func (a *Assembler) Ingest(raw []byte) (protocol.Message, bool, error) {
	m, err := protocol.ParseFrame(raw)
	if err != nil {
		return protocol.Message{}, false, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	m = a.decrypted(m)
	if !a.loaded {
		a.pending = append(a.pending, m)
		return m, false, nil
	}
	a.log = append(a.log, m)
	return m, true, nil
}

// PrepareOutgoing returns the exact payload to hand to the transport:
// hex ciphertext when the conversation is protected, the plaintext
// unchanged otherwise.
func (a *Assembler) PrepareOutgoing(plaintext string) (string, error) {
	a.mu.Lock()
	key := a.key
	a.mu.Unlock()
	if key == nil {
		return plaintext, nil
	}
	return crypto.Encrypt(plaintext, key)
}

// Messages returns a copy of the visible log in presentation order.
func (a *Assembler) Messages() []protocol.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot()
}

// snapshot copies the log; callers hold a.mu.
func (a *Assembler) snapshot() []protocol.Message {
	out := make([]protocol.Message, len(a.log))
	copy(out, a.log)
	return out
}

// Loaded reports whether the history fetch has resolved (or failed).
func (a *Assembler) Loaded() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loaded
}

func (a *Assembler) decrypted(m protocol.Message) protocol.Message {
	if a.key == nil {
		return m
	}
	plain, err := crypto.Decrypt(m.Content, a.key)
	if err != nil {
		// Wrong key or corrupt ciphertext: keep the entry, lose the body.
		m.Content = PlaceholderContent
		return m
	}
	m.Content = plain
	return m
}
