package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message is one chat message as the server serializes it, both in the
// historical REST response and in live WebSocket frames. Content is
// ciphertext (hex) for password-protected conversations until the
// assembler decrypts it.
type Message struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	Username       string    `json:"username"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
	ProfilePicture string    `json:"profile_picture"`

	// Set on live broadcast frames only; the log ignores it.
	GroupID int64 `json:"group_id,omitempty"`
}

// ParseFrame decodes a single inbound transport frame. The server sends
// exactly one message record per frame.
func ParseFrame(raw []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return Message{}, fmt.Errorf("parse frame: %w", err)
	}
	return m, nil
}
