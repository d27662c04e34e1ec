package protocol

import "strconv"

// Conversation identifies the chat a message log belongs to: a standing
// group by numeric id, or a temp group by its distribution key plus an
// optional password. The reference is fixed for the lifetime of one
// session; switching chats builds a new session.
type Conversation struct {
	GroupID int64

	// TempKey is the temp group's distribution key. It doubles as the
	// salt for key derivation and is not secret.
	TempKey  string
	Password string
}

// Group returns a reference to a standing group.
func Group(id int64) Conversation {
	return Conversation{GroupID: id}
}

// TempGroup returns a reference to a temp group. groupID is the numeric id
// resolved from the group-info lookup; password may be empty for
// unprotected temp chats.
func TempGroup(id int64, key, password string) Conversation {
	return Conversation{GroupID: id, TempKey: key, Password: password}
}

// Temp reports whether the conversation is a temp group.
func (c Conversation) Temp() bool { return c.TempKey != "" }

// Protected reports whether message content is encrypted end to end.
func (c Conversation) Protected() bool { return c.Password != "" }

// Key returns a stable string identity for the conversation, used as the
// cache partition key.
func (c Conversation) Key() string {
	if c.Temp() {
		return "temp:" + c.TempKey
	}
	return "group:" + strconv.FormatInt(c.GroupID, 10)
}
