package api

import "time"

// User is the authenticated account as /user/get-user-info returns it.
type User struct {
	ID             int64  `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	ProfilePicture string `json:"profile_picture"`
}

// Friend is one entry of the friend list; the same shape is returned for
// group membership listings.
type Friend struct {
	FriendID       int64  `json:"friend_id"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profile_picture"`
}

type FriendRequest struct {
	SenderID   int64  `json:"sender_id"`
	ReceiverID int64  `json:"receiver_id"`
	Username   string `json:"username"`
}

type FriendRequests struct {
	Incoming []FriendRequest `json:"incoming"`
	Outgoing []FriendRequest `json:"outgoing"`
}

type Group struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	ProfilePicture string `json:"profile_picture"`
}

// TempGroup is a temporary, link-shareable chat. TempChatKey is the
// distribution key used both in shareable URLs and as the key-derivation
// salt for password-protected chats.
type TempGroup struct {
	GroupID     int64     `json:"group_id"`
	Name        string    `json:"name"`
	EndDate     time.Time `json:"end_date"`
	TempChatKey string    `json:"temp_chat_key"`
}
