package model

import "time"

// Session binds one live connection to a participant inside a room.
// A user holds at most one session per room at a time.
type Session struct {
	ConnectionID string    `json:"connectionId"`
	UserID       string    `json:"userId"`
	Name         string    `json:"name"`
	RoomID       string    `json:"roomId"`
	JoinedAt     time.Time `json:"joinedAt"`
	// Seq is a process-monotonic counter assigned at creation. It breaks
	// ties when two sessions share the same JoinedAt timestamp.
	Seq     uint64 `json:"-"`
	IsOwner bool   `json:"isOwner"`
}
