package model

import "time"

// Room is the persistent logical space participants join. Slug is the
// human-readable alias a client may use in place of the canonical ID.
type Room struct {
	ID           string    `json:"id" bson:"_id"`
	Slug         string    `json:"slug" bson:"slug"`
	Title        string    `json:"title" bson:"title"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
	LastActiveAt time.Time `json:"lastActiveAt" bson:"lastActiveAt"`
}

// Category is a named, ordered sub-topic within a room. Rooms carry
// between one and ten categories; OrderIndex is never reused.
type Category struct {
	ID         string    `json:"id" bson:"_id"`
	RoomID     string    `json:"roomId" bson:"roomId"`
	Title      string    `json:"title" bson:"title"`
	OrderIndex int       `json:"orderIndex" bson:"orderIndex"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
}
