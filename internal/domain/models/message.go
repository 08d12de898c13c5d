package models

import "time"

// Message is one entry in a conversation. Messages are append-only and
// strictly ordered by creation time; at most one system message exists
// per conversation and it is always the earliest when present.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}
