package models

import "time"

// Conversation is an ordered thread of messages owned by exactly one user.
// Title stays nil until the first completed exchange assigns one, unless
// the caller supplied a title at creation.
type Conversation struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Title     *string   `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConversationSummary is a Conversation plus its message count, without
// message bodies. Used by the paginated listing.
type ConversationSummary struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	Title        *string   `json:"title"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
