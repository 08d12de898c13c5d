package repositories

import (
	"context"

	"chatrelay/internal/domain/models"
)

// ConversationRepository persists conversation rows. Each operation is
// individually atomic; the orchestrator composes them into exchanges.
type ConversationRepository interface {
	// Find retrieves a conversation by ID.
	// Returns domain.ErrNotFound for unknown IDs.
	Find(ctx context.Context, id int64) (*models.Conversation, error)

	// Create creates a conversation owned by userID. title may be nil.
	Create(ctx context.Context, userID int64, title *string) (*models.Conversation, error)

	// ListByUser retrieves a page of the user's conversations with
	// message counts, newest first.
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]models.ConversationSummary, int64, error)

	// SetTitle assigns a conversation's title and bumps updated_at.
	SetTitle(ctx context.Context, id int64, title string) error

	// Touch bumps a conversation's updated_at after new activity.
	Touch(ctx context.Context, id int64) error

	// Delete removes a conversation and, by cascade, all its messages.
	// Returns domain.ErrNotFound for unknown IDs.
	Delete(ctx context.Context, id int64) error
}

// MessageRepository persists messages within a conversation.
type MessageRepository interface {
	// Append stores a message; the database assigns id and timestamp.
	Append(ctx context.Context, conversationID int64, role models.Role, content string) (*models.Message, error)

	// Recent retrieves the most recent limit messages in chronological
	// (oldest first) order.
	Recent(ctx context.Context, conversationID int64, limit int) ([]models.Message, error)

	// ListAsc retrieves every message of a conversation, oldest first.
	ListAsc(ctx context.Context, conversationID int64) ([]models.Message, error)

	// FirstOfRole retrieves the earliest message with the given role, or
	// (nil, nil) when the conversation has none.
	FirstOfRole(ctx context.Context, conversationID int64, role models.Role) (*models.Message, error)
}
