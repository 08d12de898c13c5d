package services

import (
	"context"
	"time"

	"chatrelay/internal/domain/models"
)

// ChatService is the relay orchestrator: it resolves conversations,
// assembles the bounded context window, invokes the completion provider
// and persists the resulting exchange.
//
// No per-conversation mutual exclusion is provided: concurrent requests
// against the same conversation ID may interleave their persisted
// messages non-deterministically. Callers that need strict ordering
// must serialize their own requests.
type ChatService interface {
	// SendMessage runs one synchronous exchange and returns both
	// persisted messages.
	SendMessage(ctx context.Context, userID int64, req *ChatRequest) (*ChatResponse, error)

	// SendMessageStream validates and resolves the exchange synchronously,
	// then hands the provider call off to a background streaming session.
	// Validation, authorization and not-found failures are returned here,
	// before any stream is opened.
	SendMessageStream(ctx context.Context, userID int64, req *ChatRequest) (*StreamHandle, error)

	// ListConversations retrieves a page of the user's conversation
	// summaries, newest first.
	ListConversations(ctx context.Context, userID int64, page, size int) (*ConversationPage, error)

	// GetConversation retrieves one conversation with its full ordered
	// message list.
	GetConversation(ctx context.Context, userID, conversationID int64) (*ConversationDetail, error)

	// DeleteConversation removes a conversation and all its messages.
	DeleteConversation(ctx context.Context, userID, conversationID int64) error
}

// ChatRequest is the inbound payload for both chat endpoints.
type ChatRequest struct {
	Content        string  `json:"content"`
	ConversationID *int64  `json:"conversation_id,omitempty"`
	Title          *string `json:"title,omitempty"`
	SystemPrompt   *string `json:"system_prompt,omitempty"`
}

// MessageInfo is the wire form of one persisted message.
type MessageInfo struct {
	ID        int64     `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatResponse is the result of a synchronous exchange.
type ChatResponse struct {
	ConversationID   int64       `json:"conversation_id"`
	UserMessage      MessageInfo `json:"user_message"`
	AssistantMessage MessageInfo `json:"assistant_message"`
}

// ConversationPage is one page of conversation summaries.
type ConversationPage struct {
	Content       []models.ConversationSummary `json:"content"`
	TotalElements int64                        `json:"total_elements"`
	TotalPages    int                          `json:"total_pages"`
	Size          int                          `json:"size"`
	Number        int                          `json:"number"`
}

// ConversationDetail is one conversation with its ordered messages.
type ConversationDetail struct {
	ID           int64            `json:"id"`
	UserID       int64            `json:"user_id"`
	Title        *string          `json:"title"`
	MessageCount int              `json:"message_count"`
	Messages     []models.Message `json:"messages"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// StreamHandle is returned by SendMessageStream once the background
// session has been dispatched. Events delivers zero or more fragment
// events followed by exactly one Done or Err event, then closes.
type StreamHandle struct {
	ConversationID int64
	Events         <-chan StreamEvent

	closeClient func()
}

// NewStreamHandle binds an event stream to a client-departure signal.
func NewStreamHandle(conversationID int64, events <-chan StreamEvent, closeClient func()) *StreamHandle {
	return &StreamHandle{
		ConversationID: conversationID,
		Events:         events,
		closeClient:    closeClient,
	}
}

// CloseClient tells the session its consumer is gone. Pending fragment
// deliveries then fail the session. Safe to call multiple times.
func (h *StreamHandle) CloseClient() {
	if h.closeClient != nil {
		h.closeClient()
	}
}
