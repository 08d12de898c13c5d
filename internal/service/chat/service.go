// Package chat implements the relay orchestrator: conversation
// resolution, context window assembly, provider invocation and exchange
// persistence for both the blocking and streaming endpoints.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"chatrelay/internal/config"
	"chatrelay/internal/domain"
	"chatrelay/internal/domain/models"
	"chatrelay/internal/domain/repositories"
	"chatrelay/internal/domain/services"
	"chatrelay/internal/service/streaming"
)

// Service implements services.ChatService.
type Service struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	provider      services.CompletionProvider
	pool          *streaming.Pool
	idleTimeout   time.Duration
	logger        *slog.Logger
}

// NewService creates the chat orchestrator.
func NewService(
	conversations repositories.ConversationRepository,
	messages repositories.MessageRepository,
	provider services.CompletionProvider,
	pool *streaming.Pool,
	idleTimeout time.Duration,
	logger *slog.Logger,
) services.ChatService {
	return &Service{
		conversations: conversations,
		messages:      messages,
		provider:      provider,
		pool:          pool,
		idleTimeout:   idleTimeout,
		logger:        logger,
	}
}

// exchange is the resolved state shared by the sync and streaming
// paths: the conversation, the persisted user message, the assembled
// window and the title to assign on success (nil when already titled).
type exchange struct {
	conv         *models.Conversation
	userMsg      *models.Message
	window       []services.ChatMessage
	pendingTitle *string
}

func validateRequest(req *services.ChatRequest) error {
	if strings.TrimSpace(req.Content) == "" {
		return &domain.ValidationError{Message: "content must not be blank"}
	}

	err := validation.ValidateStruct(req,
		validation.Field(&req.Content, validation.Required, validation.RuneLength(1, config.MaxContentLength)),
		validation.Field(&req.SystemPrompt, validation.RuneLength(0, config.MaxSystemPromptLength)),
	)
	if err != nil {
		return &domain.ValidationError{Message: err.Error()}
	}
	return nil
}

// prepareExchange runs everything both chat paths share, in order:
// validation, conversation resolution with ownership check, the
// leading system message for brand-new conversations, user message
// persistence and window assembly. Nothing is persisted before
// validation passes.
func (s *Service) prepareExchange(ctx context.Context, userID int64, req *services.ChatRequest) (*exchange, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var conv *models.Conversation
	if req.ConversationID != nil {
		found, err := s.conversations.Find(ctx, *req.ConversationID)
		if err != nil {
			return nil, err
		}
		if found.UserID != userID {
			return nil, &domain.ForbiddenError{Message: "conversation belongs to another user"}
		}
		conv = found
	} else {
		created, err := s.conversations.Create(ctx, userID, nil)
		if err != nil {
			return nil, err
		}
		conv = created

		// A directive on a brand-new conversation becomes its stored
		// system message, so later exchanges inherit it.
		if req.SystemPrompt != nil && *req.SystemPrompt != "" {
			if _, err := s.messages.Append(ctx, conv.ID, models.RoleSystem, *req.SystemPrompt); err != nil {
				return nil, err
			}
		}
	}

	stored, err := s.messages.FirstOfRole(ctx, conv.ID, models.RoleSystem)
	if err != nil {
		return nil, err
	}

	userMsg, err := s.messages.Append(ctx, conv.ID, models.RoleUser, req.Content)
	if err != nil {
		return nil, err
	}

	// Fetch one past the window size: the slice includes the message
	// just persisted, which BuildWindow drops again.
	history, err := s.messages.Recent(ctx, conv.ID, config.ContextWindowSize+1)
	if err != nil {
		return nil, err
	}

	window := BuildWindow(history, userMsg.ID,
		resolveSystemPrompt(req.SystemPrompt, stored),
		req.Content, config.ContextWindowSize)

	var pendingTitle *string
	if conv.Title == nil || *conv.Title == "" {
		t := resolveTitle(req.Title, req.Content)
		pendingTitle = &t
	}

	return &exchange{
		conv:         conv,
		userMsg:      userMsg,
		window:       window,
		pendingTitle: pendingTitle,
	}, nil
}

// SendMessage runs one blocking exchange. A provider failure leaves the
// user message persisted and the conversation untitled.
func (s *Service) SendMessage(ctx context.Context, userID int64, req *services.ChatRequest) (*services.ChatResponse, error) {
	ex, err := s.prepareExchange(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	answer, err := s.provider.Complete(ctx, ex.window)
	if err != nil {
		return nil, err
	}

	assistantMsg, err := s.messages.Append(ctx, ex.conv.ID, models.RoleAssistant, answer)
	if err != nil {
		return nil, fmt.Errorf("persist assistant message: %w", err)
	}

	if ex.pendingTitle != nil {
		if err := s.conversations.SetTitle(ctx, ex.conv.ID, *ex.pendingTitle); err != nil {
			s.logger.Warn("assign conversation title failed",
				"conversation_id", ex.conv.ID, "error", err)
		}
	} else if err := s.conversations.Touch(ctx, ex.conv.ID); err != nil {
		s.logger.Warn("touch conversation failed",
			"conversation_id", ex.conv.ID, "error", err)
	}

	s.logger.Info("exchange completed",
		"conversation_id", ex.conv.ID,
		"user_id", userID,
	)

	return &services.ChatResponse{
		ConversationID:   ex.conv.ID,
		UserMessage:      messageInfo(ex.userMsg),
		AssistantMessage: messageInfo(assistantMsg),
	}, nil
}

// SendMessageStream resolves the exchange synchronously, then runs the
// provider stream on a pool worker. The returned handle's event channel
// outlives the request context.
func (s *Service) SendMessageStream(ctx context.Context, userID int64, req *services.ChatRequest) (*services.StreamHandle, error) {
	ex, err := s.prepareExchange(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	session := streaming.NewSession(streaming.SessionParams{
		ConversationID: ex.conv.ID,
		Window:         ex.window,
		PendingTitle:   ex.pendingTitle,
		IdleTimeout:    s.idleTimeout,
		Provider:       s.provider,
		Messages:       s.messages,
		Conversations:  s.conversations,
		Logger:         s.logger,
	})

	if err := s.pool.Go(ctx, session.Run); err != nil {
		return nil, err
	}

	return services.NewStreamHandle(ex.conv.ID, session.Events(), session.CloseClient), nil
}

// ListConversations retrieves one page of summaries, newest first.
func (s *Service) ListConversations(ctx context.Context, userID int64, page, size int) (*services.ConversationPage, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 || size > 100 {
		size = config.DefaultPageSize
	}

	summaries, total, err := s.conversations.ListByUser(ctx, userID, size, page*size)
	if err != nil {
		return nil, err
	}

	totalPages := int(total) / size
	if int(total)%size != 0 {
		totalPages++
	}

	return &services.ConversationPage{
		Content:       summaries,
		TotalElements: total,
		TotalPages:    totalPages,
		Size:          size,
		Number:        page,
	}, nil
}

// GetConversation retrieves one conversation with its ordered messages.
func (s *Service) GetConversation(ctx context.Context, userID, conversationID int64) (*services.ConversationDetail, error) {
	conv, err := s.conversations.Find(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.UserID != userID {
		return nil, &domain.ForbiddenError{Message: "conversation belongs to another user"}
	}

	messages, err := s.messages.ListAsc(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	return &services.ConversationDetail{
		ID:           conv.ID,
		UserID:       conv.UserID,
		Title:        conv.Title,
		MessageCount: len(messages),
		Messages:     messages,
		CreatedAt:    conv.CreatedAt,
		UpdatedAt:    conv.UpdatedAt,
	}, nil
}

// DeleteConversation removes a conversation and its messages.
func (s *Service) DeleteConversation(ctx context.Context, userID, conversationID int64) error {
	conv, err := s.conversations.Find(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv.UserID != userID {
		return &domain.ForbiddenError{Message: "conversation belongs to another user"}
	}

	return s.conversations.Delete(ctx, conversationID)
}

func messageInfo(msg *models.Message) services.MessageInfo {
	return services.MessageInfo{
		ID:        msg.ID,
		Role:      string(msg.Role),
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	}
}
