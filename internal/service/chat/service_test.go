package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"chatrelay/internal/domain"
	"chatrelay/internal/domain/models"
	"chatrelay/internal/domain/services"
	"chatrelay/internal/service/streaming"
)

// memStore is an in-memory stand-in for both repositories.
type memStore struct {
	mu         sync.Mutex
	convs      map[int64]*models.Conversation
	msgs       map[int64][]models.Message
	nextConvID int64
	nextMsgID  int64
}

func newMemStore() *memStore {
	return &memStore{
		convs: make(map[int64]*models.Conversation),
		msgs:  make(map[int64][]models.Message),
	}
}

func (m *memStore) Find(ctx context.Context, id int64) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.convs[id]
	if !ok {
		return nil, fmt.Errorf("conversation %d: %w", id, domain.ErrNotFound)
	}
	copied := *conv
	return &copied, nil
}

func (m *memStore) Create(ctx context.Context, userID int64, title *string) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextConvID++
	conv := &models.Conversation{
		ID:        m.nextConvID,
		UserID:    userID,
		Title:     title,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	m.convs[conv.ID] = conv
	copied := *conv
	return &copied, nil
}

func (m *memStore) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]models.ConversationSummary, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []models.ConversationSummary
	for _, conv := range m.convs {
		if conv.UserID != userID {
			continue
		}
		all = append(all, models.ConversationSummary{
			ID:           conv.ID,
			UserID:       conv.UserID,
			Title:        conv.Title,
			MessageCount: len(m.msgs[conv.ID]),
			CreatedAt:    conv.CreatedAt,
			UpdatedAt:    conv.UpdatedAt,
		})
	}
	total := int64(len(all))
	if offset >= len(all) {
		return []models.ConversationSummary{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *memStore) SetTitle(ctx context.Context, id int64, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.convs[id]
	if !ok {
		return fmt.Errorf("conversation %d: %w", id, domain.ErrNotFound)
	}
	conv.Title = &title
	return nil
}

func (m *memStore) Touch(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conv, ok := m.convs[id]; ok {
		conv.UpdatedAt = time.Now()
	}
	return nil
}

func (m *memStore) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.convs[id]; !ok {
		return fmt.Errorf("conversation %d: %w", id, domain.ErrNotFound)
	}
	delete(m.convs, id)
	delete(m.msgs, id)
	return nil
}

func (m *memStore) Append(ctx context.Context, conversationID int64, role models.Role, content string) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.convs[conversationID]; !ok {
		return nil, fmt.Errorf("conversation %d: %w", conversationID, domain.ErrNotFound)
	}
	m.nextMsgID++
	msg := models.Message{
		ID:             m.nextMsgID,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now(),
	}
	m.msgs[conversationID] = append(m.msgs[conversationID], msg)
	return &msg, nil
}

func (m *memStore) Recent(ctx context.Context, conversationID int64, limit int) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.msgs[conversationID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (m *memStore) ListAsc(ctx context.Context, conversationID int64) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Message, len(m.msgs[conversationID]))
	copy(out, m.msgs[conversationID])
	return out, nil
}

func (m *memStore) FirstOfRole(ctx context.Context, conversationID int64, role models.Role) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.msgs[conversationID] {
		if msg.Role == role {
			copied := msg
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memStore) messageCount(conversationID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.msgs[conversationID])
}

func (m *memStore) lastMessage(conversationID int64) *models.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.msgs[conversationID]
	if len(msgs) == 0 {
		return nil
	}
	copied := msgs[len(msgs)-1]
	return &copied
}

// fakeProvider returns a scripted answer or error, and records the
// window it was handed.
type fakeProvider struct {
	mu     sync.Mutex
	answer string
	err    error
	stream []services.StreamEvent
	window []services.ChatMessage
}

func (f *fakeProvider) Complete(ctx context.Context, messages []services.ChatMessage) (string, error) {
	f.mu.Lock()
	f.window = messages
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeProvider) CompleteStream(ctx context.Context, messages []services.ChatMessage) (<-chan services.StreamEvent, error) {
	f.mu.Lock()
	f.window = messages
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan services.StreamEvent)
	go func() {
		defer close(ch)
		for _, ev := range f.stream {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (f *fakeProvider) lastWindow() []services.ChatMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.window
}

func newTestService(store *memStore, provider *fakeProvider) services.ChatService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pool := streaming.NewPool(2, logger)
	return NewService(store, store, provider, pool, time.Minute, logger)
}

func TestSendMessageNewConversation(t *testing.T) {
	store := newMemStore()
	provider := &fakeProvider{answer: "hello back"}
	svc := newTestService(store, provider)

	directive := "be helpful"
	resp, err := svc.SendMessage(context.Background(), 1, &services.ChatRequest{
		Content:      "hello",
		SystemPrompt: &directive,
	})
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	if resp.UserMessage.Content != "hello" {
		t.Errorf("user message = %q", resp.UserMessage.Content)
	}
	if resp.AssistantMessage.Content != "hello back" {
		t.Errorf("assistant message = %q", resp.AssistantMessage.Content)
	}

	// system directive + user + assistant rows
	if got := store.messageCount(resp.ConversationID); got != 3 {
		t.Errorf("persisted %d messages, want 3", got)
	}

	conv, err := store.Find(context.Background(), resp.ConversationID)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if conv.Title == nil || *conv.Title != "hello" {
		t.Errorf("conversation title = %v, want %q", conv.Title, "hello")
	}

	window := provider.lastWindow()
	if window[0].Role != "system" || window[0].Content != "be helpful" {
		t.Errorf("window[0] = %+v, want the system directive", window[0])
	}
}

func TestSendMessageValidationHasNoSideEffects(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &fakeProvider{answer: "unused"})

	_, err := svc.SendMessage(context.Background(), 1, &services.ChatRequest{Content: "   "})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if len(store.convs) != 0 {
		t.Error("rejected request created a conversation")
	}
}

func TestSendMessageContentTooLong(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &fakeProvider{answer: "unused"})

	_, err := svc.SendMessage(context.Background(), 1, &services.ChatRequest{
		Content: strings.Repeat("a", 5001),
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(store.convs) != 0 {
		t.Error("rejected request created a conversation")
	}
}

func TestSendMessageUnknownConversation(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &fakeProvider{answer: "unused"})

	missing := int64(999)
	_, err := svc.SendMessage(context.Background(), 1, &services.ChatRequest{
		Content:        "hello",
		ConversationID: &missing,
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSendMessageForeignConversation(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &fakeProvider{answer: "unused"})

	conv, _ := store.Create(context.Background(), 2, nil)

	_, err := svc.SendMessage(context.Background(), 1, &services.ChatRequest{
		Content:        "hello",
		ConversationID: &conv.ID,
	})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestSendMessageProviderFailureKeepsUserMessage(t *testing.T) {
	store := newMemStore()
	provider := &fakeProvider{err: &domain.ProviderError{Message: "upstream down"}}
	svc := newTestService(store, provider)

	_, err := svc.SendMessage(context.Background(), 1, &services.ChatRequest{Content: "hello"})
	if !errors.Is(err, domain.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}

	// One conversation with only the user message; no title assigned.
	if len(store.convs) != 1 {
		t.Fatalf("have %d conversations, want 1", len(store.convs))
	}
	for id, conv := range store.convs {
		if got := store.messageCount(id); got != 1 {
			t.Errorf("persisted %d messages, want only the user message", got)
		}
		if conv.Title != nil {
			t.Errorf("failed exchange assigned title %q", *conv.Title)
		}
	}
}

func TestSendMessageExistingConversationKeepsTitle(t *testing.T) {
	store := newMemStore()
	provider := &fakeProvider{answer: "again"}
	svc := newTestService(store, provider)

	first, err := svc.SendMessage(context.Background(), 1, &services.ChatRequest{Content: "first message"})
	if err != nil {
		t.Fatalf("first SendMessage() error = %v", err)
	}

	_, err = svc.SendMessage(context.Background(), 1, &services.ChatRequest{
		Content:        "second message",
		ConversationID: &first.ConversationID,
	})
	if err != nil {
		t.Fatalf("second SendMessage() error = %v", err)
	}

	conv, _ := store.Find(context.Background(), first.ConversationID)
	if conv.Title == nil || *conv.Title != "first message" {
		t.Errorf("title = %v, want the first exchange's", conv.Title)
	}
}

func TestSendMessageStream(t *testing.T) {
	store := newMemStore()
	provider := &fakeProvider{stream: []services.StreamEvent{
		{Fragment: "A"},
		{Fragment: "B"},
		{Fragment: "C"},
		{Done: true},
	}}
	svc := newTestService(store, provider)

	handle, err := svc.SendMessageStream(context.Background(), 1, &services.ChatRequest{Content: "hello"})
	if err != nil {
		t.Fatalf("SendMessageStream() error = %v", err)
	}

	var fragments []string
	var done bool
	for ev := range handle.Events {
		switch {
		case ev.Err != nil:
			t.Fatalf("unexpected stream error: %v", ev.Err)
		case ev.Done:
			done = true
		default:
			fragments = append(fragments, ev.Fragment)
		}
	}

	if !done {
		t.Error("stream ended without done event")
	}
	if got := strings.Join(fragments, ""); got != "ABC" {
		t.Errorf("received %q, want %q", got, "ABC")
	}

	last := store.lastMessage(handle.ConversationID)
	if last == nil || last.Role != models.RoleAssistant || last.Content != "ABC" {
		t.Errorf("persisted assistant message = %+v, want content %q", last, "ABC")
	}
}

func TestSendMessageStreamValidationFailsBeforeStreaming(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &fakeProvider{})

	_, err := svc.SendMessageStream(context.Background(), 1, &services.ChatRequest{Content: ""})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestListConversationsPagination(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &fakeProvider{})

	for i := 0; i < 5; i++ {
		if _, err := store.Create(context.Background(), 1, nil); err != nil {
			t.Fatal(err)
		}
	}

	page, err := svc.ListConversations(context.Background(), 1, 0, 2)
	if err != nil {
		t.Fatalf("ListConversations() error = %v", err)
	}

	if page.TotalElements != 5 {
		t.Errorf("TotalElements = %d, want 5", page.TotalElements)
	}
	if page.TotalPages != 3 {
		t.Errorf("TotalPages = %d, want 3", page.TotalPages)
	}
	if len(page.Content) != 2 {
		t.Errorf("page holds %d summaries, want 2", len(page.Content))
	}
	if page.Size != 2 || page.Number != 0 {
		t.Errorf("page metadata = size %d number %d", page.Size, page.Number)
	}
}

func TestGetConversationForeignUser(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &fakeProvider{})

	conv, _ := store.Create(context.Background(), 2, nil)

	_, err := svc.GetConversation(context.Background(), 1, conv.ID)
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestDeleteConversation(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &fakeProvider{})

	conv, _ := store.Create(context.Background(), 1, nil)

	if err := svc.DeleteConversation(context.Background(), 1, conv.ID); err != nil {
		t.Fatalf("DeleteConversation() error = %v", err)
	}
	if _, err := store.Find(context.Background(), conv.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Error("conversation still present after delete")
	}
}
