// Package streaming runs background relay sessions: each session
// consumes one provider stream, forwards fragments to a single client,
// and persists the outcome exactly once on success.
package streaming

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"chatrelay/internal/domain"
	"chatrelay/internal/domain/models"
	"chatrelay/internal/domain/repositories"
	"chatrelay/internal/domain/services"
)

// persistTimeout bounds the side-effect writes that run after the
// client's request context is already done.
const persistTimeout = 5 * time.Second

// failDeliveryTimeout bounds how long a failing session waits for a
// slow consumer to take the terminal error event.
const failDeliveryTimeout = time.Second

// SessionParams carries everything a session needs to run one exchange.
type SessionParams struct {
	ConversationID int64
	Window         []services.ChatMessage
	// PendingTitle is set when this exchange should title the
	// conversation on success, nil when it is already titled.
	PendingTitle *string
	IdleTimeout  time.Duration

	Provider      services.CompletionProvider
	Messages      repositories.MessageRepository
	Conversations repositories.ConversationRepository
	Logger        *slog.Logger
}

// Session is one streaming exchange. It moves through three phases:
// opened (waiting for the provider), emitting (forwarding fragments)
// and terminal (completed or failed). A failed session persists
// nothing; a completed one persists the assistant message and title
// before closing its event channel.
type Session struct {
	params SessionParams

	out        chan services.StreamEvent
	clientGone chan struct{}
	closeOnce  sync.Once
}

// NewSession creates a session ready to be dispatched on a worker.
func NewSession(params SessionParams) *Session {
	return &Session{
		params:     params,
		out:        make(chan services.StreamEvent, 20),
		clientGone: make(chan struct{}),
	}
}

// Events returns the channel the client consumes. It delivers zero or
// more fragments followed by exactly one Done or Err event, then
// closes.
func (s *Session) Events() <-chan services.StreamEvent {
	return s.out
}

// CloseClient signals that the consumer has gone away. The next
// delivery attempt fails the session. Safe to call multiple times.
func (s *Session) CloseClient() {
	s.closeOnce.Do(func() { close(s.clientGone) })
}

// Run drives the session to a terminal state. It owns the out channel
// and always closes it before returning.
func (s *Session) Run(ctx context.Context) {
	defer close(s.out)

	// The provider stream must not outlive the session: whatever path
	// ends Run, cancelling here releases the provider's reader and its
	// upstream connection.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := s.params.Logger.With("conversation_id", s.params.ConversationID)

	provider, err := s.params.Provider.CompleteStream(ctx, s.params.Window)
	if err != nil {
		log.Warn("stream open failed", "error", err)
		s.fail(err)
		return
	}

	idle := time.NewTimer(s.params.IdleTimeout)
	defer idle.Stop()

	var assembled []byte

	for {
		select {
		case ev, open := <-provider:
			if !open {
				// The provider contract ends with Done or Err; a bare
				// close means the stream was cut off.
				s.fail(&domain.ProviderError{Message: "stream closed unexpectedly"})
				return
			}

			switch {
			case ev.Err != nil:
				log.Warn("stream failed", "error", ev.Err)
				s.fail(ev.Err)
				return

			case ev.Done:
				s.complete(ctx, log, string(assembled))
				return

			default:
				assembled = append(assembled, ev.Fragment...)
				if !s.emit(ctx, services.StreamEvent{Fragment: ev.Fragment}) {
					s.fail(context.Canceled)
					return
				}
				if !idle.Stop() {
					<-idle.C
				}
				idle.Reset(s.params.IdleTimeout)
			}

		case <-idle.C:
			log.Warn("stream idle timeout", "timeout", s.params.IdleTimeout)
			s.fail(&domain.ProviderError{Message: "stream idle timeout"})
			return

		case <-s.clientGone:
			log.Info("client disconnected mid-stream")
			s.fail(context.Canceled)
			return

		case <-ctx.Done():
			s.fail(ctx.Err())
			return
		}
	}
}

// emit delivers one event to the client. Reports false when the client
// is gone or the session context ended before the send could happen.
func (s *Session) emit(ctx context.Context, ev services.StreamEvent) bool {
	select {
	case s.out <- ev:
		return true
	case <-s.clientGone:
		return false
	case <-ctx.Done():
		return false
	}
}

// complete persists the assistant message and pending title, then sends
// the done event. Persistence runs on a context detached from the
// session so a departed client cannot cancel the write.
func (s *Session) complete(ctx context.Context, log *slog.Logger, answer string) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if _, err := s.params.Messages.Append(pctx, s.params.ConversationID, models.RoleAssistant, answer); err != nil {
		log.Error("persist assistant message failed", "error", err)
		s.fail(err)
		return
	}

	if s.params.PendingTitle != nil {
		if err := s.params.Conversations.SetTitle(pctx, s.params.ConversationID, *s.params.PendingTitle); err != nil {
			// The exchange itself succeeded; a missing title is not
			// worth failing the stream over.
			log.Warn("assign conversation title failed", "error", err)
		}
	} else if err := s.params.Conversations.Touch(pctx, s.params.ConversationID); err != nil {
		log.Warn("touch conversation failed", "error", err)
	}

	s.emit(ctx, services.StreamEvent{Done: true})
	log.Info("stream completed", "answer_bytes", len(answer))
}

// fail delivers the terminal error event. A slow consumer gets a short
// window to drain the buffer first; one that is gone, or stays stalled
// past the deadline, sees only the channel close.
func (s *Session) fail(err error) {
	deadline := time.NewTimer(failDeliveryTimeout)
	defer deadline.Stop()

	select {
	case s.out <- services.StreamEvent{Err: err}:
	case <-s.clientGone:
	case <-deadline.C:
	}
}
