package services

import "context"

// ChatMessage is one entry of the context window sent to the completion
// provider.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StreamEvent is a single event of a completion stream. Exactly one of
// the fields is meaningful: a content fragment, the end-of-stream
// marker, or a terminal error.
type StreamEvent struct {
	Fragment string
	Done     bool
	Err      error
}

// CompletionProvider wraps the upstream completion API behind two
// capabilities: a blocking completion and an incrementally delivered
// token stream.
type CompletionProvider interface {
	// Complete submits the context window and blocks until the full
	// response text is available. Failures wrap domain.ErrProvider.
	Complete(ctx context.Context, messages []ChatMessage) (string, error)

	// CompleteStream submits the context window and returns a channel of
	// stream events. The channel delivers zero or more fragment events
	// followed by exactly one Done or Err event, then closes. The stream
	// is not restartable; fragments must be consumed as they arrive.
	CompleteStream(ctx context.Context, messages []ChatMessage) (<-chan StreamEvent, error)
}
