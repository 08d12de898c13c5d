package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"chatrelay/internal/domain"
	"chatrelay/internal/domain/services"
)

type chatCompletionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// CompleteStream submits the context window with stream=true and
// relays the server-sent "data:" chunks as fragment events. The
// returned channel carries zero or more fragments followed by exactly
// one Done or Err event, then closes.
func (c *Client) CompleteStream(ctx context.Context, messages []services.ChatMessage) (<-chan services.StreamEvent, error) {
	resp, err := c.post(ctx, messages, true)
	if err != nil {
		return nil, err
	}

	events := make(chan services.StreamEvent)

	go func() {
		defer close(events)
		defer resp.Body.Close()

		reader := bufio.NewReader(resp.Body)

		for {
			select {
			case <-ctx.Done():
				c.emit(ctx, events, services.StreamEvent{Err: ctx.Err()})
				return
			default:
			}

			line, err := reader.ReadString('\n')
			if err != nil {
				if err == io.EOF {
					// The provider must close with [DONE]; a bare EOF
					// means the response was cut off mid-stream.
					c.emit(ctx, events, services.StreamEvent{
						Err: &domain.ProviderError{Message: "stream ended without completion marker"},
					})
					return
				}
				c.emit(ctx, events, services.StreamEvent{
					Err: &domain.ProviderError{Message: "read stream: " + err.Error()},
				})
				return
			}

			line = strings.TrimSpace(line)
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}

			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				c.emit(ctx, events, services.StreamEvent{Done: true})
				return
			}

			var chunk chatCompletionChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				c.logger.Warn("skipping malformed stream chunk", "error", err)
				continue
			}

			for _, choice := range chunk.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				if !c.emit(ctx, events, services.StreamEvent{Fragment: choice.Delta.Content}) {
					return
				}
			}
		}
	}()

	return events, nil
}

// emit sends an event unless the context has been cancelled. Reports
// whether the send happened.
func (c *Client) emit(ctx context.Context, events chan<- services.StreamEvent, ev services.StreamEvent) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
