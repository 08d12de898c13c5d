package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chatrelay/internal/capabilities"
	"chatrelay/internal/domain"
	"chatrelay/internal/domain/services"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	registry, err := capabilities.NewRegistry()
	if err != nil {
		t.Fatalf("load capabilities: %v", err)
	}

	return NewClient(Config{
		APIKey:      "test-key",
		BaseURL:     baseURL,
		Model:       "gpt-4o-mini",
		MaxTokens:   256,
		Temperature: 0.7,
	}, registry, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestComplete(t *testing.T) {
	var gotAuth string
	var gotReq chatCompletionRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"hello there"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	got, err := c.Complete(context.Background(), []services.ChatMessage{
		{Role: "user", Content: "hi"},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "hello there" {
		t.Errorf("Complete() = %q, want %q", got, "hello there")
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotReq.Stream {
		t.Error("blocking completion sent stream=true")
	}
	if gotReq.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", gotReq.Model)
	}
}

func TestCompleteUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	_, err := c.Complete(context.Background(), []services.ChatMessage{{Role: "user", Content: "hi"}})
	if !errors.Is(err, domain.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestCompleteStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, frag := range []string{"A", "B", "C"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", frag)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	events, err := c.CompleteStream(context.Background(), []services.ChatMessage{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("CompleteStream() error = %v", err)
	}

	var fragments []string
	var done bool
	for ev := range events {
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
		t.Error("stream closed without done event")
	}
	want := []string{"A", "B", "C"}
	if len(fragments) != len(want) {
		t.Fatalf("got %d fragments, want %d", len(fragments), len(want))
	}
	for i := range want {
		if fragments[i] != want[i] {
			t.Errorf("fragment[%d] = %q, want %q", i, fragments[i], want[i])
		}
	}
}

func TestCompleteStreamTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n\n")
		// Connection closes without the [DONE] marker
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	events, err := c.CompleteStream(context.Background(), []services.ChatMessage{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("CompleteStream() error = %v", err)
	}

	var last services.StreamEvent
	for ev := range events {
		last = ev
	}

	if last.Err == nil {
		t.Fatal("truncated stream did not end with an error event")
	}
	if !errors.Is(last.Err, domain.ErrProvider) {
		t.Errorf("expected provider error, got %v", last.Err)
	}
}

func TestCompleteStreamContextCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"A\"}}]}\n\n")
		w.(http.Flusher).Flush()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	c := newTestClient(t, srv.URL)

	events, err := c.CompleteStream(ctx, []services.ChatMessage{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("CompleteStream() error = %v", err)
	}

	// First fragment arrives, then the caller walks away.
	<-events
	cancel()

	select {
	case _, open := <-events:
		if open {
			// A trailing error event is acceptable; the channel must
			// still close afterwards.
			if _, open := <-events; open {
				t.Error("channel left open after cancellation")
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not shut down after cancellation")
	}
}
