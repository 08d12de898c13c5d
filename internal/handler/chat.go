// Package handler exposes the HTTP surface of the relay. Handlers
// translate between the JSON envelope and the service layer; all
// business rules live below.
package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"chatrelay/internal/domain/services"
	"chatrelay/internal/httputil"
)

// ChatHandler serves the two chat endpoints.
type ChatHandler struct {
	service services.ChatService
	logger  *slog.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(service services.ChatService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{service: service, logger: logger}
}

// SendMessage handles POST /api/chat
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	user := httputil.GetUser(r)

	var req services.ChatRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), r.URL.Path)
		return
	}

	resp, err := h.service.SendMessage(r.Context(), user.ID, &req)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, resp)
}

// StreamMessage handles POST /api/chat/stream
//
// The exchange is resolved before any stream bytes go out, so
// validation and authorization failures still arrive as plain JSON
// errors. Once streaming starts, fragments travel as "content" events
// and a successful exchange ends with a "done" event; a failed one
// just terminates.
func (h *ChatHandler) StreamMessage(w http.ResponseWriter, r *http.Request) {
	user := httputil.GetUser(r)

	var req services.ChatRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), r.URL.Path)
		return
	}

	handle, err := h.service.SendMessageStream(r.Context(), user.ID, &req)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	defer handle.CloseClient()

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("response writer does not support flushing")
		httputil.RespondError(w, http.StatusInternalServerError,
			"INTERNAL_SERVER_ERROR", "streaming unsupported", r.URL.Path)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.Header().Set("X-Conversation-Id", strconv.FormatInt(handle.ConversationID, 10))
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case ev, open := <-handle.Events:
			if !open {
				return
			}
			switch {
			case ev.Err != nil:
				h.logger.Warn("stream failed mid-flight",
					"conversation_id", handle.ConversationID,
					"error", ev.Err,
				)
				writeSSE(w, "error", "stream failed")
				flusher.Flush()
				return

			case ev.Done:
				writeSSE(w, "done", "[DONE]")
				flusher.Flush()
				return

			default:
				writeSSE(w, "content", ev.Fragment)
				flusher.Flush()
			}

		case <-r.Context().Done():
			return
		}
	}
}
