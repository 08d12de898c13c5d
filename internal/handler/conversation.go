package handler

import (
	"log/slog"
	"net/http"

	"chatrelay/internal/domain/services"
	"chatrelay/internal/httputil"
)

// ConversationHandler serves the conversation management endpoints.
type ConversationHandler struct {
	service services.ChatService
	logger  *slog.Logger
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(service services.ChatService, logger *slog.Logger) *ConversationHandler {
	return &ConversationHandler{service: service, logger: logger}
}

// List handles GET /api/conversations?page=&size=
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	user := httputil.GetUser(r)

	page := httputil.QueryInt(r, "page", 0)
	size := httputil.QueryInt(r, "size", 0)

	result, err := h.service.ListConversations(r.Context(), user.ID, page, size)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, result)
}

// Get handles GET /api/conversations/{id}
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := httputil.GetUser(r)

	id, err := httputil.PathInt64(r, "id")
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), r.URL.Path)
		return
	}

	detail, err := h.service.GetConversation(r.Context(), user.ID, id)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, detail)
}

// Delete handles DELETE /api/conversations/{id}
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := httputil.GetUser(r)

	id, err := httputil.PathInt64(r, "id")
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), r.URL.Path)
		return
	}

	if err := h.service.DeleteConversation(r.Context(), user.ID, id); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
