package chat

import (
	"chatrelay/internal/domain/models"
	"chatrelay/internal/domain/services"
)

// BuildWindow assembles the provider context window from persisted
// history: an optional system directive first, then up to limit prior
// turns in chronological order, then the current user text.
//
// history is expected oldest first. The entry with excludeID (the user
// message just persisted for this exchange) and any stored system-role
// entries are dropped; the system directive travels only through the
// systemPrompt argument.
func BuildWindow(history []models.Message, excludeID int64, systemPrompt, userText string, limit int) []services.ChatMessage {
	prior := make([]models.Message, 0, len(history))
	for _, msg := range history {
		if msg.ID == excludeID || msg.Role == models.RoleSystem {
			continue
		}
		prior = append(prior, msg)
	}

	if len(prior) > limit {
		prior = prior[len(prior)-limit:]
	}

	window := make([]services.ChatMessage, 0, len(prior)+2)
	if systemPrompt != "" {
		window = append(window, services.ChatMessage{
			Role:    string(models.RoleSystem),
			Content: systemPrompt,
		})
	}
	for _, msg := range prior {
		window = append(window, services.ChatMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	window = append(window, services.ChatMessage{
		Role:    string(models.RoleUser),
		Content: userText,
	})

	return window
}

// resolveSystemPrompt picks the directive for this exchange: an
// explicit request directive wins over the conversation's stored
// system message.
func resolveSystemPrompt(directive *string, stored *models.Message) string {
	if directive != nil && *directive != "" {
		return *directive
	}
	if stored != nil {
		return stored.Content
	}
	return ""
}
