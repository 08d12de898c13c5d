package chat

import (
	"strings"

	"chatrelay/internal/config"
)

// resolveTitle derives the title for a freshly titled conversation: the
// caller's explicit title when present, otherwise the first message
// content. Either source is truncated to the title limit by runes, with
// an ellipsis marking the cut.
func resolveTitle(callerTitle *string, content string) string {
	source := content
	if callerTitle != nil && strings.TrimSpace(*callerTitle) != "" {
		source = *callerTitle
	}

	runes := []rune(source)
	if len(runes) <= config.MaxTitleLength {
		return source
	}
	return string(runes[:config.MaxTitleLength]) + "..."
}
