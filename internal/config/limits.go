package config

import "time"

const (
	// MaxContentLength is the maximum length in runes of a submitted
	// message. Violations fail validation before any state is written.
	MaxContentLength = 5000

	// MaxSystemPromptLength is the maximum length in runes of a
	// caller-supplied system directive.
	MaxSystemPromptLength = 1000

	// MaxTitleLength is the maximum stored conversation title length.
	// Longer candidates are truncated with a trailing ellipsis marker.
	MaxTitleLength = 50

	// ContextWindowSize is the number of most recent prior messages
	// included in the context window sent to the completion provider.
	// The window is a strict tail; message content is never compressed.
	ContextWindowSize = 10

	// DefaultPageSize is the page size for conversation listings when
	// the caller does not specify one.
	DefaultPageSize = 20

	// StreamWorkerPoolSize bounds the number of concurrently running
	// streaming sessions process-wide.
	StreamWorkerPoolSize = 10

	// StreamIdleTimeout forces a streaming session to Failed when the
	// provider delivers no fragment for this long.
	StreamIdleTimeout = 5 * time.Minute

	// RateLimitPerMinute is the per-credential request budget.
	RateLimitPerMinute = 10

	// RegistrationsPerHour caps lazy user registrations per client IP.
	RegistrationsPerHour = 5
)
