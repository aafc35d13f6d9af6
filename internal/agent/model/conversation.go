package model

import (
	"context"
	"time"

	"github.com/cloudwego/eino/schema"
)

// SessionRepository persists per-session conversation history. The stored
// sequence never includes the persona system prompt.
type SessionRepository interface {
	// AddMessage appends a message to the session's history and refreshes
	// its last-active time.
	AddMessage(ctx context.Context, sessionID string, message *schema.Message) error

	// LoadHistory retrieves the conversation history for a session. An
	// unknown session yields an empty history, not an error.
	LoadHistory(ctx context.Context, sessionID string) (*SessionHistory, error)

	// MessageCount returns the number of stored messages for the session.
	MessageCount(ctx context.Context, sessionID string) (int, error)

	// ClearHistory removes all history for a session.
	ClearHistory(ctx context.Context, sessionID string) error

	// DeleteIdle removes sessions whose last activity is older than the
	// given age and reports how many were removed. Backends that expire
	// entries natively (Redis TTL) may report zero.
	DeleteIdle(ctx context.Context, olderThan time.Duration) (int, error)
}

// SessionHistory represents loaded conversation data with metadata.
type SessionHistory struct {
	SessionID string
	Messages  []*schema.Message
}
