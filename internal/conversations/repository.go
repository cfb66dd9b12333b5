package conversations

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("conversations: not found")

// Repository is read-only; conversations are produced elsewhere.
type Repository interface {
	Get(ctx context.Context, id string) (Conversation, error)
	// ListMessages returns messages oldest first; limit <= 0 means no limit.
	ListMessages(ctx context.Context, conversationID string, limit int) ([]Message, error)
	// LatestByPhone returns the conversation with the newest started_at.
	LatestByPhone(ctx context.Context, phoneNumber string) (Conversation, error)
}

const (
	DefaultMessageLimit = 100
	MaxMessageLimit     = 1000
)

// ClampLimit bounds a caller-supplied page size.
func ClampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultMessageLimit
	case n > MaxMessageLimit:
		return MaxMessageLimit
	default:
		return n
	}
}
