package conversation

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a conversation does not exist.
var ErrNotFound = errors.New("conversation not found")

// Store persists conversations. Save replaces the whole conversation,
// messages included, so implementations do not need partial updates.
type Store interface {
	// Load returns the conversation with the given ID, or ErrNotFound.
	Load(ctx context.Context, id string) (*Conversation, error)

	// Save inserts or replaces the conversation.
	Save(ctx context.Context, conv *Conversation) error
}
