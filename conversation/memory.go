package conversation

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore keeps conversations in memory. It is safe for concurrent
// use and mainly intended for tests and short-lived processes.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*Conversation),
	}
}

// Load returns a copy of the stored conversation, so callers can mutate
// the result without affecting the store.
func (s *MemoryStore) Load(ctx context.Context, id string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneConversation(conv), nil
}

// Save stores a copy of the conversation under its ID.
func (s *MemoryStore) Save(ctx context.Context, conv *Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations[conv.ID] = cloneConversation(conv)
	return nil
}

// Len returns the number of stored conversations.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}

func cloneConversation(conv *Conversation) *Conversation {
	clone := *conv
	clone.Messages = slices.Clone(conv.Messages)
	return &clone
}
