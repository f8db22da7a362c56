package conversation

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// CheckStore records structured payloads the assistant asks the
// application to act on. The returned ID is surfaced to the user so
// the request can be tracked.
type CheckStore interface {
	Save(ctx context.Context, userID string, payload map[string]any) (string, error)
}

// CheckRequest is a recorded payload with its assigned request ID.
type CheckRequest struct {
	ID      string
	UserID  string
	Payload map[string]any
}

// MemoryCheckStore keeps check requests in memory. It is safe for
// concurrent use.
type MemoryCheckStore struct {
	mu       sync.Mutex
	requests []CheckRequest
}

// NewMemoryCheckStore creates an empty in-memory check store.
func NewMemoryCheckStore() *MemoryCheckStore {
	return &MemoryCheckStore{}
}

// Save records the payload and returns a fresh request ID.
func (s *MemoryCheckStore) Save(ctx context.Context, userID string, payload map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req := CheckRequest{
		ID:      uuid.New().String(),
		UserID:  userID,
		Payload: payload,
	}
	s.requests = append(s.requests, req)
	return req.ID, nil
}

// Requests returns a copy of the recorded requests, oldest first.
func (s *MemoryCheckStore) Requests() []CheckRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]CheckRequest, len(s.requests))
	copy(out, s.requests)
	return out
}
