// Package conversation orchestrates multi-turn chat sessions: it keeps
// the message history in a pluggable store, plans and runs data
// retrieval for the active agent, and produces the assistant's reply
// through the llm package.
package conversation

import (
	"time"

	"github.com/google/uuid"

	"github.com/i2y/chiron/llm"
)

// Message is a single utterance in a conversation.
type Message struct {
	ID        string
	Role      llm.Role
	Content   string
	UserID    string
	CreatedAt time.Time
}

// NewMessage creates a message with a fresh ID and timestamp.
func NewMessage(role llm.Role, content, userID string) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
}

// Conversation is the full exchange between users and one agent.
type Conversation struct {
	ID        string
	AgentName string
	Messages  []Message
	CreatedAt time.Time
	UpdatedAt time.Time
}

// New creates an empty conversation bound to the named agent.
func New(id, agentName string) *Conversation {
	now := time.Now().UTC()
	return &Conversation{
		ID:        id,
		AgentName: agentName,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Append adds a message and bumps the updated timestamp.
func (c *Conversation) Append(msg Message) {
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = time.Now().UTC()
}

// History converts the stored messages into prompt messages, oldest
// first.
func (c *Conversation) History() []llm.Message {
	history := make([]llm.Message, len(c.Messages))
	for i, msg := range c.Messages {
		history[i] = llm.Message{Role: msg.Role, Content: msg.Content}
	}
	return history
}
