package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/chiron/llm"
)

func TestNewMessage(t *testing.T) {
	before := time.Now().UTC()
	msg := NewMessage(llm.RoleUser, "hello", "user-1")

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, llm.RoleUser, msg.Role)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, "user-1", msg.UserID)
	assert.False(t, msg.CreatedAt.Before(before))

	other := NewMessage(llm.RoleUser, "hello", "user-1")
	assert.NotEqual(t, msg.ID, other.ID)
}

func TestConversation_Append(t *testing.T) {
	conv := New("conv-1", "support")
	created := conv.CreatedAt

	conv.Append(NewMessage(llm.RoleUser, "hi", "user-1"))
	conv.Append(NewMessage(llm.RoleAssistant, "hello", "assistant"))

	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "hi", conv.Messages[0].Content)
	assert.Equal(t, "hello", conv.Messages[1].Content)
	assert.Equal(t, created, conv.CreatedAt)
	assert.False(t, conv.UpdatedAt.Before(created))
}

func TestConversation_History(t *testing.T) {
	conv := New("conv-1", "support")
	conv.Append(NewMessage(llm.RoleUser, "what is the refund policy?", "user-1"))
	conv.Append(NewMessage(llm.RoleAssistant, "30 days", "assistant"))

	history := conv.History()
	require.Len(t, history, 2)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "what is the refund policy?"}, history[0])
	assert.Equal(t, llm.Message{Role: llm.RoleAssistant, Content: "30 days"}, history[1])
}

func TestConversation_History_Empty(t *testing.T) {
	conv := New("conv-1", "support")
	assert.Empty(t, conv.History())
}
