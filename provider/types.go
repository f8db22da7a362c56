package provider

import "encoding/json"

// Request represents a provider-agnostic chat-completion request.
type Request struct {
	Model         string
	Messages      []Message
	Temperature   *float64
	MaxTokens     *int
	TopP          *float64
	Seed          *int
	StopSequences []string
	JSONMode      bool        // Ask for a JSON object response (response_format json_object)
	JSONSchema    *JSONSchema // Schema-constrained structured output; takes precedence over JSONMode
}

// Message represents a single message in the conversation.
type Message struct {
	Role    Role
	Content string
}

// Role represents the message sender.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Response contains the completion output.
type Response struct {
	Content      string
	FinishReason FinishReason
	Usage        Usage
}

// FinishReason indicates why the model stopped generating.
type FinishReason string

const (
	FinishReasonStop   FinishReason = "stop"
	FinishReasonLength FinishReason = "length"
)

// JSONSchema represents a JSON Schema for structured output.
type JSONSchema struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

// Usage contains token usage statistics.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
