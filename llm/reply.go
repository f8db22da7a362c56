package llm

import (
	"encoding/json"
	"strings"

	"github.com/i2y/chiron/provider"
)

// ReplyKind tags the variant held by a Reply.
type ReplyKind int

const (
	// ReplyStructured is a decoded message/payload pair.
	ReplyStructured ReplyKind = iota

	// ReplyRaw is the response text as the model produced it, used when
	// the text did not decode as JSON.
	ReplyRaw
)

// Reply is the outcome of a completion call. Callers switch on Kind:
// structured replies expose Message and Payload, raw replies expose
// Text. A model that was asked for JSON but produced prose yields a
// ReplyRaw, not an error.
type Reply struct {
	Kind ReplyKind

	// Message and Payload are set for ReplyStructured. Payload is never
	// nil.
	Message string
	Payload map[string]any

	// Text is set for ReplyRaw and holds the response unchanged.
	Text string

	usage provider.Usage
}

// Usage returns the token usage of the call that produced the reply.
func (r Reply) Usage() provider.Usage {
	return r.usage
}

// ParseReply interprets model output as a {"message": ..., "payload": ...}
// JSON document. Emphasis markers ("**") are stripped from the message
// and a missing or null payload becomes an empty map, so callers can
// index it without a nil check. Output that does not decode as JSON is
// returned unchanged as a ReplyRaw.
func ParseReply(raw string) Reply {
	var body struct {
		Message string         `json:"message"`
		Payload map[string]any `json:"payload"`
	}
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return Reply{Kind: ReplyRaw, Text: raw}
	}

	payload := body.Payload
	if payload == nil {
		payload = map[string]any{}
	}

	return Reply{
		Kind:    ReplyStructured,
		Message: strings.ReplaceAll(body.Message, "**", ""),
		Payload: payload,
	}
}
