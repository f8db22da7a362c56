package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReply(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantKind    ReplyKind
		wantMessage string
		wantPayload map[string]any
		wantText    string
	}{
		{
			name:        "message and payload",
			raw:         `{"message": "Your order shipped.", "payload": {"data_ready": true}}`,
			wantKind:    ReplyStructured,
			wantMessage: "Your order shipped.",
			wantPayload: map[string]any{"data_ready": true},
		},
		{
			name:        "message only",
			raw:         `{"message": "Hello"}`,
			wantKind:    ReplyStructured,
			wantMessage: "Hello",
			wantPayload: map[string]any{},
		},
		{
			name:        "null payload becomes empty map",
			raw:         `{"message": "Hi", "payload": null}`,
			wantKind:    ReplyStructured,
			wantMessage: "Hi",
			wantPayload: map[string]any{},
		},
		{
			name:        "missing message",
			raw:         `{"payload": {"count": 3}}`,
			wantKind:    ReplyStructured,
			wantMessage: "",
			wantPayload: map[string]any{"count": float64(3)},
		},
		{
			name:        "emphasis markers stripped",
			raw:         `{"message": "Your **order** has **shipped**"}`,
			wantKind:    ReplyStructured,
			wantMessage: "Your order has shipped",
			wantPayload: map[string]any{},
		},
		{
			name:        "unknown fields ignored",
			raw:         `{"message": "ok", "extra": "field"}`,
			wantKind:    ReplyStructured,
			wantMessage: "ok",
			wantPayload: map[string]any{},
		},
		{
			name:     "plain prose",
			raw:      "I could not produce JSON, sorry.",
			wantKind: ReplyRaw,
			wantText: "I could not produce JSON, sorry.",
		},
		{
			name:     "truncated json",
			raw:      `{"message": "cut off`,
			wantKind: ReplyRaw,
			wantText: `{"message": "cut off`,
		},
		{
			name:     "json array is not a reply object",
			raw:      `[1, 2, 3]`,
			wantKind: ReplyRaw,
			wantText: `[1, 2, 3]`,
		},
		{
			name:     "bare string is not a reply object",
			raw:      `"just a string"`,
			wantKind: ReplyRaw,
			wantText: `"just a string"`,
		},
		{
			name:     "empty input",
			raw:      "",
			wantKind: ReplyRaw,
			wantText: "",
		},
		{
			name:        "json null decodes to empty reply",
			raw:         `null`,
			wantKind:    ReplyStructured,
			wantMessage: "",
			wantPayload: map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := ParseReply(tt.raw)

			assert.Equal(t, tt.wantKind, reply.Kind)
			switch tt.wantKind {
			case ReplyStructured:
				assert.Equal(t, tt.wantMessage, reply.Message)
				require.NotNil(t, reply.Payload)
				assert.Equal(t, tt.wantPayload, reply.Payload)
				assert.Empty(t, reply.Text)
			case ReplyRaw:
				assert.Equal(t, tt.wantText, reply.Text)
				assert.Empty(t, reply.Message)
				assert.Nil(t, reply.Payload)
			}
		})
	}
}

func TestParseReply_NestedPayload(t *testing.T) {
	raw := `{
		"message": "Found it",
		"payload": {
			"order": {"id": "A-1", "items": ["book", "pen"]},
			"total": 12.5
		}
	}`

	reply := ParseReply(raw)

	require.Equal(t, ReplyStructured, reply.Kind)
	order, ok := reply.Payload["order"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "A-1", order["id"])
	assert.Equal(t, []any{"book", "pen"}, order["items"])
	assert.Equal(t, 12.5, reply.Payload["total"])
}

func TestParseReply_RoundTrip(t *testing.T) {
	body := map[string]any{
		"message": "All set.",
		"payload": map[string]any{"data_ready": true, "rows": float64(2)},
	}
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	reply := ParseReply(string(raw))

	require.Equal(t, ReplyStructured, reply.Kind)
	assert.Equal(t, "All set.", reply.Message)
	assert.Equal(t, body["payload"], reply.Payload)
}
