package retrieve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/chiron/llm"
	"github.com/i2y/chiron/provider"
)

// stubProvider returns a fixed completion and records requests.
type stubProvider struct {
	name     string
	content  string
	requests []*provider.Request
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Complete(_ context.Context, req *provider.Request) (*provider.Response, error) {
	p.requests = append(p.requests, req)
	return &provider.Response{
		Content:      p.content,
		FinishReason: provider.FinishReasonStop,
	}, nil
}

func newStubModel(t *testing.T, content string) (*llm.Model, *stubProvider) {
	t.Helper()

	name := "sqlgen-" + t.Name()
	stub := &stubProvider{name: name, content: content}
	provider.Register(name, func() (provider.Provider, error) {
		return stub, nil
	})
	return llm.NewModel(name, "test-model"), stub
}

func TestGenerateSQL(t *testing.T) {
	model, stub := newStubModel(t, `{"query": "SELECT item, amount FROM orders WHERE id = 7"}`)

	query, err := GenerateSQL(context.Background(), model,
		"Table orders: id INTEGER, item TEXT, amount REAL",
		"What did order 7 contain?",
	)
	require.NoError(t, err)
	assert.Equal(t, "SELECT item, amount FROM orders WHERE id = 7", query)

	require.Len(t, stub.requests, 1)
	req := stub.requests[0]
	require.NotNil(t, req.JSONSchema)
	assert.Contains(t, string(req.JSONSchema.Schema), `"query"`)

	require.NotEmpty(t, req.Messages)
	system := req.Messages[0]
	assert.Equal(t, provider.RoleSystem, system.Role)
	assert.Contains(t, system.Content, "Table orders")
	last := req.Messages[len(req.Messages)-1]
	assert.Equal(t, provider.RoleUser, last.Role)
	assert.Equal(t, "What did order 7 contain?", last.Content)
}

func TestGenerateSQL_RejectsNonSelect(t *testing.T) {
	model, _ := newStubModel(t, `{"query": "DELETE FROM orders"}`)

	_, err := GenerateSQL(context.Background(), model, "schema", "question")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected")
	assert.ErrorIs(t, err, ErrNotSelect)
}

func TestGenerateSQL_EmptyQuery(t *testing.T) {
	model, _ := newStubModel(t, `{"query": ""}`)

	_, err := GenerateSQL(context.Background(), model, "schema", "question")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty query")
}

func TestGenerateSQL_UnparsableReply(t *testing.T) {
	model, _ := newStubModel(t, `the query you want is SELECT 1`)

	_, err := GenerateSQL(context.Background(), model, "schema", "question")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generating SQL")
}
