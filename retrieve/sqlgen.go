package retrieve

import (
	"context"
	"errors"
	"fmt"

	"github.com/i2y/chiron/llm"
)

// sqlGenPrompt instructs the model to answer with a single JSON object
// holding the query.
const sqlGenPrompt = `You are an expert SQL developer. Write a single SQL SELECT statement that answers the user's question against the schema below. Respond with a JSON object of the form {"query": "<SQL>"}. Never modify data and never explain the query.`

type sqlResponse struct {
	Query string `json:"query" jsonschema:"required,description=A single SQL SELECT statement"`
}

// GenerateSQL asks model to write a SELECT for question against the
// described schema. The generated query is validated with CheckQuery
// before it is returned.
func GenerateSQL(ctx context.Context, model *llm.Model, schemaDescription, question string) (string, error) {
	req := llm.Request{
		System:  fmt.Sprintf("%s\n\n%s", sqlGenPrompt, schemaDescription),
		History: []llm.Message{llm.UserMessage(question)},
	}

	var resp sqlResponse
	if err := model.CompleteParse(ctx, req, &resp); err != nil {
		return "", fmt.Errorf("generating SQL: %w", err)
	}
	if resp.Query == "" {
		return "", errors.New("model returned an empty query")
	}
	if err := CheckQuery(resp.Query); err != nil {
		return "", fmt.Errorf("generated query rejected: %w", err)
	}
	return resp.Query, nil
}
