// Package llm provides a resilient chat-completion call: token-budgeted
// prompt assembly, rate-limit retries with exponential backoff, and
// structured-reply parsing with a raw-text fallback.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/i2y/chiron/provider"
	"github.com/i2y/chiron/schema"
)

// Request carries the content of one completion call. It is constructed
// fresh per call and never mutated by the library.
type Request struct {
	// System is the instruction block placed first in the system message.
	System string

	// Suffix is appended after System, ahead of any knowledge. Callers
	// use it for reply-format rules that must survive prompt trimming.
	Suffix string

	// History is the prior conversation, oldest first. Only the most
	// recent entries are sent (see WithHistoryLimit).
	History []Message

	// Knowledge holds retrieved context blocks in priority order. The
	// token budget decides how many of them fit (a block is atomic and
	// never truncated).
	Knowledge []string

	// Temperature and MaxOutputTokens override the call options when set.
	Temperature     *float64
	MaxOutputTokens *int
}

// Complete assembles the prompt within the token budget, calls the
// provider with rate-limit retries, and parses the reply.
//
// Example:
//
//	reply, err := llm.Complete(ctx, llm.Request{
//	    System:    agentPrompt,
//	    History:   history,
//	    Knowledge: snippets,
//	},
//	    llm.WithProvider("openai"),
//	    llm.WithModel("gpt-4o-mini"),
//	    llm.WithJSONResponse(),
//	)
//	if err != nil {
//	    return err
//	}
//	switch reply.Kind {
//	case llm.ReplyStructured:
//	    fmt.Println(reply.Message)
//	case llm.ReplyRaw:
//	    fmt.Println(reply.Text)
//	}
//
// The error is non-nil only for terminal failures: a rate-limited call
// that used up every attempt (errors.Is(err, ErrRetriesExhausted)) or a
// non-retryable provider error surfaced as-is.
func Complete(ctx context.Context, req Request, opts ...Option) (Reply, error) {
	cfg := newCallConfig()
	cfg.apply(opts...)

	if err := cfg.validate(); err != nil {
		return Reply{}, err
	}

	p, err := provider.Get(cfg.providerName)
	if err != nil {
		return Reply{}, fmt.Errorf("getting provider: %w", err)
	}

	resp, err := runWithRetry(ctx, p, cfg.buildRequest(req), cfg.backoff, nil, cfg.logger)
	if err != nil {
		return Reply{}, err
	}

	reply := ParseReply(resp.Content)
	reply.usage = resp.Usage
	return reply, nil
}

// CompleteParse is Complete with schema-constrained output: a JSON schema
// is generated from T, sent as the response format, and the reply is
// unmarshalled into T. The retry behavior is identical to Complete.
// Unlike the Reply fallback, a response that fails to decode into T is an
// error (*ParseError), because the caller asked for a typed contract.
//
// Example:
//
//	type Verdict struct {
//	    Approved bool   `json:"approved" jsonschema:"required"`
//	    Reason   string `json:"reason" jsonschema:"required"`
//	}
//
//	v, err := llm.CompleteParse[Verdict](ctx, llm.Request{System: prompt},
//	    llm.WithProvider("anthropic"),
//	    llm.WithModel("claude-sonnet-4-5"),
//	)
func CompleteParse[T any](ctx context.Context, req Request, opts ...Option) (T, error) {
	var parsed T

	cfg := newCallConfig()
	cfg.apply(opts...)

	if err := cfg.validate(); err != nil {
		return parsed, err
	}

	jsonSchema, err := schema.Generate[T]()
	if err != nil {
		return parsed, fmt.Errorf("generating schema: %w", err)
	}

	typeName := reflect.TypeFor[T]().Name()
	if typeName == "" {
		typeName = "response"
	}

	cfg.jsonSchema = &provider.JSONSchema{
		Name:   typeName,
		Strict: true,
		Schema: jsonSchema,
	}

	p, err := provider.Get(cfg.providerName)
	if err != nil {
		return parsed, fmt.Errorf("getting provider: %w", err)
	}

	resp, err := runWithRetry(ctx, p, cfg.buildRequest(req), cfg.backoff, nil, cfg.logger)
	if err != nil {
		return parsed, err
	}

	if err := json.Unmarshal([]byte(resp.Content), &parsed); err != nil {
		return parsed, &ParseError{
			Content: resp.Content,
			Target:  typeName,
			Cause:   err,
		}
	}

	return parsed, nil
}
