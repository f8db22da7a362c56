package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/i2y/chiron/provider"
	"github.com/i2y/chiron/schema"
)

// Model represents a configured LLM model with default options.
// It provides a convenient way to reuse common configuration.
//
// Example:
//
//	model := llm.NewModel("openai", "gpt-4o-mini",
//	    llm.WithTemperature(0.7),
//	    llm.WithTokenBudget(llm.TokenBudget{
//	        MaxContextTokens:     128000,
//	        ReservedOutputTokens: 5000,
//	    }),
//	)
//
//	reply, err := model.Complete(ctx, llm.Request{System: prompt})
type Model struct {
	providerName string
	modelName    string
	baseOpts     []Option
}

// NewModel creates a new Model with the given provider and model name.
// Additional options can be provided as default configuration.
func NewModel(providerName, modelName string, opts ...Option) *Model {
	return &Model{
		providerName: providerName,
		modelName:    modelName,
		baseOpts:     opts,
	}
}

// Complete makes a completion call using this model's configuration.
// Per-call options override the model's base options.
func (m *Model) Complete(ctx context.Context, req Request, opts ...Option) (Reply, error) {
	return Complete(ctx, req, m.mergeOptions(opts)...)
}

// CompleteParse makes a schema-constrained call using this model and
// decodes the response into target, which must be a non-nil pointer.
// Per-call options override the model's base options.
func (m *Model) CompleteParse(ctx context.Context, req Request, target any, opts ...Option) error {
	return completeParseReflect(ctx, req, target, m.mergeOptions(opts)...)
}

// mergeOptions combines base options with per-call options.
func (m *Model) mergeOptions(opts []Option) []Option {
	allOpts := make([]Option, 0, len(m.baseOpts)+len(opts)+2)
	allOpts = append(allOpts, WithProvider(m.providerName), WithModel(m.modelName))
	allOpts = append(allOpts, m.baseOpts...)
	allOpts = append(allOpts, opts...) // Per-call opts override base opts
	return allOpts
}

// completeParseReflect is a helper for Model.CompleteParse that uses
// reflection. This is necessary because Model.CompleteParse cannot be
// generic.
func completeParseReflect(ctx context.Context, req Request, target any, opts ...Option) error {
	cfg := newCallConfig()
	cfg.apply(opts...)

	if err := cfg.validate(); err != nil {
		return err
	}

	jsonSchema, err := schema.GenerateFromValue(target)
	if err != nil {
		return fmt.Errorf("generating schema: %w", err)
	}

	cfg.jsonSchema = &provider.JSONSchema{
		Name:   "response",
		Strict: true,
		Schema: jsonSchema,
	}

	p, err := provider.Get(cfg.providerName)
	if err != nil {
		return fmt.Errorf("getting provider: %w", err)
	}

	resp, err := runWithRetry(ctx, p, cfg.buildRequest(req), cfg.backoff, nil, cfg.logger)
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(resp.Content), target); err != nil {
		return &ParseError{
			Content: resp.Content,
			Target:  "response",
			Cause:   err,
		}
	}

	return nil
}
