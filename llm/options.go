package llm

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/i2y/chiron/provider"
)

const defaultHistoryLimit = 15

// Option configures a completion call.
type Option func(*callConfig)

type callConfig struct {
	providerName string
	model        string
	temperature  *float64
	maxTokens    *int
	topP         *float64
	seed         *int
	stop         []string
	jsonMode     bool
	jsonSchema   *provider.JSONSchema
	budget       TokenBudget
	backoff      BackoffPolicy
	counter      TokenCounter
	historyLimit int
	logger       *slog.Logger
}

func newCallConfig() *callConfig {
	return &callConfig{
		budget:       DefaultBudget(),
		backoff:      DefaultBackoff(),
		counter:      CounterFunc(Estimate),
		historyLimit: defaultHistoryLimit,
		logger:       slog.Default(),
	}
}

func (c *callConfig) apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

func (c *callConfig) validate() error {
	if c.providerName == "" {
		return ErrProviderRequired
	}
	if c.model == "" {
		return ErrModelRequired
	}
	if err := c.budget.Validate(); err != nil {
		return fmt.Errorf("token budget: %w", err)
	}
	if err := c.backoff.Validate(); err != nil {
		return fmt.Errorf("backoff policy: %w", err)
	}
	if c.historyLimit < 0 {
		return errors.New("history limit must be >= 0")
	}
	return nil
}

// buildRequest creates a provider.Request from the config and call
// content. Sampling fields set on the Request win over option defaults.
func (c *callConfig) buildRequest(req Request) *provider.Request {
	r := &provider.Request{
		Model:         c.model,
		Messages:      c.assemble(req),
		Temperature:   c.temperature,
		MaxTokens:     c.maxTokens,
		TopP:          c.topP,
		Seed:          c.seed,
		StopSequences: c.stop,
		JSONMode:      c.jsonMode,
		JSONSchema:    c.jsonSchema,
	}
	if req.Temperature != nil {
		r.Temperature = req.Temperature
	}
	if req.MaxOutputTokens != nil {
		r.MaxTokens = req.MaxOutputTokens
	}
	return r
}

// WithProvider sets the LLM provider (e.g., "openai", "anthropic").
func WithProvider(name string) Option {
	return func(c *callConfig) {
		c.providerName = name
	}
}

// WithModel sets the model to use (e.g., "gpt-4o-mini").
func WithModel(name string) Option {
	return func(c *callConfig) {
		c.model = name
	}
}

// WithTemperature sets the default sampling temperature.
// A Temperature set on the Request takes precedence.
func WithTemperature(t float64) Option {
	return func(c *callConfig) {
		c.temperature = &t
	}
}

// WithMaxOutputTokens sets the default cap on completion length.
// A MaxOutputTokens set on the Request takes precedence.
func WithMaxOutputTokens(n int) Option {
	return func(c *callConfig) {
		c.maxTokens = &n
	}
}

// WithTopP sets the nucleus sampling parameter (0.0 to 1.0).
// Tokens are selected from the most to least probable until the sum
// of their probabilities equals this value.
func WithTopP(p float64) Option {
	return func(c *callConfig) {
		c.topP = &p
	}
}

// WithSeed sets a random seed for reproducibility.
// Note: Not supported by Anthropic.
func WithSeed(seed int) Option {
	return func(c *callConfig) {
		c.seed = &seed
	}
}

// WithStopSequences sets stop sequences to end generation.
// The model will stop generating text if one of these strings is encountered.
func WithStopSequences(seqs ...string) Option {
	return func(c *callConfig) {
		c.stop = seqs
	}
}

// WithJSONResponse asks the provider for a JSON object response. Use it
// with Complete when the prompt itself describes the expected shape;
// CompleteParse sends a full schema instead.
func WithJSONResponse() Option {
	return func(c *callConfig) {
		c.jsonMode = true
	}
}

// WithTokenBudget sets the context-window budget used when assembling
// the prompt.
func WithTokenBudget(b TokenBudget) Option {
	return func(c *callConfig) {
		c.budget = b
	}
}

// WithBackoff sets the retry policy applied to rate-limited calls.
func WithBackoff(p BackoffPolicy) Option {
	return func(c *callConfig) {
		c.backoff = p
	}
}

// WithCounter sets the token counter used for budget accounting.
// The default is Estimate; pass a model-specific tokenizer for exact
// counts.
func WithCounter(counter TokenCounter) Option {
	return func(c *callConfig) {
		c.counter = counter
	}
}

// WithHistoryLimit caps how many trailing history messages are sent.
// The default is 15. Zero sends no history.
func WithHistoryLimit(n int) Option {
	return func(c *callConfig) {
		c.historyLimit = n
	}
}

// WithLogger sets the logger used for budget and retry warnings.
// The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *callConfig) {
		c.logger = logger
	}
}
