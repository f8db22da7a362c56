package llm

import (
	"errors"
	"strings"

	"github.com/i2y/chiron/provider"
)

const (
	defaultMaxContextTokens     = 128000
	defaultReservedOutputTokens = 5000

	// knowledgeSeparator joins included knowledge blocks and is charged
	// per block during budget accounting.
	knowledgeSeparator = "\n"

	estimateBytesPerToken = 4
)

// TokenCounter reports the token count of a text for the target model.
type TokenCounter interface {
	Count(text string) int
}

// CounterFunc adapts a function to the TokenCounter interface.
type CounterFunc func(string) int

// Count calls f(text).
func (f CounterFunc) Count(text string) int {
	return f(text)
}

// Estimate approximates the token count of text as ceil(bytes/4). It
// intentionally overestimates for dense languages so that budget checks
// stay conservative.
func Estimate(text string) int {
	return (len(text) + estimateBytesPerToken - 1) / estimateBytesPerToken
}

// TokenBudget bounds how much of the model's context window a call may
// fill with prompt content.
type TokenBudget struct {
	// MaxContextTokens is the total context window size.
	MaxContextTokens int

	// ReservedOutputTokens is held back for the model's own output and
	// never spent on prompt content.
	ReservedOutputTokens int
}

// DefaultBudget returns the budget used when WithTokenBudget is not
// given: a 128k window with 5k reserved for output.
func DefaultBudget() TokenBudget {
	return TokenBudget{
		MaxContextTokens:     defaultMaxContextTokens,
		ReservedOutputTokens: defaultReservedOutputTokens,
	}
}

// Validate reports whether the budget is usable.
func (b TokenBudget) Validate() error {
	if b.MaxContextTokens <= 0 {
		return errors.New("MaxContextTokens must be > 0")
	}
	if b.ReservedOutputTokens < 0 {
		return errors.New("ReservedOutputTokens must be >= 0")
	}
	if b.ReservedOutputTokens >= b.MaxContextTokens {
		return errors.New("ReservedOutputTokens must be smaller than MaxContextTokens")
	}
	return nil
}

// assemble builds the provider messages for a call: one system message
// (instructions, suffix, and as many knowledge blocks as the budget
// allows) followed by the trailing history.
//
// Knowledge blocks are taken greedily in order. Each block costs its own
// tokens plus one separator; the first block that would push the running
// total past the available budget stops inclusion, and everything after
// it is dropped even if it would fit. A block is atomic: it is included
// whole or not at all. Assembly never fails; an over-tight budget just
// means no knowledge is sent.
func (c *callConfig) assemble(req Request) []provider.Message {
	history := req.History
	if len(history) > c.historyLimit {
		history = history[len(history)-c.historyLimit:]
	}

	fixed := c.counter.Count(req.System) + c.counter.Count(req.Suffix)
	for _, m := range history {
		fixed += c.counter.Count(m.Content)
	}
	available := c.budget.MaxContextTokens - fixed - c.budget.ReservedOutputTokens

	var included []string
	if available <= 0 {
		if len(req.Knowledge) > 0 {
			c.logger.Warn("no room for knowledge in context window",
				"available", available,
				"dropped", len(req.Knowledge))
		}
	} else {
		separatorCost := c.counter.Count(knowledgeSeparator)
		total := 0
		for i, block := range req.Knowledge {
			cost := c.counter.Count(block) + separatorCost
			if total+cost > available {
				c.logger.Warn("knowledge truncated to fit context window",
					"included", i,
					"dropped", len(req.Knowledge)-i,
					"available", available)
				break
			}
			total += cost
			included = append(included, block)
		}
	}

	system := req.System
	if req.Suffix != "" {
		system += "\n\n" + req.Suffix
	}
	if len(included) > 0 {
		system += "\n" + strings.Join(included, knowledgeSeparator)
	}

	messages := make([]provider.Message, 0, len(history)+1)
	messages = append(messages, provider.Message{
		Role:    provider.RoleSystem,
		Content: system,
	})
	messages = append(messages, history...)
	return messages
}
