package llm

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	// ErrProviderRequired is returned when WithProvider is not specified.
	ErrProviderRequired = errors.New("provider is required: use WithProvider option")

	// ErrModelRequired is returned when WithModel is not specified.
	ErrModelRequired = errors.New("model is required: use WithModel option")

	// ErrRetriesExhausted is returned when every attempt of a call was
	// rate limited. The returned error also wraps the provider's last
	// error, so both are visible to errors.Is.
	ErrRetriesExhausted = errors.New("rate limit retries exhausted")
)

// ParseError represents a failure to decode the model's response into
// the type requested by CompleteParse.
type ParseError struct {
	Content string
	Target  string
	Cause   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse response as %s: %v", e.Target, e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}
