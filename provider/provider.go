// Package provider defines the interface for chat-completion providers.
package provider

import "context"

// Provider is the core abstraction for completion providers.
// All provider implementations must satisfy this interface.
//
// Complete must return an error classified as rate-limited (see
// ErrRateLimited) when the vendor rejects the call for quota reasons, so
// callers can tell retryable failures apart from fatal ones.
type Provider interface {
	// Name returns the provider identifier (e.g., "openai", "anthropic").
	Name() string

	// Complete executes a chat-completion request.
	Complete(ctx context.Context, req *Request) (*Response, error)
}
