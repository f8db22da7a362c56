package retrieve

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/i2y/chiron/llm"
)

const (
	defaultRESTTimeout = 30 * time.Second

	// Limit response size to 1MB.
	maxResponseBytes = 1024 * 1024
)

// RESTSource fetches data from an HTTP endpoint. GET sends the call's
// query parameters, POST additionally sends its payload as JSON; other
// methods are rejected. Transient statuses are retried with
// exponential backoff.
type RESTSource struct {
	id          string
	description string
	url         string
	method      string
	header      map[string]string
	client      *http.Client
	retry       llm.BackoffPolicy
}

// RESTOption configures a RESTSource.
type RESTOption func(*RESTSource)

// WithHeader adds fixed headers to every request.
func WithHeader(header map[string]string) RESTOption {
	return func(s *RESTSource) {
		s.header = header
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) RESTOption {
	return func(s *RESTSource) {
		s.client = client
	}
}

// WithRetryPolicy sets the backoff policy used for transient statuses
// and transport errors.
func WithRetryPolicy(policy llm.BackoffPolicy) RESTOption {
	return func(s *RESTSource) {
		s.retry = policy
	}
}

// NewRESTSource creates a source for the endpoint at rawURL. The URL
// may contain {name} placeholders filled from each call. method must
// be GET or POST.
func NewRESTSource(id, description, rawURL, method string, opts ...RESTOption) (*RESTSource, error) {
	method = strings.ToUpper(method)
	if method != http.MethodGet && method != http.MethodPost {
		return nil, fmt.Errorf("unsupported method %q: only GET and POST are supported", method)
	}

	s := &RESTSource{
		id:          id,
		description: description,
		url:         rawURL,
		method:      method,
		client:      &http.Client{Timeout: defaultRESTTimeout},
		retry:       llm.DefaultBackoff(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ID implements Source.
func (s *RESTSource) ID() string { return s.id }

// Describe implements Source.
func (s *RESTSource) Describe() string { return s.description }

// Fetch implements Source. The response body is returned as text.
func (s *RESTSource) Fetch(ctx context.Context, call Call) (string, error) {
	targetURL, err := expandPlaceholders(s.url, call.Placeholders)
	if err != nil {
		return "", err
	}

	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	for attempt := 1; ; attempt++ {
		body, status, err := s.do(ctx, targetURL, call)
		switch {
		case err == nil && !retryableStatus(status):
			if status >= http.StatusBadRequest {
				return "", fmt.Errorf("calling %s: status %d", s.id, status)
			}
			return body, nil
		case ctx.Err() != nil:
			return "", ctx.Err()
		}

		if attempt > s.retry.MaxRetries {
			if err != nil {
				return "", fmt.Errorf("calling %s after %d attempts: %w", s.id, attempt, err)
			}
			return "", fmt.Errorf("calling %s after %d attempts: status %d", s.id, attempt, status)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(s.retry.Delay(attempt, rng)):
		}
	}
}

func (s *RESTSource) do(ctx context.Context, targetURL string, call Call) (string, int, error) {
	var body io.Reader = http.NoBody
	hasBody := s.method == http.MethodPost && len(call.Payload) > 0
	if hasBody {
		encoded, err := json.Marshal(call.Payload)
		if err != nil {
			return "", 0, fmt.Errorf("encoding payload: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, s.method, targetURL, body)
	if err != nil {
		return "", 0, fmt.Errorf("creating request: %w", err)
	}

	if len(call.QueryParams) > 0 {
		query := req.URL.Query()
		for name, value := range call.QueryParams {
			query.Set(name, value)
		}
		req.URL.RawQuery = query.Encode()
	}
	for name, value := range s.header {
		req.Header.Set(name, value)
	}
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", 0, fmt.Errorf("reading response: %w", err)
	}
	return string(data), resp.StatusCode, nil
}

// retryableStatus reports whether an HTTP status is worth retrying.
func retryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// expandPlaceholders substitutes {name} segments of rawURL with values
// from placeholders. A placeholder without a value is an error so
// requests never go out with literal braces.
func expandPlaceholders(rawURL string, placeholders map[string]string) (string, error) {
	expanded := rawURL
	for name, value := range placeholders {
		expanded = strings.ReplaceAll(expanded, "{"+name+"}", url.PathEscape(value))
	}
	if strings.ContainsAny(expanded, "{}") {
		return "", fmt.Errorf("unresolved placeholder in URL %q", expanded)
	}
	return expanded, nil
}
