package retrieve

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/chiron/llm"
)

func fastRetry(maxRetries int) llm.BackoffPolicy {
	return llm.BackoffPolicy{
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		JitterLow:    1.0,
		JitterHigh:   1.0,
	}
}

func TestNewRESTSource_RejectsMethod(t *testing.T) {
	for _, method := range []string{"DELETE", "PUT", "PATCH", ""} {
		_, err := NewRESTSource("api", "", "http://example.com", method)
		require.Error(t, err, "method %q", method)
		assert.Contains(t, err.Error(), "only GET and POST")
	}
}

func TestRESTSource_Fetch_Get(t *testing.T) {
	var gotPath, gotQuery, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("units")
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"temp": 21}`))
	}))
	defer server.Close()

	source, err := NewRESTSource("weather", "Current weather", server.URL+"/cities/{city}/weather", "get",
		WithHeader(map[string]string{"Authorization": "Bearer token"}),
	)
	require.NoError(t, err)

	assert.Equal(t, "weather", source.ID())
	assert.Equal(t, "Current weather", source.Describe())

	data, err := source.Fetch(context.Background(), Call{
		ResourceID:   "weather",
		Placeholders: map[string]string{"city": "osaka"},
		QueryParams:  map[string]string{"units": "metric"},
	})
	require.NoError(t, err)

	assert.Equal(t, `{"temp": 21}`, data)
	assert.Equal(t, "/cities/osaka/weather", gotPath)
	assert.Equal(t, "metric", gotQuery)
	assert.Equal(t, "Bearer token", gotAuth)
}

func TestRESTSource_Fetch_Post(t *testing.T) {
	var gotContentType string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte("created"))
	}))
	defer server.Close()

	source, err := NewRESTSource("tickets", "", server.URL, "POST")
	require.NoError(t, err)

	data, err := source.Fetch(context.Background(), Call{
		ResourceID: "tickets",
		Payload:    map[string]any{"subject": "refund", "priority": "high"},
	})
	require.NoError(t, err)

	assert.Equal(t, "created", data)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, map[string]any{"subject": "refund", "priority": "high"}, gotBody)
}

func TestRESTSource_Fetch_RetriesTransientStatus(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("recovered"))
	}))
	defer server.Close()

	source, err := NewRESTSource("api", "", server.URL, "GET", WithRetryPolicy(fastRetry(3)))
	require.NoError(t, err)

	data, err := source.Fetch(context.Background(), Call{ResourceID: "api"})
	require.NoError(t, err)
	assert.Equal(t, "recovered", data)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestRESTSource_Fetch_ExhaustsRetries(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	source, err := NewRESTSource("api", "", server.URL, "GET", WithRetryPolicy(fastRetry(1)))
	require.NoError(t, err)

	_, err = source.Fetch(context.Background(), Call{ResourceID: "api"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Contains(t, err.Error(), "status 429")
	assert.Equal(t, int32(2), attempts.Load())
}

func TestRESTSource_Fetch_NonRetryableStatusFails(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	source, err := NewRESTSource("api", "", server.URL, "GET", WithRetryPolicy(fastRetry(3)))
	require.NoError(t, err)

	_, err = source.Fetch(context.Background(), Call{ResourceID: "api"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Equal(t, int32(1), attempts.Load())
}

func TestRESTSource_Fetch_UnresolvedPlaceholder(t *testing.T) {
	source, err := NewRESTSource("api", "", "http://example.com/cities/{city}", "GET")
	require.NoError(t, err)

	_, err = source.Fetch(context.Background(), Call{ResourceID: "api"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unresolved placeholder")
}

func TestRESTSource_Fetch_CancelledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	policy := llm.BackoffPolicy{
		MaxRetries:   3,
		InitialDelay: 10 * time.Second,
		MaxDelay:     10 * time.Second,
		JitterLow:    1.0,
		JitterHigh:   1.0,
	}
	source, err := NewRESTSource("api", "", server.URL, "GET", WithRetryPolicy(policy))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	timer := time.AfterFunc(10*time.Millisecond, cancel)
	defer timer.Stop()

	start := time.Now()
	_, err = source.Fetch(ctx, Call{ResourceID: "api"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestExpandPlaceholders(t *testing.T) {
	tests := []struct {
		name         string
		rawURL       string
		placeholders map[string]string
		want         string
		wantErr      bool
	}{
		{
			name:   "no placeholders",
			rawURL: "http://example.com/data",
			want:   "http://example.com/data",
		},
		{
			name:         "single placeholder",
			rawURL:       "http://example.com/users/{id}",
			placeholders: map[string]string{"id": "42"},
			want:         "http://example.com/users/42",
		},
		{
			name:         "multiple placeholders",
			rawURL:       "http://example.com/{org}/{repo}",
			placeholders: map[string]string{"org": "acme", "repo": "tools"},
			want:         "http://example.com/acme/tools",
		},
		{
			name:         "value is path-escaped",
			rawURL:       "http://example.com/files/{name}",
			placeholders: map[string]string{"name": "a b"},
			want:         "http://example.com/files/a%20b",
		},
		{
			name:         "extra placeholder values are ignored",
			rawURL:       "http://example.com/data",
			placeholders: map[string]string{"unused": "x"},
			want:         "http://example.com/data",
		},
		{
			name:    "missing value",
			rawURL:  "http://example.com/users/{id}",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandPlaceholders(tt.rawURL, tt.placeholders)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
