package retrieve

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSource returns canned data or a canned error.
type stubSource struct {
	id          string
	description string
	data        string
	err         error

	mu    sync.Mutex
	calls []Call
}

func (s *stubSource) ID() string       { return s.id }
func (s *stubSource) Describe() string { return s.description }

func (s *stubSource) Fetch(_ context.Context, call Call) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	return s.data, nil
}

func TestFetcher_Register(t *testing.T) {
	f := NewFetcher()
	f.Register(
		&stubSource{id: "orders", description: "Order database"},
		&stubSource{id: "weather", description: "Weather API"},
	)

	assert.Equal(t, []string{"orders", "weather"}, f.IDs())

	source, ok := f.Source("orders")
	require.True(t, ok)
	assert.Equal(t, "orders", source.ID())

	_, ok = f.Source("missing")
	assert.False(t, ok)
}

func TestFetcher_Register_ReplacesByID(t *testing.T) {
	f := NewFetcher()
	f.Register(&stubSource{id: "orders", data: "old"})
	f.Register(&stubSource{id: "orders", data: "new"})

	result := f.Fetch(context.Background(), Plan{
		RealtimeResources: []Call{{ResourceID: "orders"}},
	})
	assert.Equal(t, map[string]string{"orders": "new"}, result)
}

func TestFetcher_Catalog(t *testing.T) {
	f := NewFetcher()
	f.Register(
		&stubSource{id: "weather", description: "Current weather by city"},
		&stubSource{id: "orders", description: "Order database"},
	)

	want := "- orders: Order database\n- weather: Current weather by city"
	assert.Equal(t, want, f.Catalog())
}

func TestFetcher_Catalog_Empty(t *testing.T) {
	assert.Empty(t, NewFetcher().Catalog())
}

func TestFetcher_Fetch(t *testing.T) {
	orders := &stubSource{id: "orders", data: `[{"id":1}]`}
	weather := &stubSource{id: "weather", data: "sunny"}
	docs := &stubSource{id: "docs", data: "Returns are accepted within 30 days."}

	f := NewFetcher()
	f.Register(orders, weather, docs)

	plan := Plan{
		RealtimeResources: []Call{
			{ResourceID: "orders", Query: "SELECT * FROM orders"},
			{ResourceID: "weather", QueryParams: map[string]string{"city": "Osaka"}},
		},
		VectorizationResources: []Call{
			{ResourceID: "docs", InputData: "return policy"},
		},
	}

	result := f.Fetch(context.Background(), plan)

	assert.Equal(t, map[string]string{
		"orders":  `[{"id":1}]`,
		"weather": "sunny",
		"docs":    "Returns are accepted within 30 days.",
	}, result)

	require.Len(t, orders.calls, 1)
	assert.Equal(t, "SELECT * FROM orders", orders.calls[0].Query)
	require.Len(t, docs.calls, 1)
	assert.Equal(t, "return policy", docs.calls[0].InputData)
}

func TestFetcher_Fetch_CapturesFailures(t *testing.T) {
	f := NewFetcher()
	f.Register(
		&stubSource{id: "orders", data: "ok"},
		&stubSource{id: "flaky", err: errors.New("connection refused")},
	)

	result := f.Fetch(context.Background(), Plan{
		RealtimeResources: []Call{
			{ResourceID: "orders"},
			{ResourceID: "flaky"},
			{ResourceID: "unregistered"},
		},
	})

	assert.Equal(t, "ok", result["orders"])
	assert.Equal(t, "Error getting data: connection refused", result["flaky"])
	assert.Equal(t, `Error getting data: unknown resource "unregistered"`, result["unregistered"])
}

func TestFetcher_Fetch_EmptyPlan(t *testing.T) {
	f := NewFetcher()
	f.Register(&stubSource{id: "orders"})

	result := f.Fetch(context.Background(), Plan{})
	assert.Empty(t, result)
}

// barrierSource blocks until every planned call has started, proving
// the calls run concurrently.
type barrierSource struct {
	id      string
	barrier *sync.WaitGroup
}

func (s *barrierSource) ID() string       { return s.id }
func (s *barrierSource) Describe() string { return "" }

func (s *barrierSource) Fetch(context.Context, Call) (string, error) {
	s.barrier.Done()
	s.barrier.Wait()
	return "done", nil
}

func TestFetcher_Fetch_Concurrent(t *testing.T) {
	var barrier sync.WaitGroup
	barrier.Add(3)

	f := NewFetcher()
	f.Register(
		&barrierSource{id: "a", barrier: &barrier},
		&barrierSource{id: "b", barrier: &barrier},
		&barrierSource{id: "c", barrier: &barrier},
	)

	result := f.Fetch(context.Background(), Plan{
		RealtimeResources: []Call{
			{ResourceID: "a"}, {ResourceID: "b"}, {ResourceID: "c"},
		},
	})

	assert.Equal(t, map[string]string{"a": "done", "b": "done", "c": "done"}, result)
}

func TestPlan_Calls(t *testing.T) {
	plan := Plan{
		RealtimeResources:      []Call{{ResourceID: "a"}, {ResourceID: "b"}},
		VectorizationResources: []Call{{ResourceID: "c"}},
	}

	calls := plan.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "a", calls[0].ResourceID)
	assert.Equal(t, "b", calls[1].ResourceID)
	assert.Equal(t, "c", calls[2].ResourceID)
}

func TestPlan_Empty(t *testing.T) {
	assert.True(t, Plan{}.Empty())
	assert.False(t, Plan{RealtimeResources: []Call{{ResourceID: "a"}}}.Empty())
	assert.False(t, Plan{VectorizationResources: []Call{{ResourceID: "a"}}}.Empty())
}
