package retrieve

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
)

// Fetcher routes planned calls to registered sources and executes them
// concurrently.
type Fetcher struct {
	mu      sync.RWMutex
	sources map[string]Source
	logger  *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithLogger sets the logger used to report per-call failures.
func WithLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// NewFetcher creates a Fetcher. Sources are added with Register.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		sources: make(map[string]Source),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Register adds sources to the fetcher. A source with an already
// registered ID replaces the previous one.
func (f *Fetcher) Register(sources ...Source) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, source := range sources {
		f.sources[source.ID()] = source
	}
}

// Source returns the source registered under id.
func (f *Fetcher) Source(id string) (Source, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	source, ok := f.sources[id]
	return source, ok
}

// IDs returns the registered source IDs, sorted.
func (f *Fetcher) IDs() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Sorted(maps.Keys(f.sources))
}

// Catalog renders the registered sources as "- id: description" lines
// for the planner prompt.
func (f *Fetcher) Catalog() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	ids := slices.Sorted(maps.Keys(f.sources))
	lines := make([]string, 0, len(ids))
	for _, id := range ids {
		lines = append(lines, fmt.Sprintf("- %s: %s", id, f.sources[id].Describe()))
	}
	return strings.Join(lines, "\n")
}

// Fetch executes every call in the plan concurrently and returns the
// results keyed by resource ID. A failing call never fails the
// fan-out: its value is the string "Error getting data: <error>", so
// the model sees the failure alongside the other results.
func (f *Fetcher) Fetch(ctx context.Context, plan Plan) map[string]string {
	calls := plan.Calls()
	results := make(map[string]string, len(calls))
	if len(calls) == 0 {
		return results
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, call := range calls {
		wg.Add(1)
		go func() {
			defer wg.Done()

			data, err := f.fetchOne(ctx, call)
			if err != nil {
				f.logger.Error("fetching resource failed",
					"resource_id", call.ResourceID,
					"error", err,
				)
				data = fmt.Sprintf("Error getting data: %v", err)
			}

			mu.Lock()
			results[call.ResourceID] = data
			mu.Unlock()
		}()
	}
	wg.Wait()

	return results
}

func (f *Fetcher) fetchOne(ctx context.Context, call Call) (string, error) {
	source, ok := f.Source(call.ResourceID)
	if !ok {
		return "", fmt.Errorf("unknown resource %q", call.ResourceID)
	}
	return source.Fetch(ctx, call)
}
