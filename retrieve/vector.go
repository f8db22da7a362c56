package retrieve

import (
	"context"
	"fmt"
	"strings"

	"github.com/i2y/chiron/embed"
	"github.com/i2y/chiron/vector"
)

const defaultTopK = 5

// VectorSource answers calls by embedding the call's input text and
// KNN-searching a vector store collection scoped to this source's
// resource ID.
type VectorSource struct {
	id              string
	description     string
	embedder        embed.Embedder
	store           vector.Store
	collection      string
	knowledgeBaseID string
	topK            int
}

// VectorOption configures a VectorSource.
type VectorOption func(*VectorSource)

// WithKnowledgeBase scopes searches to one knowledge base ID.
func WithKnowledgeBase(id string) VectorOption {
	return func(s *VectorSource) {
		s.knowledgeBaseID = id
	}
}

// WithTopK sets how many hits a search returns.
func WithTopK(k int) VectorOption {
	return func(s *VectorSource) {
		s.topK = k
	}
}

// NewVectorSource creates a source that searches collection in store,
// embedding queries with embedder.
func NewVectorSource(id, description string, embedder embed.Embedder, store vector.Store, collection string, opts ...VectorOption) *VectorSource {
	s := &VectorSource{
		id:          id,
		description: description,
		embedder:    embedder,
		store:       store,
		collection:  collection,
		topK:        defaultTopK,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID implements Source.
func (s *VectorSource) ID() string { return s.id }

// Describe implements Source.
func (s *VectorSource) Describe() string { return s.description }

// Fetch implements Source. The contents of all hits are joined, best
// match first.
func (s *VectorSource) Fetch(ctx context.Context, call Call) (string, error) {
	if call.InputData == "" {
		return "", fmt.Errorf("resource %q requires input_data", s.id)
	}

	vectors, err := s.embedder.Embed(ctx, []string{call.InputData})
	if err != nil {
		return "", fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) != 1 {
		return "", fmt.Errorf("expected 1 embedding, got %d", len(vectors))
	}

	results, err := s.store.Search(ctx, s.collection, vector.Query{
		Vector:          vectors[0],
		K:               s.topK,
		KnowledgeBaseID: s.knowledgeBaseID,
		ResourceIDs:     []string{s.id},
	})
	if err != nil {
		return "", fmt.Errorf("searching %s: %w", s.collection, err)
	}

	contents := make([]string, 0, len(results))
	for _, result := range results {
		if content, ok := result.Payload["content"].(string); ok && content != "" {
			contents = append(contents, content)
		}
	}
	if len(contents) == 0 {
		return "", fmt.Errorf("no knowledge found for resource %q", s.id)
	}
	return strings.Join(contents, "\n\n"), nil
}
