// Package vector defines the vector store used for knowledge-base
// retrieval and provides a Qdrant-backed implementation.
package vector

import "context"

// Point is one stored vector with its payload.
type Point struct {
	// ID is a UUID string.
	ID      string
	Vector  []float32
	Payload map[string]any
}

// Query is a similarity search request. KnowledgeBaseID and ResourceIDs
// narrow the search to one knowledge base and, when non-empty, to
// specific resources within it.
type Query struct {
	Vector          []float32
	K               int
	KnowledgeBaseID string
	ResourceIDs     []string
}

// Result is one search hit.
type Result struct {
	ID      string
	Score   float32
	Payload map[string]any
}

// Store is the vector store abstraction.
type Store interface {
	// EnsureCollection creates the collection if missing and verifies
	// the vector size if it already exists.
	EnsureCollection(ctx context.Context, collection string, vectorSize int) error

	// Upsert inserts or replaces points.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search returns the closest points to the query vector.
	Search(ctx context.Context, collection string, query Query) ([]Result, error)

	// Delete removes points by their IDs.
	Delete(ctx context.Context, collection string, ids []string) error
}
