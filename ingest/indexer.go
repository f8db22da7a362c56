package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"github.com/i2y/chiron/embed"
	"github.com/i2y/chiron/vector"
)

const defaultBatchSize = 64

// Indexer embeds markdown chunks and writes them to a vector store.
type Indexer struct {
	embedder        embed.Embedder
	store           vector.Store
	collection      string
	knowledgeBaseID string
	chunker         *Chunker
	batchSize       int
	logger          *slog.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithKnowledgeBase tags every indexed chunk with the knowledge base
// ID, so retrieval can scope searches to it.
func WithKnowledgeBase(id string) IndexerOption {
	return func(x *Indexer) {
		x.knowledgeBaseID = id
	}
}

// WithChunker overrides the default chunker.
func WithChunker(chunker *Chunker) IndexerOption {
	return func(x *Indexer) {
		x.chunker = chunker
	}
}

// WithBatchSize sets how many chunks are embedded per request.
func WithBatchSize(n int) IndexerOption {
	return func(x *Indexer) {
		x.batchSize = n
	}
}

// WithLogger sets the indexer logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) IndexerOption {
	return func(x *Indexer) {
		x.logger = logger
	}
}

// NewIndexer creates an indexer that writes to the named collection.
func NewIndexer(embedder embed.Embedder, store vector.Store, collection string, opts ...IndexerOption) *Indexer {
	x := &Indexer{
		embedder:   embedder,
		store:      store,
		collection: collection,
		chunker:    NewChunker(),
		batchSize:  defaultBatchSize,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// IndexFile chunks, embeds and stores a single markdown file under the
// given resource ID. It returns the number of chunks indexed.
func (x *Indexer) IndexFile(ctx context.Context, path, resourceID string) (int, error) {
	if err := x.store.EnsureCollection(ctx, x.collection, x.embedder.Size()); err != nil {
		return 0, fmt.Errorf("ensuring collection: %w", err)
	}
	return x.indexFile(ctx, path, resourceID)
}

// IndexDirectory indexes every file under dir that matches the
// doublestar pattern, e.g. "**/*.md". Each file becomes one resource
// whose ID is its slash-separated path without the extension. Files
// that fail are logged and skipped; the returned count covers the
// chunks that were indexed.
func (x *Indexer) IndexDirectory(ctx context.Context, dir, pattern string) (int, error) {
	matches, err := doublestar.Glob(os.DirFS(dir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return 0, fmt.Errorf("globbing %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return 0, nil
	}

	if err := x.store.EnsureCollection(ctx, x.collection, x.embedder.Size()); err != nil {
		return 0, fmt.Errorf("ensuring collection: %w", err)
	}

	total := 0
	failed := 0
	for _, match := range matches {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		resourceID := strings.TrimSuffix(match, filepath.Ext(match))
		count, err := x.indexFile(ctx, filepath.Join(dir, match), resourceID)
		if err != nil {
			failed++
			x.logger.Error("indexing file failed", "path", match, "error", err)
			continue
		}
		total += count
	}

	x.logger.Info("indexing completed",
		"files", len(matches),
		"chunks", total,
		"errors", failed)

	if failed > 0 {
		return total, fmt.Errorf("indexing completed with %d of %d files failed", failed, len(matches))
	}
	return total, nil
}

func (x *Indexer) indexFile(ctx context.Context, path, resourceID string) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading file: %w", err)
	}

	title, chunks := x.chunker.Chunk(content, filepath.Base(path))
	if len(chunks) == 0 {
		x.logger.Warn("no chunks generated", "path", path)
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	vectors, err := x.embedBatches(ctx, texts)
	if err != nil {
		return 0, err
	}

	points := make([]vector.Point, len(chunks))
	for i, chunk := range chunks {
		points[i] = vector.Point{
			ID:     uuid.New().String(),
			Vector: vectors[i],
			Payload: map[string]any{
				"content":           chunk.Text,
				"resource_id":       resourceID,
				"knowledge_base_id": x.knowledgeBaseID,
				"path":              filepath.ToSlash(path),
				"heading_path":      chunk.HeadingPath,
				"title":             title,
			},
		}
	}

	if err := x.store.Upsert(ctx, x.collection, points); err != nil {
		return 0, fmt.Errorf("upserting points: %w", err)
	}

	x.logger.Info("indexed file",
		"path", path,
		"resource_id", resourceID,
		"title", title,
		"chunks", len(chunks))

	return len(chunks), nil
}

// embedBatches embeds the texts in batches of batchSize, preserving
// input order.
func (x *Indexer) embedBatches(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += x.batchSize {
		end := min(start+x.batchSize, len(texts))
		batch, err := x.embedder.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embedding chunks %d-%d: %w", start, end-1, err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("embedding count mismatch: expected %d, got %d", end-start, len(batch))
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}
