package port

import (
	"context"

	"biorag/internal/domain"
)

// ChunkStore persists documents and their chunks. Reads may run concurrently;
// writes are assumed to come from a single ingesting writer.
type ChunkStore interface {
	// ReplaceDocument stores doc and replaces every chunk previously stored
	// for it with chunks.
	ReplaceDocument(ctx context.Context, doc domain.Document, chunks []domain.Chunk) error

	DeleteDocument(ctx context.Context, id string) error

	ListDocuments(ctx context.Context) ([]domain.Document, error)

	// AllChunksWithEmbeddings returns every searchable chunk whose condition
	// tag matches filter, in insertion order. A nil filter matches all.
	AllChunksWithEmbeddings(ctx context.Context, filter *domain.TagFilter) ([]domain.Chunk, error)

	Stats(ctx context.Context) (domain.Stats, error)

	Ping(ctx context.Context) error

	Close() error
}
