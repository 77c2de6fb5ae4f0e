package memstore

import (
	"context"
	"sort"
	"sync"

	"biorag/internal/domain"
)

// MemoryStore is an in-process chunk store. Chunks are kept in a slice so
// scans return them in insertion order.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[string]domain.Document
	chunks []domain.Chunk
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]domain.Document),
	}
}

func (s *MemoryStore) ReplaceDocument(ctx context.Context, doc domain.Document, chunks []domain.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeChunks(doc.ID)
	s.docs[doc.ID] = doc
	for _, c := range chunks {
		c.Embedding = append([]float32(nil), c.Embedding...)
		s.chunks = append(s.chunks, c)
	}
	return nil
}

func (s *MemoryStore) removeChunks(docID string) {
	kept := s.chunks[:0]
	for _, c := range s.chunks {
		if c.DocumentID != docID {
			kept = append(kept, c)
		}
	}
	for i := len(kept); i < len(s.chunks); i++ {
		s.chunks[i] = domain.Chunk{}
	}
	s.chunks = kept
}

func (s *MemoryStore) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeChunks(id)
	delete(s.docs, id)
	return nil
}

func (s *MemoryStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]domain.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].ID < docs[j].ID
	})
	return docs, nil
}

func (s *MemoryStore) AllChunksWithEmbeddings(ctx context.Context, filter *domain.TagFilter) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Chunk
	for _, c := range s.chunks {
		if c.HasEmbedding() && filter.Match(c.Source.Condition) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *MemoryStore) Stats(ctx context.Context) (domain.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := domain.Stats{
		Documents: len(s.docs),
		Chunks:    len(s.chunks),
	}
	for _, c := range s.chunks {
		if c.HasEmbedding() {
			stats.Embedded++
		}
	}
	return stats, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
