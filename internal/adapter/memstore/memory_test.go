package memstore

import (
	"context"
	"testing"
	"time"

	"biorag/internal/domain"
)

func chunk(docID, id, condition string, embedding ...float32) domain.Chunk {
	return domain.Chunk{
		ID:         id,
		DocumentID: docID,
		Content:    "text " + id,
		Source:     domain.SourceMetadata{DocumentID: docID, Condition: condition},
		Embedding:  embedding,
	}
}

func TestMemoryStoreInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	s.ReplaceDocument(ctx, domain.Document{ID: "b"}, []domain.Chunk{
		chunk("b", "b0", "radiation", 1),
		chunk("b", "b1", "radiation"),
	})
	s.ReplaceDocument(ctx, domain.Document{ID: "a"}, []domain.Chunk{
		chunk("a", "a0", "microgravity", 1),
	})

	chunks, err := s.AllChunksWithEmbeddings(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 || chunks[0].ID != "b0" || chunks[1].ID != "a0" {
		t.Fatalf("unexpected chunks %v", chunks)
	}

	filtered, _ := s.AllChunksWithEmbeddings(ctx, domain.NewTagFilter("Micro"))
	if len(filtered) != 1 || filtered[0].ID != "a0" {
		t.Errorf("unexpected filtered chunks %v", filtered)
	}

	stats, _ := s.Stats(ctx)
	if stats.Documents != 2 || stats.Chunks != 3 || stats.Embedded != 2 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestMemoryStoreReplaceAndDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	doc := domain.Document{ID: "a", Path: "/a.txt", ModTime: time.Unix(10, 0)}
	s.ReplaceDocument(ctx, doc, []domain.Chunk{chunk("a", "old0", "", 1), chunk("a", "old1", "", 1)})
	s.ReplaceDocument(ctx, domain.Document{ID: "b"}, []domain.Chunk{chunk("b", "b0", "", 1)})
	s.ReplaceDocument(ctx, doc, []domain.Chunk{chunk("a", "new0", "", 1)})

	chunks, _ := s.AllChunksWithEmbeddings(ctx, nil)
	if len(chunks) != 2 || chunks[0].ID != "b0" || chunks[1].ID != "new0" {
		t.Fatalf("unexpected chunks after replace %v", chunks)
	}

	if err := s.DeleteDocument(ctx, "b"); err != nil {
		t.Fatal(err)
	}

	docs, _ := s.ListDocuments(ctx)
	if len(docs) != 1 || docs[0].ID != "a" {
		t.Errorf("unexpected documents %v", docs)
	}
	chunks, _ = s.AllChunksWithEmbeddings(ctx, nil)
	if len(chunks) != 1 || chunks[0].ID != "new0" {
		t.Errorf("unexpected chunks after delete %v", chunks)
	}
}

func TestMemoryStoreCopiesEmbeddings(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	emb := []float32{1, 2}
	s.ReplaceDocument(ctx, domain.Document{ID: "a"}, []domain.Chunk{chunk("a", "a0", "", emb...)})
	emb[0] = 99

	chunks, _ := s.AllChunksWithEmbeddings(ctx, nil)
	if chunks[0].Embedding[0] != 1 {
		t.Error("store should not alias caller embeddings")
	}
}
