package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.etcd.io/bbolt"

	"biorag/config"
	"biorag/internal/domain"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testChunk(docID string, index int, condition string, embedding []float32) domain.Chunk {
	return domain.Chunk{
		ID:         docID + "-" + string(rune('0'+index)),
		DocumentID: docID,
		Index:      index,
		Content:    "chunk content",
		StartToken: index * 10,
		EndToken:   index*10 + 9,
		TokenCount: 10,
		Source: domain.SourceMetadata{
			DocumentID:   docID,
			Filename:     docID + ".pdf",
			OrganismName: "Arabidopsis thaliana",
			Condition:    condition,
		},
		Embedding: embedding,
	}
}

func TestBoltStoreReplaceAndScan(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	docA := domain.Document{ID: "a", Path: "/data/a.pdf", ModTime: time.Unix(100, 5), SourceType: "pdf", Chunks: 3, Embedded: 2}
	docB := domain.Document{ID: "b", Path: "/data/b.txt", ModTime: time.Unix(200, 0), SourceType: "text"}

	if err := s.ReplaceDocument(ctx, docA, []domain.Chunk{
		testChunk("a", 0, "microgravity", []float32{1, 0}),
		testChunk("a", 1, "microgravity", nil),
		testChunk("a", 2, "radiation", []float32{0, 1}),
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.ReplaceDocument(ctx, docB, []domain.Chunk{
		testChunk("b", 0, "microgravity", []float32{0.5, 0.5}),
	}); err != nil {
		t.Fatal(err)
	}

	chunks, err := s.AllChunksWithEmbeddings(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}

	wantIDs := []string{"a-0", "a-2", "b-0"}
	if len(chunks) != len(wantIDs) {
		t.Fatalf("expected %d chunks, got %d", len(wantIDs), len(chunks))
	}
	for i, c := range chunks {
		if c.ID != wantIDs[i] {
			t.Errorf("position %d: expected %s, got %s", i, wantIDs[i], c.ID)
		}
	}

	first := chunks[0]
	if first.Source.OrganismName != "Arabidopsis thaliana" || first.EndToken != 9 || first.Embedding[0] != 1 {
		t.Errorf("chunk not round-tripped: %+v", first)
	}

	filtered, err := s.AllChunksWithEmbeddings(ctx, domain.NewTagFilter("MICRO"))
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered) != 2 || filtered[0].ID != "a-0" || filtered[1].ID != "b-0" {
		t.Errorf("unexpected filtered chunks: %d", len(filtered))
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Documents != 2 || stats.Chunks != 4 || stats.Embedded != 3 {
		t.Errorf("unexpected stats %+v", stats)
	}

	docs, err := s.ListDocuments(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if !docs[0].ModTime.Equal(docA.ModTime) || docs[0].SourceType != "pdf" ||
		docs[0].Chunks != 3 || docs[0].Embedded != 2 || docs[0].Complete() {
		t.Errorf("document not round-tripped: %+v", docs[0])
	}
}

func TestBoltStoreReplaceDropsOldChunks(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	doc := domain.Document{ID: "a", Path: "/data/a.pdf", ModTime: time.Unix(1, 0)}
	if err := s.ReplaceDocument(ctx, doc, []domain.Chunk{
		testChunk("a", 0, "", []float32{1}),
		testChunk("a", 1, "", []float32{1}),
	}); err != nil {
		t.Fatal(err)
	}

	if err := s.ReplaceDocument(ctx, doc, []domain.Chunk{
		testChunk("a", 0, "", []float32{2}),
	}); err != nil {
		t.Fatal(err)
	}

	chunks, err := s.AllChunksWithEmbeddings(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 || chunks[0].Embedding[0] != 2 {
		t.Errorf("expected only the replacement chunk, got %d chunks", len(chunks))
	}
}

func TestBoltStoreDeleteDocument(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	doc := domain.Document{ID: "a", Path: "/data/a.pdf", ModTime: time.Unix(1, 0)}
	if err := s.ReplaceDocument(ctx, doc, []domain.Chunk{testChunk("a", 0, "", []float32{1})}); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteDocument(ctx, "a"); err != nil {
		t.Fatal(err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Documents != 0 || stats.Chunks != 0 {
		t.Errorf("expected empty store, got %+v", stats)
	}

	if err := s.DeleteDocument(ctx, "missing"); err != nil {
		t.Errorf("deleting a missing document should be a no-op, got %v", err)
	}
}

func TestBoltStorePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "persist.db")

	s, err := NewBoltStore(path)
	if err != nil {
		t.Fatal(err)
	}
	doc := domain.Document{ID: "a", Path: "/data/a.pdf", ModTime: time.Unix(1, 0)}
	if err := s.ReplaceDocument(ctx, doc, []domain.Chunk{testChunk("a", 0, "", []float32{1})}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = NewBoltStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.Ping(ctx); err != nil {
		t.Fatal(err)
	}
	chunks, err := s.AllChunksWithEmbeddings(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Errorf("expected 1 chunk after reopen, got %d", len(chunks))
	}
}

func TestBoltStoreMigration(t *testing.T) {
	s := newTestStore(t)
	cfg := config.DefaultConfig()

	result, err := s.CheckMigration(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !result.NeedsMigration || result.NeedsRebuild || result.From != 0 || result.To != SchemaVersion {
		t.Fatalf("expected fresh store to need migration only, got %+v", result)
	}

	if err := s.Migrate(cfg); err != nil {
		t.Fatal(err)
	}

	result, err = s.CheckMigration(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if result.NeedsMigration || result.NeedsRebuild {
		t.Errorf("expected up-to-date store, got %+v", result)
	}

	changed := config.DefaultConfig()
	changed.Ingest.ChunkOverlap = 100

	result, err = s.CheckMigration(changed)
	if err != nil {
		t.Fatal(err)
	}
	if !result.NeedsRebuild || result.Reason == "" {
		t.Errorf("expected rebuild after chunking change, got %+v", result)
	}
}

func TestBoltStoreUpgradeBackfillsDocumentCounts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	cfg := config.DefaultConfig()

	// a version 1 file has no counts on its document records
	doc := domain.Document{ID: "a", Path: "/data/a.pdf", ModTime: time.Unix(1, 0)}
	if err := s.ReplaceDocument(ctx, doc, []domain.Chunk{
		testChunk("a", 0, "radiation", []float32{1, 0}),
		testChunk("a", 1, "radiation", nil),
		testChunk("a", 2, "radiation", []float32{0, 1}),
	}); err != nil {
		t.Fatal(err)
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if err := meta.Put(keySchemaVersion, []byte("1")); err != nil {
			return err
		}
		return meta.Put(keyConfigHash, []byte(configHash(cfg)))
	})
	if err != nil {
		t.Fatal(err)
	}

	result, err := s.CheckMigration(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !result.NeedsMigration || result.NeedsRebuild || result.From != 1 {
		t.Fatalf("expected in-place upgrade from v1, got %+v", result)
	}

	if err := s.Migrate(cfg); err != nil {
		t.Fatal(err)
	}

	docs, err := s.ListDocuments(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].Chunks != 3 || docs[0].Embedded != 2 {
		t.Fatalf("counts not backfilled: %+v", docs)
	}
	if !docs[0].ModTime.Equal(doc.ModTime) || docs[0].Path != doc.Path {
		t.Errorf("upgrade changed other fields: %+v", docs[0])
	}

	schema, err := s.Schema()
	if err != nil {
		t.Fatal(err)
	}
	if schema.Version != SchemaVersion {
		t.Errorf("expected schema v%d, got v%d", SchemaVersion, schema.Version)
	}
}

func TestBoltStoreNewerSchemaNeedsRebuild(t *testing.T) {
	s := newTestStore(t)
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMeta).Put(keySchemaVersion, []byte("99"))
	})
	if err != nil {
		t.Fatal(err)
	}

	result, err := s.CheckMigration(config.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if !result.NeedsRebuild {
		t.Errorf("expected rebuild for a newer schema, got %+v", result)
	}
}

func TestBoltStoreClear(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	cfg := config.DefaultConfig()

	if err := s.Migrate(cfg); err != nil {
		t.Fatal(err)
	}
	doc := domain.Document{ID: "a", Path: "/data/a.pdf", ModTime: time.Unix(1, 0)}
	if err := s.ReplaceDocument(ctx, doc, []domain.Chunk{testChunk("a", 0, "", []float32{1})}); err != nil {
		t.Fatal(err)
	}

	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Documents != 0 || stats.Chunks != 0 {
		t.Errorf("expected empty store after clear, got %+v", stats)
	}

	schema, err := s.Schema()
	if err != nil {
		t.Fatal(err)
	}
	if schema.Version != SchemaVersion {
		t.Errorf("schema should survive clear, got version %d", schema.Version)
	}
}
