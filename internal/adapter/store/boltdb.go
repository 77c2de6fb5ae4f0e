package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"biorag/internal/domain"
)

var (
	bucketDocs      = []byte("docs")
	bucketChunks    = []byte("chunks")
	bucketDocChunks = []byte("doc_chunks")
	bucketMeta      = []byte("meta")
)

// BoltStore keeps documents and chunks in a single bbolt file. Chunks are keyed
// by the bucket sequence, so a cursor walks them in insertion order.
type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketDocs, bucketChunks, bucketDocChunks, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

type docRecord struct {
	Path       string `json:"path"`
	ModTime    int64  `json:"mod_time"`
	SourceType string `json:"source_type"`
	Chunks     int    `json:"chunks"`
	Embedded   int    `json:"embedded"`
}

type chunkRecord struct {
	ID         string                `json:"id"`
	DocID      string                `json:"doc_id"`
	Index      int                   `json:"index"`
	Content    string                `json:"content"`
	StartToken int                   `json:"start_token"`
	EndToken   int                   `json:"end_token"`
	TokenCount int                   `json:"token_count"`
	Source     domain.SourceMetadata `json:"source"`
	Embedding  []float32             `json:"v,omitempty"`
}

func toRecord(c domain.Chunk) chunkRecord {
	return chunkRecord{
		ID:         c.ID,
		DocID:      c.DocumentID,
		Index:      c.Index,
		Content:    c.Content,
		StartToken: c.StartToken,
		EndToken:   c.EndToken,
		TokenCount: c.TokenCount,
		Source:     c.Source,
		Embedding:  c.Embedding,
	}
}

func (r chunkRecord) toChunk() domain.Chunk {
	return domain.Chunk{
		ID:         r.ID,
		DocumentID: r.DocID,
		Index:      r.Index,
		Content:    r.Content,
		StartToken: r.StartToken,
		EndToken:   r.EndToken,
		TokenCount: r.TokenCount,
		Source:     r.Source,
		Embedding:  r.Embedding,
	}
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

// ReplaceDocument writes doc and its chunks in one transaction, dropping any
// chunks stored for the document before.
func (s *BoltStore) ReplaceDocument(ctx context.Context, doc domain.Document, chunks []domain.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := deleteDocChunks(tx, doc.ID); err != nil {
			return err
		}

		data, err := json.Marshal(docRecord{
			Path:       doc.Path,
			ModTime:    doc.ModTime.UnixNano(),
			SourceType: doc.SourceType,
			Chunks:     doc.Chunks,
			Embedded:   doc.Embedded,
		})
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketDocs).Put([]byte(doc.ID), data); err != nil {
			return err
		}

		chunkBucket := tx.Bucket(bucketChunks)
		seqs := make([]uint64, 0, len(chunks))
		for _, chunk := range chunks {
			seq, err := chunkBucket.NextSequence()
			if err != nil {
				return err
			}
			data, err := json.Marshal(toRecord(chunk))
			if err != nil {
				return err
			}
			if err := chunkBucket.Put(seqKey(seq), data); err != nil {
				return err
			}
			seqs = append(seqs, seq)
		}

		seqData, err := json.Marshal(seqs)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketDocChunks).Put([]byte(doc.ID), seqData)
	})
}

func deleteDocChunks(tx *bbolt.Tx, docID string) error {
	docChunks := tx.Bucket(bucketDocChunks)
	data := docChunks.Get([]byte(docID))
	if data == nil {
		return nil
	}

	var seqs []uint64
	if err := json.Unmarshal(data, &seqs); err != nil {
		return fmt.Errorf("corrupt chunk list for %s: %w", docID, err)
	}

	chunkBucket := tx.Bucket(bucketChunks)
	for _, seq := range seqs {
		if err := chunkBucket.Delete(seqKey(seq)); err != nil {
			return err
		}
	}
	return docChunks.Delete([]byte(docID))
}

func (s *BoltStore) DeleteDocument(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := deleteDocChunks(tx, id); err != nil {
			return err
		}
		return tx.Bucket(bucketDocs).Delete([]byte(id))
	})
}

func (s *BoltStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	var docs []domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocs).ForEach(func(k, v []byte) error {
			var rec docRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			docs = append(docs, domain.Document{
				ID:         string(k),
				Path:       rec.Path,
				ModTime:    time.Unix(0, rec.ModTime),
				SourceType: rec.SourceType,
				Chunks:     rec.Chunks,
				Embedded:   rec.Embedded,
			})
			return nil
		})
	})
	return docs, err
}

// AllChunksWithEmbeddings scans the chunk bucket in insertion order.
func (s *BoltStore) AllChunksWithEmbeddings(ctx context.Context, filter *domain.TagFilter) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketChunks).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var rec chunkRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("corrupt chunk record: %w", err)
			}
			if len(rec.Embedding) == 0 || !filter.Match(rec.Source.Condition) {
				continue
			}
			chunks = append(chunks, rec.toChunk())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

func (s *BoltStore) Stats(ctx context.Context) (domain.Stats, error) {
	var stats domain.Stats
	err := s.db.View(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketDocs).ForEach(func(k, v []byte) error {
			stats.Documents++
			return nil
		}); err != nil {
			return err
		}

		return tx.Bucket(bucketChunks).ForEach(func(k, v []byte) error {
			stats.Chunks++
			var rec struct {
				Embedding []float32 `json:"v"`
			}
			if err := json.Unmarshal(v, &rec); err == nil && len(rec.Embedding) > 0 {
				stats.Embedded++
			}
			return nil
		})
	})
	return stats, err
}

func (s *BoltStore) Ping(ctx context.Context) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketChunks) == nil {
			return fmt.Errorf("chunks bucket missing")
		}
		return nil
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
