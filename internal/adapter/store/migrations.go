package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"go.etcd.io/bbolt"

	"biorag/config"
)

// SchemaVersion is the layout this build writes. Version 2 added chunk and
// embedded counts to document records.
const SchemaVersion = 2

var (
	keySchemaVersion = []byte("schema_version")
	keyConfigHash    = []byte("config_hash")
)

// upgrades[v] converts a version v file to v+1 inside the caller's transaction.
var upgrades = map[int]func(tx *bbolt.Tx) error{
	0: func(*bbolt.Tx) error { return nil }, // new file, NewBoltStore made the buckets
	1: backfillDocumentCounts,
}

// Schema is what the meta bucket records about the file.
type Schema struct {
	Version    int
	ConfigHash string
}

func readSchema(tx *bbolt.Tx) (Schema, error) {
	var schema Schema
	meta := tx.Bucket(bucketMeta)
	if v := meta.Get(keySchemaVersion); v != nil {
		n, err := strconv.Atoi(string(v))
		if err != nil {
			return schema, fmt.Errorf("corrupt schema version %q: %w", v, err)
		}
		schema.Version = n
	}
	schema.ConfigHash = string(meta.Get(keyConfigHash))
	return schema, nil
}

func (s *BoltStore) Schema() (Schema, error) {
	var schema Schema
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		schema, err = readSchema(tx)
		return err
	})
	return schema, err
}

// configHash fingerprints the settings that shape stored chunks and vectors.
func configHash(cfg *config.Config) string {
	data, _ := json.Marshal([]any{
		cfg.Ingest.Tokenizer,
		cfg.Ingest.ChunkTokens,
		cfg.Ingest.ChunkOverlap,
		cfg.Ingest.MinChunkChars,
		cfg.Embedding.Provider,
		cfg.Embedding.Model,
	})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

// MigrationResult says what a file needs before cfg can write to it.
type MigrationResult struct {
	From, To       int
	NeedsMigration bool // convertible in place
	NeedsRebuild   bool // stored chunks are unusable and must be re-ingested
	Reason         string
}

func (s *BoltStore) CheckMigration(cfg *config.Config) (*MigrationResult, error) {
	schema, err := s.Schema()
	if err != nil {
		return nil, err
	}

	result := &MigrationResult{From: schema.Version, To: SchemaVersion}
	switch {
	case schema.Version > SchemaVersion:
		result.NeedsRebuild = true
		result.Reason = fmt.Sprintf("index written by a newer schema (v%d > v%d)", schema.Version, SchemaVersion)
	case schema.ConfigHash != "" && schema.ConfigHash != configHash(cfg):
		result.NeedsRebuild = true
		result.Reason = "chunking or embedding configuration changed"
	case schema.Version == 0:
		result.NeedsMigration = true
		result.Reason = "new index"
	case schema.Version < SchemaVersion:
		result.NeedsMigration = true
		result.Reason = fmt.Sprintf("index schema v%d upgrades to v%d", schema.Version, SchemaVersion)
	}
	return result, nil
}

// Migrate applies pending upgrades and records the schema version and the
// hash of cfg, all in one transaction.
func (s *BoltStore) Migrate(cfg *config.Config) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		schema, err := readSchema(tx)
		if err != nil {
			return err
		}
		for v := schema.Version; v < SchemaVersion; v++ {
			upgrade, ok := upgrades[v]
			if !ok {
				return fmt.Errorf("no upgrade from schema v%d", v)
			}
			if err := upgrade(tx); err != nil {
				return fmt.Errorf("upgrade from schema v%d: %w", v, err)
			}
		}

		meta := tx.Bucket(bucketMeta)
		if err := meta.Put(keySchemaVersion, []byte(strconv.Itoa(SchemaVersion))); err != nil {
			return err
		}
		return meta.Put(keyConfigHash, []byte(configHash(cfg)))
	})
}

// backfillDocumentCounts fills the chunk and embedded counts of every document
// record from the chunks it owns.
func backfillDocumentCounts(tx *bbolt.Tx) error {
	docs := tx.Bucket(bucketDocs)
	docChunks := tx.Bucket(bucketDocChunks)
	chunks := tx.Bucket(bucketChunks)

	updated := make(map[string][]byte)
	err := docs.ForEach(func(k, v []byte) error {
		var rec docRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			return fmt.Errorf("document %s: %w", k, err)
		}

		var seqs []uint64
		if data := docChunks.Get(k); data != nil {
			if err := json.Unmarshal(data, &seqs); err != nil {
				return fmt.Errorf("chunk list of %s: %w", k, err)
			}
		}

		rec.Chunks, rec.Embedded = 0, 0
		for _, seq := range seqs {
			data := chunks.Get(seqKey(seq))
			if data == nil {
				continue
			}
			var vec struct {
				V json.RawMessage `json:"v"`
			}
			if err := json.Unmarshal(data, &vec); err != nil {
				return fmt.Errorf("chunk %d of %s: %w", seq, k, err)
			}
			rec.Chunks++
			if len(vec.V) > 0 && string(vec.V) != "null" && string(vec.V) != "[]" {
				rec.Embedded++
			}
		}

		out, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		updated[string(k)] = out
		return nil
	})
	if err != nil {
		return err
	}

	for id, data := range updated {
		if err := docs.Put([]byte(id), data); err != nil {
			return err
		}
	}
	return nil
}

// Clear drops all documents and chunks for a rebuild. The meta bucket stays.
func (s *BoltStore) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketDocs, bucketChunks, bucketDocChunks} {
			if err := tx.DeleteBucket(name); err != nil && err != bbolt.ErrBucketNotFound {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
}
