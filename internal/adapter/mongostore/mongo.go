package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"biorag/internal/domain"
)

// Store keeps one MongoDB document per chunk, with the organism and condition
// tags lifted to top-level fields for indexing. Source files are tracked in a
// companion collection named <collection>_sources.
type Store struct {
	client  *mongo.Client
	chunks  *mongo.Collection
	sources *mongo.Collection
}

type chunkDoc struct {
	ID           primitive.ObjectID    `bson:"_id,omitempty"`
	ChunkID      string                `bson:"chunk_id"`
	DocumentID   string                `bson:"document_id"`
	ChunkIndex   int                   `bson:"chunk_index"`
	Content      string                `bson:"content"`
	StartToken   int                   `bson:"start_token"`
	EndToken     int                   `bson:"end_token"`
	TokenCount   int                   `bson:"token_count"`
	OrganismName string                `bson:"organism_name"`
	Condition    string                `bson:"condition"`
	Filename     string                `bson:"filename"`
	ProcessedAt  time.Time             `bson:"processed_at"`
	Metadata     domain.SourceMetadata `bson:"metadata"`
	Embedding    []float32             `bson:"embedding,omitempty"`
}

type sourceDoc struct {
	ID         string    `bson:"_id"`
	Path       string    `bson:"path"`
	ModTime    time.Time `bson:"mod_time"`
	SourceType string    `bson:"source_type"`
	Chunks     int       `bson:"chunks"`
	Embedded   int       `bson:"embedded"`
}

// Open connects to uri and verifies the connection with a ping.
func Open(ctx context.Context, uri, database, collection string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(database)
	return &Store{
		client:  client,
		chunks:  db.Collection(collection),
		sources: db.Collection(collection + "_sources"),
	}, nil
}

// EnsureIndexes creates the text index over organism, condition and content,
// plus the lookup indexes used by ingestion and the condition filter.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.chunks.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "organism_name", Value: "text"},
				{Key: "condition", Value: "text"},
				{Key: "content", Value: "text"},
			},
			Options: options.Index().SetName("organism_condition_content_text"),
		},
		{Keys: bson.D{{Key: "filename", Value: 1}}},
		{Keys: bson.D{{Key: "processed_at", Value: 1}}},
		{Keys: bson.D{{Key: "document_id", Value: 1}, {Key: "chunk_index", Value: 1}}},
		{Keys: bson.D{{Key: "condition", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// ReplaceDocument deletes the document's previous chunks and inserts the new
// ones in order. The two steps are not atomic; a single writer is assumed.
func (s *Store) ReplaceDocument(ctx context.Context, doc domain.Document, chunks []domain.Chunk) error {
	if _, err := s.chunks.DeleteMany(ctx, bson.M{"document_id": doc.ID}); err != nil {
		return fmt.Errorf("failed to delete old chunks: %w", err)
	}

	if len(chunks) > 0 {
		docs := make([]interface{}, 0, len(chunks))
		for _, c := range chunks {
			docs = append(docs, chunkDoc{
				ChunkID:      c.ID,
				DocumentID:   c.DocumentID,
				ChunkIndex:   c.Index,
				Content:      c.Content,
				StartToken:   c.StartToken,
				EndToken:     c.EndToken,
				TokenCount:   c.TokenCount,
				OrganismName: c.Source.OrganismName,
				Condition:    c.Source.Condition,
				Filename:     c.Source.Filename,
				ProcessedAt:  c.Source.ProcessedAt,
				Metadata:     c.Source,
				Embedding:    c.Embedding,
			})
		}
		if _, err := s.chunks.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
			return fmt.Errorf("failed to insert chunks: %w", err)
		}
	}

	_, err := s.sources.ReplaceOne(ctx, bson.M{"_id": doc.ID}, sourceDoc{
		ID:         doc.ID,
		Path:       doc.Path,
		ModTime:    doc.ModTime,
		SourceType: doc.SourceType,
		Chunks:     doc.Chunks,
		Embedded:   doc.Embedded,
	}, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to record source: %w", err)
	}
	return nil
}

func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.chunks.DeleteMany(ctx, bson.M{"document_id": id}); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	if _, err := s.sources.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}
	return nil
}

func (s *Store) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	cur, err := s.sources.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}

	var rows []sourceDoc
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode sources: %w", err)
	}

	docs := make([]domain.Document, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, domain.Document{
			ID:         r.ID,
			Path:       r.Path,
			ModTime:    r.ModTime,
			SourceType: r.SourceType,
			Chunks:     r.Chunks,
			Embedded:   r.Embedded,
		})
	}
	return docs, nil
}

// AllChunksWithEmbeddings filters on the condition tag server-side with a
// case-insensitive $regex and returns chunks in insertion (_id) order.
func (s *Store) AllChunksWithEmbeddings(ctx context.Context, filter *domain.TagFilter) ([]domain.Chunk, error) {
	query := bson.M{"embedding.0": bson.M{"$exists": true}}
	if filter != nil {
		query["condition"] = bson.M{"$regex": filter.Pattern(), "$options": "i"}
	}

	cur, err := s.chunks.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer cur.Close(ctx)

	var chunks []domain.Chunk
	for cur.Next(ctx) {
		var d chunkDoc
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("failed to decode chunk: %w", err)
		}
		chunks = append(chunks, domain.Chunk{
			ID:         d.ChunkID,
			DocumentID: d.DocumentID,
			Index:      d.ChunkIndex,
			Content:    d.Content,
			StartToken: d.StartToken,
			EndToken:   d.EndToken,
			TokenCount: d.TokenCount,
			Source:     d.Metadata,
			Embedding:  d.Embedding,
		})
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("chunk cursor failed: %w", err)
	}
	return chunks, nil
}

func (s *Store) Stats(ctx context.Context) (domain.Stats, error) {
	var stats domain.Stats

	docs, err := s.sources.CountDocuments(ctx, bson.M{})
	if err != nil {
		return stats, err
	}
	chunks, err := s.chunks.CountDocuments(ctx, bson.M{})
	if err != nil {
		return stats, err
	}
	embedded, err := s.chunks.CountDocuments(ctx, bson.M{"embedding.0": bson.M{"$exists": true}})
	if err != nil {
		return stats, err
	}

	stats.Documents = int(docs)
	stats.Chunks = int(chunks)
	stats.Embedded = int(embedded)
	return stats, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
