package domain

import "time"

type Document struct {
	ID         string
	Path       string
	ModTime    time.Time
	SourceType string
	Chunks     int
	Embedded   int
}

// Complete reports whether every chunk of the document has an embedding.
func (d Document) Complete() bool {
	return d.Embedded >= d.Chunks
}

// SourceMetadata is the provenance of a document. Every chunk derived from the
// document carries an identical copy.
type SourceMetadata struct {
	DocumentID      string    `json:"document_id" bson:"document_id"`
	Filename        string    `json:"filename" bson:"filename"`
	FilePath        string    `json:"file_path" bson:"file_path"`
	FileSize        int64     `json:"file_size" bson:"file_size"`
	SourceType      string    `json:"source_type" bson:"source_type"`
	ProcessedAt     time.Time `json:"processed_at" bson:"processed_at"`
	Title           string    `json:"title,omitempty" bson:"title,omitempty"`
	Author          string    `json:"author,omitempty" bson:"author,omitempty"`
	Subject         string    `json:"subject,omitempty" bson:"subject,omitempty"`
	Creator         string    `json:"creator,omitempty" bson:"creator,omitempty"`
	Producer        string    `json:"producer,omitempty" bson:"producer,omitempty"`
	PageCount       int       `json:"page_count,omitempty" bson:"page_count,omitempty"`
	OrganismName    string    `json:"organism_name" bson:"organism_name"`
	Condition       string    `json:"condition" bson:"condition"`
	TotalTextLength int       `json:"total_text_length" bson:"total_text_length"`
	TotalTokens     int       `json:"total_tokens" bson:"total_tokens"`
}

// Chunk is a unit of retrievable content. StartToken and EndToken are both
// inclusive offsets into the tokenized document text.
type Chunk struct {
	ID         string
	DocumentID string
	Index      int
	Content    string
	StartToken int
	EndToken   int
	TokenCount int
	Source     SourceMetadata
	Embedding  []float32
}

// HasEmbedding reports whether the chunk is searchable.
func (c Chunk) HasEmbedding() bool {
	return len(c.Embedding) > 0
}

type RankedMatch struct {
	Chunk Chunk
	Score float64
}

type Stats struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
	Embedded  int `json:"embedded"`
}
