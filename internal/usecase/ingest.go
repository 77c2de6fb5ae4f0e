package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"biorag/internal/adapter/analyzer"
	"biorag/internal/domain"
	"biorag/internal/port"
)

// File statuses reported in a FileResult.
const (
	FileIngested = "ingested"
	FileSkipped  = "skipped"
	FileFailed   = "failed"
	FileDeleted  = "deleted"
)

// documentNamespace scopes document ids derived from file paths.
var documentNamespace = uuid.MustParse("0b7e4a52-8d2e-4c6b-9a4f-3f1d2c5e7a90")

// ProgressFunc is called after each file is handled.
type ProgressFunc func(done, total int, path string)

// IngestObserver receives per-file ingestion counts.
type IngestObserver interface {
	ObserveIngest(status string, chunks, embedded int)
}

// IngestOptions configure embedding during ingestion.
type IngestOptions struct {
	BatchSize    int
	EmbedTimeout time.Duration
}

// FileResult is the outcome for one source file.
type FileResult struct {
	Path         string `json:"path"`
	DocumentID   string `json:"document_id,omitempty"`
	Status       string `json:"status"`
	Error        string `json:"error,omitempty"`
	Chunks       int    `json:"chunks"`
	Embedded     int    `json:"embedded"`
	OrganismName string `json:"organism_name,omitempty"`
	Condition    string `json:"condition,omitempty"`
}

// IngestSummary totals one ingestion run.
type IngestSummary struct {
	Root           string        `json:"root"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration_ns"`
	Files          int           `json:"files"`
	Succeeded      int           `json:"succeeded"`
	Failed         int           `json:"failed"`
	Skipped        int           `json:"skipped"`
	Deleted        int           `json:"deleted"`
	ChunksCreated  int           `json:"chunks_created"`
	ChunksEmbedded int           `json:"chunks_embedded"`
	Results        []FileResult  `json:"results"`
}

// IngestUseCase loads source files into the chunk store.
type IngestUseCase struct {
	store     port.ChunkStore
	walker    port.FileWalker
	extractor port.TextExtractor
	chunker   port.Chunker
	tokenizer port.Tokenizer
	embedder  port.Embedder
	tagger    *analyzer.TagInferrer
	opts      IngestOptions
	observer  IngestObserver
	logger    *log.Logger
	now       func() time.Time
}

func NewIngestUseCase(
	store port.ChunkStore,
	walker port.FileWalker,
	extractor port.TextExtractor,
	chunker port.Chunker,
	tokenizer port.Tokenizer,
	embedder port.Embedder,
	opts IngestOptions,
	logger *log.Logger,
) *IngestUseCase {
	if logger == nil {
		logger = log.New(log.Writer(), "[INGEST] ", log.LstdFlags)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	return &IngestUseCase{
		store:     store,
		walker:    walker,
		extractor: extractor,
		chunker:   chunker,
		tokenizer: tokenizer,
		embedder:  embedder,
		tagger:    analyzer.NewTagInferrer(),
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

func (u *IngestUseCase) SetObserver(o IngestObserver) {
	u.observer = o
}

// Ingest walks root and stores every new or modified file. Files that are
// not newer than their stored document are skipped unless some of that
// document's chunks are still unembedded, and documents whose file is gone are
// deleted. Per-file failures are recorded in the summary; only
// walk, listing and cancellation errors abort the run.
func (u *IngestUseCase) Ingest(ctx context.Context, root string, progress ProgressFunc) (*IngestSummary, error) {
	summary := &IngestSummary{Root: root, StartedAt: u.now()}
	defer func() {
		summary.Duration = u.now().Sub(summary.StartedAt)
	}()

	files, err := u.walker.Walk(root)
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	existingDocs, err := u.store.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list existing documents: %w", err)
	}
	existing := make(map[string]domain.Document, len(existingDocs))
	for _, doc := range existingDocs {
		existing[doc.Path] = doc
	}

	seen := make(map[string]bool, len(files))
	summary.Files = len(files)

	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		path, err := filepath.Abs(file.Path)
		if err != nil {
			path = file.Path
		}
		seen[path] = true

		var result FileResult
		if doc, ok := existing[path]; ok && doc.Complete() && !doc.ModTime.Before(time.Unix(0, file.ModTime)) {
			result = FileResult{Path: path, DocumentID: doc.ID, Status: FileSkipped}
		} else {
			result = u.ingestFile(ctx, path, file)
		}

		u.record(summary, result)
		if progress != nil {
			progress(i+1, len(files), path)
		}
	}

	for path, doc := range existing {
		if seen[path] {
			continue
		}
		result := FileResult{Path: path, DocumentID: doc.ID, Status: FileDeleted}
		if err := u.store.DeleteDocument(ctx, doc.ID); err != nil {
			result.Status = FileFailed
			result.Error = fmt.Sprintf("failed to delete: %v", err)
		}
		u.record(summary, result)
	}

	u.logger.Printf("ingested %d files from %s: %d succeeded, %d skipped, %d failed, %d deleted, %d/%d chunks embedded",
		summary.Files, root, summary.Succeeded, summary.Skipped, summary.Failed, summary.Deleted,
		summary.ChunksEmbedded, summary.ChunksCreated)

	return summary, nil
}

func (u *IngestUseCase) record(summary *IngestSummary, r FileResult) {
	switch r.Status {
	case FileIngested:
		summary.Succeeded++
	case FileSkipped:
		summary.Skipped++
	case FileDeleted:
		summary.Deleted++
	default:
		summary.Failed++
	}
	summary.ChunksCreated += r.Chunks
	summary.ChunksEmbedded += r.Embedded
	summary.Results = append(summary.Results, r)

	if u.observer != nil {
		u.observer.ObserveIngest(r.Status, r.Chunks, r.Embedded)
	}
}

func (u *IngestUseCase) ingestFile(ctx context.Context, path string, file port.FileInfo) FileResult {
	docID := DocumentID(path)
	result := FileResult{Path: path, DocumentID: docID}

	fail := func(format string, args ...any) FileResult {
		result.Status = FileFailed
		result.Error = fmt.Sprintf(format, args...)
		u.logger.Printf("%s: %s", path, result.Error)
		return result
	}

	extracted, err := u.extractor.Extract(path)
	if err != nil {
		return fail("extract: %v", err)
	}

	text := analyzer.CleanText(extracted.Text)
	if strings.TrimSpace(text) == "" {
		return fail("no text extracted")
	}

	tags := u.tagger.Infer(text)
	result.OrganismName = tags.OrganismName
	result.Condition = tags.Condition

	meta := domain.SourceMetadata{
		DocumentID:      docID,
		Filename:        filepath.Base(path),
		FilePath:        path,
		FileSize:        file.Size,
		SourceType:      extracted.SourceType,
		ProcessedAt:     u.now().UTC(),
		Title:           extracted.Title,
		Author:          extracted.Author,
		Subject:         extracted.Subject,
		Creator:         extracted.Creator,
		Producer:        extracted.Producer,
		PageCount:       extracted.PageCount,
		OrganismName:    tags.OrganismName,
		Condition:       tags.Condition,
		TotalTextLength: utf8.RuneCountInString(text),
		TotalTokens:     u.tokenizer.CountTokens(text),
	}

	chunks, err := u.chunker.Chunk(text, meta)
	if err != nil {
		return fail("chunk: %v", err)
	}

	embedded, err := u.embedChunks(ctx, chunks)
	if err != nil {
		return fail("embed: %v", err)
	}

	doc := domain.Document{
		ID:         docID,
		Path:       path,
		ModTime:    time.Unix(0, file.ModTime),
		SourceType: extracted.SourceType,
		Chunks:     len(chunks),
		Embedded:   embedded,
	}
	if err := u.store.ReplaceDocument(ctx, doc, chunks); err != nil {
		return fail("store: %v", err)
	}

	result.Status = FileIngested
	result.Chunks = len(chunks)
	result.Embedded = embedded
	return result
}

// embedChunks fills chunk embeddings in batches. A failed batch is retried one
// chunk at a time; chunks that still fail keep a nil embedding and are stored
// unsearchable. Only cancellation is returned as an error.
func (u *IngestUseCase) embedChunks(ctx context.Context, chunks []domain.Chunk) (int, error) {
	embedded := 0
	for start := 0; start < len(chunks); start += u.opts.BatchSize {
		end := start + u.opts.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		vectors, err := u.embed(ctx, contents(batch))
		if err == nil {
			for i := range batch {
				batch[i].Embedding = vectors[i]
			}
			embedded += len(batch)
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return embedded, ctxErr
		}
		u.logger.Printf("batch of %d chunks failed, retrying one by one: %v", len(batch), err)

		for i := range batch {
			vectors, err := u.embed(ctx, []string{batch[i].Content})
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return embedded, ctxErr
				}
				u.logger.Printf("chunk %d of %s stored without embedding: %v", batch[i].Index, batch[i].DocumentID, err)
				continue
			}
			batch[i].Embedding = vectors[0]
			embedded++
		}
	}
	return embedded, nil
}

func (u *IngestUseCase) embed(ctx context.Context, texts []string) ([][]float32, error) {
	callCtx, cancel := withTimeout(ctx, u.opts.EmbedTimeout)
	defer cancel()

	vectors, err := u.embedder.Embed(callCtx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(vectors))
	}
	for _, v := range vectors {
		if len(v) == 0 {
			return nil, errors.New("empty embedding")
		}
	}
	return vectors, nil
}

func contents(chunks []domain.Chunk) []string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	return texts
}

// DocumentID derives the stable document id for an absolute file path.
func DocumentID(path string) string {
	return uuid.NewSHA1(documentNamespace, []byte(path)).String()
}
