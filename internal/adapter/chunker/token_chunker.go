package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"biorag/internal/domain"
	"biorag/internal/port"
)

// TokenChunker splits text into fixed-size token windows that overlap by a
// fixed number of tokens.
type TokenChunker struct {
	maxTokens int
	overlap   int
	minChars  int
	tokenizer port.Tokenizer
}

func NewTokenChunker(maxTokens, overlap, minChars int, tokenizer port.Tokenizer) (*TokenChunker, error) {
	if maxTokens <= 0 {
		return nil, fmt.Errorf("chunk tokens must be > 0, got %d", maxTokens)
	}
	if overlap < 0 || overlap >= maxTokens {
		return nil, fmt.Errorf("chunk overlap must be >= 0 and < %d, got %d", maxTokens, overlap)
	}
	if tokenizer == nil {
		return nil, fmt.Errorf("tokenizer is required")
	}
	return &TokenChunker{
		maxTokens: maxTokens,
		overlap:   overlap,
		minChars:  minChars,
		tokenizer: tokenizer,
	}, nil
}

// Chunk windows the tokens of text. Windows whose trimmed text is shorter than
// minChars runes are dropped without consuming an index, so emitted chunks are
// always numbered 0..n-1.
func (c *TokenChunker) Chunk(text string, meta domain.SourceMetadata) ([]domain.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	spans := c.tokenizer.Segment(text)
	if len(spans) == 0 {
		return nil, nil
	}

	step := c.maxTokens - c.overlap
	var chunks []domain.Chunk

	for start := 0; start < len(spans); start += step {
		end := start + c.maxTokens
		if end > len(spans) {
			end = len(spans)
		}

		content := decode(text, spans[start:end])
		if utf8.RuneCountInString(content) >= c.minChars {
			index := len(chunks)
			chunks = append(chunks, domain.Chunk{
				ID:         generateChunkID(meta.DocumentID, index),
				DocumentID: meta.DocumentID,
				Index:      index,
				Content:    content,
				StartToken: start,
				EndToken:   end - 1,
				TokenCount: end - start,
				Source:     meta,
			})
		}

		// text that fits one window yields one chunk
		if len(spans) <= c.maxTokens {
			break
		}
	}

	return chunks, nil
}

func decode(text string, spans []port.Span) string {
	s := text[spans[0].Start:spans[len(spans)-1].End]
	return strings.TrimSpace(strings.ToValidUTF8(s, ""))
}

var chunkNamespace = uuid.MustParse("6f1c3b7e-2a4d-5e8f-9b0a-1c2d3e4f5a6b")

func generateChunkID(docID string, index int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(fmt.Sprintf("%s:%d", docID, index))).String()
}
