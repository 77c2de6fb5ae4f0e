package analyzer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"

	"biorag/internal/port"
)

// DefaultEncoding is the BPE encoding used by the OpenAI embedding and chat
// models this project talks to.
const DefaultEncoding = "cl100k_base"

var setLoader sync.Once

// TiktokenTokenizer segments text with a tiktoken BPE encoding. The BPE ranks
// are compiled into the binary, so token counts are reproducible offline.
type TiktokenTokenizer struct {
	encoding string
	enc      *tiktoken.Tiktoken
}

// NewTiktokenTokenizer loads the named encoding.
func NewTiktokenTokenizer(encoding string) (*TiktokenTokenizer, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}

	setLoader.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})

	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load encoding %s: %w", encoding, err)
	}

	return &TiktokenTokenizer{encoding: encoding, enc: enc}, nil
}

func (t *TiktokenTokenizer) Name() string {
	return t.encoding
}

// Segment encodes text and maps every token back to its byte range. A token
// may cover part of a multi-byte rune; callers slicing on spans must tolerate
// invalid UTF-8 at the edges.
func (t *TiktokenTokenizer) Segment(text string) []port.Span {
	ids := t.enc.EncodeOrdinary(text)
	spans := make([]port.Span, 0, len(ids))

	offset := 0
	for _, id := range ids {
		width := len(t.enc.Decode([]int{id}))
		end := offset + width
		if end > len(text) {
			end = len(text)
		}
		spans = append(spans, port.Span{Start: offset, End: end})
		offset = end
	}

	return spans
}

// CountTokens returns the number of BPE tokens in text.
func (t *TiktokenTokenizer) CountTokens(text string) int {
	return len(t.enc.EncodeOrdinary(text))
}
