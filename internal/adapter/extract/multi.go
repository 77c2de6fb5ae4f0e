package extract

import (
	"fmt"
	"path/filepath"
	"strings"

	"biorag/internal/port"
)

// MultiExtractor picks an extractor by lower-cased file extension.
type MultiExtractor struct {
	byExt map[string]port.TextExtractor
}

// NewMultiExtractor registers the PDF extractor for .pdf and the text
// extractor for .txt, .md and .text.
func NewMultiExtractor() *MultiExtractor {
	text := NewTextExtractor()
	return &MultiExtractor{
		byExt: map[string]port.TextExtractor{
			".pdf":  NewPDFExtractor(),
			".txt":  text,
			".md":   text,
			".text": text,
		},
	}
}

// Register adds or replaces the extractor for ext (with leading dot).
func (m *MultiExtractor) Register(ext string, e port.TextExtractor) {
	m.byExt[strings.ToLower(ext)] = e
}

func (m *MultiExtractor) Extract(path string) (port.ExtractedText, error) {
	ext := strings.ToLower(filepath.Ext(path))
	e, ok := m.byExt[ext]
	if !ok {
		return port.ExtractedText{}, fmt.Errorf("unsupported file type %q", ext)
	}
	return e.Extract(path)
}
