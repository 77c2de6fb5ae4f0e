package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"biorag/internal/port"
)

const SourceText = "text"

// TextExtractor reads UTF-8 text files. The title is taken from the file name.
type TextExtractor struct{}

func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

func (e *TextExtractor) Extract(path string) (port.ExtractedText, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return port.ExtractedText{}, fmt.Errorf("failed to read file: %w", err)
	}
	if !utf8.Valid(data) {
		return port.ExtractedText{}, fmt.Errorf("%s is not valid UTF-8 text", filepath.Base(path))
	}

	return port.ExtractedText{
		Text:       string(data),
		SourceType: SourceText,
		Title:      strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
	}, nil
}
