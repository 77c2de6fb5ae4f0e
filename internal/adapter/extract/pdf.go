package extract

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"biorag/internal/port"
)

const SourcePDF = "pdf"

// PDFExtractor reads the text layer and Info dictionary of a PDF file.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

func (e *PDFExtractor) Extract(path string) (out port.ExtractedText, err error) {
	// the pdf reader panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf %s: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return port.ExtractedText{}, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return port.ExtractedText{}, fmt.Errorf("failed to read pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return port.ExtractedText{}, fmt.Errorf("failed to read pdf buffer: %w", err)
	}

	info := r.Trailer().Key("Info")
	field := func(name string) string {
		return strings.TrimSpace(info.Key(name).Text())
	}

	return port.ExtractedText{
		Text:       buf.String(),
		SourceType: SourcePDF,
		Title:      field("Title"),
		Author:     field("Author"),
		Subject:    field("Subject"),
		Creator:    field("Creator"),
		Producer:   field("Producer"),
		PageCount:  r.NumPage(),
	}, nil
}
