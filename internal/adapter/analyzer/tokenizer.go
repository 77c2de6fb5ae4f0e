package analyzer

import (
	"unicode"
	"unicode/utf8"

	"biorag/internal/port"
)

// WordTokenizer splits text into word, whitespace and punctuation tokens.
// Segmentation is lossless: joining the spans reproduces the input.
type WordTokenizer struct{}

// NewWordTokenizer creates a new WordTokenizer.
func NewWordTokenizer() *WordTokenizer {
	return &WordTokenizer{}
}

func (t *WordTokenizer) Name() string {
	return "word"
}

// Segment splits text into tokens. A run of letters, digits and underscores is
// one token, a run of whitespace is one token, any other rune is its own token.
func (t *WordTokenizer) Segment(text string) []port.Span {
	var spans []port.Span
	start := -1
	kind := runeOther

	flush := func(end int) {
		if start >= 0 {
			spans = append(spans, port.Span{Start: start, End: end})
			start = -1
		}
	}

	for i, r := range text {
		k := classify(r)
		if k == runeOther {
			flush(i)
			_, width := utf8.DecodeRuneInString(text[i:])
			spans = append(spans, port.Span{Start: i, End: i + width})
			continue
		}
		if start >= 0 && k != kind {
			flush(i)
		}
		if start < 0 {
			start = i
			kind = k
		}
	}
	flush(len(text))

	return spans
}

// CountTokens returns the number of tokens Segment would produce.
func (t *WordTokenizer) CountTokens(text string) int {
	return len(t.Segment(text))
}

type runeKind int

const (
	runeOther runeKind = iota
	runeWord
	runeSpace
)

func classify(r rune) runeKind {
	switch {
	case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
		return runeWord
	case unicode.IsSpace(r):
		return runeSpace
	default:
		return runeOther
	}
}
