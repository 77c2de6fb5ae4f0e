package port

// Span is a half-open byte range [Start, End) of one token in the source text.
type Span struct {
	Start int
	End   int
}

type Tokenizer interface {
	// Segment splits text into consecutive token spans. Spans are ordered,
	// non-overlapping, and together cover the whole text.
	Segment(text string) []Span

	CountTokens(text string) int

	Name() string
}
