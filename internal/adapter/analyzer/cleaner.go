package analyzer

import (
	"regexp"
	"strings"
)

var (
	whitespaceRun  = regexp.MustCompile(`\s+`)
	pageOfPattern  = regexp.MustCompile(`(?i)page \d+ of \d+`)
	disallowedRune = regexp.MustCompile(`[^\p{L}\p{N}_\s.,;:!?\-()\[\]{}"'&%@#$/\\]`)
	doubleSpace    = regexp.MustCompile(` {2,}`)
)

// CleanText normalizes extracted document text: whitespace is collapsed to
// single spaces, "Page N of M" footers and characters outside the word and
// common punctuation set are removed.
func CleanText(text string) string {
	text = whitespaceRun.ReplaceAllString(text, " ")
	text = pageOfPattern.ReplaceAllString(text, "")
	text = disallowedRune.ReplaceAllString(text, "")
	text = doubleSpace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
