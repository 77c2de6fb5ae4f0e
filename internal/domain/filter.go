package domain

import (
	"regexp"
	"strings"
)

// TagFilter matches a chunk tag case-insensitively. The pattern is used as a
// regular expression; a pattern that does not compile is matched literally.
type TagFilter struct {
	raw     string
	pattern string
	re      *regexp.Regexp
}

// NewTagFilter returns nil for a blank pattern, meaning "no filter".
func NewTagFilter(pattern string) *TagFilter {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil
	}

	effective := pattern
	re, err := regexp.Compile("(?i)" + effective)
	if err != nil {
		effective = regexp.QuoteMeta(pattern)
		re = regexp.MustCompile("(?i)" + effective)
	}

	return &TagFilter{raw: pattern, pattern: effective, re: re}
}

// Pattern returns the effective regular expression without the
// case-insensitivity flag, for stores that filter server-side.
func (f *TagFilter) Pattern() string {
	if f == nil {
		return ""
	}
	return f.pattern
}

func (f *TagFilter) String() string {
	if f == nil {
		return ""
	}
	return f.raw
}

// Match reports whether tag satisfies the filter. A nil filter matches all.
func (f *TagFilter) Match(tag string) bool {
	if f == nil {
		return true
	}
	return f.re.MatchString(tag)
}
