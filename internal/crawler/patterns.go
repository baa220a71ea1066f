package crawler

import (
	"fmt"
	"regexp"
)

// CompilePatterns compiles URL or word patterns for full-string matching.
//
// Each pattern is wrapped as ^(?:pattern)$ so that "https://example.com/b"
// does not match "https://example.com/blog". A regexp without anchors in Go
// matches substrings, which is not what an ignore list means.
func CompilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("^(?:" + p + ")$")
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrInvalidPattern, p, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// MatchesAny reports whether s matches at least one pattern.
func MatchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
