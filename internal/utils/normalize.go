package utils

import (
	"strings"
	"unicode/utf8"
)

// Normalize lower-cases s, trims it and collapses inner whitespace runs to one space.
// Every text that goes into or queries an index passes through here.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	fields := strings.Fields(strings.ToLower(s))
	return strings.Join(fields, " ")
}

// Prefixes returns every non-empty prefix of s cut on rune boundaries,
// shortest first. "abc" -> ["a", "ab", "abc"].
func Prefixes(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, utf8.RuneCountInString(s))
	for i := range s {
		if i == 0 {
			continue
		}
		out = append(out, s[:i])
	}
	return append(out, s)
}
