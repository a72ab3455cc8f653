// Package utils provides shared utilities for text, math, and logging.
package utils

import (
	"strings"
	"unicode/utf8"
)

// Truncate returns s cut to at most maxLen runes, with "..." appended if it was
// cut. Multi-byte characters are never split. If maxLen is 0 or negative, s is
// returned unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	n := 0
	for i := range s {
		if n == maxLen {
			return s[:i] + "..."
		}
		n++
	}
	return s
}

// OneLine collapses runs of whitespace, including newlines from feed markup,
// into single spaces.
func OneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
