// Package logutil keeps client-supplied strings safe to interpolate into
// log lines. Host identifiers and file paths come straight off the wire,
// so without scrubbing a client could forge log entries with embedded
// newlines.
package logutil

import "strings"

// Sanitize replaces newlines, carriage returns and tabs with spaces and
// drops any remaining control characters.
func Sanitize(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\t", " ")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= 32 {
			b.WriteRune(r)
		}
	}
	return b.String()
}
