// Package strings holds text helpers for terminal output.
package strings

import (
	"strings"
)

// UserAgentMaxLen is the width of the client column in session tables.
const UserAgentMaxLen = 40

// PromptNameMaxLen bounds the user name shown in the console prompt.
const PromptNameMaxLen = 24

// minTruncateLen leaves room for one character plus "...".
const minTruncateLen = 4

// Truncate collapses whitespace to single spaces and shortens s to at most
// maxLen runes, ending in "..." when cut.
func Truncate(s string, maxLen int) string {
	if maxLen < minTruncateLen {
		maxLen = minTruncateLen
	}
	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}

// TruncateMiddle shortens s to at most maxLen runes by replacing its middle
// with "...", keeping more of the start than of the end.
func TruncateMiddle(s string, maxLen int) string {
	if maxLen < minTruncateLen {
		maxLen = minTruncateLen
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	available := maxLen - 3
	head := (available * 3) / 5
	tail := available - head
	return string(runes[:head]) + "..." + string(runes[len(runes)-tail:])
}
