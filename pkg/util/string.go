package util

import "strings"

// TruncateWithEllipsis shortens s to at most maxLen characters, replacing the
// tail with "..." when the original is longer. Lengths are counted in runes so
// a multi-byte character never splits mid-sequence.
func TruncateWithEllipsis(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// StripWrappingQuotes removes a single pair of quote characters that wrap the
// entire string, e.g. `"hello"` -> `hello`. Inner quotes are untouched.
func StripWrappingQuotes(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && (first == '"' || first == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// SplitTitleBody splits long-form content on the first line break into a title
// and a body. Content without a line break becomes title-only with an empty
// body.
func SplitTitleBody(content string) (title, body string) {
	parts := strings.SplitN(content, "\n", 2)
	title = strings.TrimSpace(parts[0])
	if len(parts) == 2 {
		body = strings.TrimSpace(parts[1])
	}
	return title, body
}

// RuneLen counts characters, not bytes, matching how platform length ceilings
// are enforced.
func RuneLen(s string) int {
	return len([]rune(s))
}
