package memory

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// FormatResults renders retrieved memories for prompt injection or terminal
// output. maxLength caps the bytes of text shown per memory, cut at a rune
// boundary; 0 means no cap.
func FormatResults(results []Result, maxLength int) string {
	if len(results) == 0 {
		return ""
	}

	var parts []string
	parts = append(parts, "=== RELEVANT MEMORIES ===")
	for i, r := range results {
		text := r.Text
		if maxLength > 0 {
			text = truncate(text, maxLength)
		}
		parts = append(parts, fmt.Sprintf("%d. [%s] (score %.3f) %s", i+1, r.ID, r.Score, text))
	}
	return strings.Join(parts, "\n")
}

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return "..."
	}
	return cutUTF8(s, maxLen-3) + "..."
}

// cutUTF8 returns at most n bytes of s without splitting a rune.
func cutUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
