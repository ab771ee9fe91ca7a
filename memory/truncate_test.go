package memory

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateLog_KeepsRunesWhole(t *testing.T) {
	// Each "é" is two bytes, so byte 50 falls inside a rune.
	s := "x" + strings.Repeat("é", 40)

	got := truncateLog(s, 50)
	if !utf8.ValidString(got) {
		t.Fatalf("truncateLog produced invalid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("Expected ellipsis, got %q", got)
	}
	if len(strings.TrimSuffix(got, "...")) > 50 {
		t.Errorf("Expected at most 50 bytes before the ellipsis, got %d", len(got)-3)
	}
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	got := truncate("日本語のメモ", 8)
	if !utf8.ValidString(got) {
		t.Fatalf("truncate produced invalid UTF-8: %q", got)
	}
	if got != "日..." {
		t.Errorf("Expected %q, got %q", "日...", got)
	}
}

func TestCutUTF8(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"héllo", 2, "h"},
		{"héllo", 3, "hé"},
		{"€", 1, ""},
	}
	for _, tt := range tests {
		if got := cutUTF8(tt.in, tt.n); got != tt.want {
			t.Errorf("cutUTF8(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
