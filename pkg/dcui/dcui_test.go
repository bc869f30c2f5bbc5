package dcui

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncRunes(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"carrot", 10, "carrot"},
		{"carrot", 6, "carrot"},
		{"carrot", 4, "car…"},
		{"🌱🌱🌱", 2, "🌱…"},
		{"abc", 1, "…"},
		{"abc", 0, ""},
	}
	for _, tt := range tests {
		if got := TruncRunes(tt.in, tt.n); got != tt.want {
			t.Errorf("TruncRunes(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestChunkLines(t *testing.T) {
	lines := make([]string, 50)
	for i := range lines {
		lines[i] = "• emoji_" + strings.Repeat("x", 60)
	}
	chunks := ChunkLines(lines, 1900)
	if len(chunks) < 2 {
		t.Fatalf("chunks = %d, want >= 2", len(chunks))
	}
	var rejoined []string
	for _, c := range chunks {
		if n := utf8.RuneCountInString(c); n > 1900 {
			t.Fatalf("chunk has %d runes", n)
		}
		rejoined = append(rejoined, strings.Split(c, "\n")...)
	}
	if len(rejoined) != len(lines) {
		t.Fatalf("lines lost: %d of %d", len(rejoined), len(lines))
	}
}

func TestChunkLinesEdges(t *testing.T) {
	if got := ChunkLines(nil, 10); len(got) != 0 {
		t.Fatalf("ChunkLines(nil) = %v", got)
	}
	got := ChunkLines([]string{"abcdefghijkl", "x"}, 5)
	if len(got) != 2 || got[0] != "abcd…" || got[1] != "x" {
		t.Fatalf("ChunkLines = %q", got)
	}
	got = ChunkLines([]string{"ab", "cd"}, 5)
	if len(got) != 1 || got[0] != "ab\ncd" {
		t.Fatalf("ChunkLines = %q", got)
	}
}

func TestMarkdownHelpers(t *testing.T) {
	if got := B("a_b"); got != `**a\_b**` {
		t.Fatalf("B = %q", got)
	}
	if ChannelID("<#123>") != "123" || ChannelID("456") != "456" {
		t.Fatal("ChannelID parse")
	}
	if Role("9") != "<@&9>" {
		t.Fatal("Role")
	}
}
