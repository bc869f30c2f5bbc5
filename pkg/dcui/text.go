package dcui

import (
	"strings"
	"unicode/utf8"
)

// TruncRunes returns s truncated to at most n runes.
// It appends an ellipsis "…" when truncated.
func TruncRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	count := 0
	for i := range s {
		if count == n-1 {
			return s[:i] + "…"
		}
		count++
	}
	return s
}

// ChunkLines packs lines, in order, into newline-joined chunks of at most
// limit runes each. A single line longer than limit is truncated.
func ChunkLines(lines []string, limit int) []string {
	if limit <= 0 {
		limit = DefaultChunk
	}
	var (
		out  []string
		cur  strings.Builder
		size int
	)
	for _, line := range lines {
		line = TruncRunes(line, limit)
		n := utf8.RuneCountInString(line)
		if size > 0 && size+1+n > limit {
			out = append(out, cur.String())
			cur.Reset()
			size = 0
		}
		if size > 0 {
			cur.WriteByte('\n')
			size++
		}
		cur.WriteString(line)
		size += n
	}
	if size > 0 {
		out = append(out, cur.String())
	}
	return out
}
