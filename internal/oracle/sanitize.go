package oracle

import (
	"strings"
	"unicode"
)

// Sanitize strips characters that break structured decoding of model output. C0 and C1
// control characters and other non-printable runes are removed; tab, CR and LF are folded
// to a space so a newline inside a JSON string cannot invalidate it. Surrounding Markdown
// code fences are trimmed.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			b.WriteByte(' ')
		case r < 0x20 || (r >= 0x7f && r <= 0x9f):
		case !unicode.IsPrint(r) && !unicode.IsSpace(r):
		default:
			b.WriteRune(r)
		}
	}
	return trimFences(b.String())
}

func trimFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
