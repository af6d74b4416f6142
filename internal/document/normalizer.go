package document

import (
	"strings"
	"unicode"
)

// Normalize cleans raw extracted text for segmentation: every maximal run
// of whitespace (including newlines) collapses to a single space, ASCII
// and Latin-1 control characters (U+0000-U+001F, U+007F-U+009F) are
// removed, and the result is trimmed. Idempotent; empty input yields
// empty output.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(raw))

	lastSpace := false
	for _, r := range raw {
		if isControl(r) {
			continue
		}
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}

	return strings.TrimSpace(b.String())
}

// isControl reports whether r falls in the stripped control ranges.
// Whitespace controls like \n and \t are handled by the whitespace
// collapse before this check matters, so stripping here only affects
// non-whitespace controls.
func isControl(r rune) bool {
	if unicode.IsSpace(r) {
		return false
	}
	return (r >= 0x00 && r <= 0x1F) || (r >= 0x7F && r <= 0x9F)
}
