package chat

import (
	"strings"
	"unicode/utf8"
)

const (
	// MaxMessageRunes caps a chat message.
	MaxMessageRunes = 10000
	// MaxDescriptionRunes caps an image description.
	MaxDescriptionRunes = 500
)

// Sanitize drops NUL bytes, truncates s to maxRunes runes and trims
// surrounding whitespace. Invalid UTF-8 sequences are replaced.
func Sanitize(s string, maxRunes int) string {
	s = strings.ToValidUTF8(s, "�")
	s = strings.ReplaceAll(s, "\x00", "")

	if maxRunes > 0 && utf8.RuneCountInString(s) > maxRunes {
		n := 0
		for i := range s {
			if n == maxRunes {
				s = s[:i]
				break
			}
			n++
		}
	}

	return strings.TrimSpace(s)
}
