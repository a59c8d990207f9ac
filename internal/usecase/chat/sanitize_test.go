package chat

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		maxRunes int
		want     string
	}{
		{"plain", "halo", 10, "halo"},
		{"trims", "  halo \n", 10, "halo"},
		{"strips NUL", "ha\x00lo", 10, "halo"},
		{"truncates runes", "abcdef", 3, "abc"},
		{"multibyte truncation", "héllo wörld", 7, "héllo w"},
		{"emoji kept whole", "😅😅😅", 2, "😅😅"},
		{"whitespace only", " \t\n", 10, ""},
		{"no cap", "abcdef", 0, "abcdef"},
		{"invalid utf8 replaced", "a\xffb", 10, "a�b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in, tt.maxRunes))
		})
	}
}

func TestSanitize_MessageCap(t *testing.T) {
	got := Sanitize(strings.Repeat("é", MaxMessageRunes+50), MaxMessageRunes)
	assert.Equal(t, MaxMessageRunes, utf8.RuneCountInString(got))
	assert.True(t, utf8.ValidString(got))
}
