package logutil

import (
	"strings"
	"unicode"
)

// maxCommandLogLen caps how much of a submitted command ends up in a log line.
const maxCommandLogLen = 256

// SanitizeForLog flattens host names, commands and other client-supplied
// strings before they are logged. Line breaks and tabs become spaces and the
// remaining control characters are dropped, so a value can never start a
// forged log line of its own.
func SanitizeForLog(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			b.WriteByte(' ')
		case unicode.IsControl(r):
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Command sanitizes a submitted command and truncates it for logging.
func Command(s string) string {
	s = SanitizeForLog(s)
	if len(s) <= maxCommandLogLen {
		return s
	}
	cut := maxCommandLogLen
	for cut > 0 && !utf8Start(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}

func utf8Start(b byte) bool {
	return b&0xC0 != 0x80
}
