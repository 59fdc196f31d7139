package normalize

import (
	"strings"
	"unicode/utf8"
)

// Sanitize drops what must never reach a Postgres text column or a sheet cell:
// NUL, ASCII controls other than tab and line breaks, DEL, C1 controls U+0080..U+009F
// and invalid UTF-8 bytes. Clean input is returned unchanged without allocating
func Sanitize(s string) string {
	if s == "" {
		return s
	}
	if utf8.ValidString(s) && strings.IndexFunc(s, unwanted) < 0 {
		return s
	}
	return strings.Map(func(r rune) rune {
		if unwanted(r) {
			return -1
		}
		return r
	}, strings.ToValidUTF8(s, ""))
}

func unwanted(r rune) bool {
	switch {
	case r == '\n', r == '\r', r == '\t':
		return false
	case r < 0x20, r == 0x7F: // ASCII controls, DEL
		return true
	case r >= 0x80 && r <= 0x9F: // C1
		return true
	}
	return false
}
