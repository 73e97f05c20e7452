package conference

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// normalizeText приводит свободный текст к каноническому виду хранения:
// валидный UTF-8, NFC, без пробелов по краям.
func normalizeText(s string) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	return norm.NFC.String(strings.TrimSpace(s))
}
