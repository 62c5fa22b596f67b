package document

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// asciiFold decomposes (NFKD) and removes combining marks, so "é" becomes "e".
var asciiFold = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))

// Transliterate folds s to ASCII for the core PDF fonts. This step loses information:
// diacritics are stripped and any rune without an ASCII decomposition (CJK, emoji, most
// symbols) is dropped. dropped counts the removed runes so callers can surface the loss.
func Transliterate(s string) (out string, dropped int) {
	folded, _, err := transform.String(asciiFold, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if r < unicode.MaxASCII && (r >= 0x20 || r == '\n' || r == '\t') {
			b.WriteRune(r)
			continue
		}
		if r == '\r' {
			continue
		}
		dropped++
	}
	return b.String(), dropped
}
