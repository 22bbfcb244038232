// Package textnorm folds text for case- and accent-insensitive matching.
//
// Folding lowercases, decomposes (NFD), strips combining marks and maps the
// Vietnamese letter đ to d, which has no canonical decomposition.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var letterReplacer = strings.NewReplacer("đ", "d", "Đ", "d")

// Fold returns the lower-cased, accent-free form of s.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(letterReplacer.Replace(folded))
}

// FoldRune folds a single rune. Combining marks fold to 0 so callers can skip
// them while keeping a one-to-one map back to the source text.
func FoldRune(r rune) rune {
	if unicode.Is(unicode.Mn, r) {
		return 0
	}
	if r == 'đ' || r == 'Đ' {
		return 'd'
	}
	if r < 0x80 {
		return unicode.ToLower(r)
	}
	for _, base := range norm.NFD.String(string(r)) {
		if !unicode.Is(unicode.Mn, base) {
			return unicode.ToLower(base)
		}
	}
	return unicode.ToLower(r)
}

// IsWordRune reports whether r can be part of a word for boundary checks.
func IsWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}
