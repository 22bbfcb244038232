package safety

import (
	"strconv"
	"strings"
	"unicode"

	"healthadvisor/backend/internal/textnorm"
)

type tokenKind int

const (
	tokenWord tokenKind = iota
	tokenNumber
	tokenSlash
)

type token struct {
	kind  tokenKind
	text  string
	value float64
}

// tokenize splits accent-folded text into words, numbers and slashes. Other
// punctuation only separates tokens. Numbers accept one '.' or ',' decimal
// separator.
func tokenize(message string) []token {
	runes := []rune(textnorm.Fold(message))
	tokens := make([]token, 0, len(runes)/3)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case r == '/':
			tokens = append(tokens, token{kind: tokenSlash, text: "/"})
			i++
		case unicode.IsDigit(r):
			start := i
			seenSeparator := false
			for i < len(runes) {
				c := runes[i]
				if unicode.IsDigit(c) {
					i++
					continue
				}
				if (c == '.' || c == ',') && !seenSeparator && i+1 < len(runes) && unicode.IsDigit(runes[i+1]) {
					seenSeparator = true
					i++
					continue
				}
				break
			}
			text := strings.ReplaceAll(string(runes[start:i]), ",", ".")
			value, err := strconv.ParseFloat(text, 64)
			if err != nil {
				continue
			}
			tokens = append(tokens, token{kind: tokenNumber, text: text, value: value})
		case unicode.IsLetter(r):
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i])) {
				i++
			}
			tokens = append(tokens, token{kind: tokenWord, text: string(runes[start:i])})
		default:
			i++
		}
	}
	return tokens
}
