// Package qc enforces the output invariants on every reply: no forbidden
// claims and at most MaxRunes code points.
package qc

import (
	"sort"
	"strings"
	"unicode"

	"healthadvisor/backend/internal/textnorm"
)

const (
	MaxRunes = 800
	ellipsis = '…'
	// Cuts below this share of MaxRunes fall back to a hard cut.
	softCutRatio = 0.8
	maxPasses    = 4
)

// Term is a forbidden phrase and the wording that replaces it.
type Term struct {
	Phrase      string
	Replacement string
}

var DefaultTerms = []Term{
	{Phrase: "chữa khỏi hoàn toàn", Replacement: "hỗ trợ kiểm soát tốt"},
	{Phrase: "chữa khỏi", Replacement: "hỗ trợ kiểm soát"},
	{Phrase: "khỏi hẳn", Replacement: "cải thiện"},
	{Phrase: "đặc trị", Replacement: "hỗ trợ"},
	{Phrase: "thần dược", Replacement: "thực phẩm hỗ trợ"},
	{Phrase: "đảm bảo 100%", Replacement: "có thể giúp"},
	{Phrase: "cam kết hiệu quả", Replacement: "có thể hữu ích"},
	{Phrase: "ngưng thuốc", Replacement: "trao đổi với bác sĩ về thuốc"},
	{Phrase: "bỏ thuốc", Replacement: "trao đổi với bác sĩ về thuốc"},
	{Phrase: "guaranteed", Replacement: "may help"},
	{Phrase: "cure", Replacement: "help manage"},
	{Phrase: "cures", Replacement: "helps manage"},
	{Phrase: "miracle", Replacement: "helpful"},
}

type Result struct {
	Text      string
	Found     []string
	Truncated bool
}

type Sanitizer struct {
	terms []foldedTerm
	max   int
}

type foldedTerm struct {
	Term
	folded []rune
}

func New(terms []Term, maxRunes int) *Sanitizer {
	if maxRunes <= 0 {
		maxRunes = MaxRunes
	}
	folded := make([]foldedTerm, 0, len(terms))
	for _, term := range terms {
		key := []rune(textnorm.Fold(term.Phrase))
		if len(key) == 0 {
			continue
		}
		folded = append(folded, foldedTerm{Term: term, folded: key})
	}
	// Longest phrase first so "chữa khỏi hoàn toàn" wins over "chữa khỏi".
	sort.SliceStable(folded, func(i, j int) bool {
		return len(folded[i].folded) > len(folded[j].folded)
	})
	return &Sanitizer{terms: folded, max: maxRunes}
}

var defaultSanitizer = New(DefaultTerms, MaxRunes)

// Sanitize runs the default sanitizer.
func Sanitize(text string) Result {
	return defaultSanitizer.Sanitize(text)
}

// Sanitize repeats the term filter and the length cap until the text is stable.
func (s *Sanitizer) Sanitize(text string) Result {
	result := Result{Text: text}
	seen := map[string]struct{}{}
	for pass := 0; pass < maxPasses; pass++ {
		filtered, found := s.Filter(result.Text)
		for _, phrase := range found {
			if _, ok := seen[phrase]; !ok {
				seen[phrase] = struct{}{}
				result.Found = append(result.Found, phrase)
			}
		}
		capped, truncated := s.Truncate(filtered)
		if truncated {
			result.Truncated = true
		}
		if capped == result.Text {
			break
		}
		result.Text = capped
	}
	return result
}

// Filter replaces forbidden phrases, matched case- and accent-insensitively on
// word boundaries. It returns the phrases found.
func (s *Sanitizer) Filter(text string) (string, []string) {
	source := []rune(text)
	folded := make([]rune, 0, len(source))
	origin := make([]int, 0, len(source))
	for i, r := range source {
		if f := textnorm.FoldRune(r); f != 0 {
			folded = append(folded, f)
			origin = append(origin, i)
		}
	}

	var (
		out     strings.Builder
		found   []string
		copied  int
		matched = map[string]struct{}{}
	)
	for i := 0; i < len(folded); {
		term, ok := s.matchAt(folded, i)
		if !ok {
			i++
			continue
		}
		start := origin[i]
		end := len(source)
		if next := i + len(term.folded); next < len(origin) {
			end = origin[next]
		}
		out.WriteString(string(source[copied:start]))
		out.WriteString(term.Replacement)
		copied = end
		if _, dup := matched[term.Phrase]; !dup {
			matched[term.Phrase] = struct{}{}
			found = append(found, term.Phrase)
		}
		i += len(term.folded)
	}
	if len(found) == 0 {
		return text, nil
	}
	out.WriteString(string(source[copied:]))
	return out.String(), found
}

func (s *Sanitizer) matchAt(folded []rune, i int) (foldedTerm, bool) {
	if i > 0 && textnorm.IsWordRune(folded[i-1]) {
		return foldedTerm{}, false
	}
	for _, term := range s.terms {
		end := i + len(term.folded)
		if end > len(folded) {
			continue
		}
		if string(folded[i:end]) != string(term.folded) {
			continue
		}
		if end < len(folded) && textnorm.IsWordRune(folded[end]) && textnorm.IsWordRune(term.folded[len(term.folded)-1]) {
			continue
		}
		return term, true
	}
	return foldedTerm{}, false
}

// Truncate caps text at the rune limit. It prefers the last '.' after 80% of
// the cap, then the last whitespace (plus an ellipsis), then a hard cut (plus
// an ellipsis). The result never exceeds the cap.
func (s *Sanitizer) Truncate(text string) (string, bool) {
	runes := []rune(text)
	if len(runes) <= s.max {
		return text, false
	}
	floor := int(float64(s.max) * softCutRatio)

	for i := s.max - 1; i >= floor; i-- {
		if runes[i] == '.' {
			return string(runes[:i+1]), true
		}
	}
	limit := s.max - 1
	for i := limit; i >= floor; i-- {
		if unicode.IsSpace(runes[i]) {
			trimmed := strings.TrimRightFunc(string(runes[:i]), unicode.IsSpace)
			return trimmed + string(ellipsis), true
		}
	}
	return string(runes[:limit]) + string(ellipsis), true
}
