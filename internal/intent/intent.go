package intent

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"healthadvisor/backend/internal/textnorm"
)

type Intent string

const (
	SimpleQA         Intent = "simple_qa"
	MealTip          Intent = "meal_tip"
	ReminderReason   Intent = "reminder_reason"
	SafetyEscalation Intent = "safety_escalation"
	CoachCheckin     Intent = "coach_checkin"
	ComplexCoaching  Intent = "complex_coaching"
)

// All lists the built-in intents in routing-table order.
var All = []Intent{SimpleQA, MealTip, ReminderReason, SafetyEscalation, CoachCheckin, ComplexCoaching}

var known = map[Intent]struct{}{
	SimpleQA:         {},
	MealTip:          {},
	ReminderReason:   {},
	SafetyEscalation: {},
	CoachCheckin:     {},
	ComplexCoaching:  {},
}

// Known reports whether the tag is one of the built-in intents.
func Known(tag Intent) bool {
	_, ok := known[tag]
	return ok
}

type keywordRule struct {
	intent   Intent
	words    []string
	prefixes []string
	// accented matches before folding, for words whose folded form is
	// ambiguous ("ăn" folds to the article "an" and the "an" of "an toàn").
	accented []string
	// pairs match a folded word only when the next folded word is listed.
	pairs map[string][]string
}

// Evaluated in order; the first rule with a matching token wins. Tokens are
// accent-folded, so "nước" and "nuoc" match the same entry.
var keywordRules = []keywordRule{
	{
		intent:   ReminderReason,
		words:    []string{"nuoc", "uong", "water", "drink", "drinking", "hydrate", "hydration"},
		prefixes: []string{"hydrat"},
	},
	{
		intent:   MealTip,
		words:    []string{"bua", "com", "mon", "meal", "food", "eat", "eating", "breakfast", "lunch", "dinner", "snack"},
		prefixes: []string{"carb"},
		accented: []string{"ăn"},
		pairs: map[string][]string{
			"an": {"gi", "sang", "trua", "toi", "vat", "kieng", "nhieu", "it", "duoc"},
		},
	},
}

// Resolve returns the explicit intent when present, otherwise applies the
// keyword heuristics over the message. It never fails.
func Resolve(explicit string, message string) Intent {
	if tag := strings.TrimSpace(explicit); tag != "" {
		return Intent(tag)
	}
	tokens := tokenize(message)
	raw := rawTokens(message)
	for _, rule := range keywordRules {
		if matchesAny(tokens, rule) || matchesAccented(raw, rule) {
			return rule.intent
		}
	}
	return SimpleQA
}

func tokenize(message string) []string {
	folded := textnorm.Fold(message)
	return strings.FieldsFunc(folded, func(r rune) bool {
		return !textnorm.IsWordRune(r)
	})
}

// rawTokens lower-cases and composes without folding accents.
func rawTokens(message string) []string {
	composed := strings.ToLower(norm.NFC.String(message))
	return strings.FieldsFunc(composed, func(r rune) bool {
		return !textnorm.IsWordRune(r)
	})
}

func matchesAccented(tokens []string, rule keywordRule) bool {
	for _, token := range tokens {
		for _, word := range rule.accented {
			if token == word {
				return true
			}
		}
	}
	return false
}

func matchesAny(tokens []string, rule keywordRule) bool {
	for i, token := range tokens {
		if i+1 < len(tokens) {
			for _, next := range rule.pairs[token] {
				if tokens[i+1] == next {
					return true
				}
			}
		}
		for _, word := range rule.words {
			if token == word {
				return true
			}
		}
		for _, prefix := range rule.prefixes {
			if strings.HasPrefix(token, prefix) {
				return true
			}
		}
	}
	return false
}
