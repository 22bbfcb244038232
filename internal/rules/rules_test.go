package rules

import (
	"strings"
	"testing"

	"healthadvisor/backend/internal/health"
	"healthadvisor/backend/internal/intent"
)

func suggestionOf(t *testing.T, name string) string {
	t.Helper()
	for _, rule := range MealRules {
		if rule.Name == name {
			return rule.Suggestion
		}
	}
	t.Fatalf("rule %s not found", name)
	return ""
}

func balancedMeal() health.Meal {
	return health.Meal{Items: []string{"cá hấp", "rau luộc"}, CarbG: 30, ProteinG: 25, FatG: 10, Kcal: 450}
}

func TestEachRuleFiresInIsolation(t *testing.T) {
	cases := []struct {
		name     string
		meal     func(m *health.Meal)
		features health.Features
	}{
		{name: "carb_high", meal: func(m *health.Meal) { m.CarbG = 45 }},
		{name: "carb_high", features: health.Features{HasYesterday: true, CarbGTotalYesterday: 180, ProteinGTotalYesterday: 60}},
		{name: "protein_low", meal: func(m *health.Meal) { m.ProteinG = 14.9 }},
		{name: "protein_low", features: health.Features{HasYesterday: true, CarbGTotalYesterday: 100, ProteinGTotalYesterday: 49}},
		{name: "fat_high", meal: func(m *health.Meal) { m.FatG = 20.5 }},
		{name: "kcal_high", meal: func(m *health.Meal) { m.Kcal = 601 }},
		{name: "bg_high", features: health.Features{HasLatestBG: true, LatestBG: 181}},
		{name: "fried_frequent", features: health.Features{FriedCount7d: 4}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			meal := balancedMeal()
			if tc.meal != nil {
				tc.meal(&meal)
			}
			got := Evaluate(meal, tc.features)
			if len(got) != 1 || got[0] != suggestionOf(t, tc.name) {
				t.Fatalf("expected only %s to fire, got %v", tc.name, got)
			}
		})
	}
}

func TestRuleBoundariesDoNotFire(t *testing.T) {
	meal := balancedMeal()
	meal.CarbG = 44.9
	meal.ProteinG = 15
	meal.FatG = 20
	meal.Kcal = 600
	features := health.Features{
		HasYesterday:           true,
		CarbGTotalYesterday:    179,
		ProteinGTotalYesterday: 50,
		FriedCount7d:           3,
		HasLatestBG:            true,
		LatestBG:               180,
	}
	got := Evaluate(meal, features)
	if len(got) != 2 || got[0] != genericSuggestions[0] || got[1] != genericSuggestions[1] {
		t.Fatalf("expected generic fallback suggestions, got %v", got)
	}
}

func TestMissingYesterdayDoesNotTriggerProteinRule(t *testing.T) {
	got := Evaluate(balancedMeal(), health.Features{})
	if got[0] != genericSuggestions[0] {
		t.Fatalf("expected zero yesterday totals to be ignored without history, got %v", got)
	}
}

func TestMealTipKeepsFirstTwoInRuleOrder(t *testing.T) {
	meal := health.Meal{Items: []string{"cơm trắng", "gà rán"}, CarbG: 65, ProteinG: 8, FatG: 25, Kcal: 520}
	tip := MealTip(meal, health.Features{HasLatestBG: true, LatestBG: 120})
	if len(tip.Suggestions) != 2 {
		t.Fatalf("expected two suggestions, got %d", len(tip.Suggestions))
	}
	if tip.Suggestions[0] != suggestionOf(t, "carb_high") || tip.Suggestions[1] != suggestionOf(t, "protein_low") {
		t.Fatalf("unexpected suggestion order: %v", tip.Suggestions)
	}
	text := tip.Format()
	if !strings.Contains(text, "Giảm tinh bột") || !strings.Contains(text, "Bổ sung đạm") {
		t.Fatalf("expected carb and protein advice in %q", text)
	}
	if !strings.HasPrefix(text, "Bữa ăn của bạn gồm: cơm trắng, gà rán.") {
		t.Fatalf("expected summary to list items, got %q", text)
	}
	if !strings.HasSuffix(text, DefaultConclusion) {
		t.Fatalf("expected default conclusion, got %q", text)
	}
}

func TestSummaryFallsBackToDescription(t *testing.T) {
	tip := MealTip(health.Meal{Description: "phở bò", CarbG: 50, ProteinG: 20}, health.Features{})
	if tip.Summary != "Bữa ăn của bạn: phở bò." {
		t.Fatalf("unexpected summary %q", tip.Summary)
	}
	if got := MealTip(health.Meal{}, health.Features{}).Summary; got == "" {
		t.Fatalf("expected a summary for an empty meal")
	}
}

func TestFallbackAlwaysReturnsText(t *testing.T) {
	for _, tag := range []intent.Intent{intent.SimpleQA, intent.MealTip, intent.ReminderReason, intent.CoachCheckin, intent.ComplexCoaching, "unknown"} {
		if strings.TrimSpace(Fallback(tag)) == "" {
			t.Fatalf("expected fallback text for %s", tag)
		}
	}
	if Fallback("unknown") != defaultFallback {
		t.Fatalf("expected default fallback for unknown intents")
	}
}
