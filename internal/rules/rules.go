// Package rules synthesises deterministic meal tips from macros and recent
// behaviour, and holds the canned replies used when generation degrades.
package rules

import (
	"strings"

	"healthadvisor/backend/internal/health"
	"healthadvisor/backend/internal/intent"
)

const (
	MaxSuggestions    = 2
	DefaultConclusion = "Bạn đang làm rất tốt, tiếp tục nhé!"
)

type Tip struct {
	Summary     string   `json:"summary"`
	Suggestions []string `json:"suggestions"`
	Conclusion  string   `json:"conclusion"`
}

// Rule is one independent (predicate, suggestion) pair.
type Rule struct {
	Name       string
	Applies    func(meal health.Meal, features health.Features) bool
	Suggestion string
}

// MealRules are evaluated in order; earlier rules win the limited slots.
var MealRules = []Rule{
	{
		Name: "carb_high",
		Applies: func(meal health.Meal, f health.Features) bool {
			return meal.CarbG >= 45 || (f.HasYesterday && f.CarbGTotalYesterday >= 180)
		},
		Suggestion: "Giảm tinh bột nhanh (cơm trắng, bánh mì, nước ngọt) và thêm rau xanh giàu chất xơ.",
	},
	{
		Name: "protein_low",
		Applies: func(meal health.Meal, f health.Features) bool {
			return meal.ProteinG < 15 || (f.HasYesterday && f.ProteinGTotalYesterday < 50)
		},
		Suggestion: "Bổ sung đạm nạc như cá, ức gà, trứng hoặc đậu phụ.",
	},
	{
		Name: "fat_high",
		Applies: func(meal health.Meal, _ health.Features) bool {
			return meal.FatG > 20
		},
		Suggestion: "Thay món chiên, nhiều mỡ bằng chất béo tốt từ cá, các loại hạt hoặc dầu ô liu.",
	},
	{
		Name: "kcal_high",
		Applies: func(meal health.Meal, _ health.Features) bool {
			return meal.Kcal > 600
		},
		Suggestion: "Chia bữa này thành hai bữa nhỏ hơn để đường huyết ổn định hơn.",
	},
	{
		Name: "bg_high",
		Applies: func(_ health.Meal, f health.Features) bool {
			return f.HasLatestBG && f.LatestBG > 180
		},
		Suggestion: "Đường huyết gần nhất đang cao: chọn món ít tinh bột và đi bộ nhẹ 10-15 phút sau ăn.",
	},
	{
		Name: "fried_frequent",
		Applies: func(_ health.Meal, f health.Features) bool {
			return f.FriedCount7d > 3
		},
		Suggestion: "Tuần này bạn ăn đồ chiên khá nhiều, thử món hấp hoặc luộc thay thế.",
	},
}

var genericSuggestions = []string{
	"Giữ khẩu phần cân đối: nửa đĩa rau, một phần tư đạm, một phần tư tinh bột.",
	"Uống đủ nước và ăn chậm để cảm nhận no tốt hơn.",
}

// Evaluate returns the suggestions of the first MaxSuggestions rules that fire,
// or the generic pair when none do.
func Evaluate(meal health.Meal, features health.Features) []string {
	out := make([]string, 0, MaxSuggestions)
	for _, rule := range MealRules {
		if len(out) == MaxSuggestions {
			break
		}
		if rule.Applies(meal, features) {
			out = append(out, rule.Suggestion)
		}
	}
	if len(out) == 0 {
		out = append(out, genericSuggestions...)
	}
	return out
}

func MealTip(meal health.Meal, features health.Features) *Tip {
	return &Tip{
		Summary:     summaryLine(meal),
		Suggestions: Evaluate(meal, features),
		Conclusion:  DefaultConclusion,
	}
}

func summaryLine(meal health.Meal) string {
	items := make([]string, 0, len(meal.Items))
	for _, item := range meal.Items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) > 0 {
		return "Bữa ăn của bạn gồm: " + strings.Join(items, ", ") + "."
	}
	if desc := strings.TrimSpace(meal.Description); desc != "" {
		return "Bữa ăn của bạn: " + desc + "."
	}
	return "Bữa ăn gần nhất của bạn."
}

// Format flattens the tip into the reply text.
func (t *Tip) Format() string {
	if t == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(t.Summary)
	for _, suggestion := range t.Suggestions {
		b.WriteString("\n- ")
		b.WriteString(suggestion)
	}
	if t.Conclusion != "" {
		b.WriteString("\n")
		b.WriteString(t.Conclusion)
	}
	return b.String()
}

var fallbacks = map[intent.Intent]string{
	intent.SimpleQA:        "Mình chưa thể trả lời chi tiết lúc này. Hãy theo dõi chỉ số đều đặn và hỏi bác sĩ khi cần.",
	intent.MealTip:         "Ưu tiên rau xanh, đạm nạc và giảm tinh bột nhanh trong bữa tới nhé.",
	intent.ReminderReason:  "Uống đủ nước giúp cơ thể điều hòa đường huyết và huyết áp tốt hơn. Hãy uống một ly nước ngay bây giờ nhé.",
	intent.CoachCheckin:    "Hôm nay bạn thế nào? Hãy ghi lại chỉ số và bữa ăn để mình theo dõi cùng bạn.",
	intent.ComplexCoaching: "Mình cần thêm thời gian để phân tích. Trong lúc chờ, hãy duy trì ăn uống cân đối và vận động nhẹ mỗi ngày.",
}

const defaultFallback = "Mình đang bận một chút. Hãy duy trì thói quen lành mạnh và thử hỏi lại sau nhé."

// Fallback returns the canned reply for an intent. It never returns "".
func Fallback(tag intent.Intent) string {
	if text, ok := fallbacks[tag]; ok {
		return text
	}
	return defaultFallback
}
