package advisor

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"healthadvisor/backend/internal/health"
	"healthadvisor/backend/internal/intent"
)

const maxPromptMessageRunes = 1000

var baseSystemLines = []string{
	"Bạn là trợ lý sức khỏe cho người đang theo dõi đường huyết và huyết áp.",
	"Luôn trả lời bằng tiếng Việt, giọng thân thiện và thực tế.",
	"Không chẩn đoán, không kê đơn, không hứa hẹn kết quả điều trị.",
	"Không khuyên người dùng tự ý thay đổi hoặc ngừng dùng thuốc.",
	"Nếu chỉ số có dấu hiệu nguy hiểm, khuyên người dùng liên hệ bác sĩ ngay.",
	"Chỉ dùng số liệu trong phần ngữ cảnh; nếu thiếu dữ liệu thì nói ngắn gọn là chưa có.",
}

var intentDirectives = map[intent.Intent]string{
	intent.SimpleQA:        "Trả lời câu hỏi trong tối đa 3 câu ngắn.",
	intent.ReminderReason:  "Giải thích ngắn gọn vì sao nên uống đủ nước hôm nay, tối đa 2 câu.",
	intent.CoachCheckin:    "Hỏi thăm ngắn, nhắc một mục tiêu nhỏ cho hôm nay, tối đa 3 câu.",
	intent.ComplexCoaching: "Đưa ra tối đa 3 gợi ý cụ thể, mỗi gợi ý một dòng bắt đầu bằng \"- \".",
}

const defaultDirective = "Trả lời ngắn gọn trong tối đa 4 câu."

const outputFormatLine = "Định dạng: văn bản thuần, không Markdown, không HTML, tổng cộng dưới 600 ký tự."

func buildSystemPrompt(tag intent.Intent) string {
	directive, ok := intentDirectives[tag]
	if !ok {
		directive = defaultDirective
	}
	lines := make([]string, 0, len(baseSystemLines)+2)
	lines = append(lines, baseSystemLines...)
	lines = append(lines, directive, outputFormatLine)
	return strings.Join(lines, "\n")
}

// contextBlock renders the compressed snapshot as short labelled lines.
func contextBlock(c health.Context) string {
	if c.Empty() {
		return "Ngữ cảnh: chưa có số liệu 7 ngày gần đây."
	}
	lines := []string{"Ngữ cảnh 7 ngày gần đây:"}
	if c.Glucose != nil {
		lines = append(lines, summaryLine("Đường huyết (mg/dL)", *c.Glucose))
	}
	if c.BloodPressure != nil {
		bp := c.BloodPressure
		lines = append(lines, fmt.Sprintf(
			"- Huyết áp (mmHg): gần nhất %s/%s, trung bình %s/%s, xu hướng %s",
			num(bp.Systolic.Latest), num(bp.Diastolic.Latest),
			num(bp.Systolic.Avg7d), num(bp.Diastolic.Avg7d),
			bp.Trend,
		))
	}
	if c.Weight != nil {
		lines = append(lines, summaryLine("Cân nặng (kg)", *c.Weight))
	}
	if c.Water != nil {
		lines = append(lines, summaryLine("Nước uống (ml/ngày)", *c.Water))
	}
	if c.LastMeal != nil {
		meal := strings.TrimSpace(c.LastMeal.Description)
		if len(c.LastMeal.Items) > 0 {
			meal = strings.Join(c.LastMeal.Items, ", ")
		}
		if meal != "" {
			lines = append(lines, "- Bữa ăn gần nhất: "+meal)
		}
	}
	return strings.Join(lines, "\n")
}

func summaryLine(label string, s health.Summary) string {
	return fmt.Sprintf("- %s: gần nhất %s, trung bình %s, xu hướng %s", label, num(s.Latest), num(s.Avg7d), s.Trend)
}

// num renders a value with at most one decimal.
func num(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
}

func buildUserPrompt(contextText, message string) string {
	message = strings.TrimSpace(message)
	if runes := []rune(message); len(runes) > maxPromptMessageRunes {
		message = string(runes[:maxPromptMessageRunes])
	}
	if message == "" {
		message = "(không có câu hỏi cụ thể)"
	}
	return contextText + "\n\nTin nhắn của người dùng:\n" + message
}
