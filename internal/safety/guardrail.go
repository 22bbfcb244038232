// Package safety detects dangerous glucose and blood-pressure values in a
// user's message or latest metrics and produces the fixed escalation reply.
package safety

import (
	"fmt"
	"math"
	"strconv"

	"healthadvisor/backend/internal/health"
)

type Kind string

const (
	KindGlucose       Kind = "bg"
	KindBloodPressure Kind = "bp"
)

const (
	SourceMessage = "message"
	SourceMetrics = "latest_metric"
)

type Verdict struct {
	Escalate bool   `json:"escalate"`
	Reason   string `json:"reason,omitempty"`
	Kind     Kind   `json:"kind,omitempty"`
	Source   string `json:"source,omitempty"`
	Text     string `json:"text,omitempty"`
}

// Thresholds are inclusive for blood pressure (>=) and exclusive for glucose
// (< low, > high), in mg/dL and mmHg.
type Thresholds struct {
	GlucoseLow      float64
	GlucoseHigh     float64
	SystolicCrisis  float64
	DiastolicCrisis float64
}

var DefaultThresholds = Thresholds{
	GlucoseLow:      70,
	GlucoseHigh:     300,
	SystolicCrisis:  180,
	DiastolicCrisis: 120,
}

type Guardrail struct {
	thresholds Thresholds
}

func New(thresholds Thresholds) *Guardrail {
	return &Guardrail{thresholds: thresholds}
}

func NewDefault() *Guardrail {
	return New(DefaultThresholds)
}

// Evaluate checks glucose then blood pressure. For each metric a number in the
// message takes priority over the stored latest value.
func (g *Guardrail) Evaluate(message string, latest health.Context) Verdict {
	if value, source, ok := g.glucoseValue(message, latest); ok {
		if verdict, dangerous := g.checkGlucose(value, source); dangerous {
			return verdict
		}
	}
	if reading, source, ok := g.bloodPressureValue(message, latest); ok {
		if verdict, dangerous := g.checkBloodPressure(reading, source); dangerous {
			return verdict
		}
	}
	return Verdict{Escalate: false}
}

func (g *Guardrail) GlucoseDangerous(value float64) bool {
	return value < g.thresholds.GlucoseLow || value > g.thresholds.GlucoseHigh
}

func (g *Guardrail) BloodPressureDangerous(r BloodPressureReading) bool {
	return r.Systolic >= g.thresholds.SystolicCrisis || r.Diastolic >= g.thresholds.DiastolicCrisis
}

func (g *Guardrail) glucoseValue(message string, latest health.Context) (float64, string, bool) {
	if value, ok := ParseGlucose(message); ok {
		return value, SourceMessage, true
	}
	if latest.Glucose != nil {
		return latest.Glucose.Latest, SourceMetrics, true
	}
	return 0, "", false
}

func (g *Guardrail) bloodPressureValue(message string, latest health.Context) (BloodPressureReading, string, bool) {
	if reading, ok := ParseBloodPressure(message); ok {
		return reading, SourceMessage, true
	}
	if latest.BloodPressure != nil {
		return BloodPressureReading{
			Systolic:  latest.BloodPressure.Systolic.Latest,
			Diastolic: latest.BloodPressure.Diastolic.Latest,
		}, SourceMetrics, true
	}
	return BloodPressureReading{}, "", false
}

func (g *Guardrail) checkGlucose(value float64, source string) (Verdict, bool) {
	if !g.GlucoseDangerous(value) {
		return Verdict{}, false
	}
	reason := "glucose_high"
	detail := fmt.Sprintf("cao hơn ngưỡng an toàn %s mg/dL", formatReading(g.thresholds.GlucoseHigh))
	if value < g.thresholds.GlucoseLow {
		reason = "glucose_low"
		detail = fmt.Sprintf("thấp hơn ngưỡng an toàn %s mg/dL", formatReading(g.thresholds.GlucoseLow))
	}
	return Verdict{
		Escalate: true,
		Reason:   reason,
		Kind:     KindGlucose,
		Source:   source,
		Text:     escalationText("Đường huyết", formatReading(value)+" mg/dL", detail),
	}, true
}

func (g *Guardrail) checkBloodPressure(r BloodPressureReading, source string) (Verdict, bool) {
	if !g.BloodPressureDangerous(r) {
		return Verdict{}, false
	}
	detail := fmt.Sprintf(
		"chạm ngưỡng khủng hoảng %s/%s mmHg",
		formatReading(g.thresholds.SystolicCrisis),
		formatReading(g.thresholds.DiastolicCrisis),
	)
	return Verdict{
		Escalate: true,
		Reason:   "bp_crisis",
		Kind:     KindBloodPressure,
		Source:   source,
		Text:     escalationText("Huyết áp", formatReading(r.Systolic)+"/"+formatReading(r.Diastolic)+" mmHg", detail),
	}, true
}

func escalationText(metric, reading, detail string) string {
	return fmt.Sprintf(
		"Cảnh báo: %s của bạn là %s, %s. Đây là mức nguy hiểm. "+
			"Hãy liên hệ bác sĩ hoặc đến cơ sở y tế gần nhất ngay. "+
			"Nếu bạn thấy choáng, khó thở, đau ngực hoặc lơ mơ, hãy gọi cấp cứu 115.",
		metric,
		reading,
		detail,
	)
}

func formatReading(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
}
