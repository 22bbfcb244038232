package safety

const (
	mmolToMgdl        = 18.0
	glucoseWordWindow = 4

	// Glucose values below this with no unit are read as mmol/L.
	unitlessMmolCeiling = 35.0
)

var glucoseKeywords = map[string]struct{}{
	"bg":      {},
	"glucose": {},
	"duong":   {},
	"sugar":   {},
}

// BloodPressureReading is a systolic/diastolic pair in mmHg.
type BloodPressureReading struct {
	Systolic  float64 `json:"systolic"`
	Diastolic float64 `json:"diastolic"`
}

// ParseGlucose finds the first number that follows a glucose keyword
// ("bg", "glucose", "đường", "sugar") within a few filler words. Values
// followed by "mmol", or unitless values below 35, are converted to mg/dL;
// an explicit "mg" keeps the value as is. Numbers that are the first half of a
// sys/dia pair are ignored.
func ParseGlucose(message string) (float64, bool) {
	tokens := tokenize(message)
	for i, tok := range tokens {
		if tok.kind != tokenWord {
			continue
		}
		if _, ok := glucoseKeywords[tok.text]; !ok {
			continue
		}
		if value, ok := numberAfterKeyword(tokens, i); ok {
			return value, true
		}
	}
	return 0, false
}

func numberAfterKeyword(tokens []token, keyword int) (float64, bool) {
	words := 0
	for j := keyword + 1; j < len(tokens); j++ {
		tok := tokens[j]
		switch tok.kind {
		case tokenWord:
			words++
			if words > glucoseWordWindow {
				return 0, false
			}
		case tokenSlash:
			return 0, false
		case tokenNumber:
			if j+1 < len(tokens) && tokens[j+1].kind == tokenSlash {
				return 0, false
			}
			unit := ""
			if j+1 < len(tokens) && tokens[j+1].kind == tokenWord {
				unit = tokens[j+1].text
			}
			return toMgdl(tok.value, unit), true
		}
	}
	return 0, false
}

func toMgdl(value float64, unit string) float64 {
	switch {
	case unit == "mmol":
		return value * mmolToMgdl
	case unit == "mg":
		return value
	case value < unitlessMmolCeiling:
		return value * mmolToMgdl
	}
	return value
}

// ParseBloodPressure finds the first plausible "sys/dia" pair.
func ParseBloodPressure(message string) (BloodPressureReading, bool) {
	tokens := tokenize(message)
	for i := 0; i+2 < len(tokens); i++ {
		if tokens[i].kind != tokenNumber || tokens[i+1].kind != tokenSlash || tokens[i+2].kind != tokenNumber {
			continue
		}
		reading := BloodPressureReading{Systolic: tokens[i].value, Diastolic: tokens[i+2].value}
		if plausibleBloodPressure(reading) {
			return reading, true
		}
	}
	return BloodPressureReading{}, false
}

func plausibleBloodPressure(r BloodPressureReading) bool {
	return r.Systolic >= 50 && r.Systolic <= 300 &&
		r.Diastolic >= 30 && r.Diastolic <= 200 &&
		r.Systolic > r.Diastolic
}
