package health

import (
	"math"
	"sort"
	"time"
)

const (
	Window         = 7 * 24 * time.Hour
	trendThreshold = 0.05
)

// Summarize reduces scalar readings to latest, 7-day mean and trend. It returns
// nil when there are no readings. Values are kept unrounded so threshold checks
// see the reading as recorded; rounding is a rendering concern.
func Summarize(readings []Reading, value func(Reading) float64) *Summary {
	if len(readings) == 0 {
		return nil
	}
	ordered := sortedByTime(readings)
	total := 0.0
	for _, r := range ordered {
		total += value(r)
	}
	latest := value(ordered[len(ordered)-1])
	avg := total / float64(len(ordered))
	return &Summary{
		Latest: latest,
		Avg7d:  avg,
		Trend:  TrendOf(latest, avg),
	}
}

// TrendOf classifies latest against the average with a 5% dead band.
func TrendOf(latest, avg float64) Trend {
	if avg == 0 {
		switch {
		case latest > 0:
			return TrendUp
		case latest < 0:
			return TrendDown
		default:
			return TrendFlat
		}
	}
	delta := (latest - avg) / math.Abs(avg)
	switch {
	case delta > trendThreshold:
		return TrendUp
	case delta < -trendThreshold:
		return TrendDown
	default:
		return TrendFlat
	}
}

func SummarizeBloodPressure(readings []Reading) *BloodPressureSummary {
	sys := Summarize(readings, func(r Reading) float64 { return r.Systolic })
	dia := Summarize(readings, func(r Reading) float64 { return r.Diastolic })
	if sys == nil || dia == nil {
		return nil
	}
	trend := TrendUndefined
	if sys.Trend == dia.Trend {
		trend = sys.Trend
	}
	return &BloodPressureSummary{Systolic: *sys, Diastolic: *dia, Trend: trend}
}

func latestMeal(readings []Reading) *Meal {
	ordered := sortedByTime(readings)
	for i := len(ordered) - 1; i >= 0; i-- {
		if ordered[i].Meal != nil {
			meal := *ordered[i].Meal
			return &meal
		}
	}
	return nil
}

// BuildContext folds per-kind readings into a Context. Kinds missing from the
// map stay unset.
func BuildContext(byKind map[Kind][]Reading) Context {
	value := func(r Reading) float64 { return r.Value }
	out := Context{
		Glucose: Summarize(byKind[KindGlucose], value),
		Water:   Summarize(byKind[KindWater], value),
		Weight:  Summarize(byKind[KindWeight], value),
	}
	if bp, ok := byKind[KindBloodPressure]; ok {
		out.BloodPressure = SummarizeBloodPressure(bp)
	}
	if meals, ok := byKind[KindMeal]; ok {
		out.LastMeal = latestMeal(meals)
	}
	return out
}

// BuildFeatures derives meal-rule features from meal logs and glucose readings.
func BuildFeatures(meals, glucose []Reading, now time.Time) Features {
	features := Features{}
	todayStart := startOfUTCDay(now)
	yesterdayStart := todayStart.Add(-24 * time.Hour)
	weekStart := now.Add(-Window)
	for _, r := range meals {
		if r.Meal == nil {
			continue
		}
		at := r.At.UTC()
		if !at.Before(yesterdayStart) && at.Before(todayStart) {
			features.HasYesterday = true
			features.CarbGTotalYesterday += r.Meal.CarbG
			features.ProteinGTotalYesterday += r.Meal.ProteinG
		}
		if r.Meal.Fried && !at.Before(weekStart) {
			features.FriedCount7d++
		}
	}
	if len(glucose) > 0 {
		ordered := sortedByTime(glucose)
		features.HasLatestBG = true
		features.LatestBG = ordered[len(ordered)-1].Value
	}
	return features
}

func sortedByTime(readings []Reading) []Reading {
	ordered := make([]Reading, len(readings))
	copy(ordered, readings)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].At.Before(ordered[j].At)
	})
	return ordered
}

func startOfUTCDay(t time.Time) time.Time {
	utc := t.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
}
