package health

import (
	"context"
	"time"
)

type Kind string

const (
	KindGlucose       Kind = "glucose"
	KindBloodPressure Kind = "blood_pressure"
	KindWeight        Kind = "weight"
	KindWater         Kind = "water"
	KindMeal          Kind = "meal"
)

// Kinds lists every metric the compressor fetches.
var Kinds = []Kind{KindGlucose, KindBloodPressure, KindWeight, KindWater, KindMeal}

type Meal struct {
	Description string   `json:"description"`
	Items       []string `json:"items,omitempty"`
	CarbG       float64  `json:"carb_g"`
	ProteinG    float64  `json:"protein_g"`
	FatG        float64  `json:"fat_g"`
	Kcal        float64  `json:"kcal"`
	Fried       bool     `json:"fried"`
}

// Reading is one time-series sample. Value carries scalar metrics,
// Systolic/Diastolic carry blood pressure and Meal carries meal logs.
type Reading struct {
	At        time.Time `json:"at"`
	Value     float64   `json:"value,omitempty"`
	Systolic  float64   `json:"systolic,omitempty"`
	Diastolic float64   `json:"diastolic,omitempty"`
	Meal      *Meal     `json:"meal,omitempty"`
}

type MetricsStore interface {
	Recent(ctx context.Context, userID string, kind Kind, since time.Time) ([]Reading, error)
}

type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
	TrendFlat Trend = "flat"
	// TrendUndefined is used for blood pressure when systolic and diastolic disagree.
	TrendUndefined Trend = "undefined"
)

type Summary struct {
	Latest float64 `json:"latest"`
	Avg7d  float64 `json:"avg7d"`
	Trend  Trend   `json:"trend"`
}

type BloodPressureSummary struct {
	Systolic  Summary `json:"systolic"`
	Diastolic Summary `json:"diastolic"`
	Trend     Trend   `json:"trend"`
}

// Context is the compressed per-user snapshot. Every field is optional.
type Context struct {
	Glucose       *Summary              `json:"glucose,omitempty"`
	Water         *Summary              `json:"water,omitempty"`
	Weight        *Summary              `json:"weight,omitempty"`
	BloodPressure *BloodPressureSummary `json:"blood_pressure,omitempty"`
	LastMeal      *Meal                 `json:"last_meal,omitempty"`
}

func (c Context) Empty() bool {
	return c.Glucose == nil && c.Water == nil && c.Weight == nil && c.BloodPressure == nil && c.LastMeal == nil
}

// Features are the recent behavioural signals used by the meal-tip rules.
type Features struct {
	HasYesterday           bool    `json:"has_yesterday"`
	CarbGTotalYesterday    float64 `json:"carb_g_total_yesterday"`
	ProteinGTotalYesterday float64 `json:"protein_g_total_yesterday"`
	FriedCount7d           int     `json:"fried_count_7d"`
	HasLatestBG            bool    `json:"has_latest_bg"`
	LatestBG               float64 `json:"latest_bg"`
}
