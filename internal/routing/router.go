package routing

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"healthadvisor/backend/internal/intent"
)

type TTLClass string

const (
	TTLNone  TTLClass = "none"
	TTLShort TTLClass = "short"
	TTLLong  TTLClass = "long"
)

// Duration maps a TTL class to its cache lifetime. Unknown classes do not cache.
func (c TTLClass) Duration() time.Duration {
	switch c {
	case TTLShort:
		return 60 * time.Minute
	case TTLLong:
		return 24 * time.Hour
	default:
		return 0
	}
}

type Priority string

const (
	PriorityLow  Priority = "low"
	PriorityHigh Priority = "high"
)

type Route struct {
	Model       string   `yaml:"model" json:"model"`
	Temperature float64  `yaml:"temperature" json:"temperature"`
	MaxTokens   int      `yaml:"max_tokens" json:"max_tokens"`
	CacheTTL    TTLClass `yaml:"cache_ttl" json:"cache_ttl"`
	Priority    Priority `yaml:"priority" json:"priority"`
}

const (
	smallModel = "gpt-4o-mini"
	largeModel = "gpt-4o"
)

var defaultRoute = Route{Model: largeModel, Temperature: 0.6, MaxTokens: 700, CacheTTL: TTLShort, Priority: PriorityHigh}

var defaultTable = map[intent.Intent]Route{
	intent.SimpleQA:         {Model: smallModel, Temperature: 0.3, MaxTokens: 300, CacheTTL: TTLLong, Priority: PriorityLow},
	intent.MealTip:          {Model: smallModel, Temperature: 0.4, MaxTokens: 350, CacheTTL: TTLShort, Priority: PriorityLow},
	intent.ReminderReason:   {Model: smallModel, Temperature: 0.5, MaxTokens: 200, CacheTTL: TTLShort, Priority: PriorityLow},
	intent.SafetyEscalation: {Model: smallModel, Temperature: 0, MaxTokens: 200, CacheTTL: TTLNone, Priority: PriorityHigh},
	intent.CoachCheckin:     {Model: smallModel, Temperature: 0.7, MaxTokens: 400, CacheTTL: TTLShort, Priority: PriorityHigh},
	intent.ComplexCoaching:  defaultRoute,
}

// Router is a pure intent -> Route lookup. Unknown intents get the default
// coaching route.
type Router struct {
	table    map[intent.Intent]Route
	fallback Route
}

func NewRouter() *Router {
	table := make(map[intent.Intent]Route, len(defaultTable))
	for key, route := range defaultTable {
		table[key] = route
	}
	return &Router{table: table, fallback: defaultRoute}
}

func (r *Router) Route(tag intent.Intent) Route {
	if route, ok := r.table[tag]; ok {
		return route
	}
	return r.fallback
}

// routeOverride is a partial Route. Temperature is a pointer so an explicit
// 0 is distinguishable from an omitted field.
type routeOverride struct {
	Model       string   `yaml:"model"`
	Temperature *float64 `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`
	CacheTTL    TTLClass `yaml:"cache_ttl"`
	Priority    Priority `yaml:"priority"`
}

type overrideFile struct {
	Default *routeOverride           `yaml:"default"`
	Routes  map[string]routeOverride `yaml:"routes"`
}

// LoadRouter builds the default router and merges per-intent overrides from a
// YAML file. Empty fields in an override keep the built-in value.
func LoadRouter(path string) (*Router, error) {
	router := NewRouter()
	if strings.TrimSpace(path) == "" {
		return router, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routes file: %w", err)
	}
	if err := router.applyOverrides(raw); err != nil {
		return nil, err
	}
	return router, nil
}

func (r *Router) applyOverrides(raw []byte) error {
	var parsed overrideFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("parse routes file: %w", err)
	}
	if parsed.Default != nil {
		r.fallback = merge(r.fallback, *parsed.Default)
	}
	for name, override := range parsed.Routes {
		tag := intent.Intent(strings.TrimSpace(name))
		if tag == "" {
			continue
		}
		base, ok := r.table[tag]
		if !ok {
			base = r.fallback
		}
		r.table[tag] = merge(base, override)
	}
	if route := r.table[intent.SafetyEscalation]; route.CacheTTL != TTLNone {
		return fmt.Errorf("routes file: %s must keep cache_ttl %q", intent.SafetyEscalation, TTLNone)
	}
	return nil
}

func merge(base Route, override routeOverride) Route {
	if override.Model != "" {
		base.Model = override.Model
	}
	if override.Temperature != nil {
		base.Temperature = *override.Temperature
	}
	if override.MaxTokens > 0 {
		base.MaxTokens = override.MaxTokens
	}
	if override.CacheTTL != "" {
		base.CacheTTL = override.CacheTTL
	}
	if override.Priority != "" {
		base.Priority = override.Priority
	}
	return base
}
