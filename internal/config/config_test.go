package config

import (
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		DatabaseURL:      "postgres://localhost/advisor",
		MetricsBackend:   "postgres",
		JWTSecret:        "0123456789abcdef0123",
		JWTAlgorithm:     "HS256",
		LLMProvider:      "openai",
		CacheBackend:     "memory",
		DailyTokenBudget: 1000,
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateRejectsUnusableCombinations(t *testing.T) {
	cases := map[string]func(c *Config){
		"short secret":     func(c *Config) { c.JWTSecret = "short" },
		"insecure secret":  func(c *Config) { c.JWTSecret = "change-me-in-production" },
		"unknown provider": func(c *Config) { c.LLMProvider = "bard" },
		"unknown cache":    func(c *Config) { c.CacheBackend = "redis" },
		"sqlite no path":   func(c *Config) { c.CacheBackend = "sqlite"; c.CacheSQLitePath = "" },
		"zero budget":      func(c *Config) { c.DailyTokenBudget = 0 },
		"fhir no store":    func(c *Config) { c.MetricsBackend = "fhir" },
		"unknown metrics":  func(c *Config) { c.MetricsBackend = "mongo" },
		"no database url":  func(c *Config) { c.DatabaseURL = " " },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("TEST_CFG_DURATION", "90s")
	t.Setenv("TEST_CFG_BAD_DURATION", "soon")
	t.Setenv("TEST_CFG_FLOAT", "0.25")
	t.Setenv("TEST_CFG_CSV", " a, ,b ")

	if got := getEnvDuration("TEST_CFG_DURATION", time.Minute); got != 90*time.Second {
		t.Fatalf("expected 90s, got %s", got)
	}
	if got := getEnvDuration("TEST_CFG_BAD_DURATION", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback for bad duration, got %s", got)
	}
	if got := getEnvFloat("TEST_CFG_FLOAT", 1); got != 0.25 {
		t.Fatalf("expected 0.25, got %v", got)
	}
	if got := getEnvCSV("TEST_CFG_CSV", nil); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected csv parse: %v", got)
	}
}

func TestLoadReadsPipelineSettings(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "Anthropic")
	t.Setenv("FEATURE_TIMEOUT_MS", "200")
	t.Setenv("DEMO_MODE", "true")
	cfg := Load()
	if cfg.LLMProvider != "anthropic" {
		t.Fatalf("expected provider to be lower-cased, got %q", cfg.LLMProvider)
	}
	if cfg.FeatureTimeout != 200*time.Millisecond {
		t.Fatalf("expected 200ms feature timeout, got %s", cfg.FeatureTimeout)
	}
	if !cfg.DemoMode {
		t.Fatalf("expected demo mode")
	}
}
