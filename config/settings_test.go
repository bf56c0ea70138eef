package config

import (
	"strings"
	"testing"
	"time"
)

func TestNewDefaults(t *testing.T) {
	settings, err := New("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.LLM.Provider != "openai" {
		t.Errorf("expected provider 'openai', got %q", settings.LLM.Provider)
	}
	if settings.LLM.Model == "" {
		t.Error("expected a default model")
	}
	if settings.LLM.ExtractionModel != settings.LLM.Model {
		t.Errorf("extraction model should default to %q, got %q", settings.LLM.Model, settings.LLM.ExtractionModel)
	}
	if settings.Sources.SearchTimeout != 30*time.Second {
		t.Errorf("expected 30s search timeout, got %v", settings.Sources.SearchTimeout)
	}
	if settings.Extractor.Timeout != 60*time.Second {
		t.Errorf("expected 60s extract timeout, got %v", settings.Extractor.Timeout)
	}
	if settings.Extractor.SummaryWindow != 8000 {
		t.Errorf("expected summary window 8000, got %d", settings.Extractor.SummaryWindow)
	}
	if settings.Cache.TTL != 0 {
		t.Errorf("cache entries should never expire by default, got TTL %v", settings.Cache.TTL)
	}
	if settings.Agent.MaxIterations != 10 {
		t.Errorf("expected 10 iterations, got %d", settings.Agent.MaxIterations)
	}
}

func TestFetchDomains(t *testing.T) {
	t.Setenv("EXTRACTOR_ALLOWED_DOMAINS", "CMS.gov, carelon.com")
	t.Setenv("EVOLENT_URL", "http://127.0.0.1:9000/guidelines")

	settings, err := New("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := settings.FetchDomains()
	want := []string{"cms.gov", "carelon.com", "api.coverage.cms.gov", "guidelines.carelon.com", "127.0.0.1"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("FetchDomains() = %v, want %v", got, want)
	}
}

func TestDefaultFetchDomains(t *testing.T) {
	settings, err := New("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := strings.Join(settings.FetchDomains(), ",")
	for _, d := range []string{"cms.gov", "carelon.com", "evolent.com", "www.evolent.com"} {
		if !strings.Contains(","+got+",", ","+d+",") {
			t.Errorf("expected %s in %s", d, got)
		}
	}
}

func TestNewWithAlias(t *testing.T) {
	settings, err := New("claude")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.LLM.Provider != "anthropic" {
		t.Errorf("expected provider 'anthropic' (normalized from 'claude'), got %q", settings.LLM.Provider)
	}
}

func TestNewProviderFromEnv(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "google")

	settings, err := New("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.LLM.Provider != "gemini" {
		t.Errorf("expected 'gemini', got %q", settings.LLM.Provider)
	}
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New("unknown_provider")
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestNewRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"non-numeric max tokens", "LLM_MAX_TOKENS", "not-a-number"},
		{"bad duration", "SEARCH_TIMEOUT", "soon"},
		{"unknown cache backend", "CACHE_BACKEND", "memcached"},
		{"redis without url", "CACHE_BACKEND", "redis"},
		{"unknown renderer", "EXTRACTOR_RENDERER", "phantomjs"},
		{"zero iterations", "AGENT_MAX_ITERATIONS", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := New("openai"); err == nil {
				t.Errorf("expected error for %s=%q", tt.key, tt.val)
			}
		})
	}
}

func TestNewOverrides(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("CACHE_TTL", "1h")
	t.Setenv("LLM_EXTRACTION_MODEL", "gpt-4o-mini")

	settings, err := New("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.Cache.TTL != time.Hour {
		t.Errorf("expected 1h TTL, got %v", settings.Cache.TTL)
	}
	if settings.LLM.ExtractionModel != "gpt-4o-mini" {
		t.Errorf("expected extraction model override, got %q", settings.LLM.ExtractionModel)
	}
}

func TestAPIKeyForValidProvider(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")

	key, err := APIKeyFor("gpt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "test-key" {
		t.Errorf("expected 'test-key', got %q", key)
	}
}

func TestAPIKeyForMissing(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := APIKeyFor("openai")
	if err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestAPIKeyForUnknownProvider(t *testing.T) {
	_, err := APIKeyFor("unknown")
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestSupportedProvidersSorted(t *testing.T) {
	got := SupportedProviders()
	want := []string{"anthropic", "deepseek", "gemini", "openai"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}
