// Package config provides application settings loaded from environment variables.
//
// Settings are created via New() which handles:
// - Environment parsing through envconfig (types, defaults, validation)
// - Provider-specific model and API key lookup
// - Cross-field validation (cache backend, renderer)

package config

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Settings holds all application configuration.
type Settings struct {
	Environment string `envconfig:"APP_ENV" default:"development"`

	LLM       LLMConfig
	Agent     AgentConfig
	Server    ServerConfig
	Sources   SourcesConfig
	Extractor ExtractorConfig
	Cache     CacheConfig
	Usage     UsageConfig
}

// LLMConfig holds reasoning engine configuration.
type LLMConfig struct {
	Provider        string  `envconfig:"LLM_PROVIDER" default:"openai"`
	Model           string  `envconfig:"LLM_MODEL"`
	ExtractionModel string  `envconfig:"LLM_EXTRACTION_MODEL"`
	MaxTokens       uint32  `envconfig:"LLM_MAX_TOKENS" default:"4096"`
	Temperature     float64 `envconfig:"LLM_TEMPERATURE" default:"0.2"`
}

// AgentConfig holds agent loop configuration.
type AgentConfig struct {
	MaxIterations int `envconfig:"AGENT_MAX_ITERATIONS" default:"10"`
}

// ServerConfig holds HTTP transport configuration.
type ServerConfig struct {
	Addr            string        `envconfig:"HTTP_ADDR" default:":8080"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"15s"`
}

// SourcesConfig holds the coverage search endpoints and their limits.
type SourcesConfig struct {
	NCDURL        string        `envconfig:"NCD_URL" default:"https://api.coverage.cms.gov/v1/reports/national-coverage-ncd"`
	LCDURL        string        `envconfig:"LCD_URL" default:"https://api.coverage.cms.gov/v1/reports/local-coverage-final-lcds"`
	ArticleURL    string        `envconfig:"ARTICLE_URL" default:"https://api.coverage.cms.gov/v1/reports/local-coverage-articles"`
	CarelonURL    string        `envconfig:"CARELON_URL" default:"https://guidelines.carelon.com/wp-json/guidelines/v1/guidelines"`
	EvolentURL    string        `envconfig:"EVOLENT_URL" default:"https://www.evolent.com/wp-json/clinical-guidelines/v1/guidelines"`
	SearchTimeout time.Duration `envconfig:"SEARCH_TIMEOUT" default:"30s"`
}

// ExtractorConfig holds policy page extraction settings.
type ExtractorConfig struct {
	Renderer      string        `envconfig:"EXTRACTOR_RENDERER" default:"http"`
	Timeout       time.Duration `envconfig:"EXTRACT_TIMEOUT" default:"60s"`
	SummaryWindow int           `envconfig:"SUMMARY_WINDOW" default:"8000"`
	ExtractWindow int           `envconfig:"EXTRACT_WINDOW" default:"30000"`

	// AllowedDomains limits which hosts policy pages may be fetched from.
	// Subdomains match; source endpoint hosts are always added.
	AllowedDomains []string `envconfig:"EXTRACTOR_ALLOWED_DOMAINS" default:"cms.gov,carelon.com,evolent.com"`
}

// CacheConfig holds result cache settings. A zero TTL never expires entries.
type CacheConfig struct {
	Backend  string        `envconfig:"CACHE_BACKEND" default:"memory"`
	TTL      time.Duration `envconfig:"CACHE_TTL" default:"0s"`
	RedisURL string        `envconfig:"REDIS_URL"`
}

// UsageConfig holds usage reporting settings. An empty DBPath disables reporting.
type UsageConfig struct {
	DBPath  string        `envconfig:"USAGE_DB_PATH"`
	Timeout time.Duration `envconfig:"USAGE_TIMEOUT" default:"5s"`
}

// providerInfo holds configuration for a specific LLM provider.
type providerInfo struct {
	defaultModel string
	apiKeyEnv    string
}

// Supported providers and their configuration.
var providers = map[string]providerInfo{
	"openai":    {"gpt-4o", "OPENAI_API_KEY"},
	"anthropic": {"claude-sonnet-4-20250514", "ANTHROPIC_API_KEY"},
	"deepseek":  {"deepseek-chat", "DEEPSEEK_API_KEY"},
	"gemini":    {"gemini-2.5-flash", "GEMINI_API_KEY"},
}

// Provider aliases map to canonical names.
var providerAliases = map[string]string{
	"claude": "anthropic",
	"google": "gemini",
	"gpt":    "openai",
}

// New loads settings from the environment. A non-empty provider overrides
// LLM_PROVIDER. Returns an error if a value cannot be parsed, the provider is
// unknown, or a backend choice is inconsistent.
func New(provider string) (Settings, error) {
	var s Settings
	if err := envconfig.Process("", &s); err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}

	if provider != "" {
		s.LLM.Provider = provider
	}
	s.LLM.Provider = normalizeProvider(s.LLM.Provider)

	info, err := getProviderInfo(s.LLM.Provider)
	if err != nil {
		return Settings{}, err
	}
	if s.LLM.Model == "" {
		s.LLM.Model = info.defaultModel
	}
	if s.LLM.ExtractionModel == "" {
		s.LLM.ExtractionModel = s.LLM.Model
	}

	if err := s.validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// MustNew loads settings and panics on error.
// Use this only when configuration errors should be fatal.
func MustNew(provider string) Settings {
	settings, err := New(provider)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

// FetchDomains returns the hosts policy pages may be fetched from: the
// configured allowlist plus the host of every source endpoint.
func (s Settings) FetchDomains() []string {
	seen := map[string]bool{}
	var out []string
	add := func(host string) {
		host = strings.ToLower(strings.TrimSpace(host))
		if host == "" || seen[host] {
			return
		}
		seen[host] = true
		out = append(out, host)
	}
	for _, d := range s.Extractor.AllowedDomains {
		add(d)
	}
	for _, endpoint := range []string{s.Sources.NCDURL, s.Sources.LCDURL, s.Sources.ArticleURL, s.Sources.CarelonURL, s.Sources.EvolentURL} {
		if u, err := url.Parse(endpoint); err == nil {
			add(u.Hostname())
		}
	}
	return out
}

func (s Settings) validate() error {
	if s.Agent.MaxIterations <= 0 {
		return fmt.Errorf("AGENT_MAX_ITERATIONS must be positive, got %d", s.Agent.MaxIterations)
	}
	switch s.Cache.Backend {
	case "memory":
	case "redis":
		if s.Cache.RedisURL == "" {
			return fmt.Errorf("CACHE_BACKEND=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q (want memory or redis)", s.Cache.Backend)
	}
	switch s.Extractor.Renderer {
	case "http", "chromedp":
	default:
		return fmt.Errorf("unknown EXTRACTOR_RENDERER %q (want http or chromedp)", s.Extractor.Renderer)
	}
	if s.Cache.TTL < 0 {
		return fmt.Errorf("CACHE_TTL must not be negative")
	}
	return nil
}

// normalizeProvider converts provider aliases to canonical names.
func normalizeProvider(provider string) string {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if canonical, ok := providerAliases[provider]; ok {
		return canonical
	}
	return provider
}

// getProviderInfo returns configuration for a provider.
func getProviderInfo(provider string) (providerInfo, error) {
	info, ok := providers[provider]
	if !ok {
		return providerInfo{}, fmt.Errorf("unknown provider: %q", provider)
	}
	return info, nil
}

// APIKeyFor returns the API key for a provider from environment variables.
func APIKeyFor(provider string) (string, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}

	key := os.Getenv(info.apiKeyEnv)
	if key == "" {
		return "", fmt.Errorf("%s environment variable not set", info.apiKeyEnv)
	}
	return key, nil
}

// SupportedProviders returns the supported provider names in sorted order.
func SupportedProviders() []string {
	result := make([]string, 0, len(providers))
	for name := range providers {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}
