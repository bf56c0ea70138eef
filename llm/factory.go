// Provider factory.
//
// Information Hiding:
// - Per-provider constructor, API key variable and default model kept in one table
// - Name aliases (claude, gpt, google) resolved here
// - Token and temperature defaults
//
// The agent and the policy extractor may run on different models:
//
//	engine, err := llm.ProviderOpenAI.Model(llm.ModelOpenAIGPT4o).FromEnv()
//	extraction, err := llm.ProviderOpenAI.Model(llm.ModelOpenAIGPT4oMini).Temperature(0).FromEnv()

package llm

import (
	"fmt"
	"os"
	"strings"
)

// ProviderType identifies a reasoning engine vendor.
type ProviderType int

const (
	ProviderOpenAI ProviderType = iota
	ProviderAnthropic
	ProviderDeepSeek
	ProviderGemini
)

const (
	defaultMaxTokens   = 4096
	defaultTemperature = float32(0.2)
)

type providerSpec struct {
	name         string
	aliases      []string
	envVar       string
	defaultModel string
	build        func(apiKey, model string, maxTokens uint32, temperature float32) Provider
}

var providerSpecs = map[ProviderType]providerSpec{
	ProviderOpenAI: {
		name:         "openai",
		aliases:      []string{"gpt"},
		envVar:       "OPENAI_API_KEY",
		defaultModel: ModelOpenAIGPT4o,
		build: func(k, m string, n uint32, t float32) Provider {
			return NewOpenAIProvider(k, m, n, t)
		},
	},
	ProviderAnthropic: {
		name:         "anthropic",
		aliases:      []string{"claude"},
		envVar:       "ANTHROPIC_API_KEY",
		defaultModel: ModelAnthropicClaudeSonnet4,
		build: func(k, m string, n uint32, t float32) Provider {
			return NewAnthropicProvider(k, m, n, t)
		},
	},
	ProviderDeepSeek: {
		name:         "deepseek",
		envVar:       "DEEPSEEK_API_KEY",
		defaultModel: ModelDeepSeekChat,
		build: func(k, m string, n uint32, t float32) Provider {
			return NewDeepSeekProvider(k, m, n, t)
		},
	},
	ProviderGemini: {
		name:         "gemini",
		aliases:      []string{"google"},
		envVar:       "GEMINI_API_KEY",
		defaultModel: ModelGeminiFlash25,
		build: func(k, m string, n uint32, t float32) Provider {
			return NewGeminiProvider(k, m, n, t)
		},
	},
}

func (p ProviderType) spec() (providerSpec, bool) {
	s, ok := providerSpecs[p]
	return s, ok
}

// String returns the canonical provider name.
func (p ProviderType) String() string {
	if s, ok := p.spec(); ok {
		return s.name
	}
	return "unknown"
}

// EnvVar returns the environment variable holding this provider's API key.
func (p ProviderType) EnvVar() string {
	s, _ := p.spec()
	return s.envVar
}

// DefaultModel returns the model used when none is configured.
func (p ProviderType) DefaultModel() string {
	s, _ := p.spec()
	return s.defaultModel
}

// ParseProviderType resolves a provider name or alias, ignoring case and
// surrounding space.
func ParseProviderType(name string) (ProviderType, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for p, s := range providerSpecs {
		if s.name == key {
			return p, nil
		}
		for _, alias := range s.aliases {
			if alias == key {
				return p, nil
			}
		}
	}
	return 0, fmt.Errorf("unknown provider: %s", name)
}

// FromEnv builds the provider with defaults, reading the API key from the
// environment.
func (p ProviderType) FromEnv() (Provider, error) {
	return NewProviderBuilder(p).FromEnv()
}

// Model starts a builder for this provider with the given model.
func (p ProviderType) Model(model string) *ProviderBuilder {
	return NewProviderBuilder(p).Model(model)
}

// APIKey builds the provider with defaults and an explicit key.
func (p ProviderType) APIKey(key string) (Provider, error) {
	return NewProviderBuilder(p).APIKey(key)
}

// ProviderBuilder configures a provider before construction.
type ProviderBuilder struct {
	providerType ProviderType
	model        string
	maxTokens    uint32
	temperature  *float32
}

func NewProviderBuilder(providerType ProviderType) *ProviderBuilder {
	return &ProviderBuilder{providerType: providerType}
}

func (b *ProviderBuilder) Model(model string) *ProviderBuilder {
	b.model = model
	return b
}

func (b *ProviderBuilder) MaxTokens(tokens uint32) *ProviderBuilder {
	b.maxTokens = tokens
	return b
}

// Temperature overrides the default of 0.2. Extraction calls usually want 0.
func (b *ProviderBuilder) Temperature(temp float32) *ProviderBuilder {
	b.temperature = &temp
	return b
}

// FromEnv builds the provider, reading the API key from the environment.
func (b *ProviderBuilder) FromEnv() (Provider, error) {
	envVar := b.providerType.EnvVar()
	if envVar == "" {
		return nil, fmt.Errorf("unknown provider type: %v", int(b.providerType))
	}
	apiKey := os.Getenv(envVar)
	if apiKey == "" {
		return nil, fmt.Errorf("%s: %s environment variable not set", b.providerType, envVar)
	}
	return b.build(apiKey)
}

// APIKey builds the provider with an explicit API key.
func (b *ProviderBuilder) APIKey(key string) (Provider, error) {
	return b.build(key)
}

func (b *ProviderBuilder) build(apiKey string) (Provider, error) {
	spec, ok := b.providerType.spec()
	if !ok {
		return nil, fmt.Errorf("unknown provider type: %v", int(b.providerType))
	}

	model := b.model
	if model == "" {
		model = spec.defaultModel
	}
	maxTokens := b.maxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	temperature := defaultTemperature
	if b.temperature != nil {
		temperature = *b.temperature
	}

	return spec.build(apiKey, model, maxTokens, temperature), nil
}

// Model identifier constants for all supported providers.

// OpenAI model identifiers
const (
	// ModelOpenAIGPT4o is GPT-4o: tool calling and structured outputs.
	ModelOpenAIGPT4o = "gpt-4o"
	// ModelOpenAIGPT4oMini is GPT-4o-mini: cheaper model for page extraction.
	ModelOpenAIGPT4oMini = "gpt-4o-mini"
)

// Anthropic model identifiers
const (
	// ModelAnthropicClaudeSonnet4 is Claude Sonnet 4: Balanced performance.
	ModelAnthropicClaudeSonnet4 = "claude-sonnet-4-20250514"
	// ModelAnthropicClaudeHaiku35 is Claude Haiku 3.5: Fast and efficient.
	ModelAnthropicClaudeHaiku35 = "claude-3-5-haiku-20241022"
)

// DeepSeek model identifiers
const (
	// ModelDeepSeekChat is the general chat model with tool calling.
	ModelDeepSeekChat = "deepseek-chat"
)

// Gemini model identifiers
const (
	// ModelGeminiFlash25 is Gemini 2.5 Flash: Speed optimized.
	ModelGeminiFlash25 = "gemini-2.5-flash"
	// ModelGeminiPro25 is Gemini 2.5 Pro: Advanced reasoning.
	ModelGeminiPro25 = "gemini-2.5-pro"
)
