// Application wiring shared by the CLI commands.
//
// Information Hiding:
// - Provider construction and API key lookup
// - Cache backend, page fetcher and catalog assembly
// - Resource cleanup order

package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/wramirez09/langchain-agent-sub000/agent"
	"github.com/wramirez09/langchain-agent-sub000/cache"
	"github.com/wramirez09/langchain-agent-sub000/config"
	"github.com/wramirez09/langchain-agent-sub000/coverage"
	"github.com/wramirez09/langchain-agent-sub000/extractor"
	"github.com/wramirez09/langchain-agent-sub000/internal/logx"
	"github.com/wramirez09/langchain-agent-sub000/internal/metrics"
	"github.com/wramirez09/langchain-agent-sub000/llm"
	"github.com/wramirez09/langchain-agent-sub000/states"
	"github.com/wramirez09/langchain-agent-sub000/storage"
	"github.com/wramirez09/langchain-agent-sub000/tools"
	"github.com/wramirez09/langchain-agent-sub000/usage"
)

// Options holds CLI execution options.
type Options struct {
	Provider string
	MaxIter  int
	Addr     string
	Verbose  bool
}

// App holds every long-lived component of one process.
type App struct {
	Settings config.Settings
	Metrics  *metrics.Metrics
	States   *states.Directory
	Catalog  *tools.Registry
	Agent    *agent.Agent
	Usage    *usage.Reporter

	closers []func() error
}

// LoadSettings reads the environment and applies flag overrides.
func LoadSettings(opts Options) (config.Settings, error) {
	settings, err := config.New(opts.Provider)
	if err != nil {
		return config.Settings{}, err
	}
	if opts.MaxIter > 0 {
		settings.Agent.MaxIterations = opts.MaxIter
	}
	if opts.Addr != "" {
		settings.Server.Addr = opts.Addr
	}
	return settings, nil
}

// NewApp builds the reasoning engine, the tool catalog, the agent and the
// usage reporter. Close releases what it opened.
func NewApp(ctx context.Context, opts Options) (*App, error) {
	settings, err := LoadSettings(opts)
	if err != nil {
		return nil, err
	}

	app := &App{
		Settings: settings,
		Metrics:  metrics.New(),
		States:   states.New(),
	}

	engine, err := createProvider(settings.LLM.Provider, settings.LLM.Model, settings.LLM)
	if err != nil {
		return nil, err
	}
	extractionEngine := engine
	if settings.LLM.ExtractionModel != settings.LLM.Model {
		extractionEngine, err = createProvider(settings.LLM.Provider, settings.LLM.ExtractionModel, settings.LLM)
		if err != nil {
			return nil, err
		}
	}

	resultCache, err := app.openCache(ctx)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	fetcher, err := extractor.NewFetcher(settings.Extractor.Renderer, pageClient(settings))
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	app.Catalog, err = coverage.NewCatalog(coverage.Deps{
		Sources: settings.Sources,
		Client:  tools.NewHTTPClient(settings.Sources.SearchTimeout),
		States:  app.States,
		Cache:   resultCache,
		Summarizer: extractor.NewSummarizer(fetcher, extractionEngine,
			settings.Extractor.SummaryWindow, settings.Extractor.Timeout),
		Extractor: extractor.New(fetcher, extractionEngine,
			extractor.WithWindow(settings.Extractor.ExtractWindow),
			extractor.WithTimeout(settings.Extractor.Timeout)),
	})
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	app.Agent = agent.NewBuilder(engine, tools.NewExecutor(app.Catalog, app.Metrics)).
		MaxIterations(settings.Agent.MaxIterations).
		Metrics(app.Metrics).
		Build()

	recorder, err := app.openRecorder()
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Usage = usage.NewReporter(recorder, settings.Usage.Timeout, app.Metrics)

	logx.Debug().
		Str("provider", engine.Name()).
		Str("model", engine.Model()).
		Str("cache", settings.Cache.Backend).
		Str("renderer", settings.Extractor.Renderer).
		Int("tools", app.Catalog.Len()).
		Msg("application ready")
	return app, nil
}

func (a *App) openCache(ctx context.Context) (cache.Cache, error) {
	var c cache.Cache
	switch a.Settings.Cache.Backend {
	case "redis":
		client, err := cache.RedisConfig{URL: a.Settings.Cache.RedisURL}.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("connect redis cache: %w", err)
		}
		r := cache.NewRedis(client, a.Settings.Cache.TTL)
		a.closers = append(a.closers, r.Close)
		c = r
	default:
		c = cache.NewMemory(a.Settings.Cache.TTL)
	}
	return cache.Observed(c, a.Metrics.ObserveCache), nil
}

func (a *App) openRecorder() (usage.Recorder, error) {
	if a.Settings.Usage.DBPath == "" {
		return usage.Noop{}, nil
	}
	store, err := storage.OpenSqlite(a.Settings.Usage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open usage database: %w", err)
	}
	a.closers = append(a.closers, store.Close)
	return usage.NewSqliteRecorder(store), nil
}

// Close waits for pending usage reports, then releases resources in
// reverse order of acquisition.
func (a *App) Close() error {
	if a.Usage != nil {
		a.Usage.Wait()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func createProvider(providerName, model string, cfg config.LLMConfig) (llm.Provider, error) {
	providerType, err := llm.ParseProviderType(providerName)
	if err != nil {
		return nil, err
	}

	apiKey, err := config.APIKeyFor(providerName)
	if err != nil {
		return nil, err
	}

	return providerType.
		Model(model).
		MaxTokens(cfg.MaxTokens).
		Temperature(float32(cfg.Temperature)).
		APIKey(apiKey)
}

// pageClient fetches policy pages, restricted to the policy publishers and
// the configured source hosts.
func pageClient(settings config.Settings) *tools.HTTPClient {
	return tools.NewHTTPClient(settings.Extractor.Timeout).WithAllowedDomains(settings.FetchDomains())
}

// listingCatalog builds the catalog without an engine. It is only used to
// describe tools, never to run them.
func listingCatalog(settings config.Settings) (*tools.Registry, error) {
	fetcher := extractor.NewHTTPFetcherWithClient(pageClient(settings))
	return coverage.NewCatalog(coverage.Deps{
		Sources:   settings.Sources,
		Extractor: extractor.New(fetcher, nil),
	})
}
