package coverage

import (
	"fmt"

	"github.com/wramirez09/langchain-agent-sub000/cache"
	"github.com/wramirez09/langchain-agent-sub000/config"
	"github.com/wramirez09/langchain-agent-sub000/states"
	"github.com/wramirez09/langchain-agent-sub000/tools"
)

// Deps are the collaborators shared by the catalog's tools.
type Deps struct {
	Sources    config.SourcesConfig
	Client     *tools.HTTPClient // defaults to one with Sources.SearchTimeout
	States     *states.Directory // defaults to states.New()
	Cache      cache.Cache       // nil disables caching
	Summarizer Summarizer        // nil omits LCD summaries
	Extractor  PolicyExtractor   // nil omits extract_policy_details
}

// NewCatalog registers the five search tools and, when an extractor is
// given, extract_policy_details.
func NewCatalog(deps Deps) (*tools.Registry, error) {
	client := deps.Client
	if client == nil {
		client = tools.NewHTTPClient(deps.Sources.SearchTimeout)
	}
	dir := deps.States
	if dir == nil {
		dir = states.New()
	}

	registry := tools.NewRegistry()
	for _, src := range DefaultSources(deps.Sources) {
		if err := registry.Register(NewSearchTool(src, client, dir, deps.Cache, deps.Summarizer)); err != nil {
			return nil, fmt.Errorf("register %s: %w", src.Tool, err)
		}
	}
	if deps.Extractor != nil {
		if err := registry.Register(NewExtractTool(deps.Extractor, deps.Cache)); err != nil {
			return nil, fmt.Errorf("register extract_policy_details: %w", err)
		}
	}
	return registry, nil
}
