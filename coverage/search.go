package coverage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/wramirez09/langchain-agent-sub000/cache"
	"github.com/wramirez09/langchain-agent-sub000/internal/logx"
	"github.com/wramirez09/langchain-agent-sub000/model"
	"github.com/wramirez09/langchain-agent-sub000/states"
	"github.com/wramirez09/langchain-agent-sub000/tools"
)

// SummaryPlaceholder stands in for a document summary that could not be produced.
const SummaryPlaceholder = "Summary unavailable (failed to summarize this document)."

// Summarizer condenses a policy page to a short plain-text summary.
type Summarizer interface {
	Summarize(ctx context.Context, pageURL string) (string, error)
}

// hit is one matched reference as cached and rendered.
type hit struct {
	model.CoverageReference
	Summary string `json:"summary,omitempty"`
}

// SearchTool queries one coverage registry. It never fails the loop:
// upstream errors come back as failure observations.
type SearchTool struct {
	tools.BaseTool
	source     Source
	client     *tools.HTTPClient
	states     *states.Directory
	cache      cache.Cache
	summarizer Summarizer
}

var _ tools.Tool = (*SearchTool)(nil)

// NewSearchTool creates a search tool for source. c and summarizer may be nil.
func NewSearchTool(source Source, client *tools.HTTPClient, dir *states.Directory, c cache.Cache, summarizer Summarizer) *SearchTool {
	return &SearchTool{
		source:     source,
		client:     client,
		states:     dir,
		cache:      c,
		summarizer: summarizer,
	}
}

// Metadata returns the tool metadata.
func (t *SearchTool) Metadata() tools.ToolMetadata {
	params := []tools.ToolParameter{
		{
			Name:        "query",
			ParamType:   "string",
			Description: "Treatment, procedure or diagnosis to look up, e.g. \"MRI lumbar spine\" or \"diabetes (type 2)\"",
			Required:    true,
		},
	}
	if t.source.StateScoped {
		params = append(params, tools.ToolParameter{
			Name:        "state",
			ParamType:   "string",
			Description: "Full U.S. state or territory name, e.g. \"Florida\"",
			Required:    true,
		})
	}
	return tools.ToolMetadata{
		Name:        t.source.Tool,
		Description: t.source.Description,
		Parameters:  params,
	}
}

type searchArgs struct {
	Query string `json:"query"`
	State string `json:"state"`
}

// Validate rejects queries that are blank after trimming.
func (t *SearchTool) Validate(args json.RawMessage) error {
	var a searchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(a.Query) == "" {
		return errors.New("query cannot be blank")
	}
	return nil
}

// Execute runs the search, consulting the cache first.
func (t *SearchTool) Execute(ctx context.Context, args json.RawMessage) (tools.ToolResult, error) {
	var a searchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tools.FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}
	q := model.SearchQuery{Query: strings.TrimSpace(a.Query)}

	keyParts := []string{q.Normalized()}
	if t.source.StateScoped {
		st, ok := t.states.Lookup(a.State)
		if !ok {
			return tools.FailureResultf("Unknown state %q: use a full U.S. state or territory name such as \"Florida\".", a.State), nil
		}
		q.State = &st
		keyParts = append(keyParts, strconv.Itoa(st.StateID))
	}

	var fetchErr error
	cached := cache.GetOrCompute(ctx, t.cache, cache.Key(t.source.Tool, keyParts...), func(ctx context.Context) (string, bool) {
		hits, complete, err := t.search(ctx, q)
		if err != nil {
			fetchErr = err
			return "", false
		}
		data, err := json.Marshal(hits)
		if err != nil {
			fetchErr = err
			return "", false
		}
		return string(data), complete
	})
	if fetchErr != nil {
		return tools.FailureResultf("Failed to fetch %s: %v", t.source.FailureNoun, fetchErr), nil
	}

	var hits []hit
	if err := json.Unmarshal([]byte(cached), &hits); err != nil {
		return tools.FailureResultf("Failed to fetch %s: corrupt cached result: %v", t.source.FailureNoun, err), nil
	}
	return tools.SuccessResult(t.render(q.Query, hits)), nil
}

// search fetches, filters and, for summarizing sources, summarizes. complete
// is false when any summary fell back to the placeholder, so the result is
// not cached.
func (t *SearchTool) search(ctx context.Context, q model.SearchQuery) ([]hit, bool, error) {
	records, err := t.source.fetch(ctx, t.client, q.State)
	if err != nil {
		logx.Warn().Err(err).Str("tool", t.source.Tool).Str("query", q.Query).Msg("coverage source fetch failed")
		return nil, false, err
	}

	refs := make([]model.CoverageReference, 0, len(records))
	for _, r := range records {
		if ref, ok := t.source.reference(r); ok {
			refs = append(refs, ref)
		}
	}
	matched := match(refs, q.Query, t.source.Limit)

	hits := make([]hit, len(matched))
	for i, ref := range matched {
		hits[i] = hit{CoverageReference: ref}
	}
	if !t.source.Summarize || t.summarizer == nil || len(hits) == 0 {
		return hits, true, nil
	}
	return hits, t.summarize(ctx, hits), nil
}

// summarize fills each hit's summary concurrently. Summaries are cached
// per document URL; failures yield the placeholder.
func (t *SearchTool) summarize(ctx context.Context, hits []hit) bool {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		complete = true
	)
	for i := range hits {
		if hits[i].URL == "" {
			hits[i].Summary = SummaryPlaceholder
			mu.Lock()
			complete = false
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func(h *hit) {
			defer wg.Done()
			h.Summary = cache.GetOrCompute(ctx, t.cache, cache.URLKey("lcd-summary", h.URL), func(ctx context.Context) (string, bool) {
				summary, err := t.summarizer.Summarize(ctx, h.URL)
				if err != nil || strings.TrimSpace(summary) == "" {
					logx.Warn().Err(err).Str("url", h.URL).Msg("policy summary failed")
					mu.Lock()
					complete = false
					mu.Unlock()
					return SummaryPlaceholder, false
				}
				return strings.TrimSpace(summary), true
			})
		}(&hits[i])
	}
	wg.Wait()
	return complete
}

func (t *SearchTool) render(query string, hits []hit) string {
	if len(hits) == 0 {
		return fmt.Sprintf("No %s results found for %q.", t.source.Label, query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d %s result(s) for %q:\n", len(hits), t.source.Label, query)
	for i, h := range hits {
		fmt.Fprintf(&b, "\n%d. %s\n", i+1, h.Title)
		if h.DisplayID != "" {
			fmt.Fprintf(&b, "   ID: %s\n", h.DisplayID)
		}
		if h.URL != "" {
			fmt.Fprintf(&b, "   URL: %s\n", h.URL)
		}
		if h.EffectiveDate != "" {
			fmt.Fprintf(&b, "   Effective: %s\n", h.EffectiveDate)
		}
		if h.Summary != "" {
			fmt.Fprintf(&b, "   Summary: %s\n", h.Summary)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
