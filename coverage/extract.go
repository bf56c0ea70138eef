package coverage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/wramirez09/langchain-agent-sub000/cache"
	"github.com/wramirez09/langchain-agent-sub000/tools"
)

// PolicyExtractor turns a policy page into details JSON, or an error
// envelope with ok set to false.
type PolicyExtractor interface {
	Extract(ctx context.Context, pageURL string) (out string, ok bool)
}

// ExtractTool exposes the policy content extractor to the agent.
// Successful extractions are cached per URL.
type ExtractTool struct {
	tools.BaseTool
	extractor PolicyExtractor
	cache     cache.Cache
}

var _ tools.Tool = (*ExtractTool)(nil)

// NewExtractTool creates the extract_policy_details tool. c may be nil.
func NewExtractTool(extractor PolicyExtractor, c cache.Cache) *ExtractTool {
	return &ExtractTool{extractor: extractor, cache: c}
}

// Metadata returns the tool metadata.
func (t *ExtractTool) Metadata() tools.ToolMetadata {
	return tools.ToolMetadata{
		Name: "extract_policy_details",
		Description: "Fetch a coverage policy page and extract structured details: whether prior authorization is required, " +
			"medical necessity criteria, ICD-10 and CPT codes, required documentation and exclusions. " +
			"Call it for every relevant policy URL returned by a search before answering.",
		Parameters: []tools.ToolParameter{
			{
				Name:        "url",
				ParamType:   "string",
				Description: "Absolute http(s) URL of the policy document",
				Required:    true,
				Pattern:     "^https?://",
			},
		},
	}
}

type extractArgs struct {
	URL string `json:"url"`
}

// Validate rejects blank URLs.
func (t *ExtractTool) Validate(args json.RawMessage) error {
	var a extractArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(a.URL) == "" {
		return errors.New("url cannot be blank")
	}
	return nil
}

// Execute extracts the page. An error envelope is a failed result whose
// observation is the envelope JSON.
func (t *ExtractTool) Execute(ctx context.Context, args json.RawMessage) (tools.ToolResult, error) {
	var a extractArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tools.FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}
	pageURL := strings.TrimSpace(a.URL)

	ok := true
	out := cache.GetOrCompute(ctx, t.cache, cache.URLKey("extract", pageURL), func(ctx context.Context) (string, bool) {
		var value string
		value, ok = t.extractor.Extract(ctx, pageURL)
		return value, ok
	})
	if !ok {
		return tools.FailureResult(errors.New(out)), nil
	}
	return tools.SuccessResult(out), nil
}
