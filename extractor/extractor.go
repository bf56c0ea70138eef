// Policy content extractor.
//
// Information Hiding:
// - Page retrieval and boilerplate stripping
// - Structured-extraction prompt and output schema
// - Error envelope format returned in place of details

package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/wramirez09/langchain-agent-sub000/internal/logx"
	"github.com/wramirez09/langchain-agent-sub000/llm"
)

// Envelope messages.
const (
	ErrFetchFailed      = "Failed to fetch policy page"
	ErrInsufficientText = "Insufficient content extracted from page"
	ErrExtractionFailed = "Structured extraction failed"
	ErrSchemaMismatch   = "Extraction response did not match the policy schema"
)

// Default text windows, in bytes.
const (
	DefaultExtractWindow = 30000
	DefaultSummaryWindow = 8000
)

const extractionPrompt = `You extract prior-authorization facts from a healthcare coverage policy document.
Use only the document text. Do not guess.
- priorAuthRequired: YES if the policy requires prior authorization, NO if it states none is needed,
  CONDITIONAL if it depends on circumstances, UNKNOWN if the text does not say.
- medicalNecessityCriteria: each criterion as a separate string, in document order.
- icd10Codes and cptCodes: every code listed, with its description and whether the policy
  treats it as covered, excluded or unspecified.
- requiredDocumentation: records the provider must submit.
- limitationsExclusions: limitations, frequency limits and exclusions.
- summary: two or three sentences.`

// Chatter is the slice of a reasoning engine the extractor needs.
type Chatter interface {
	Chat(ctx context.Context, messages []llm.ChatMessage) (llm.LLMResponse, error)
	ChatWithFormat(ctx context.Context, messages []llm.ChatMessage, format *llm.ResponseFormat) (llm.LLMResponse, error)
}

// Envelope is returned instead of details when extraction is not possible.
type Envelope struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// Extractor fetches policy pages and turns them into structured details.
type Extractor struct {
	fetcher Fetcher
	engine  Chatter
	window  int
	timeout time.Duration
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithWindow bounds how much cleaned text is sent to the engine.
func WithWindow(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.window = n
		}
	}
}

// WithTimeout bounds one whole extraction, fetch and engine call included.
func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) { e.timeout = d }
}

// New creates an extractor.
func New(fetcher Fetcher, engine Chatter, opts ...Option) *Extractor {
	e := &Extractor{
		fetcher: fetcher,
		engine:  engine,
		window:  DefaultExtractWindow,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the details JSON and true, or an envelope JSON and false.
// It never returns an empty string.
func (e *Extractor) Extract(ctx context.Context, pageURL string) (string, bool) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	html, err := e.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		logx.Warn().Err(err).Str("url", pageURL).Msg("policy page fetch failed")
		return envelope(ErrFetchFailed, err.Error()), false
	}

	text := MainText(html, pageURL)
	if n := utf8.RuneCountInString(text); n < MinContentLength {
		return envelope(ErrInsufficientText,
			fmt.Sprintf("only %d characters of text found at %s", n, pageURL)), false
	}

	messages := []llm.ChatMessage{
		llm.SystemMessage(extractionPrompt),
		llm.UserMessage("Policy URL: " + pageURL + "\n\nDocument text:\n" + truncate(text, e.window)),
	}
	resp, err := e.engine.ChatWithFormat(ctx, messages, llm.NewJSONSchemaFormat("policy_details", DetailsSchema()))
	if err != nil {
		logx.Warn().Err(err).Str("url", pageURL).Msg("structured extraction failed")
		return envelope(ErrExtractionFailed, err.Error()), false
	}

	details, err := ParseDetails(resp.Content)
	if err != nil {
		logx.Debug().Err(err).Str("url", pageURL).Msg("extraction reply rejected")
		return envelope(ErrSchemaMismatch, err.Error()), false
	}
	details.SourceURL = pageURL

	out, err := json.Marshal(details)
	if err != nil {
		return envelope(ErrSchemaMismatch, err.Error()), false
	}
	return string(out), true
}

func envelope(msg, details string) string {
	out, _ := json.Marshal(Envelope{Error: msg, Details: details})
	return string(out)
}
