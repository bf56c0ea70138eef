package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wramirez09/langchain-agent-sub000/llm"
)

const summaryPrompt = `Summarize this Medicare coverage determination for a clinician checking prior-authorization requirements.
State the covered indications, key limitations, and any documentation requirements in at most five sentences.`

// Summarizer condenses a policy page into a short paragraph.
type Summarizer struct {
	fetcher Fetcher
	engine  Chatter
	window  int
	timeout time.Duration
}

// NewSummarizer creates a summarizer. window bounds the text sent to the engine.
func NewSummarizer(fetcher Fetcher, engine Chatter, window int, timeout time.Duration) *Summarizer {
	if window <= 0 {
		window = DefaultSummaryWindow
	}
	return &Summarizer{fetcher: fetcher, engine: engine, window: window, timeout: timeout}
}

// Summarize fetches pageURL and returns the engine's summary of it.
func (s *Summarizer) Summarize(ctx context.Context, pageURL string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	html, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	text := MainText(html, pageURL)
	if text == "" {
		return "", errors.New("page has no readable text")
	}

	resp, err := s.engine.Chat(ctx, []llm.ChatMessage{
		llm.SystemMessage(summaryPrompt),
		llm.UserMessage(truncate(text, s.window)),
	})
	if err != nil {
		return "", fmt.Errorf("summarize %s: %w", pageURL, err)
	}
	summary := strings.TrimSpace(resp.Content)
	if summary == "" {
		return "", errors.New("empty summary")
	}
	return summary, nil
}
