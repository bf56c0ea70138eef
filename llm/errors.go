// Provider error classification.
//
// Information Hiding:
// - Each SDK's error type and where it keeps the HTTP status

package llm

import (
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

// StatusCode returns the HTTP status embedded in a provider error, if any.
// It looks through wrapping, so errors returned by every Provider method
// can be passed as is.
func StatusCode(err error) (int, bool) {
	if err == nil {
		return 0, false
	}

	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) && anthropicErr.StatusCode > 0 {
		return anthropicErr.StatusCode, true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return apiErr.HTTPStatusCode, true
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return reqErr.HTTPStatusCode, true
	}

	var geminiErr genai.APIError
	if errors.As(err, &geminiErr) && geminiErr.Code > 0 {
		return geminiErr.Code, true
	}

	return 0, false
}
