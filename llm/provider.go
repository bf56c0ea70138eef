// Package llm provides LLM provider abstractions.
//
// LLM Provider interface - the abstract interface for reasoning engines.
// Each provider implementation hides:
// - API client initialization and authentication
// - Request/response format conversion, including tool calls
// - Streaming protocol details
// - Provider-specific error types (see StatusCode)

package llm

import (
	"context"
)

// Provider defines the abstract interface for LLM providers.
// Implementations hide provider-specific details while exposing
// a consistent interface for chat completions.
type Provider interface {
	// Name returns the provider name (for logging/debugging).
	Name() string

	// Model returns the current model being used.
	Model() string

	// Chat sends a chat completion request.
	Chat(ctx context.Context, messages []ChatMessage) (LLMResponse, error)

	// ChatWithFormat sends a chat completion request with response format.
	ChatWithFormat(ctx context.Context, messages []ChatMessage, format *ResponseFormat) (LLMResponse, error)

	// ChatWithTools sends a chat completion request with tool definitions.
	// The LLM may respond with tool calls in LLMResponse.ToolCalls.
	ChatWithTools(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (LLMResponse, error)

	// StreamChatWithTools streams text chunks while the model generates and
	// returns the complete response, including any tool calls, once the
	// stream ends. The channel is never closed by the provider.
	StreamChatWithTools(ctx context.Context, messages []ChatMessage, tools []ToolDefinition, chunks chan<- string) (LLMResponse, error)
}

// send forwards a chunk unless the context is done first.
func send(ctx context.Context, chunks chan<- string, text string) error {
	if text == "" || chunks == nil {
		return nil
	}
	select {
	case chunks <- text:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
