package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func newTestOpenAIProvider(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	return &OpenAIProvider{
		client:    openai.NewClientWithConfig(cfg),
		model:     ModelOpenAIGPT4o,
		maxTokens: 100,
	}
}

func TestOpenAIStreamAssemblesToolCalls(t *testing.T) {
	events := []string{
		`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"role":"assistant","content":"Let me "}}]}`,
		`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"check."}}]}`,
		`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"search_ncd","arguments":"{\"qu"}}]}}]}`,
		`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"ery\":\"mri\"}"}}]}}]}`,
		`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"tool_calls":[{"index":1,"id":"call_2","type":"function","function":{"name":"search_carelon_guidelines","arguments":"{\"query\":\"mri\"}"}}]}}]}`,
		`{"id":"1","object":"chat.completion.chunk","choices":[],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`,
	}

	provider := newTestOpenAIProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		assert.Len(t, req.Tools, 1)

		w.Header().Set("Content-Type", "text/event-stream")
		for _, e := range events {
			fmt.Fprintf(w, "data: %s\n\n", e)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	chunks := make(chan string, 10)
	tools := []ToolDefinition{{Name: "search_ncd", Parameters: map[string]interface{}{"type": "object"}}}
	resp, err := provider.StreamChatWithTools(context.Background(), []ChatMessage{UserMessage("mri")}, tools, chunks)
	require.NoError(t, err)
	close(chunks)

	var streamed string
	for c := range chunks {
		streamed += c
	}
	assert.Equal(t, "Let me check.", streamed)
	assert.Equal(t, "Let me check.", resp.Content)

	require.Len(t, resp.ToolCalls, 2)
	assert.Equal(t, "call_1", resp.ToolCalls[0].ID)
	assert.Equal(t, "search_ncd", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"query":"mri"}`, string(resp.ToolCalls[0].Arguments))
	assert.Equal(t, "call_2", resp.ToolCalls[1].ID)
	assert.Equal(t, "search_carelon_guidelines", resp.ToolCalls[1].Name)

	require.NotNil(t, resp.Usage)
	assert.Equal(t, uint32(15), resp.Usage.TotalTokens)
}

func TestOpenAIErrorCarriesStatus(t *testing.T) {
	provider := newTestOpenAIProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"rate limited","type":"rate_limit_error"}}`)
	})

	_, err := provider.ChatWithTools(context.Background(), []ChatMessage{UserMessage("hi")}, nil)
	require.Error(t, err)

	status, ok := StatusCode(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, status)
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		want   int
		wantOK bool
	}{
		{"nil", nil, 0, false},
		{"plain", errors.New("boom"), 0, false},
		{"openai api error", fmt.Errorf("chat: %w", &openai.APIError{HTTPStatusCode: 401}), 401, true},
		{"openai request error", &openai.RequestError{HTTPStatusCode: 502}, 502, true},
		{"anthropic", fmt.Errorf("chat: %w", &anthropic.Error{StatusCode: 529}), 529, true},
		{"gemini", fmt.Errorf("chat: %w", genai.APIError{Code: 503}), 503, true},
		{"zero status", &openai.APIError{}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := StatusCode(tt.err)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToolCallAssemblerDefaultsEmptyArguments(t *testing.T) {
	var a toolCallAssembler
	idx := 0
	a.add(openai.ToolCall{Index: &idx, ID: "c1", Function: openai.FunctionCall{Name: "search_ncd"}})

	calls := a.toolCalls()
	require.Len(t, calls, 1)
	assert.JSONEq(t, `{}`, string(calls[0].Arguments))
}

func TestConvertToOpenAIFormat(t *testing.T) {
	assert.Nil(t, convertToOpenAIFormat(nil))

	f := convertToOpenAIFormat(NewJSONObjectFormat())
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, f.Type)
	assert.Nil(t, f.JSONSchema)

	schema := json.RawMessage(`{"type":"object"}`)
	f = convertToOpenAIFormat(NewJSONSchemaFormat("policy", schema))
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONSchema, f.Type)
	require.NotNil(t, f.JSONSchema)
	assert.Equal(t, "policy", f.JSONSchema.Name)
}

func toolTurn() []ChatMessage {
	return []ChatMessage{
		SystemMessage("be brief"),
		UserMessage("mri lumbar spine in Florida"),
		{
			Role: "assistant",
			ToolCalls: []ToolCall{
				{ID: "a", Name: "search_ncd", Arguments: json.RawMessage(`{"query":"mri"}`)},
				{ID: "b", Name: "search_local_lcd", Arguments: json.RawMessage(`{"query":"mri","state":"Florida"}`)},
			},
		},
		ToolMessage("a", "search_ncd", "ncd result"),
		ToolMessage("b", "search_local_lcd", "lcd result"),
	}
}

func TestAnthropicMergesConsecutiveToolResults(t *testing.T) {
	msgs, system := convertToAnthropicMessagesWithTools(toolTurn())

	assert.Equal(t, "be brief", system)
	require.Len(t, msgs, 3)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[1].Role)
	assert.Len(t, msgs[1].Content, 2)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[2].Role)
	require.Len(t, msgs[2].Content, 2)
	assert.Equal(t, "a", msgs[2].Content[0].OfToolResult.ToolUseID)
	assert.Equal(t, "b", msgs[2].Content[1].OfToolResult.ToolUseID)
}

func TestGeminiMergesConsecutiveToolResults(t *testing.T) {
	contents, system := convertToGeminiMessagesWithTools(toolTurn())

	assert.Equal(t, "be brief", system)
	require.Len(t, contents, 3)
	require.Len(t, contents[2].Parts, 2)
	assert.Equal(t, "search_ncd", contents[2].Parts[0].FunctionResponse.Name)
	assert.Equal(t, map[string]any{"result": "ncd result"}, contents[2].Parts[0].FunctionResponse.Response)
	assert.Equal(t, "search_local_lcd", contents[2].Parts[1].FunctionResponse.Name)
}

func TestGeminiSchemaKeepsConstraints(t *testing.T) {
	schema := convertToGeminiSchema(map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url":   map[string]interface{}{"type": "string", "pattern": "^https?://", "minLength": 1},
			"limit": map[string]interface{}{"type": "integer"},
		},
		"required": []string{"url"},
	})

	assert.Equal(t, genai.TypeObject, schema.Type)
	assert.Equal(t, []string{"url"}, schema.Required)
	assert.Equal(t, "^https?://", schema.Properties["url"].Pattern)
	require.NotNil(t, schema.Properties["url"].MinLength)
	assert.Equal(t, int64(1), *schema.Properties["url"].MinLength)
	assert.Equal(t, genai.TypeInteger, schema.Properties["limit"].Type)
}

func TestGeminiToolCallDerivesMissingID(t *testing.T) {
	call := geminiToolCall(&genai.FunctionCall{Name: "search_ncd"}, 2)
	assert.Equal(t, "search_ncd-2", call.ID)
	assert.JSONEq(t, `{}`, string(call.Arguments))

	call = geminiToolCall(&genai.FunctionCall{ID: "fc-9", Name: "search_ncd", Args: map[string]any{"query": "mri"}}, 0)
	assert.Equal(t, "fc-9", call.ID)
	assert.JSONEq(t, `{"query":"mri"}`, string(call.Arguments))
}

func TestWithSchemaInstruction(t *testing.T) {
	schema := &JSONSchemaFormat{Name: "policy", Schema: json.RawMessage(`{"type":"object"}`)}

	got := withSchemaInstruction([]ChatMessage{SystemMessage("extract"), UserMessage("page")}, schema)
	require.Len(t, got, 2)
	assert.Contains(t, got[0].Content, "extract")
	assert.Contains(t, got[0].Content, `{"type":"object"}`)

	got = withSchemaInstruction([]ChatMessage{UserMessage("page")}, schema)
	require.Len(t, got, 2)
	assert.Equal(t, "system", got[0].Role)
	assert.Contains(t, got[0].Content, "(policy)")
}

func TestParseProviderType(t *testing.T) {
	tests := []struct {
		in    string
		want  ProviderType
		model string
	}{
		{" Claude ", ProviderAnthropic, ModelAnthropicClaudeSonnet4},
		{"openai", ProviderOpenAI, ModelOpenAIGPT4o},
		{"GPT", ProviderOpenAI, ModelOpenAIGPT4o},
		{"deepseek", ProviderDeepSeek, ModelDeepSeekChat},
		{"google", ProviderGemini, ModelGeminiFlash25},
	}
	for _, tt := range tests {
		p, err := ParseProviderType(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, p)
		assert.Equal(t, tt.model, p.DefaultModel())
	}

	_, err := ParseProviderType("mistral")
	assert.Error(t, err)
}

func TestProviderBuilder(t *testing.T) {
	p, err := ProviderAnthropic.Model(ModelAnthropicClaudeHaiku35).MaxTokens(512).Temperature(0).APIKey("k")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())
	assert.Equal(t, ModelAnthropicClaudeHaiku35, p.Model())

	p, err = ProviderDeepSeek.APIKey("k")
	require.NoError(t, err)
	assert.Equal(t, ModelDeepSeekChat, p.Model())

	t.Setenv("OPENAI_API_KEY", "")
	_, err = ProviderOpenAI.FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")

	_, err = ProviderType(42).APIKey("k")
	assert.Error(t, err)
	assert.Equal(t, "unknown", ProviderType(42).String())
}
