// Think, act, observe loop implementation.
//
// All agent execution goes through this module.
//
// Information Hiding:
// - Loop state machine and iteration budget
// - Reasoning engine communication and streaming
// - Concurrent tool dispatch and observation ordering

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/wramirez09/langchain-agent-sub000/internal/logx"
	"github.com/wramirez09/langchain-agent-sub000/internal/metrics"
	"github.com/wramirez09/langchain-agent-sub000/llm"
	"github.com/wramirez09/langchain-agent-sub000/tools"
)

// Engine is the reasoning engine as seen by the loop.
type Engine interface {
	ChatWithTools(ctx context.Context, messages []llm.ChatMessage, tools []llm.ToolDefinition) (llm.LLMResponse, error)
	StreamChatWithTools(ctx context.Context, messages []llm.ChatMessage, tools []llm.ToolDefinition, chunks chan<- string) (llm.LLMResponse, error)
}

// exhaustedAnswer closes a conversation whose iteration budget ran out.
const exhaustedAnswer = "I could not finish researching this request within %d steps. " +
	"Please narrow the question (treatment, insurance provider and state) and try again."

// Agent runs the loop against one engine and tool catalog. Safe for
// concurrent use; every call keeps its own history.
type Agent struct {
	config   Config
	engine   Engine
	executor *tools.Executor
	metrics  *metrics.Metrics
}

// New creates an agent.
func New(config Config, engine Engine, executor *tools.Executor) *Agent {
	return &Agent{
		config:   config.withDefaults(),
		engine:   engine,
		executor: executor,
	}
}

// WithMetrics attaches collectors. Nil disables them.
func (a *Agent) WithMetrics(m *metrics.Metrics) *Agent {
	a.metrics = m
	return a
}

// Name returns the agent's log label.
func (a *Agent) Name() string {
	return a.config.Name
}

// Run executes the loop without streaming.
func (a *Agent) Run(ctx context.Context, turns []llm.ChatMessage) (*Result, error) {
	return a.run(ctx, turns, nil)
}

// Stream executes the loop, sending token and tool events as they happen.
// events is not closed. Sends stop once ctx is done; the loop itself
// keeps going until the current engine call returns.
func (a *Agent) Stream(ctx context.Context, turns []llm.ChatMessage, events chan<- Event) (*Result, error) {
	return a.run(ctx, turns, events)
}

func (a *Agent) run(ctx context.Context, turns []llm.ChatMessage, events chan<- Event) (*Result, error) {
	startTime := time.Now()
	conversation := a.prepare(turns)
	definitions := a.executor.Registry().Definitions()

	result := &Result{}
	for iteration := 1; iteration <= a.config.MaxIterations; iteration++ {
		result.Iterations = iteration

		// Think
		resp, err := a.think(ctx, conversation, definitions, events)
		a.metrics.ObserveEngine(err)
		if err != nil {
			logx.Error().Err(err).Str("agent", a.config.Name).Int("iteration", iteration).Msg("reasoning engine call failed")
			return nil, fmt.Errorf("reasoning engine call failed: %w", err)
		}
		result.Usage.Add(resp.Usage)

		if len(resp.ToolCalls) == 0 {
			conversation = append(conversation, llm.AssistantMessage(resp.Content))
			result.Answer = resp.Content
			result.Turns = conversation
			logx.Debug().
				Str("agent", a.config.Name).
				Int("iterations", iteration).
				Dur("duration", time.Since(startTime)).
				Msg("agent finished")
			return result, nil
		}

		// Act
		calls := withCallIDs(resp.ToolCalls, iteration)
		conversation = append(conversation, llm.ChatMessage{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: calls,
		})
		observations := a.dispatch(ctx, calls, events)

		// Observe
		for i, call := range calls {
			conversation = append(conversation, llm.ToolMessage(call.ID, call.Name, observations[i]))
		}
	}

	answer := fmt.Sprintf(exhaustedAnswer, a.config.MaxIterations)
	a.emit(ctx, events, Event{Type: EventContent, Content: answer})
	logx.Warn().Str("agent", a.config.Name).Int("max_iterations", a.config.MaxIterations).Msg("iteration budget exhausted")

	result.Answer = answer
	result.Turns = append(conversation, llm.AssistantMessage(answer))
	result.Exhausted = true
	return result, nil
}

// prepare prepends the dated system prompt unless the history has one.
func (a *Agent) prepare(turns []llm.ChatMessage) []llm.ChatMessage {
	conversation := make([]llm.ChatMessage, 0, len(turns)+8)
	if len(turns) == 0 || turns[0].Role != "system" {
		date := a.config.Now().Format("January 2, 2006")
		conversation = append(conversation, llm.SystemMessage(fmt.Sprintf(a.config.SystemPrompt, date)))
	}
	return append(conversation, turns...)
}

// think asks the engine for the next response, streaming text chunks
// as content events when events is set.
func (a *Agent) think(ctx context.Context, conversation []llm.ChatMessage, definitions []llm.ToolDefinition, events chan<- Event) (llm.LLMResponse, error) {
	if events == nil {
		return a.engine.ChatWithTools(ctx, conversation, definitions)
	}

	chunks := make(chan string, 64)
	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		for chunk := range chunks {
			a.emit(ctx, events, Event{Type: EventContent, Content: chunk})
		}
	}()

	resp, err := a.engine.StreamChatWithTools(ctx, conversation, definitions, chunks)
	close(chunks)
	<-forwarded
	return resp, err
}

// dispatch runs every call concurrently and waits for all of them.
// Observations are returned in call order whatever the completion order.
// Calls run on a context detached from client cancellation.
func (a *Agent) dispatch(ctx context.Context, calls []llm.ToolCall, events chan<- Event) []string {
	toolCtx := context.WithoutCancel(ctx)
	observations := make([]string, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		a.emit(ctx, events, Event{Type: EventToolStart, Tool: call.Name, CallID: call.ID, Input: call.Arguments})
		wg.Add(1)
		go func() {
			defer wg.Done()
			observations[i] = a.executor.Execute(toolCtx, call.Name, call.Arguments).Observation()
			a.emit(ctx, events, Event{Type: EventToolEnd, Tool: call.Name, CallID: call.ID, Output: observations[i]})
		}()
	}
	wg.Wait()
	return observations
}

// emit sends ev unless events is nil or ctx is done.
func (a *Agent) emit(ctx context.Context, events chan<- Event, ev Event) {
	if events == nil {
		return
	}
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

// withCallIDs fills in missing call ids and empty arguments.
func withCallIDs(calls []llm.ToolCall, iteration int) []llm.ToolCall {
	out := make([]llm.ToolCall, len(calls))
	for i, call := range calls {
		if call.ID == "" {
			call.ID = fmt.Sprintf("call_%d_%d", iteration, i)
		}
		if len(call.Arguments) == 0 {
			call.Arguments = json.RawMessage("{}")
		}
		out[i] = call
	}
	return out
}
