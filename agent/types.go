// Package agent runs the think, act, observe loop of the prior-authorization
// assistant.
//
// Contains the event, step and result types produced by the loop.
package agent

import (
	"encoding/json"

	"github.com/wramirez09/langchain-agent-sub000/llm"
)

// EventType distinguishes loop events.
type EventType string

const (
	// EventContent carries a chunk of model-generated text.
	EventContent EventType = "content"
	// EventToolStart is emitted when a tool call is dispatched.
	EventToolStart EventType = "tool_start"
	// EventToolEnd carries a tool's observation.
	EventToolEnd EventType = "tool_end"
)

// Event is one item of the loop's streamed output.
type Event struct {
	Type    EventType       `json:"type"`
	Content string          `json:"content,omitempty"`
	Tool    string          `json:"tool,omitempty"`
	CallID  string          `json:"call_id,omitempty"`
	Input   json.RawMessage `json:"input,omitempty"`
	Output  string          `json:"output,omitempty"`
}

// Action is the tool call half of a step.
type Action struct {
	Tool      string          `json:"tool"`
	ToolInput json.RawMessage `json:"tool_input"`
	Log       string          `json:"log"`
}

// Step pairs one tool call with its observation.
type Step struct {
	Action      Action `json:"action"`
	Observation string `json:"observation"`
}

// Result is the outcome of one agent invocation.
type Result struct {
	Answer     string
	Turns      []llm.ChatMessage
	Usage      llm.TokenUsage
	Iterations int
	// Exhausted is set when the iteration budget ran out before a final answer.
	Exhausted bool
}

// Steps partitions the result's history into tool steps.
func (r *Result) Steps() []Step {
	return Steps(r.Turns)
}
