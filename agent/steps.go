package agent

import (
	"encoding/json"

	"github.com/wramirez09/langchain-agent-sub000/llm"
)

// Steps pairs every tool call in turns with the tool turn answering it,
// in dispatch order. A call with no answer gets an empty observation.
func Steps(turns []llm.ChatMessage) []Step {
	observations := make(map[string]string)
	for _, t := range turns {
		if t.Role == "tool" && t.ToolCallID != "" {
			observations[t.ToolCallID] = t.Content
		}
	}

	var steps []Step
	for _, t := range turns {
		if t.Role != "assistant" {
			continue
		}
		for _, call := range t.ToolCalls {
			input := call.Arguments
			if len(input) == 0 {
				input = json.RawMessage("{}")
			}
			steps = append(steps, Step{
				Action: Action{
					Tool:      call.Name,
					ToolInput: input,
					Log:       t.Content,
				},
				Observation: observations[call.ID],
			})
		}
	}
	return steps
}
