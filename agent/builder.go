// Agent builder for fluent configuration.
//
// Information Hiding:
// - Builder state management hidden
// - Default value application hidden

package agent

import (
	"time"

	"github.com/wramirez09/langchain-agent-sub000/internal/metrics"
	"github.com/wramirez09/langchain-agent-sub000/tools"
)

// Builder provides fluent construction of an Agent.
// Usage: agent.NewBuilder(engine, executor).MaxIterations(8).Build()
type Builder struct {
	config   Config
	engine   Engine
	executor *tools.Executor
	metrics  *metrics.Metrics
}

// NewBuilder starts from DefaultConfig.
func NewBuilder(engine Engine, executor *tools.Executor) *Builder {
	return &Builder{
		config:   DefaultConfig(),
		engine:   engine,
		executor: executor,
	}
}

// Name sets the agent's log label.
func (b *Builder) Name(name string) *Builder {
	b.config.Name = name
	return b
}

// SystemPrompt replaces the system prompt template.
func (b *Builder) SystemPrompt(prompt string) *Builder {
	b.config.SystemPrompt = prompt
	return b
}

// MaxIterations sets the engine call budget.
func (b *Builder) MaxIterations(n int) *Builder {
	b.config.MaxIterations = n
	return b
}

// Clock sets the time source used to date the prompt.
func (b *Builder) Clock(now func() time.Time) *Builder {
	b.config.Now = now
	return b
}

// Metrics attaches collectors. Nil disables them.
func (b *Builder) Metrics(m *metrics.Metrics) *Builder {
	b.metrics = m
	return b
}

// Build creates the agent.
func (b *Builder) Build() *Agent {
	return New(b.config, b.engine, b.executor).WithMetrics(b.metrics)
}
