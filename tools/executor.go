// Tool Executor.
//
// Information Hiding:
// - Name resolution and the unknown-tool path
// - Schema gate ahead of every tool call
// - Panic containment and outcome metrics

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wramirez09/langchain-agent-sub000/internal/logx"
	"github.com/wramirez09/langchain-agent-sub000/internal/metrics"
)

// Tool outcomes recorded in metrics.
const (
	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
	OutcomeInvalid = "invalid"
	OutcomeUnknown = "unknown"
)

// Executor resolves tools by name and runs each call exactly once. It never
// returns a Go error: every failure is carried by the ToolResult.
type Executor struct {
	registry *Registry
	metrics  *metrics.Metrics
}

// NewExecutor creates an executor over the registry. m may be nil.
func NewExecutor(registry *Registry, m *metrics.Metrics) *Executor {
	return &Executor{registry: registry, metrics: m}
}

// Registry returns the catalog the executor dispatches into.
func (e *Executor) Registry() *Registry {
	return e.registry
}

// Execute runs the named tool. Arguments that fail the tool's schema or
// its own Validate are rejected before the tool is called.
func (e *Executor) Execute(ctx context.Context, name string, args json.RawMessage) (result ToolResult) {
	start := time.Now()
	outcome := OutcomeOK
	defer func() {
		e.metrics.ObserveTool(name, outcome, time.Since(start))
		logx.Debug().
			Str("tool", name).
			Str("outcome", outcome).
			Dur("duration", time.Since(start)).
			Msg("tool call finished")
	}()

	tool, ok := e.registry.Get(name)
	if !ok {
		outcome = OutcomeUnknown
		return FailureResultf("unknown tool %q", name)
	}

	if err := e.registry.Validate(name, args); err != nil {
		outcome = OutcomeInvalid
		return FailureResultf("invalid arguments for %s: %v", name, err)
	}
	if err := tool.Validate(args); err != nil {
		outcome = OutcomeInvalid
		return FailureResultf("invalid arguments for %s: %v", name, err)
	}

	defer func() {
		if r := recover(); r != nil {
			outcome = OutcomeFailed
			logx.Error().Str("tool", name).Interface("panic", r).Msg("tool panicked")
			result = FailureResultf("%s failed: internal error", name)
		}
	}()

	result, err := tool.Execute(ctx, args)
	if err != nil {
		outcome = OutcomeFailed
		return FailureResult(fmt.Errorf("%s failed: %w", name, err))
	}
	if !result.Success() {
		outcome = OutcomeFailed
	}
	return result
}
