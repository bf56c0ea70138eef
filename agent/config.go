// Agent configuration types.
//
// Information Hiding:
// - Default values
// - Clock used to date the system prompt

package agent

import (
	"time"
)

// DefaultMaxIterations bounds engine round-trips per request.
const DefaultMaxIterations = 10

// Config holds agent configuration.
type Config struct {
	// Name labels the agent in logs.
	Name string

	// SystemPrompt is a template with one %s verb for today's date.
	SystemPrompt string

	// MaxIterations bounds engine calls per request.
	MaxIterations int

	// Now supplies the date written into the system prompt.
	Now func() time.Time
}

// DefaultConfig returns the prior-authorization assistant configuration.
func DefaultConfig() Config {
	return Config{
		Name:          "priorauth",
		SystemPrompt:  DefaultSystemPrompt,
		MaxIterations: DefaultMaxIterations,
		Now:           time.Now,
	}
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "priorauth"
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = DefaultSystemPrompt
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}
