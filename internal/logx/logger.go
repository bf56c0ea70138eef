// Package logx configures the process-wide zerolog logger.
//
// Information Hiding:
// - Writer selection per environment
// - Level defaults
package logx

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Environment names the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Testing     Environment = "testing"
	Production  Environment = "production"
)

// ParseEnvironment maps a raw value onto a known environment.
// Unknown values fall back to Development.
func ParseEnvironment(v string) Environment {
	switch Environment(v) {
	case Production:
		return Production
	case Testing:
		return Testing
	default:
		return Development
	}
}

// IsProduction reports whether e is the production environment.
func (e Environment) IsProduction() bool {
	return e == Production
}

// Options controls logger initialisation.
type Options struct {
	Environment Environment
	// Verbose forces debug level regardless of environment.
	Verbose bool
}

// Init replaces the global logger. Production logs JSON at info level,
// everything else logs to a console writer at debug level.
func Init(opts Options) {
	if opts.Environment.IsProduction() {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.InfoLevel)
	} else {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			With().Timestamp().Caller().Logger().
			Level(zerolog.DebugLevel)
	}
	if opts.Verbose {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	}
}

// Quiet raises the global level so only warnings and errors are written.
// Used by interactive commands whose stdout carries the answer.
func Quiet() {
	log.Logger = log.Logger.Level(zerolog.WarnLevel)
}

func Debug() *zerolog.Event {
	return log.Debug()
}

func Info() *zerolog.Event {
	return log.Info()
}

func Warn() *zerolog.Event {
	return log.Warn()
}

func Error() *zerolog.Event {
	return log.Error()
}

func Fatal() *zerolog.Event {
	return log.Fatal()
}
