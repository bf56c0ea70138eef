// HTTP transport.
//
// Information Hiding:
// - Echo wiring, middleware and route table
// - Error-to-status mapping
// - Listener lifecycle and graceful shutdown

package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/wramirez09/langchain-agent-sub000/agent"
	"github.com/wramirez09/langchain-agent-sub000/config"
	"github.com/wramirez09/langchain-agent-sub000/internal/logx"
	"github.com/wramirez09/langchain-agent-sub000/internal/metrics"
	"github.com/wramirez09/langchain-agent-sub000/llm"
	"github.com/wramirez09/langchain-agent-sub000/states"
	"github.com/wramirez09/langchain-agent-sub000/tools"
	"github.com/wramirez09/langchain-agent-sub000/usage"
)

// Assistant is the agent loop as used by the transport.
type Assistant interface {
	Run(ctx context.Context, turns []llm.ChatMessage) (*agent.Result, error)
	Stream(ctx context.Context, turns []llm.ChatMessage, events chan<- agent.Event) (*agent.Result, error)
}

// Deps are the collaborators the server exposes.
type Deps struct {
	Assistant Assistant
	Catalog   *tools.Registry
	States    *states.Directory
	Usage     *usage.Reporter
	Metrics   *metrics.Metrics
}

// Server is the HTTP front of the assistant.
type Server struct {
	echo            *echo.Echo
	deps            Deps
	addr            string
	shutdownTimeout time.Duration
}

// New builds the server and registers its routes.
func New(cfg config.ServerConfig, deps Deps) *Server {
	if deps.Usage == nil {
		deps.Usage = usage.NewReporter(usage.Noop{}, 0, deps.Metrics)
	}
	if deps.States == nil {
		deps.States = states.New()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logx.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("duration", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, headerUserID},
	}))

	s := &Server{
		echo:            e,
		deps:            deps,
		addr:            cfg.Addr,
		shutdownTimeout: cfg.ShutdownTimeout,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if s.deps.Metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.deps.Metrics.Handler()))
	}

	api := s.echo.Group("/api")
	api.POST("/chat", s.handleChat)
	api.GET("/tools", s.handleTools)
	api.GET("/states", s.handleStates)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is done, then shuts down and waits for in-flight
// usage reports.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logx.Info().Str("addr", s.addr).Msg("HTTP server listening")
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.shutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	logx.Info().Dur("timeout", timeout).Msg("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := s.echo.Shutdown(shutdownCtx)
	s.deps.Usage.Wait()
	return err
}

type toolInfo struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  []tools.ToolParameter  `json:"parameters"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

func (s *Server) handleTools(c echo.Context) error {
	list := []toolInfo{}
	if s.deps.Catalog != nil {
		for _, meta := range s.deps.Catalog.List() {
			list = append(list, toolInfo{
				Name:        meta.Name,
				Description: meta.Description,
				Parameters:  meta.Parameters,
				InputSchema: meta.InputSchema(),
			})
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"tools": list})
}

func (s *Server) handleStates(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{"states": s.deps.States.All()})
}
