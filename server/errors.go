package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/wramirez09/langchain-agent-sub000/internal/errx"
	"github.com/wramirez09/langchain-agent-sub000/internal/logx"
	"github.com/wramirez09/langchain-agent-sub000/llm"
)

// errorResponse is the body of every error reply.
type errorResponse struct {
	Error string `json:"error"`
}

// classify picks the status and message for err. Provider errors keep the
// status the provider returned.
func classify(err error) (int, string) {
	if status, ok := errx.Status(err); ok {
		return status, err.Error()
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		return he.Code, msg
	}
	if status, ok := llm.StatusCode(err); ok && status >= 400 && status < 600 {
		return status, err.Error()
	}
	return http.StatusInternalServerError, err.Error()
}

func errorHandler(err error, c echo.Context) {
	code, msg := classify(err)
	req := c.Request()
	event := logx.Warn()
	if code >= http.StatusInternalServerError {
		event = logx.Error()
	}
	event.Err(err).
		Int("status", code).
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Msg("request failed")

	if !c.Response().Committed {
		_ = c.JSON(code, errorResponse{Error: msg})
	}
}
