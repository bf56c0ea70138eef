package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/wramirez09/langchain-agent-sub000/agent"
	"github.com/wramirez09/langchain-agent-sub000/internal/errx"
	"github.com/wramirez09/langchain-agent-sub000/internal/logx"
	"github.com/wramirez09/langchain-agent-sub000/llm"
)

const headerUserID = "X-User-ID"

// Chat modes recorded in metrics.
const (
	modeStream = "stream"
	modeSteps  = "steps"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages              []chatMessage `json:"messages"`
	ShowIntermediateSteps bool          `json:"show_intermediate_steps"`
}

type chatResponse struct {
	Messages []chatMessage `json:"messages"`
}

// turns keeps user and assistant messages and reports whether any user
// message is present.
func (r chatRequest) turns() ([]llm.ChatMessage, bool) {
	turns := make([]llm.ChatMessage, 0, len(r.Messages))
	hasUser := false
	for _, m := range r.Messages {
		switch strings.ToLower(m.Role) {
		case "user":
			if strings.TrimSpace(m.Content) != "" {
				hasUser = true
			}
			turns = append(turns, llm.UserMessage(m.Content))
		case "assistant":
			turns = append(turns, llm.AssistantMessage(m.Content))
		}
	}
	return turns, hasUser
}

func (s *Server) handleChat(c echo.Context) error {
	var req chatRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return errx.New(err, http.StatusBadRequest, "invalid request body")
	}
	turns, ok := req.turns()
	if !ok {
		return errx.BadRequest("at least one user message is required")
	}
	userID := strings.TrimSpace(c.Request().Header.Get(headerUserID))

	if req.ShowIntermediateSteps {
		return s.chatSteps(c, req, turns, userID)
	}
	return s.chatStream(c, turns, userID)
}

// chatSteps runs the loop to completion and returns the input messages,
// one system message per tool step and the final answer.
func (s *Server) chatSteps(c echo.Context, req chatRequest, turns []llm.ChatMessage, userID string) error {
	res, err := s.deps.Assistant.Run(c.Request().Context(), turns)
	if err != nil {
		status, _ := classify(err)
		s.deps.Metrics.ObserveChat(modeSteps, status)
		return err
	}
	s.deps.Usage.Report(userID)

	out := chatResponse{Messages: append([]chatMessage(nil), req.Messages...)}
	for _, step := range res.Steps() {
		data, err := json.Marshal(step)
		if err != nil {
			return err
		}
		out.Messages = append(out.Messages, chatMessage{Role: "system", Content: string(data)})
	}
	out.Messages = append(out.Messages, chatMessage{Role: "assistant", Content: res.Answer})

	s.deps.Metrics.ObserveChat(modeSteps, http.StatusOK)
	return c.JSON(http.StatusOK, out)
}

type streamOutcome struct {
	result *agent.Result
	err    error
}

// chatStream forwards content chunks as plain text while the loop runs.
// A failure before the first byte becomes a JSON error response.
func (s *Server) chatStream(c echo.Context, turns []llm.ChatMessage, userID string) error {
	ctx := c.Request().Context()
	events := make(chan agent.Event, 64)
	done := make(chan streamOutcome, 1)
	go func() {
		res, err := s.deps.Assistant.Stream(ctx, turns, events)
		close(events)
		done <- streamOutcome{result: res, err: err}
	}()

	resp := c.Response()
	started := false
	start := func() {
		if started {
			return
		}
		started = true
		resp.Header().Set(echo.HeaderContentType, echo.MIMETextPlainCharsetUTF8)
		resp.Header().Set(echo.HeaderCacheControl, "no-cache")
		resp.Header().Set("X-Accel-Buffering", "no")
		resp.WriteHeader(http.StatusOK)
	}

	clientGone := false
	for ev := range events {
		if ev.Type != agent.EventContent || ev.Content == "" || clientGone {
			continue
		}
		start()
		if _, err := resp.Write([]byte(ev.Content)); err != nil {
			clientGone = true
			logx.Debug().Err(err).Msg("client went away, dropping stream output")
			continue
		}
		resp.Flush()
	}

	outcome := <-done
	if outcome.err != nil {
		status, _ := classify(outcome.err)
		s.deps.Metrics.ObserveChat(modeStream, status)
		if !started {
			return outcome.err
		}
		logx.Error().Err(outcome.err).Msg("agent failed after streaming started")
		return nil
	}

	start()
	s.deps.Usage.Report(userID)
	s.deps.Metrics.ObserveChat(modeStream, http.StatusOK)
	return nil
}
