// Command execution for CLI commands.
//
// Information Hiding:
// - Command dispatch logic hidden
// - Streaming output and step formatting hidden
// - Usage database access hidden

package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/wramirez09/langchain-agent-sub000/agent"
	"github.com/wramirez09/langchain-agent-sub000/internal/logx"
	"github.com/wramirez09/langchain-agent-sub000/llm"
	"github.com/wramirez09/langchain-agent-sub000/server"
	"github.com/wramirez09/langchain-agent-sub000/states"
	"github.com/wramirez09/langchain-agent-sub000/storage"
	"github.com/wramirez09/langchain-agent-sub000/usage"
)

// Serve runs the HTTP transport until ctx is done.
func Serve(ctx context.Context, opts Options) error {
	app, err := NewApp(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logx.Warn().Err(err).Msg("close resources")
		}
	}()

	srv := server.New(app.Settings.Server, server.Deps{
		Assistant: app.Agent,
		Catalog:   app.Catalog,
		States:    app.States,
		Usage:     app.Usage,
		Metrics:   app.Metrics,
	})
	return srv.Run(ctx)
}

// Ask answers one question, streaming the answer to w. userID, when set,
// is billed one chat unit.
func Ask(ctx context.Context, w io.Writer, question, userID string, showSteps bool, opts Options) error {
	if !opts.Verbose {
		logx.Quiet()
	}
	app, err := NewApp(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logx.Warn().Err(err).Msg("close resources")
		}
	}()

	events := make(chan agent.Event, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			switch ev.Type {
			case agent.EventContent:
				fmt.Fprint(w, ev.Content)
			case agent.EventToolStart:
				if opts.Verbose {
					logx.Info().Str("tool", ev.Tool).RawJSON("input", nonEmptyJSON(ev.Input)).Msg("tool started")
				}
			}
		}
	}()

	start := time.Now()
	res, err := app.Agent.Stream(ctx, []llm.ChatMessage{llm.UserMessage(question)}, events)
	close(events)
	<-done
	fmt.Fprintln(w)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}
	app.Usage.Report(userID)

	if showSteps {
		printSteps(w, res.Steps())
	}
	if opts.Verbose {
		fmt.Fprintf(w, "(%d iterations, %d tokens, %s)\n",
			res.Iterations, res.Usage.TotalTokens, time.Since(start).Round(time.Millisecond))
	}
	return nil
}

// ListTools lists the policy tools.
func ListTools(w io.Writer, verbose bool, opts Options) error {
	settings, err := LoadSettings(opts)
	if err != nil {
		return err
	}
	registry, err := listingCatalog(settings)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "Available tools:")
	fmt.Fprintln(w)

	for _, meta := range registry.List() {
		fmt.Fprintf(w, "  %s\n", meta.Name)
		fmt.Fprintf(w, "    %s\n", meta.Description)

		if verbose && len(meta.Parameters) > 0 {
			fmt.Fprintln(w, "    Parameters:")
			for _, param := range meta.Parameters {
				req := ""
				if param.Required {
					req = "*"
				}
				fmt.Fprintf(w, "      %s%s: %s - %s\n", param.Name, req, param.ParamType, param.Description)
			}
		}
		fmt.Fprintln(w)
	}
	return nil
}

// ListStates prints the state directory.
func ListStates(w io.Writer) {
	for _, s := range states.New().All() {
		fmt.Fprintf(w, "%3d  %s\n", s.StateID, s.Description)
	}
}

// SetSubscription activates or deactivates userID in the usage database.
func SetSubscription(ctx context.Context, w io.Writer, userID string, active bool, opts Options) error {
	store, err := openUsageStore(opts)
	if err != nil {
		return err
	}
	defer store.Close()

	if active {
		err = store.ActivateSubscription(ctx, userID)
	} else {
		err = store.DeactivateSubscription(ctx, userID)
	}
	if err != nil {
		return err
	}
	return printSubscription(ctx, w, store, userID)
}

// ShowUsage prints userID's subscription and recent usage.
func ShowUsage(ctx context.Context, w io.Writer, userID string, limit int, opts Options) error {
	store, err := openUsageStore(opts)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := printSubscription(ctx, w, store, userID); err != nil {
		return err
	}
	total, err := store.UsageTotal(ctx, userID, usage.TypeChat)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Chat units: %d\n", total)

	records, err := store.ListUsage(ctx, userID, limit)
	if err != nil {
		return err
	}
	for _, r := range records {
		fmt.Fprintf(w, "  %s  %-6s x%d  %s\n", r.RecordedAt.Format(time.RFC3339), r.UsageType, r.Quantity, r.ID)
	}
	return nil
}

// Helper functions

func openUsageStore(opts Options) (*storage.SqliteStorage, error) {
	settings, err := LoadSettings(opts)
	if err != nil {
		return nil, err
	}
	if settings.Usage.DBPath == "" {
		return nil, fmt.Errorf("USAGE_DB_PATH is not set")
	}
	return storage.OpenSqlite(settings.Usage.DBPath)
}

func printSubscription(ctx context.Context, w io.Writer, store *storage.SqliteStorage, userID string) error {
	sub, err := store.Subscription(ctx, userID)
	if err != nil {
		return err
	}
	if sub == nil {
		fmt.Fprintf(w, "%s: no subscription\n", userID)
		return nil
	}
	fmt.Fprintf(w, "%s: %s since %s\n", userID, sub.Status, sub.ActivatedAt.Format(time.RFC3339))
	return nil
}

const maxObservationLen = 400

func printSteps(w io.Writer, steps []agent.Step) {
	if len(steps) == 0 {
		return
	}
	fmt.Fprintln(w, "--- Steps ---")
	for i, step := range steps {
		fmt.Fprintf(w, "[%d] %s %s\n", i+1, step.Action.Tool, string(step.Action.ToolInput))
		fmt.Fprintf(w, "    Observation: %s\n", truncateString(step.Observation, maxObservationLen))
	}
	fmt.Fprintln(w, "-------------")
}

// truncateString truncates a string to maxLen runes, preserving UTF-8 boundaries.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

func nonEmptyJSON(raw []byte) []byte {
	if len(raw) == 0 {
		return []byte("{}")
	}
	return raw
}
