// Package main provides the priorauth CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/wramirez09/langchain-agent-sub000/cli"
	"github.com/wramirez09/langchain-agent-sub000/internal/logx"
)

var (
	// Global flags
	provider string
	maxIter  int
	addr     string
	verbose  bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "priorauth",
		Short: "Prior-authorization research assistant for Medicare, Carelon and Evolent policies",
		Long: `An assistant that researches prior-authorization requirements.

It searches Medicare national and local coverage determinations, local
coverage articles, Carelon guidelines and Evolent guidelines, and can
extract structured criteria from a policy page.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logx.Init(logx.Options{
				Environment: logx.ParseEnvironment(os.Getenv("APP_ENV")),
				Verbose:     verbose,
			})
		},
	}

	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "LLM provider (openai, anthropic, deepseek, gemini); overrides LLM_PROVIDER")
	rootCmd.PersistentFlags().IntVarP(&maxIter, "max-iter", "m", 0, "Maximum agent iterations; overrides AGENT_MAX_ITERATIONS")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show verbose output")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(toolsCmd())
	rootCmd.AddCommand(statesCmd())
	rootCmd.AddCommand(usageCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func options() cli.Options {
	return cli.Options{
		Provider: provider,
		MaxIter:  maxIter,
		Addr:     addr,
		Verbose:  verbose,
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat API over HTTP",
		Long: `Serve the chat API.

POST /api/chat streams the answer as plain text. With
"show_intermediate_steps": true it returns the tool steps and the answer
as JSON instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()
			return cli.Serve(ctx, options())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address; overrides HTTP_ADDR")

	return cmd
}

func askCmd() *cobra.Command {
	var showSteps bool
	var userID string

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer one prior-authorization question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()
			return cli.Ask(ctx, cmd.OutOrStdout(), args[0], userID, showSteps, options())
		},
	}

	cmd.Flags().BoolVar(&showSteps, "steps", false, "Print the tool steps after the answer")
	cmd.Flags().StringVar(&userID, "user", "", "Bill the answer to this user")

	return cmd
}

func toolsCmd() *cobra.Command {
	var verboseTools bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List available tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ListTools(cmd.OutOrStdout(), verboseTools, options())
		},
	}

	cmd.Flags().BoolVarP(&verboseTools, "verbose", "V", false, "Show tool parameters")

	return cmd
}

func statesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "states",
		Short: "List the state directory used by the local coverage tools",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cli.ListStates(cmd.OutOrStdout())
		},
	}
}

func usageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Manage subscriptions and inspect recorded usage (needs USAGE_DB_PATH)",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "activate [user]",
		Short: "Activate a user's subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.SetSubscription(cmd.Context(), cmd.OutOrStdout(), args[0], true, options())
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "deactivate [user]",
		Short: "Deactivate a user's subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.SetSubscription(cmd.Context(), cmd.OutOrStdout(), args[0], false, options())
		},
	})

	var limit int
	show := &cobra.Command{
		Use:   "show [user]",
		Short: "Show a user's subscription and recent usage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ShowUsage(cmd.Context(), cmd.OutOrStdout(), args[0], limit, options())
		},
	}
	show.Flags().IntVar(&limit, "limit", 20, "Number of recent records to list")
	cmd.AddCommand(show)

	return cmd
}
