// Package main provides the daedalus CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/richinex/daedalus/cli"
	"github.com/richinex/daedalus/internal/observability"
)

var (
	// Global flags
	provider string
	maxIter  int
	verbose  bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	observability.InitLogger("daedalus")

	rootCmd := &cobra.Command{
		Use:   "daedalus",
		Short: "LLM file-operations agent with bounded context",
		Long: `An LLM-driven agent that performs file-system operations (search, read,
edit, write, shell execution) on a local workspace through a fixed set of
tools, while keeping the model's context window bounded.

Independent tool calls run in parallel; calls touching the same resource
serialize in order. Multi-edit operations are transactional: a file is
either fully updated or untouched.`,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "LLM provider (openai, anthropic, deepseek, gemini)")
	rootCmd.PersistentFlags().IntVarP(&maxIter, "max-iter", "m", 0, "Maximum iterations (default from AGENT_MAX_ITERATIONS)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show verbose output")

	// Add commands
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(toolsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitFailure)
	}
}

func runCmd() *cobra.Command {
	var sessionID string
	var dbPath string

	cmd := &cobra.Command{
		Use:   "run [task]",
		Short: "Execute a task on the local workspace",
		Long: `Execute a task: the LLM proposes tool calls, the engine runs them (in
parallel where safe), and shaped results flow back until the model answers
in plain text.

Exit codes: 0 success, 2 partial failure (some tool calls failed),
1 hard failure (client unreachable, max iterations, setup errors).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.Options{
				Provider:  provider,
				MaxIter:   maxIter,
				SessionID: sessionID,
				DBPath:    dbPath,
				Verbose:   verbose,
			}
			code, err := cli.RunTask(context.Background(), args[0], opts)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
			if code != cli.ExitSuccess {
				// Bypass cobra's own error exit so the code survives.
				os.Exit(code)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID for transcript storage")
	cmd.Flags().StringVar(&dbPath, "db", ".daedalus/daedalus.db", "Database path for transcript storage")

	return cmd
}

func toolsCmd() *cobra.Command {
	var verboseTools bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List available tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ListTools(verboseTools)
		},
	}

	cmd.Flags().BoolVarP(&verboseTools, "verbose", "V", false, "Show tool parameters")

	return cmd
}
