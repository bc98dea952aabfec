// Command execution for CLI commands.
//
// Information Hiding:
// - Agent and dispatcher setup hidden
// - Exit code policy hidden
// - Output formatting hidden

package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/richinex/daedalus/agent"
	"github.com/richinex/daedalus/config"
	"github.com/richinex/daedalus/llm"
	"github.com/richinex/daedalus/storage"
	"github.com/richinex/daedalus/tools"
)

// Process exit codes.
const (
	ExitSuccess        = 0
	ExitFailure        = 1
	ExitPartialFailure = 2
)

// Options holds CLI execution options.
type Options struct {
	Provider  string
	MaxIter   int
	SessionID string
	DBPath    string
	Verbose   bool
}

// DefaultOptions returns default CLI options.
func DefaultOptions() Options {
	return Options{
		MaxIter: 10,
		DBPath:  defaultDBPath,
	}
}

// defaultDBPath is the database path for transcript storage.
const defaultDBPath = ".daedalus/daedalus.db"

// RunTask executes a single task and returns the process exit code.
// Exit 0: success. Exit 2: the loop completed but some tool calls failed.
// Exit 1: hard failure (client unreachable, max iterations, setup errors).
func RunTask(ctx context.Context, task string, opts Options) (int, error) {
	settings, err := config.New(opts.Provider)
	if err != nil {
		return ExitFailure, err
	}

	provider, err := createProvider(opts.Provider, settings)
	if err != nil {
		return ExitFailure, err
	}

	toolCfg := tools.ToolConfig{TimeoutSecs: uint64(settings.Tools.TimeoutSeconds)}
	registry, err := tools.WithConfig(toolCfg)
	if err != nil {
		return ExitFailure, fmt.Errorf("failed to build tool registry: %w", err)
	}

	dispatcher := tools.NewDispatcher(registry).
		WithWorkers(settings.Tools.Workers).
		WithCallTimeout(time.Duration(toolCfg.Timeout()) * time.Second).
		WithMaxAttempts(int(toolCfg.Retries())).
		WithLimits(settings.Shaping)

	maxIter := opts.MaxIter
	if maxIter <= 0 {
		maxIter = settings.Agent.MaxIterations
	}

	a := agent.New(agent.DefaultConfig(), provider).
		WithRegistry(registry).
		WithDispatcher(dispatcher)

	sessionID := opts.SessionID
	if sessionID != "" || opts.DBPath != "" {
		dbPath := opts.DBPath
		if dbPath == "" {
			dbPath = defaultDBPath
		}
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
		store, err := storage.OpenSqlite(dbPath)
		if err != nil {
			// Transcript audit is best-effort. Run without it.
			fmt.Fprintf(os.Stderr, "Warning: transcript storage disabled: %v\n", err)
		} else {
			defer store.Close()
			a = a.WithStorage(store, sessionID)
		}
	}

	fmt.Printf("Running task with %s (%s)...\n\n", provider.Name(), provider.Model())

	response := a.Execute(ctx, task, maxIter)

	switch response.Type {
	case agent.ResponseSuccess:
		if opts.Verbose {
			printSteps(response.Steps)
		}
		fmt.Printf("%s\n", response.Result)
		printStats(response.Metadata)
		if response.Metadata.FailedCalls > 0 {
			fmt.Fprintf(os.Stderr, "\n%d tool call(s) failed during execution\n", response.Metadata.FailedCalls)
			return ExitPartialFailure, nil
		}
		return ExitSuccess, nil
	case agent.ResponseMaxIterations:
		if opts.Verbose {
			printSteps(response.Steps)
		}
		printStats(response.Metadata)
		return ExitFailure, response.Err
	case agent.ResponseFailure:
		if opts.Verbose {
			printSteps(response.Steps)
		}
		return ExitFailure, response.Err
	default:
		return ExitFailure, fmt.Errorf("unknown response type: %v", response.Type)
	}
}

// ListTools lists all available tools.
func ListTools(verbose bool) error {
	registry, err := tools.WithDefaults()
	if err != nil {
		return fmt.Errorf("failed to build tool registry: %w", err)
	}

	fmt.Println("Available tools:")
	fmt.Println()

	for _, meta := range registry.List() {
		fmt.Printf("  %s\n", meta.Name)
		fmt.Printf("    %s\n", meta.Description)

		if verbose && len(meta.Parameters) > 0 {
			fmt.Println("    Parameters:")
			for _, param := range meta.Parameters {
				req := ""
				if param.Required {
					req = "*"
				}
				fmt.Printf("      %s%s: %s - %s\n", param.Name, req, param.ParamType, param.Description)
			}
		}
		fmt.Println()
	}
	return nil
}

func createProvider(providerName string, settings config.Settings) (llm.Provider, error) {
	if providerName == "" {
		return nil, fmt.Errorf("--provider is required for this command")
	}

	providerType, err := llm.ParseProviderType(providerName)
	if err != nil {
		return nil, err
	}

	apiKey, err := config.APIKeyFor(providerName)
	if err != nil {
		return nil, err
	}

	return providerType.
		Model(settings.LLM.Model).
		BaseURL(settings.LLM.BaseURL).
		MaxTokens(settings.LLM.MaxTokens).
		Temperature(float32(settings.LLM.Temperature)).
		APIKey(apiKey)
}

const maxObservationLen = 400

func printSteps(steps []agent.Step) {
	fmt.Println("--- Steps ---")
	for _, step := range steps {
		fmt.Printf("[%d] %s\n", step.Iteration, step.Thought)
		if step.Action != nil {
			fmt.Printf("    Action: %s\n", *step.Action)
		}
		if step.Observation != nil {
			obs := truncateString(*step.Observation, maxObservationLen)
			fmt.Printf("    Observation: %s\n", obs)
		}
		fmt.Println()
	}
	fmt.Println("-------------")
	fmt.Println()
}

// truncateString truncates a string to maxLen runes, preserving UTF-8 boundaries.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

// printStats prints token usage and tool call statistics.
func printStats(meta agent.Metadata) {
	fmt.Printf("\nUsage:\n")
	fmt.Printf("  LLM calls: %d\n", meta.LLMCalls)
	if meta.TokenUsage != nil {
		fmt.Printf("  Prompt tokens: %d\n", meta.TokenUsage.PromptTokens)
		fmt.Printf("  Completion tokens: %d\n", meta.TokenUsage.CompletionTokens)
		fmt.Printf("  Total tokens: %d\n", meta.TokenUsage.TotalTokens)
	}
	fmt.Printf("  Tool calls: %d (%d failed)\n", len(meta.ToolCalls), meta.FailedCalls)
	fmt.Printf("  Duration: %dms\n", meta.ExecutionTimeMs)
}
