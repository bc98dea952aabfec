// Tool orchestration loop implementation.
//
// All task execution goes through this module: the LLM proposes tool
// calls, the dispatcher runs them, shaped results flow back into the
// conversation until the LLM answers in plain text.
//
// Information Hiding:
// - Loop internals hidden
// - LLM communication hidden
// - Tool execution coordination hidden
// - Transcript persistence hidden

package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/richinex/daedalus/llm"
	"github.com/richinex/daedalus/model"
	"github.com/richinex/daedalus/storage"
	"github.com/richinex/daedalus/tools"
)

// Agent executes tasks by looping LLM tool-call rounds through the dispatcher.
type Agent struct {
	config     Config
	llmClient  *llm.Client
	registry   *tools.Registry
	dispatcher *tools.Dispatcher
	store      storage.TranscriptStore
	sessionID  string

	// Loop-owned sequence for tool-call IDs the provider did not assign.
	idPrefix string
	callSeq  int
}

// New creates a new agent with the given configuration and provider.
func New(config Config, provider llm.Provider) *Agent {
	registry := tools.NewRegistry()
	for _, tool := range config.Tools {
		_ = registry.Register(tool) // Ignore duplicate errors - caller's responsibility
	}

	return &Agent{
		config:     config,
		llmClient:  llm.NewClient(provider),
		registry:   registry,
		dispatcher: tools.NewDispatcher(registry),
		idPrefix:   uuid.NewString()[:8],
	}
}

// WithRegistry replaces the tool registry (and rebuilds the dispatcher over it).
func (a *Agent) WithRegistry(registry *tools.Registry) *Agent {
	a.registry = registry
	a.dispatcher = tools.NewDispatcher(registry)
	return a
}

// WithDispatcher overrides the dispatcher. The dispatcher must be built
// over this agent's registry.
func (a *Agent) WithDispatcher(dispatcher *tools.Dispatcher) *Agent {
	a.dispatcher = dispatcher
	return a
}

// WithStorage enables best-effort transcript persistence.
func (a *Agent) WithStorage(store storage.TranscriptStore, sessionID string) *Agent {
	a.store = store
	a.sessionID = sessionID
	return a
}

// Name returns the agent's name.
func (a *Agent) Name() string {
	return a.config.Name
}

// Description returns the agent's description.
func (a *Agent) Description() string {
	return a.config.Description
}

// Execute runs a task with the given maximum iterations.
func (a *Agent) Execute(ctx context.Context, task string, maxIterations int) Response {
	return a.ExecuteWithHistory(ctx, task, nil, maxIterations)
}

// ExecuteWithHistory runs a task with prior conversation history.
func (a *Agent) ExecuteWithHistory(ctx context.Context, task string, history []llm.ChatMessage, maxIterations int) Response {
	startTime := time.Now()
	var steps []model.Step
	var toolCalls []model.ToolCall
	var totalUsage llm.TokenUsage
	var llmCalls int
	var failedCalls int

	meta := func() Metadata {
		name := a.config.Name
		return Metadata{
			ExecutionTimeMs: uint64(time.Since(startTime).Milliseconds()),
			AgentName:       &name,
			ToolCalls:       toolCalls,
			TokenUsage:      &totalUsage,
			LLMCalls:        llmCalls,
			FailedCalls:     failedCalls,
		}
	}

	conversation := history
	if len(conversation) == 0 {
		conversation = append(conversation, llm.SystemMessage(a.config.SystemPrompt))
	}
	conversation = append(conversation, llm.UserMessage(task))

	toolDefs := a.toolDefinitions()

	for iteration := 0; iteration < maxIterations; iteration++ {
		// Check context cancellation at top of loop
		if ctx.Err() != nil {
			return NewFailureResponse(
				fmt.Errorf("execution cancelled: %w", ctx.Err()),
				steps, meta(),
			)
		}

		response, err := a.llmClient.ChatWithTools(ctx, conversation, toolDefs)
		if err != nil {
			a.saveTranscript(ctx, conversation)
			return NewFailureResponse(
				fmt.Errorf("%w: %v", ErrClientUnavailable, err),
				steps, meta(),
			)
		}

		llmCalls++
		if response.Usage != nil {
			totalUsage.PromptTokens += response.Usage.PromptTokens
			totalUsage.CompletionTokens += response.Usage.CompletionTokens
			totalUsage.TotalTokens += response.Usage.TotalTokens
		}

		// Plain text reply terminates the loop with the final answer.
		if len(response.ToolCalls) == 0 {
			observation := response.Content
			steps = append(steps, model.Step{
				Iteration:   iteration,
				Thought:     response.Content,
				Observation: &observation,
			})
			conversation = append(conversation, llm.AssistantMessage(response.Content))
			a.saveTranscript(ctx, conversation)
			return NewSuccessResponse(response.Content, steps, meta())
		}

		calls := a.assignCallIDs(response.ToolCalls)
		conversation = append(conversation, llm.ChatMessage{
			Role:      "assistant",
			Content:   response.Content,
			ToolCalls: calls,
		})

		reqs := make([]tools.CallRequest, len(calls))
		for i, tc := range calls {
			reqs[i] = tools.CallRequest{ID: tc.ID, Name: tc.Name, Args: tc.Arguments}
		}

		log.Debug().
			Int("iteration", iteration).
			Int("calls", len(reqs)).
			Msg("dispatching tool call batch")

		results := a.dispatcher.DispatchBatch(ctx, reqs)

		var actionNames []string
		for i, result := range results {
			text := result.Output.Text
			isErr := result.Err != nil
			if isErr {
				text = result.Err.Error()
				failedCalls++
			}

			toolCall := model.ToolCall{
				Name:       result.Name,
				InputSize:  len(reqs[i].Args),
				OutputSize: len(text),
				DurationMs: uint64(result.Duration.Milliseconds()),
				Success:    !isErr,
			}
			toolCalls = append(toolCalls, toolCall)
			a.recordToolCall(ctx, toolCall)

			conversation = append(conversation, llm.ToolResultMessage(result.ID, text, isErr))
			actionNames = append(actionNames, result.Name)
		}

		action := strings.Join(actionNames, ", ")
		observation := fmt.Sprintf("%d tool call(s) completed", len(results))
		steps = append(steps, model.Step{
			Iteration:   iteration,
			Thought:     response.Content,
			Action:      &action,
			Observation: &observation,
		})
	}

	// Iteration bound exceeded - never a silent stop.
	a.saveTranscript(ctx, conversation)
	return NewMaxIterationsResponse(
		fmt.Errorf("%w: task not complete after %d iterations", ErrMaxIterations, maxIterations),
		steps, meta(),
	)
}

// toolDefinitions derives the LLM-facing tool schemas from the registry.
func (a *Agent) toolDefinitions() []llm.ToolDefinition {
	metas := a.registry.List()
	defs := make([]llm.ToolDefinition, len(metas))
	for i, meta := range metas {
		defs[i] = llm.ToolDefinition{
			Name:        meta.Name,
			Description: meta.Description,
			Parameters:  meta.InputSchema(),
		}
	}
	return defs
}

// assignCallIDs fills in tool-call IDs the provider left empty. Some
// providers (Gemini) reuse the function name, so generated IDs come from a
// loop-owned sequence to stay unique within the conversation.
func (a *Agent) assignCallIDs(calls []llm.ToolCall) []llm.ToolCall {
	out := make([]llm.ToolCall, len(calls))
	for i, tc := range calls {
		if tc.ID == "" {
			a.callSeq++
			tc.ID = fmt.Sprintf("call_%s_%d", a.idPrefix, a.callSeq)
		}
		out[i] = tc
	}
	return out
}

// Transcript persistence is best-effort: storage failures never affect
// the loop outcome.

func (a *Agent) saveTranscript(ctx context.Context, conversation []llm.ChatMessage) {
	if a.store == nil || a.sessionID == "" {
		return
	}
	if err := a.store.SaveTranscript(ctx, a.sessionID, conversation); err != nil {
		log.Error().Err(err).Str("session", a.sessionID).Msg("transcript save failed")
	}
}

func (a *Agent) recordToolCall(ctx context.Context, call model.ToolCall) {
	if a.store == nil || a.sessionID == "" {
		return
	}
	if err := a.store.RecordToolCall(ctx, a.sessionID, call); err != nil {
		log.Error().Err(err).Str("session", a.sessionID).Msg("tool call record failed")
	}
}
