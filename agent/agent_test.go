package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/richinex/daedalus/llm"
	"github.com/richinex/daedalus/storage"
	"github.com/richinex/daedalus/tools"
)

// fakeProvider replays scripted responses and records every conversation
// it was sent.
type fakeProvider struct {
	responses []llm.LLMResponse
	err       error
	calls     int
	recorded  [][]llm.ChatMessage
}

func (p *fakeProvider) Name() string  { return "fake" }
func (p *fakeProvider) Model() string { return "fake-1" }

func (p *fakeProvider) Chat(ctx context.Context, messages []llm.ChatMessage) (llm.LLMResponse, error) {
	return p.ChatWithTools(ctx, messages, nil)
}

func (p *fakeProvider) ChatWithTools(ctx context.Context, messages []llm.ChatMessage, _ []llm.ToolDefinition) (llm.LLMResponse, error) {
	p.recorded = append(p.recorded, append([]llm.ChatMessage(nil), messages...))
	if p.err != nil {
		return llm.LLMResponse{}, p.err
	}
	i := p.calls
	p.calls++
	if i >= len(p.responses) {
		i = len(p.responses) - 1
	}
	return p.responses[i], nil
}

// echoTool returns its input text.
type echoTool struct {
	tools.BaseTool
	executions int
}

func (t *echoTool) Metadata() tools.ToolMetadata {
	return tools.ToolMetadata{
		Name:        "echo",
		Description: "Echoes the given text",
		Parameters: []tools.ToolParameter{
			{Name: "text", ParamType: "string", Description: "Text to echo", Required: true},
		},
	}
}

func (t *echoTool) Execute(ctx context.Context, args json.RawMessage) (tools.ToolResult, error) {
	var a struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return tools.FailureResult(err), nil
	}
	t.executions++
	return tools.SuccessResult(a.Text), nil
}

func textResponse(content string) llm.LLMResponse {
	return llm.LLMResponse{
		Content: content,
		Usage:   &llm.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
}

func toolCallResponse(calls ...llm.ToolCall) llm.LLMResponse {
	return llm.LLMResponse{
		ToolCalls: calls,
		Usage:     &llm.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
}

func newTestAgent(t *testing.T, provider llm.Provider, toolList ...tools.Tool) *Agent {
	t.Helper()
	cfg := NewBuilder("tester").Tools(toolList).Build()
	return New(cfg, provider)
}

func TestExecutePlainTextAnswer(t *testing.T) {
	provider := &fakeProvider{responses: []llm.LLMResponse{textResponse("all done")}}
	a := newTestAgent(t, provider, &echoTool{})

	resp := a.Execute(context.Background(), "say hi", 5)

	if !resp.IsSuccess() {
		t.Fatalf("expected success, got %v (%v)", resp.Type, resp.Err)
	}
	if resp.Result != "all done" {
		t.Errorf("result = %q", resp.Result)
	}
	if resp.Metadata.LLMCalls != 1 {
		t.Errorf("LLM calls = %d, want 1", resp.Metadata.LLMCalls)
	}
	if resp.Metadata.TokenUsage.TotalTokens != 15 {
		t.Errorf("total tokens = %d, want 15", resp.Metadata.TokenUsage.TotalTokens)
	}
}

func TestExecuteToolCallRound(t *testing.T) {
	echo := &echoTool{}
	provider := &fakeProvider{responses: []llm.LLMResponse{
		toolCallResponse(llm.ToolCall{ID: "call_1", Name: "echo", Arguments: []byte(`{"text":"hello"}`)}),
		textResponse("echoed"),
	}}
	a := newTestAgent(t, provider, echo)

	resp := a.Execute(context.Background(), "echo hello", 5)

	if !resp.IsSuccess() {
		t.Fatalf("expected success, got %v (%v)", resp.Type, resp.Err)
	}
	if echo.executions != 1 {
		t.Errorf("echo executed %d times, want 1", echo.executions)
	}
	if resp.Metadata.LLMCalls != 2 {
		t.Errorf("LLM calls = %d, want 2", resp.Metadata.LLMCalls)
	}
	if len(resp.Metadata.ToolCalls) != 1 || !resp.Metadata.ToolCalls[0].Success {
		t.Errorf("tool call metrics = %+v", resp.Metadata.ToolCalls)
	}

	// Second round must see the tool result in the conversation.
	second := provider.recorded[1]
	last := second[len(second)-1]
	if last.Role != "tool" || last.ToolCallID != "call_1" {
		t.Errorf("last message before second call = %+v, want tool result for call_1", last)
	}
	if last.Content != "hello" {
		t.Errorf("tool result content = %q", last.Content)
	}
	if last.IsError {
		t.Error("successful tool call marked as error")
	}
}

func TestExecuteFailedCallContinuesLoop(t *testing.T) {
	provider := &fakeProvider{responses: []llm.LLMResponse{
		toolCallResponse(llm.ToolCall{ID: "call_1", Name: "no_such_tool", Arguments: []byte(`{}`)}),
		textResponse("recovered"),
	}}
	a := newTestAgent(t, provider, &echoTool{})

	resp := a.Execute(context.Background(), "do something", 5)

	if !resp.IsSuccess() {
		t.Fatalf("expected success, got %v (%v)", resp.Type, resp.Err)
	}
	if resp.Metadata.FailedCalls != 1 {
		t.Errorf("failed calls = %d, want 1", resp.Metadata.FailedCalls)
	}

	second := provider.recorded[1]
	last := second[len(second)-1]
	if last.Role != "tool" || !last.IsError {
		t.Errorf("expected error tool result, got %+v", last)
	}
}

func TestExecuteMaxIterations(t *testing.T) {
	provider := &fakeProvider{responses: []llm.LLMResponse{
		toolCallResponse(llm.ToolCall{ID: "call_1", Name: "echo", Arguments: []byte(`{"text":"again"}`)}),
	}}
	a := newTestAgent(t, provider, &echoTool{})

	resp := a.Execute(context.Background(), "loop forever", 3)

	if resp.Type != ResponseMaxIterations {
		t.Fatalf("expected max iterations outcome, got %v", resp.Type)
	}
	if !errors.Is(resp.Err, ErrMaxIterations) {
		t.Errorf("error = %v, want ErrMaxIterations", resp.Err)
	}
	if resp.Metadata.LLMCalls != 3 {
		t.Errorf("LLM calls = %d, want 3", resp.Metadata.LLMCalls)
	}
}

func TestExecuteClientFailure(t *testing.T) {
	provider := &fakeProvider{err: fmt.Errorf("connection refused")}
	a := newTestAgent(t, provider, &echoTool{})

	resp := a.Execute(context.Background(), "anything", 5)

	if resp.Type != ResponseFailure {
		t.Fatalf("expected failure, got %v", resp.Type)
	}
	if !errors.Is(resp.Err, ErrClientUnavailable) {
		t.Errorf("error = %v, want ErrClientUnavailable", resp.Err)
	}
}

func TestExecuteAssignsMissingCallIDs(t *testing.T) {
	provider := &fakeProvider{responses: []llm.LLMResponse{
		toolCallResponse(
			llm.ToolCall{Name: "echo", Arguments: []byte(`{"text":"a"}`)},
			llm.ToolCall{Name: "echo", Arguments: []byte(`{"text":"b"}`)},
		),
		textResponse("done"),
	}}
	a := newTestAgent(t, provider, &echoTool{})

	resp := a.Execute(context.Background(), "echo twice", 5)

	if !resp.IsSuccess() {
		t.Fatalf("expected success, got %v (%v)", resp.Type, resp.Err)
	}

	second := provider.recorded[1]
	ids := map[string]bool{}
	for _, msg := range second {
		if msg.Role == "tool" {
			if msg.ToolCallID == "" {
				t.Error("tool result with empty call ID")
			}
			if ids[msg.ToolCallID] {
				t.Errorf("duplicate generated call ID %q", msg.ToolCallID)
			}
			ids[msg.ToolCallID] = true
		}
	}
	if len(ids) != 2 {
		t.Errorf("got %d tool results, want 2", len(ids))
	}
}

func TestExecuteSavesTranscript(t *testing.T) {
	store, err := storage.NewSqliteInMemory()
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	provider := &fakeProvider{responses: []llm.LLMResponse{
		toolCallResponse(llm.ToolCall{ID: "call_1", Name: "echo", Arguments: []byte(`{"text":"hi"}`)}),
		textResponse("finished"),
	}}
	a := newTestAgent(t, provider, &echoTool{}).WithStorage(store, "session-1")

	resp := a.Execute(context.Background(), "echo hi", 5)
	if !resp.IsSuccess() {
		t.Fatalf("expected success, got %v (%v)", resp.Type, resp.Err)
	}

	transcript, err := store.LoadTranscript(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("LoadTranscript failed: %v", err)
	}
	if len(transcript) == 0 {
		t.Fatal("transcript not saved")
	}
	final := transcript[len(transcript)-1]
	if final.Role != "assistant" || final.Content != "finished" {
		t.Errorf("final transcript message = %+v", final)
	}

	calls, err := store.ToolCalls(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("ToolCalls failed: %v", err)
	}
	if len(calls) != 1 || calls[0].Name != "echo" {
		t.Errorf("recorded tool calls = %+v", calls)
	}
}

func TestBuilderDefaults(t *testing.T) {
	cfg := NewBuilder("worker").Build()
	if cfg.Name != "worker" {
		t.Errorf("name = %q", cfg.Name)
	}
	if cfg.Description == "" || cfg.SystemPrompt == "" {
		t.Error("builder left description or system prompt empty")
	}
	if cfg.HasTools() {
		t.Error("expected no tools by default")
	}
}
