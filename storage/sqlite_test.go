package storage

import (
	"context"
	"testing"

	"github.com/richinex/daedalus/llm"
	"github.com/richinex/daedalus/model"
)

func TestSqliteSaveAndLoadTranscript(t *testing.T) {
	store, err := NewSqliteInMemory()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	messages := []llm.ChatMessage{
		{Role: "user", Content: "Hello"},
		{Role: "assistant", Content: "Hi there"},
	}

	if err := store.SaveTranscript(ctx, "test-session", messages); err != nil {
		t.Fatalf("SaveTranscript failed: %v", err)
	}

	loaded, err := store.LoadTranscript(ctx, "test-session")
	if err != nil {
		t.Fatalf("LoadTranscript failed: %v", err)
	}

	if len(loaded) != 2 {
		t.Errorf("expected 2 messages, got %d", len(loaded))
	}
	if loaded[0].Content != "Hello" {
		t.Errorf("expected 'Hello', got '%s'", loaded[0].Content)
	}
	if loaded[1].Content != "Hi there" {
		t.Errorf("expected 'Hi there', got '%s'", loaded[1].Content)
	}
}

func TestSqliteTranscriptPreservesToolResultFields(t *testing.T) {
	store, err := NewSqliteInMemory()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	messages := []llm.ChatMessage{
		{Role: "user", Content: "read main.go"},
		llm.ToolResultMessage("call_1", "no such file", true),
	}

	if err := store.SaveTranscript(ctx, "s1", messages); err != nil {
		t.Fatalf("SaveTranscript failed: %v", err)
	}

	loaded, err := store.LoadTranscript(ctx, "s1")
	if err != nil {
		t.Fatalf("LoadTranscript failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(loaded))
	}
	if loaded[1].Role != "tool" {
		t.Errorf("role = %q, want tool", loaded[1].Role)
	}
	if loaded[1].ToolCallID != "call_1" {
		t.Errorf("tool call ID = %q", loaded[1].ToolCallID)
	}
	if !loaded[1].IsError {
		t.Error("IsError flag lost on round trip")
	}
}

func TestSqliteSaveReplacesTranscript(t *testing.T) {
	store, err := NewSqliteInMemory()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	if err := store.SaveTranscript(ctx, "s1", []llm.ChatMessage{
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "second"},
	}); err != nil {
		t.Fatalf("SaveTranscript failed: %v", err)
	}

	if err := store.SaveTranscript(ctx, "s1", []llm.ChatMessage{
		{Role: "user", Content: "only"},
	}); err != nil {
		t.Fatalf("second SaveTranscript failed: %v", err)
	}

	loaded, err := store.LoadTranscript(ctx, "s1")
	if err != nil {
		t.Fatalf("LoadTranscript failed: %v", err)
	}
	if len(loaded) != 1 || loaded[0].Content != "only" {
		t.Errorf("transcript not replaced: %+v", loaded)
	}
}

func TestSqliteLoadNonexistentSession(t *testing.T) {
	store, err := NewSqliteInMemory()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	loaded, err := store.LoadTranscript(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("LoadTranscript failed: %v", err)
	}

	if len(loaded) != 0 {
		t.Errorf("expected empty slice, got %d messages", len(loaded))
	}
}

func TestSqliteRecordToolCalls(t *testing.T) {
	store, err := NewSqliteInMemory()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	calls := []model.ToolCall{
		{Name: "grep", InputSize: 42, OutputSize: 1200, DurationMs: 15, Success: true},
		{Name: "edit", InputSize: 90, OutputSize: 30, DurationMs: 3, Success: false},
	}
	for _, c := range calls {
		if err := store.RecordToolCall(ctx, "s1", c); err != nil {
			t.Fatalf("RecordToolCall failed: %v", err)
		}
	}

	got, err := store.ToolCalls(ctx, "s1")
	if err != nil {
		t.Fatalf("ToolCalls failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 tool calls, got %d", len(got))
	}
	if got[0].Name != "grep" || !got[0].Success {
		t.Errorf("first call = %+v", got[0])
	}
	if got[1].Name != "edit" || got[1].Success {
		t.Errorf("second call = %+v", got[1])
	}
}

func TestSqliteDeleteSession(t *testing.T) {
	store, err := NewSqliteInMemory()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	if err := store.SaveTranscript(ctx, "s1", []llm.ChatMessage{
		{Role: "user", Content: "Test"},
	}); err != nil {
		t.Fatalf("SaveTranscript failed: %v", err)
	}
	if err := store.RecordToolCall(ctx, "s1", model.ToolCall{Name: "ls", Success: true}); err != nil {
		t.Fatalf("RecordToolCall failed: %v", err)
	}

	if err := store.DeleteSession(ctx, "s1"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}

	sessions, err := store.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("expected no sessions, got %v", sessions)
	}

	loaded, err := store.LoadTranscript(ctx, "s1")
	if err != nil {
		t.Fatalf("LoadTranscript failed: %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("messages survived session delete: %d", len(loaded))
	}

	calls, err := store.ToolCalls(ctx, "s1")
	if err != nil {
		t.Fatalf("ToolCalls failed: %v", err)
	}
	if len(calls) != 0 {
		t.Errorf("tool calls survived session delete: %d", len(calls))
	}
}

func TestSqliteListSessions(t *testing.T) {
	store, err := NewSqliteInMemory()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		if err := store.SaveTranscript(ctx, id, []llm.ChatMessage{{Role: "user", Content: "x"}}); err != nil {
			t.Fatalf("SaveTranscript failed: %v", err)
		}
	}

	sessions, err := store.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Errorf("expected 2 sessions, got %v", sessions)
	}
}
