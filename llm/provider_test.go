// Security tests for LLM providers to ensure error messages don't leak API keys.
package llm

import (
	"context"
	"strings"
	"testing"
	"time"
)

// TestOpenAIErrorNoAPIKeyLeak verifies OpenAI errors don't contain API keys
func TestOpenAIErrorNoAPIKeyLeak(t *testing.T) {
	// Use intentionally invalid API key
	testKey := "sk-test-invalid-key-12345xyz"
	provider := NewOpenAIProvider(testKey, "gpt-4o", 100, 0.7)

	// Force error with invalid key
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := provider.Chat(ctx, []ChatMessage{
		{Role: "user", Content: "test"},
	})

	// Should return an error
	if err == nil {
		t.Skip("Expected error with invalid API key, but got success - skipping leak test")
	}

	// Verify error doesn't contain the API key
	errStr := err.Error()
	if strings.Contains(errStr, testKey) {
		t.Errorf("OpenAI error message leaked API key: %v", errStr)
	}

	// Should not contain common auth header patterns
	if strings.Contains(errStr, "Authorization:") {
		t.Errorf("OpenAI error exposed Authorization header: %v", errStr)
	}
}

// TestAnthropicErrorNoAPIKeyLeak verifies Anthropic errors don't contain API keys
func TestAnthropicErrorNoAPIKeyLeak(t *testing.T) {
	testKey := "sk-ant-REDACTED"
	provider := NewAnthropicProvider(testKey, "claude-sonnet-4-20250514", 100, 0.7)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := provider.Chat(ctx, []ChatMessage{
		{Role: "user", Content: "test"},
	})

	if err == nil {
		t.Skip("Expected error with invalid API key, but got success - skipping leak test")
	}

	errStr := err.Error()
	if strings.Contains(errStr, testKey) {
		t.Errorf("Anthropic error message leaked API key: %v", errStr)
	}

	if strings.Contains(errStr, "x-api-key:") || strings.Contains(errStr, "X-API-Key:") {
		t.Errorf("Anthropic error exposed API key header: %v", errStr)
	}
}

// TestDeepSeekErrorNoAPIKeyLeak verifies DeepSeek errors don't contain API keys
func TestDeepSeekErrorNoAPIKeyLeak(t *testing.T) {
	testKey := "sk-test-invalid-key-12345xyz"
	provider := NewDeepSeekProvider(testKey, "deepseek-chat", 100, 0.7)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := provider.Chat(ctx, []ChatMessage{
		{Role: "user", Content: "test"},
	})

	if err == nil {
		t.Skip("Expected error with invalid API key, but got success - skipping leak test")
	}

	errStr := err.Error()
	if strings.Contains(errStr, testKey) {
		t.Errorf("DeepSeek error message leaked API key: %v", errStr)
	}

	if strings.Contains(errStr, "Authorization:") {
		t.Errorf("DeepSeek error exposed Authorization header: %v", errStr)
	}
}

// TestGeminiErrorNoAPIKeyLeak verifies Gemini errors don't contain API keys
func TestGeminiErrorNoAPIKeyLeak(t *testing.T) {
	testKey := "test-invalid-key-12345xyz"
	provider := NewGeminiProvider(testKey, "gemini-2.5-flash", 100, 0.7)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := provider.Chat(ctx, []ChatMessage{
		{Role: "user", Content: "test"},
	})

	if err == nil {
		t.Skip("Expected error with invalid API key, but got success - skipping leak test")
	}

	errStr := err.Error()
	if strings.Contains(errStr, testKey) {
		t.Errorf("Gemini error message leaked API key: %v", errStr)
	}

	// Gemini uses x-goog-api-key header
	if strings.Contains(errStr, "x-goog-api-key:") {
		t.Errorf("Gemini error exposed API key header: %v", errStr)
	}
}

// TestGeminiInitErrorPreserved verifies Gemini returns initialization errors
func TestGeminiInitErrorPreserved(t *testing.T) {
	// Use invalid key that should fail during client initialization
	provider := NewGeminiProvider("", "gemini-2.5-flash", 100, 0.7)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := provider.Chat(ctx, []ChatMessage{
		{Role: "user", Content: "test"},
	})

	// Should return an error
	if err == nil {
		t.Error("Expected initialization error to be returned, got nil")
		return
	}

	// Error should indicate initialization failure
	errStr := err.Error()
	if !strings.Contains(errStr, "failed to initialize") {
		t.Errorf("Expected initialization error, got: %v", errStr)
	}
}

func TestParseProviderType(t *testing.T) {
	cases := []struct {
		input string
		want  ProviderType
	}{
		{"openai", ProviderOpenAI},
		{"GPT", ProviderOpenAI},
		{"anthropic", ProviderAnthropic},
		{"Claude", ProviderAnthropic},
		{"deepseek", ProviderDeepSeek},
		{"gemini", ProviderGemini},
		{"google", ProviderGemini},
	}
	for _, tc := range cases {
		got, err := ParseProviderType(tc.input)
		if err != nil {
			t.Errorf("ParseProviderType(%q) returned error: %v", tc.input, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseProviderType(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}

	if _, err := ParseProviderType("cohere"); err == nil {
		t.Error("expected error for unknown provider name")
	}
}

func TestProviderDefaults(t *testing.T) {
	for _, p := range []ProviderType{ProviderOpenAI, ProviderAnthropic, ProviderDeepSeek, ProviderGemini} {
		if p.DefaultModel() == "" {
			t.Errorf("provider %v has no default model", p)
		}
		if p.EnvVar() == "" {
			t.Errorf("provider %v has no env var", p)
		}
		if p.String() == "unknown" {
			t.Errorf("provider %v stringifies to unknown", p)
		}
	}
}

func TestToolResultMessage(t *testing.T) {
	msg := ToolResultMessage("call_7", "file not found", true)
	if msg.Role != "tool" {
		t.Errorf("role = %q, want tool", msg.Role)
	}
	if msg.ToolCallID != "call_7" {
		t.Errorf("tool call ID = %q", msg.ToolCallID)
	}
	if !msg.IsError {
		t.Error("IsError flag not carried")
	}
}

func TestConvertToOpenAIMessagesCarriesToolCalls(t *testing.T) {
	messages := []ChatMessage{
		SystemMessage("be helpful"),
		UserMessage("list the directory"),
		{
			Role: "assistant",
			ToolCalls: []ToolCall{
				{ID: "call_1", Name: "ls", Arguments: []byte(`{"path":"."}`)},
			},
		},
		ToolResultMessage("call_1", "main.go", false),
	}

	converted := convertToOpenAIMessages(messages)
	if len(converted) != 4 {
		t.Fatalf("got %d messages, want 4", len(converted))
	}
	assistant := converted[2]
	if len(assistant.ToolCalls) != 1 {
		t.Fatalf("assistant message has %d tool calls, want 1", len(assistant.ToolCalls))
	}
	if assistant.ToolCalls[0].Function.Name != "ls" {
		t.Errorf("tool call name = %q", assistant.ToolCalls[0].Function.Name)
	}
	if assistant.ToolCalls[0].Function.Arguments != `{"path":"."}` {
		t.Errorf("tool call arguments = %q", assistant.ToolCalls[0].Function.Arguments)
	}
	if converted[3].ToolCallID != "call_1" {
		t.Errorf("tool result message lost call ID: %q", converted[3].ToolCallID)
	}
}

func TestConvertToAnthropicMessagesExtractsSystem(t *testing.T) {
	messages := []ChatMessage{
		SystemMessage("be terse"),
		UserMessage("hello"),
	}
	converted, system := convertToAnthropicMessages(messages)
	if system != "be terse" {
		t.Errorf("system prompt = %q", system)
	}
	if len(converted) != 1 {
		t.Errorf("got %d messages, want 1 (system extracted)", len(converted))
	}
}

func TestConvertToGeminiSchemaArrayItems(t *testing.T) {
	params := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"edits": map[string]interface{}{
				"type":        "array",
				"description": "edit operations",
			},
		},
		"required": []string{"edits"},
	}

	schema := convertToGeminiSchema(params)
	prop, ok := schema.Properties["edits"]
	if !ok {
		t.Fatal("edits property missing from converted schema")
	}
	if prop.Items == nil {
		t.Error("array property converted without items")
	}
	if len(schema.Required) != 1 || schema.Required[0] != "edits" {
		t.Errorf("required = %v", schema.Required)
	}
}
