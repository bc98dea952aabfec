package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func tempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func fileContent(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	return string(data)
}

func TestEditToolUniqueReplace(t *testing.T) {
	path := tempFile(t, "hello world")
	tool := NewEditTool(DefaultMaxFileSize)

	args := fmt.Sprintf(`{"path":%q,"old":"world","new":"go"}`, path)
	result, err := tool.Execute(context.Background(), json.RawMessage(args))
	if err != nil {
		t.Fatalf("execute error: %v", err)
	}
	if !result.Success() {
		t.Fatalf("edit failed: %v", result.Error)
	}
	if got := fileContent(t, path); got != "hello go" {
		t.Errorf("expected 'hello go', got %q", got)
	}
}

func TestEditToolAmbiguousWithoutOccurrence(t *testing.T) {
	original := "dup dup"
	path := tempFile(t, original)
	tool := NewEditTool(DefaultMaxFileSize)

	args := fmt.Sprintf(`{"path":%q,"old":"dup","new":"one"}`, path)
	result, err := tool.Execute(context.Background(), json.RawMessage(args))
	if err != nil {
		t.Fatalf("execute error: %v", err)
	}
	if result.Success() {
		t.Fatal("expected ambiguity failure")
	}
	if got := fileContent(t, path); got != original {
		t.Errorf("file mutated on failed edit: %q", got)
	}
}

func TestMultiEditSequentialFirstOccurrence(t *testing.T) {
	path := tempFile(t, "foo foo")
	tool := NewMultiEditTool(DefaultMaxFileSize)

	args := fmt.Sprintf(`{"path":%q,"edits":[
		{"old":"foo","new":"bar","occurrence":"first"},
		{"old":"foo","new":"baz","occurrence":"first"}
	]}`, path)
	result, err := tool.Execute(context.Background(), json.RawMessage(args))
	if err != nil {
		t.Fatalf("execute error: %v", err)
	}
	if !result.Success() {
		t.Fatalf("multi_edit failed: %v", result.Error)
	}
	if got := fileContent(t, path); got != "bar baz" {
		t.Errorf("expected 'bar baz', got %q", got)
	}
}

func TestMultiEditRejectsOnMissingText(t *testing.T) {
	original := "alpha beta"
	path := tempFile(t, original)
	tool := NewMultiEditTool(DefaultMaxFileSize)

	args := fmt.Sprintf(`{"path":%q,"edits":[
		{"old":"alpha","new":"ALPHA"},
		{"old":"qux","new":"quux"}
	]}`, path)
	result, err := tool.Execute(context.Background(), json.RawMessage(args))
	if err != nil {
		t.Fatalf("execute error: %v", err)
	}
	if result.Success() {
		t.Fatal("expected rejection")
	}
	if !strings.Contains(result.Error.Error(), "no edits applied") {
		t.Errorf("expected no-edits-applied message, got: %v", result.Error)
	}
	if got := fileContent(t, path); got != original {
		t.Errorf("file mutated on rejected transaction: %q", got)
	}
}

func TestMultiEditValidateRejectsBadSequence(t *testing.T) {
	tool := NewMultiEditTool(DefaultMaxFileSize)

	cases := []struct {
		name string
		args string
	}{
		{"no_edits", `{"path":"/tmp/x","edits":[]}`},
		{"empty_old", `{"path":"/tmp/x","edits":[{"old":"","new":"y"}]}`},
		{"identical", `{"path":"/tmp/x","edits":[{"old":"a","new":"a"}]}`},
		{"bad_occurrence", `{"path":"/tmp/x","edits":[{"old":"a","new":"b","occurrence":"sometimes"}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tool.Validate(json.RawMessage(tc.args)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestEditToolsReportWriteKey(t *testing.T) {
	path := "/tmp/some/file.txt"
	args := json.RawMessage(fmt.Sprintf(`{"path":%q,"old":"a","new":"b"}`, path))

	key := NewEditTool(DefaultMaxFileSize).ResourceKey(args)
	if !key.Write || key.Key == "" {
		t.Errorf("edit should report a write key, got %+v", key)
	}

	multiArgs := json.RawMessage(fmt.Sprintf(`{"path":%q,"edits":[{"old":"a","new":"b"}]}`, path))
	multiKey := NewMultiEditTool(DefaultMaxFileSize).ResourceKey(multiArgs)
	if multiKey != key {
		t.Errorf("edit and multi_edit keys differ for the same path: %+v vs %+v", key, multiKey)
	}
}
