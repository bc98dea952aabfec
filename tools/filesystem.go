// Filesystem Tools - Write and Append operations.
//
// Information Hiding:
// - File I/O implementation details hidden
// - Path validation and security checks hidden
// - Error handling for file operations abstracted

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// WriteFileTool writes content to a file.
type WriteFileTool struct {
	BaseTool
	allowedPaths []string
	maxSizeBytes int64
}

// NewWriteFileTool creates a new write file tool.
func NewWriteFileTool(maxSizeBytes int64) *WriteFileTool {
	return &WriteFileTool{
		maxSizeBytes: maxSizeBytes,
	}
}

// WithAllowedPaths sets the allowed path prefixes.
func (t *WriteFileTool) WithAllowedPaths(paths []string) *WriteFileTool {
	t.allowedPaths = paths
	return t
}

// Metadata returns the tool metadata.
func (t *WriteFileTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "write",
		Description: "Write content to a file, replacing it if it exists. Parent directories are created as needed.",
		Parameters: []ToolParameter{
			{Name: "path", ParamType: "string", Description: "Path to the file to write", Required: true},
			{Name: "content", ParamType: "string", Description: "Content to write", Required: true},
		},
	}
}

type writeFileArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Validate validates the arguments.
func (t *WriteFileTool) Validate(args json.RawMessage) error {
	var a writeFileArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	return nil
}

// ResourceKey reports the target file as a write target.
func (t *WriteFileTool) ResourceKey(args json.RawMessage) ResourceKey {
	var a writeFileArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return ResourceKey{}
	}
	return PathResourceKey(a.Path, true)
}

// Execute writes to the file.
func (t *WriteFileTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a writeFileArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}

	if a.Path == "" {
		return FailureResultf("path cannot be empty"), nil
	}

	if int64(len(a.Content)) > t.maxSizeBytes {
		return FailureResultf("content too large: %d bytes (max: %d bytes)", len(a.Content), t.maxSizeBytes), nil
	}

	if !pathAllowedForWrite(a.Path, t.allowedPaths) {
		return FailureResultf("access to path '%s' is not allowed", a.Path), nil
	}

	// Create parent directory if needed
	dir := parentDir(a.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return FailureResult(fmt.Errorf("failed to create directory: %w", err)), nil
	}

	if err := os.WriteFile(a.Path, []byte(a.Content), 0644); err != nil {
		return FailureResult(fmt.Errorf("failed to write file: %w", err)), nil
	}

	return SuccessResult(fmt.Sprintf("Successfully wrote %d bytes to %s", len(a.Content), a.Path)), nil
}

// parentDir returns the parent directory of a path.
func parentDir(path string) string {
	// Find last separator
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			if i == 0 {
				return "/"
			}
			return path[:i]
		}
	}
	return "."
}

// AppendFileTool appends content to a file.
type AppendFileTool struct {
	BaseTool
	allowedPaths []string
	maxSizeBytes int64
}

// NewAppendFileTool creates a new append file tool.
func NewAppendFileTool(maxSizeBytes int64) *AppendFileTool {
	return &AppendFileTool{
		maxSizeBytes: maxSizeBytes,
	}
}

// WithAllowedPaths sets the allowed path prefixes.
func (t *AppendFileTool) WithAllowedPaths(paths []string) *AppendFileTool {
	t.allowedPaths = paths
	return t
}

// Metadata returns the tool metadata.
func (t *AppendFileTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "append",
		Description: "Append content to an existing file on the filesystem. Creates the file if it doesn't exist.",
		Parameters: []ToolParameter{
			{Name: "path", ParamType: "string", Description: "Path to the file to append to", Required: true},
			{Name: "content", ParamType: "string", Description: "Content to append", Required: true},
		},
	}
}

type appendFileArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Validate validates the arguments.
func (t *AppendFileTool) Validate(args json.RawMessage) error {
	var a appendFileArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	return nil
}

// ResourceKey reports the target file as a write target.
func (t *AppendFileTool) ResourceKey(args json.RawMessage) ResourceKey {
	var a appendFileArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return ResourceKey{}
	}
	return PathResourceKey(a.Path, true)
}

// Execute appends to the file.
func (t *AppendFileTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a appendFileArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}

	if a.Path == "" {
		return FailureResultf("path cannot be empty"), nil
	}

	if int64(len(a.Content)) > t.maxSizeBytes {
		return FailureResultf("content too large: %d bytes (max: %d bytes)", len(a.Content), t.maxSizeBytes), nil
	}

	if !pathAllowedForWrite(a.Path, t.allowedPaths) {
		return FailureResultf("access to path '%s' is not allowed", a.Path), nil
	}

	// Create parent directory if needed
	dir := parentDir(a.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return FailureResult(fmt.Errorf("failed to create directory: %w", err)), nil
	}

	f, err := os.OpenFile(a.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return FailureResult(fmt.Errorf("failed to open file: %w", err)), nil
	}
	defer f.Close()

	if _, err := f.WriteString(a.Content); err != nil {
		return FailureResult(fmt.Errorf("failed to write to file: %w", err)), nil
	}

	return SuccessResult(fmt.Sprintf("Successfully appended %d bytes to %s", len(a.Content), a.Path)), nil
}
