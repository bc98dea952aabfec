// Read Tool - Numbered file content with offset/limit windows.
//
// Information Hiding:
// - File I/O implementation details hidden
// - Line windowing and numbering hidden
// - Error handling for file operations abstracted

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/richinex/daedalus/shape"
)

// ReadTool reads file contents with line numbers. Large files are sampled
// downstream; offset and limit let the caller request a specific window.
type ReadTool struct {
	BaseTool
	allowedPaths []string
	maxSizeBytes int64
}

// NewReadTool creates a new read tool.
func NewReadTool(maxSizeBytes int64) *ReadTool {
	return &ReadTool{
		maxSizeBytes: maxSizeBytes,
	}
}

// WithAllowedPaths sets the allowed path prefixes.
func (t *ReadTool) WithAllowedPaths(paths []string) *ReadTool {
	t.allowedPaths = paths
	return t
}

// Metadata returns the tool metadata.
func (t *ReadTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "read",
		Description: "Read a file with line numbers. Use offset and limit to read a specific window of a large file.",
		Parameters: []ToolParameter{
			{Name: "path", ParamType: "string", Description: "Path to the file to read", Required: true},
			{Name: "offset", ParamType: "integer", Description: "1-based line to start from (default: 1)", Required: false},
			{Name: "limit", ParamType: "integer", Description: "Maximum number of lines to return", Required: false},
		},
	}
}

type readArgs struct {
	Path   string `json:"path"`
	Offset *int   `json:"offset"`
	Limit  *int   `json:"limit"`
}

// Validate validates the arguments.
func (t *ReadTool) Validate(args json.RawMessage) error {
	var a readArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if a.Offset != nil && *a.Offset < 1 {
		return fmt.Errorf("offset must be >= 1")
	}
	if a.Limit != nil && *a.Limit < 1 {
		return fmt.Errorf("limit must be >= 1")
	}
	return nil
}

// ResourceKey reports the file as a read target.
func (t *ReadTool) ResourceKey(args json.RawMessage) ResourceKey {
	var a readArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return ResourceKey{}
	}
	return PathResourceKey(a.Path, false)
}

// OutputKind selects interval sampling for oversized reads.
func (t *ReadTool) OutputKind() shape.Kind {
	return shape.KindRead
}

// Execute reads the file window and renders numbered lines.
func (t *ReadTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a readArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}

	if a.Path == "" {
		return FailureResultf("path cannot be empty"), nil
	}

	if !pathAllowed(a.Path, t.allowedPaths) {
		return FailureResultf("access to path '%s' is not allowed", a.Path), nil
	}

	info, err := os.Stat(a.Path)
	if os.IsNotExist(err) {
		return FailureResultf("file does not exist: %s", a.Path), nil
	}
	if err != nil {
		return FailureResult(fmt.Errorf("failed to read file metadata: %w", err)), nil
	}
	if info.IsDir() {
		return FailureResultf("path is a directory: %s (use ls)", a.Path), nil
	}
	if info.Size() > t.maxSizeBytes {
		return FailureResultf("file too large: %d bytes (max: %d bytes)", info.Size(), t.maxSizeBytes), nil
	}

	content, err := os.ReadFile(a.Path)
	if err != nil {
		return FailureResult(fmt.Errorf("failed to read file: %w", err)), nil
	}

	if len(content) == 0 {
		return SuccessResult(fmt.Sprintf("%s is empty", a.Path)), nil
	}

	lines := strings.Split(strings.TrimSuffix(string(content), "\n"), "\n")
	total := len(lines)

	offset := 1
	if a.Offset != nil {
		offset = *a.Offset
	}
	if offset > total {
		return FailureResultf("offset %d is beyond end of file (%d lines)", offset, total), nil
	}

	end := total
	if a.Limit != nil && offset-1+*a.Limit < end {
		end = offset - 1 + *a.Limit
	}

	var b strings.Builder
	for i := offset - 1; i < end; i++ {
		fmt.Fprintf(&b, "%6d\t%s\n", i+1, lines[i])
	}
	if end < total {
		fmt.Fprintf(&b, "(showing lines %d-%d of %d)", offset, end, total)
	}

	return SuccessResult(b.String()), nil
}
