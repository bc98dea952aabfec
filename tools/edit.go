// Edit Tools - Transactional search/replace on files.
//
// Information Hiding:
// - Transaction lifecycle hidden behind the tool surface
// - Occurrence resolution hidden in the textedit package
// - Rollback guarantees internalized

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/richinex/daedalus/textedit"
)

// EditTool replaces one text span in a file. Internally a transaction of
// length one, so the commit-or-pristine guarantee holds here too.
type EditTool struct {
	BaseTool
	allowedPaths []string
	maxSizeBytes int64
}

// NewEditTool creates a new edit tool.
func NewEditTool(maxSizeBytes int64) *EditTool {
	return &EditTool{
		maxSizeBytes: maxSizeBytes,
	}
}

// WithAllowedPaths sets the allowed path prefixes.
func (t *EditTool) WithAllowedPaths(paths []string) *EditTool {
	t.allowedPaths = paths
	return t
}

// Metadata returns the tool metadata.
func (t *EditTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "edit",
		Description: "Replace text in a file. The old text must match exactly once unless occurrence is 'first' or 'all'. The file is written only if the edit succeeds.",
		Parameters: []ToolParameter{
			{Name: "path", ParamType: "string", Description: "Path to the file to edit", Required: true},
			{Name: "old", ParamType: "string", Description: "Text to replace (include surrounding context to disambiguate)", Required: true},
			{Name: "new", ParamType: "string", Description: "Replacement text", Required: true},
			{Name: "occurrence", ParamType: "string", Description: "Which matches to replace (default: unique)", Required: false, Enum: []string{"unique", "first", "all"}},
		},
	}
}

type editArgs struct {
	Path       string `json:"path"`
	Old        string `json:"old"`
	New        string `json:"new"`
	Occurrence string `json:"occurrence"`
}

// Validate validates the arguments.
func (t *EditTool) Validate(args json.RawMessage) error {
	var a editArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if a.Old == "" {
		return fmt.Errorf("old text cannot be empty")
	}
	if a.Old == a.New {
		return fmt.Errorf("old and new text are identical")
	}
	if _, err := textedit.ParseOccurrence(a.Occurrence); err != nil {
		return err
	}
	return nil
}

// ResourceKey reports the target file as a write target.
func (t *EditTool) ResourceKey(args json.RawMessage) ResourceKey {
	var a editArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return ResourceKey{}
	}
	return PathResourceKey(a.Path, true)
}

// Execute applies the edit.
func (t *EditTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a editArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}

	occurrence, err := textedit.ParseOccurrence(a.Occurrence)
	if err != nil {
		return FailureResult(err), nil
	}

	ops := []textedit.Operation{{Old: a.Old, New: a.New, Occurrence: occurrence}}
	return t.runTransaction(a.Path, ops)
}

func (t *EditTool) runTransaction(path string, ops []textedit.Operation) (ToolResult, error) {
	return runEditTransaction(path, ops, t.allowedPaths, t.maxSizeBytes)
}

// MultiEditTool applies an ordered sequence of edits to one file as a
// single transaction. Either every edit lands or the file is untouched.
type MultiEditTool struct {
	BaseTool
	allowedPaths []string
	maxSizeBytes int64
}

// NewMultiEditTool creates a new multi-edit tool.
func NewMultiEditTool(maxSizeBytes int64) *MultiEditTool {
	return &MultiEditTool{
		maxSizeBytes: maxSizeBytes,
	}
}

// WithAllowedPaths sets the allowed path prefixes.
func (t *MultiEditTool) WithAllowedPaths(paths []string) *MultiEditTool {
	t.allowedPaths = paths
	return t
}

// Metadata returns the tool metadata.
func (t *MultiEditTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "multi_edit",
		Description: "Apply multiple edits to one file atomically. Edits apply in order, each against the result of the previous; if any edit fails nothing is written.",
		Parameters: []ToolParameter{
			{Name: "path", ParamType: "string", Description: "Path to the file to edit", Required: true},
			{Name: "edits", ParamType: "array", Description: "Ordered edit operations", Required: true, Items: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"old":        map[string]interface{}{"type": "string", "description": "Text to replace"},
					"new":        map[string]interface{}{"type": "string", "description": "Replacement text"},
					"occurrence": map[string]interface{}{"type": "string", "enum": []interface{}{"unique", "first", "all"}},
				},
				"required": []interface{}{"old", "new"},
			}},
		},
	}
}

type multiEditOp struct {
	Old        string `json:"old"`
	New        string `json:"new"`
	Occurrence string `json:"occurrence"`
}

type multiEditArgs struct {
	Path  string        `json:"path"`
	Edits []multiEditOp `json:"edits"`
}

// Validate validates the arguments.
func (t *MultiEditTool) Validate(args json.RawMessage) error {
	var a multiEditArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if len(a.Edits) == 0 {
		return fmt.Errorf("edits cannot be empty")
	}
	if len(a.Edits) > textedit.MaxOperations {
		return fmt.Errorf("too many edits (%d, max %d)", len(a.Edits), textedit.MaxOperations)
	}
	for i, e := range a.Edits {
		if e.Old == "" {
			return fmt.Errorf("edit #%d: old text cannot be empty", i+1)
		}
		if e.Old == e.New {
			return fmt.Errorf("edit #%d: old and new text are identical", i+1)
		}
		if _, err := textedit.ParseOccurrence(e.Occurrence); err != nil {
			return fmt.Errorf("edit #%d: %w", i+1, err)
		}
	}
	return nil
}

// ResourceKey reports the target file as a write target.
func (t *MultiEditTool) ResourceKey(args json.RawMessage) ResourceKey {
	var a multiEditArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return ResourceKey{}
	}
	return PathResourceKey(a.Path, true)
}

// Execute applies the edit sequence.
func (t *MultiEditTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a multiEditArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}

	ops := make([]textedit.Operation, len(a.Edits))
	for i, e := range a.Edits {
		occurrence, err := textedit.ParseOccurrence(e.Occurrence)
		if err != nil {
			return FailureResult(fmt.Errorf("edit #%d: %w", i+1, err)), nil
		}
		ops[i] = textedit.Operation{Old: e.Old, New: e.New, Occurrence: occurrence}
	}

	return runEditTransaction(a.Path, ops, t.allowedPaths, t.maxSizeBytes)
}

// runEditTransaction drives one transaction through validate and apply.
// Validation failures reject the whole sequence with the file untouched.
func runEditTransaction(path string, ops []textedit.Operation, allowedPaths []string, maxSizeBytes int64) (ToolResult, error) {
	if !pathAllowedForWrite(path, allowedPaths) {
		return FailureResultf("access to path '%s' is not allowed", path), nil
	}

	if maxSizeBytes > 0 {
		if info, err := os.Stat(path); err == nil && info.Size() > maxSizeBytes {
			return FailureResultf("file too large: %d bytes (max: %d bytes)", info.Size(), maxSizeBytes), nil
		}
	}

	tx, err := textedit.Begin(path)
	if err != nil {
		return FailureResult(err), nil
	}

	if err := tx.Validate(ops); err != nil {
		return FailureResult(fmt.Errorf("no edits applied: %w", err)), nil
	}

	result, err := tx.Apply()
	if err != nil {
		return FailureResult(err), nil
	}

	return SuccessResult(result.Summary()), nil
}
