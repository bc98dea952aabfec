// Ls tool for directory listing.
//
// Lists one directory level with entry types and sizes. Pairs with glob
// for recursive discovery.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/richinex/daedalus/shape"
)

// LsTool lists directory entries.
type LsTool struct {
	BaseTool
	allowedPaths []string
}

// NewLsTool creates a new ls tool.
func NewLsTool() *LsTool {
	return &LsTool{}
}

// WithAllowedPaths sets the allowed path prefixes.
func (t *LsTool) WithAllowedPaths(paths []string) *LsTool {
	t.allowedPaths = paths
	return t
}

// Metadata returns the tool metadata.
func (t *LsTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "ls",
		Description: "List the entries of a directory. Directories are suffixed with '/'. Use glob for recursive discovery.",
		Parameters: []ToolParameter{
			{Name: "path", ParamType: "string", Description: "Directory to list (default: current directory)", Required: false},
			{Name: "all", ParamType: "boolean", Description: "Include hidden entries (default: false)", Required: false},
		},
	}
}

type lsArgs struct {
	Path string `json:"path"`
	All  *bool  `json:"all"`
}

// ResourceKey reports the directory as a read target.
func (t *LsTool) ResourceKey(args json.RawMessage) ResourceKey {
	var a lsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return ResourceKey{}
	}
	path := a.Path
	if path == "" {
		path = "."
	}
	return PathResourceKey(path, false)
}

// OutputKind selects listing shaping: head and tail with an entry count.
func (t *LsTool) OutputKind() shape.Kind {
	return shape.KindListing
}

// Execute lists the directory.
func (t *LsTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a lsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}

	path := a.Path
	if path == "" {
		path = "."
	}

	if !pathAllowed(path, t.allowedPaths) {
		return FailureResultf("access to path '%s' is not allowed", path), nil
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return FailureResultf("path does not exist: %s", path), nil
	}
	if err != nil {
		return FailureResult(fmt.Errorf("failed to stat path: %w", err)), nil
	}
	if !info.IsDir() {
		return FailureResultf("path is not a directory: %s (use read)", path), nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return FailureResult(fmt.Errorf("failed to read directory: %w", err)), nil
	}

	showHidden := a.All != nil && *a.All

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if !showHidden && strings.HasPrefix(name, ".") {
			continue
		}
		if entry.IsDir() {
			names = append(names, name+"/")
			continue
		}
		line := name
		if fi, err := entry.Info(); err == nil {
			line = fmt.Sprintf("%s (%d bytes)", name, fi.Size())
		}
		names = append(names, line)
	}
	sort.Strings(names)

	if len(names) == 0 {
		return SuccessResult(fmt.Sprintf("%s is empty", path)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d entries\n", path, len(names))
	for _, name := range names {
		fmt.Fprintln(&b, name)
	}
	return SuccessResult(strings.TrimSuffix(b.String(), "\n")), nil
}
