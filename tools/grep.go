// Grep Tool - Fast repository search via ripgrep.
//
// Information Hiding:
// - Ripgrep command construction hidden
// - Pure Go fallback search hidden
// - Output parsing abstracted
// - Error handling internalized

package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/richinex/daedalus/shape"
)

// GrepTool searches file contents via ripgrep, falling back to a pure Go
// walk when rg is not installed. The search bounds its own match count;
// the shaper bounds what reaches the controller.
type GrepTool struct {
	BaseTool
	timeoutSecs       uint64
	defaultMaxResults int
}

// NewGrepTool creates a new grep tool with the given timeout.
func NewGrepTool(timeoutSecs uint64) *GrepTool {
	return &GrepTool{
		timeoutSecs:       timeoutSecs,
		defaultMaxResults: 200,
	}
}

// WithMaxResults sets the default maximum results.
func (t *GrepTool) WithMaxResults(max int) *GrepTool {
	t.defaultMaxResults = max
	return t
}

// Metadata returns the tool metadata.
func (t *GrepTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "grep",
		Description: "Search file contents with a regular expression (ripgrep). Narrow the pattern or path if output is truncated.",
		Parameters: []ToolParameter{
			{Name: "pattern", ParamType: "string", Description: "The search pattern (regular expression)", Required: true},
			{Name: "path", ParamType: "string", Description: "Path to search in (default: current directory)", Required: false},
			{Name: "glob", ParamType: "array", Description: "Glob patterns to filter files", Required: false, Items: map[string]interface{}{"type": "string"}},
			{Name: "case_sensitive", ParamType: "boolean", Description: "Case sensitive search (default: true)", Required: false},
			{Name: "fixed_strings", ParamType: "boolean", Description: "Treat pattern as literal string", Required: false},
			{Name: "max_results", ParamType: "integer", Description: "Maximum number of matching lines per file", Required: false},
			{Name: "context", ParamType: "integer", Description: "Lines of context around matches", Required: false},
		},
	}
}

type grepArgs struct {
	Pattern       string   `json:"pattern"`
	Path          string   `json:"path"`
	Glob          []string `json:"glob"`
	CaseSensitive *bool    `json:"case_sensitive"`
	FixedStrings  *bool    `json:"fixed_strings"`
	MaxResults    *int     `json:"max_results"`
	Context       *int     `json:"context"`
}

// Validate validates the arguments.
func (t *GrepTool) Validate(args json.RawMessage) error {
	var a grepArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(a.Pattern) == "" {
		return fmt.Errorf("pattern cannot be empty")
	}
	return nil
}

// ResourceKey reports the searched path as a read target.
func (t *GrepTool) ResourceKey(args json.RawMessage) ResourceKey {
	var a grepArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return ResourceKey{}
	}
	path := a.Path
	if path == "" {
		path = "."
	}
	return PathResourceKey(path, false)
}

// OutputKind selects search shaping: head truncation with an omission count.
func (t *GrepTool) OutputKind() shape.Kind {
	return shape.KindSearch
}

// Execute runs the search, via ripgrep when available.
func (t *GrepTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a grepArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}

	if strings.TrimSpace(a.Pattern) == "" {
		return FailureResultf("pattern cannot be empty"), nil
	}

	searchPath := a.Path
	if searchPath == "" {
		searchPath = "."
	}

	maxCount := t.defaultMaxResults
	if a.MaxResults != nil && *a.MaxResults > 0 {
		maxCount = *a.MaxResults
	}

	if _, err := exec.LookPath("rg"); err != nil {
		return t.fallbackSearch(ctx, a, searchPath, maxCount), nil
	}

	// Build rg arguments
	rgArgs := []string{"--no-messages", "--color=never", "--line-number"}

	// Context lines around matches
	if a.Context != nil && *a.Context > 0 {
		rgArgs = append(rgArgs, "-C", fmt.Sprintf("%d", *a.Context))
	}

	// Max results - limits matching lines per file
	if maxCount > 0 {
		rgArgs = append(rgArgs, "--max-count", fmt.Sprintf("%d", maxCount))
	}

	// Case sensitivity
	if a.CaseSensitive != nil && !*a.CaseSensitive {
		rgArgs = append(rgArgs, "-i")
	}

	// Fixed strings
	if a.FixedStrings != nil && *a.FixedStrings {
		rgArgs = append(rgArgs, "-F")
	}

	// Glob patterns
	for _, g := range a.Glob {
		if strings.TrimSpace(g) != "" {
			rgArgs = append(rgArgs, "-g", g)
		}
	}

	rgArgs = append(rgArgs, "--", a.Pattern, searchPath)

	// Create timeout context
	timeout := time.Duration(t.timeoutSecs) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "rg", rgArgs...)
	output, err := cmd.CombinedOutput()

	if ctx.Err() == context.DeadlineExceeded {
		return FailureResultf("rg timed out after %d seconds", t.timeoutSecs), nil
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode := exitErr.ExitCode()
			// rg returns exit code 1 when no matches are found
			if exitCode == 1 {
				return SuccessResult(fmt.Sprintf("No matches for pattern '%s' in %s", a.Pattern, searchPath)), nil
			}
			return FailureResultf("rg failed with exit code %d\noutput: %s", exitCode, string(output)), nil
		}
		return FailureResult(fmt.Errorf("failed to execute rg: %w", err)), nil
	}

	return SuccessResult(string(output)), nil
}

// fallbackSearch is the pure Go line search used when rg is not on PATH.
// Matches print as path:line:text. Context lines are an rg-only extra;
// the fallback reports matching lines only.
func (t *GrepTool) fallbackSearch(ctx context.Context, a grepArgs, searchPath string, maxCount int) ToolResult {
	pattern := a.Pattern
	if a.FixedStrings != nil && *a.FixedStrings {
		pattern = regexp.QuoteMeta(pattern)
	}
	if a.CaseSensitive != nil && !*a.CaseSensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return FailureResultf("invalid pattern: %v", err)
	}

	if _, err := os.Stat(searchPath); err != nil {
		return FailureResultf("path not found: %s", searchPath)
	}

	var b strings.Builder
	matched := false
	walkErr := filepath.WalkDir(searchPath, func(path string, entry fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return nil
		}
		if entry.IsDir() {
			if strings.HasPrefix(entry.Name(), ".") && path != searchPath {
				return filepath.SkipDir
			}
			return nil
		}
		if !grepFileWanted(searchPath, path, a.Glob) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil || bytes.IndexByte(data, 0) >= 0 {
			// Unreadable and binary files are skipped, matching rg.
			return nil
		}

		count := 0
		for i, line := range strings.Split(string(data), "\n") {
			if re.MatchString(line) {
				fmt.Fprintf(&b, "%s:%d:%s\n", path, i+1, line)
				matched = true
				count++
				if maxCount > 0 && count >= maxCount {
					break
				}
			}
		}
		return nil
	})
	if walkErr != nil {
		return FailureResultf("search failed: %v", walkErr)
	}

	if !matched {
		return SuccessResult(fmt.Sprintf("No matches for pattern '%s' in %s", a.Pattern, searchPath))
	}
	return SuccessResult(b.String())
}

// grepFileWanted applies the glob filters to one file.
func grepFileWanted(base, path string, globs []string) bool {
	active := 0
	rel, err := filepath.Rel(base, path)
	if err != nil {
		rel = path
	}
	for _, g := range globs {
		if strings.TrimSpace(g) == "" {
			continue
		}
		active++
		if matchGlobPattern(rel, g) || matchPattern(g, filepath.Base(path)) {
			return true
		}
	}
	return active == 0
}
