// Find tool for filtered file discovery.
//
// Walks a directory tree applying name, regex, type, size, and
// modification-time filters. Glob covers plain name patterns; find is for
// everything glob cannot express.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/richinex/daedalus/shape"
)

// DefaultFindLimit is the default maximum results per search.
const DefaultFindLimit = 1000

// FindTool searches a directory tree with metadata filters.
type FindTool struct{}

// NewFindTool creates a new find tool.
func NewFindTool() *FindTool {
	return &FindTool{}
}

// Metadata returns tool metadata.
func (t *FindTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "find",
		Description: "Search a directory tree with filters for name, regex pattern, type, size, and modification time. Use glob for plain name patterns; use find when metadata filters are needed.",
		Parameters: []ToolParameter{
			{Name: "path", ParamType: "string", Description: "Starting directory for the search", Required: true},
			{Name: "name", ParamType: "string", Description: "Filter by file name (substring match)", Required: false},
			{Name: "pattern", ParamType: "string", Description: "Regex matched against the full path", Required: false},
			{Name: "file_type", ParamType: "string", Description: "Filter by entry type", Required: false, Enum: []string{"file", "dir", "symlink"}},
			{Name: "size", ParamType: "string", Description: "Filter by size: +1M (larger than 1MB), -100K (smaller than 100KB), 50K (exactly 50KB)", Required: false},
			{Name: "modified", ParamType: "string", Description: "Filter by modification time: -24h (within the last 24 hours), +7d (older than 7 days); units m, h, d, w", Required: false},
			{Name: "max_depth", ParamType: "integer", Description: "Maximum directory depth to descend", Required: false},
			{Name: "case_sensitive", ParamType: "boolean", Description: "Case sensitive name/pattern matching (default: false)", Required: false},
			{Name: "limit", ParamType: "integer", Description: fmt.Sprintf("Maximum results to return (default: %d)", DefaultFindLimit), Required: false},
		},
	}
}

// FindArgs are the arguments for the find tool.
type FindArgs struct {
	Path          string `json:"path"`
	Name          string `json:"name"`
	Pattern       string `json:"pattern"`
	FileType      string `json:"file_type"`
	Size          string `json:"size"`
	Modified      string `json:"modified"`
	MaxDepth      *int   `json:"max_depth"`
	CaseSensitive bool   `json:"case_sensitive"`
	Limit         *int   `json:"limit"`
}

// Validate validates the arguments, including filter syntax, so a bad
// filter never starts a walk.
func (t *FindTool) Validate(args json.RawMessage) error {
	var a FindArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(a.Path) == "" {
		return fmt.Errorf("path is required")
	}
	switch a.FileType {
	case "", "file", "dir", "symlink":
	default:
		return fmt.Errorf("unknown file_type %q (want file, dir, or symlink)", a.FileType)
	}
	if a.Size != "" {
		if _, _, err := parseSizeFilter(a.Size); err != nil {
			return err
		}
	}
	if a.Modified != "" {
		if _, _, err := parseTimeFilter(a.Modified); err != nil {
			return err
		}
	}
	if a.Pattern != "" {
		if _, err := compilePathPattern(a.Pattern, a.CaseSensitive); err != nil {
			return err
		}
	}
	return nil
}

// ResourceKey reports the search root as a read target.
func (t *FindTool) ResourceKey(args json.RawMessage) ResourceKey {
	var a FindArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return ResourceKey{}
	}
	return PathResourceKey(a.Path, false)
}

// OutputKind selects listing shaping.
func (t *FindTool) OutputKind() shape.Kind {
	return shape.KindListing
}

// Execute runs the filtered walk.
func (t *FindTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a FindArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResultf("invalid arguments: %v", err), nil
	}

	root, err := filepath.Abs(a.Path)
	if err != nil {
		return FailureResultf("invalid path: %v", err), nil
	}
	if _, err := os.Stat(root); err != nil {
		return FailureResultf("path not found: %s", a.Path), nil
	}

	filter, err := newFindFilter(a)
	if err != nil {
		return FailureResult(err), nil
	}

	limit := DefaultFindLimit
	if a.Limit != nil && *a.Limit > 0 {
		limit = *a.Limit
	}

	var results []string
	checked := 0
	walkErr := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			if os.IsPermission(err) {
				return filepath.SkipDir
			}
			return nil
		}

		checked++
		info, err := entry.Info()
		if err != nil {
			return nil
		}
		if filter.matches(path, entry, info) {
			results = append(results, formatFindEntry(path, info))
			if len(results) >= limit {
				return filepath.SkipAll
			}
		}

		// The entry itself has been considered; stop descending once the
		// depth budget is spent.
		if a.MaxDepth != nil && entry.IsDir() && pathDepth(root, path) >= *a.MaxDepth {
			return filepath.SkipDir
		}
		return nil
	})
	if walkErr != nil && walkErr != filepath.SkipAll {
		return FailureResultf("search failed: %v", walkErr), nil
	}

	return SuccessResult(formatFindResult(results, checked, limit)), nil
}

// findFilter holds the compiled filter set for one search.
type findFilter struct {
	name          string
	pattern       *regexp.Regexp
	fileType      string
	caseSensitive bool

	sizeOp    byte // '+', '-', '=', or 0 for no filter
	sizeBytes int64

	timeOp       byte // '+', '-', or 0 for no filter
	timeCutoff   time.Time
	hasTimecheck bool
}

func newFindFilter(a FindArgs) (*findFilter, error) {
	f := &findFilter{
		name:          a.Name,
		fileType:      a.FileType,
		caseSensitive: a.CaseSensitive,
	}

	if a.Pattern != "" {
		re, err := compilePathPattern(a.Pattern, a.CaseSensitive)
		if err != nil {
			return nil, err
		}
		f.pattern = re
	}
	if a.Size != "" {
		op, size, err := parseSizeFilter(a.Size)
		if err != nil {
			return nil, err
		}
		f.sizeOp = op
		f.sizeBytes = size
	}
	if a.Modified != "" {
		op, d, err := parseTimeFilter(a.Modified)
		if err != nil {
			return nil, err
		}
		f.timeOp = op
		f.timeCutoff = time.Now().Add(-d)
		f.hasTimecheck = true
	}
	return f, nil
}

// matches applies every configured filter to one entry.
func (f *findFilter) matches(path string, entry fs.DirEntry, info fs.FileInfo) bool {
	switch f.fileType {
	case "file":
		if !info.Mode().IsRegular() {
			return false
		}
	case "dir":
		if !info.IsDir() {
			return false
		}
	case "symlink":
		if info.Mode()&fs.ModeSymlink == 0 {
			return false
		}
	}

	if f.name != "" {
		base := entry.Name()
		want := f.name
		if !f.caseSensitive {
			base = strings.ToLower(base)
			want = strings.ToLower(want)
		}
		if !strings.Contains(base, want) {
			return false
		}
	}

	if f.pattern != nil && !f.pattern.MatchString(path) {
		return false
	}

	if f.sizeOp != 0 {
		switch f.sizeOp {
		case '+':
			if info.Size() <= f.sizeBytes {
				return false
			}
		case '-':
			if info.Size() >= f.sizeBytes {
				return false
			}
		default:
			if info.Size() != f.sizeBytes {
				return false
			}
		}
	}

	if f.hasTimecheck {
		if f.timeOp == '-' {
			// Modified within the duration.
			if !info.ModTime().After(f.timeCutoff) {
				return false
			}
		} else {
			// Modified before the duration ago.
			if !info.ModTime().Before(f.timeCutoff) {
				return false
			}
		}
	}

	return true
}

// compilePathPattern compiles the path regex, case-folded unless requested.
func compilePathPattern(pattern string, caseSensitive bool) (*regexp.Regexp, error) {
	if !caseSensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %v", err)
	}
	return re, nil
}

// parseSizeFilter parses "+1M", "-100K", or "50K" into an operator and a
// byte count.
func parseSizeFilter(s string) (byte, int64, error) {
	s = strings.TrimSpace(s)
	op := byte('=')
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		op = s[0]
		s = s[1:]
	}
	if s == "" {
		return 0, 0, fmt.Errorf("invalid size filter")
	}

	multiplier := int64(1)
	switch s[len(s)-1] {
	case 'K', 'k':
		multiplier = 1024
		s = s[:len(s)-1]
	case 'M', 'm':
		multiplier = 1024 * 1024
		s = s[:len(s)-1]
	case 'G', 'g':
		multiplier = 1024 * 1024 * 1024
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, 0, fmt.Errorf("invalid size filter %q", s)
	}
	return op, n * multiplier, nil
}

// parseTimeFilter parses "-24h" or "+7d" into an operator and a duration.
// Units: m (minutes), h (hours), d (days), w (weeks).
func parseTimeFilter(s string) (byte, time.Duration, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "+") && !strings.HasPrefix(s, "-") {
		return 0, 0, fmt.Errorf("time filter must start with + or -")
	}
	op := s[0]
	s = s[1:]
	if len(s) < 2 {
		return 0, 0, fmt.Errorf("invalid time filter")
	}

	var unit time.Duration
	switch s[len(s)-1] {
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	default:
		return 0, 0, fmt.Errorf("invalid time unit %q (use m, h, d, or w)", s[len(s)-1:])
	}

	n, err := strconv.ParseInt(s[:len(s)-1], 10, 64)
	if err != nil || n < 0 {
		return 0, 0, fmt.Errorf("invalid time value %q", s)
	}
	return op, time.Duration(n) * unit, nil
}

// pathDepth counts directory levels below the search root.
func pathDepth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}

// formatFindEntry renders one match as "[TYPE] size modified path".
func formatFindEntry(path string, info fs.FileInfo) string {
	kind := "[OTHER]"
	switch {
	case info.IsDir():
		kind = "[DIR]"
	case info.Mode()&fs.ModeSymlink != 0:
		kind = "[LINK]"
	case info.Mode().IsRegular():
		kind = "[FILE]"
	}

	size := "-"
	if info.Mode().IsRegular() {
		size = formatByteSize(info.Size())
	}

	return fmt.Sprintf("%s %10s %s %s",
		kind, size, info.ModTime().Format("2006-01-02 15:04"), path)
}

// formatByteSize renders a size in the nearest binary unit.
func formatByteSize(n int64) string {
	const units = "BKMGT"
	size := float64(n)
	idx := 0
	for size >= 1024 && idx < len(units)-1 {
		size /= 1024
		idx++
	}
	if idx == 0 {
		return fmt.Sprintf("%.0f%c", size, units[idx])
	}
	return fmt.Sprintf("%.1f%c", size, units[idx])
}

// formatFindResult builds the summary returned to the controller.
func formatFindResult(results []string, checked, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d matches (checked %d entries)\n\n", len(results), checked)

	if len(results) == 0 {
		b.WriteString("No entries matched the given filters.")
		return b.String()
	}

	b.WriteString(strings.Join(results, "\n"))
	if len(results) >= limit {
		fmt.Fprintf(&b, "\n\n(limited to %d results)", limit)
	}
	return b.String()
}
