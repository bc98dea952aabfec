package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func grepFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	files := map[string][]byte{
		"main.go":    []byte("package main\n\nfunc main() {}\n"),
		"util.go":    []byte("package main\n\nfunc Helper() {}\n"),
		"notes.txt":  []byte("TODO: refactor main\n"),
		"binary.dat": {0x00, 0x01, 0x02, 'm', 'a', 'i', 'n'},
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(root, name), content, 0644); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}
	return root
}

func TestFallbackSearchMatchesLines(t *testing.T) {
	root := grepFixture(t)
	tool := NewGrepTool(5)

	result := tool.fallbackSearch(context.Background(), grepArgs{Pattern: "func \\w+"}, root, 0)
	if !result.Success() {
		t.Fatalf("search failed: %v", result.Error)
	}
	if !strings.Contains(result.Output, "main.go:3:func main() {}") {
		t.Errorf("expected path:line:text match, got: %q", result.Output)
	}
	if !strings.Contains(result.Output, "util.go:3:func Helper() {}") {
		t.Errorf("expected match in util.go, got: %q", result.Output)
	}
	if strings.Contains(result.Output, "binary.dat") {
		t.Errorf("binary file should be skipped, got: %q", result.Output)
	}
}

func TestFallbackSearchCaseAndLiteral(t *testing.T) {
	root := grepFixture(t)
	tool := NewGrepTool(5)
	no := false
	yes := true

	insensitive := tool.fallbackSearch(context.Background(),
		grepArgs{Pattern: "TODO", CaseSensitive: &no}, root, 0)
	if !strings.Contains(insensitive.Output, "notes.txt") {
		t.Errorf("case-insensitive search missed notes.txt: %q", insensitive.Output)
	}

	literal := tool.fallbackSearch(context.Background(),
		grepArgs{Pattern: "main() {}", FixedStrings: &yes}, root, 0)
	if !strings.Contains(literal.Output, "main.go:3") {
		t.Errorf("fixed-string search missed the literal, got: %q", literal.Output)
	}
}

func TestFallbackSearchGlobFilter(t *testing.T) {
	root := grepFixture(t)
	tool := NewGrepTool(5)

	result := tool.fallbackSearch(context.Background(),
		grepArgs{Pattern: "main", Glob: []string{"*.go"}}, root, 0)
	if strings.Contains(result.Output, "notes.txt") {
		t.Errorf("glob filter should exclude notes.txt: %q", result.Output)
	}
	if !strings.Contains(result.Output, "main.go") {
		t.Errorf("glob filter should include main.go: %q", result.Output)
	}
}

func TestFallbackSearchMaxCountPerFile(t *testing.T) {
	root := t.TempDir()
	content := strings.Repeat("hit\n", 10)
	if err := os.WriteFile(filepath.Join(root, "many.txt"), []byte(content), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	tool := NewGrepTool(5)

	result := tool.fallbackSearch(context.Background(), grepArgs{Pattern: "hit"}, root, 3)
	if got := strings.Count(result.Output, "hit"); got != 3 {
		t.Errorf("expected 3 matches per file, got %d: %q", got, result.Output)
	}
}

func TestFallbackSearchNoMatches(t *testing.T) {
	root := grepFixture(t)
	tool := NewGrepTool(5)

	result := tool.fallbackSearch(context.Background(), grepArgs{Pattern: "zzz_nothing"}, root, 0)
	if !result.Success() {
		t.Fatalf("no-match search should succeed: %v", result.Error)
	}
	if !strings.Contains(result.Output, "No matches") {
		t.Errorf("expected no-match message, got: %q", result.Output)
	}
}

func TestFallbackSearchBadPattern(t *testing.T) {
	tool := NewGrepTool(5)
	result := tool.fallbackSearch(context.Background(), grepArgs{Pattern: "["}, t.TempDir(), 0)
	if result.Success() {
		t.Fatal("expected failure for invalid regex")
	}
}
