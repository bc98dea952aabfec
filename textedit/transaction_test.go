package textedit

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "target.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func readBack(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read file back: %v", err)
	}
	return string(data)
}

func TestCommitSingleEdit(t *testing.T) {
	path := writeTemp(t, "hello world")

	tx, err := Begin(path)
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	if tx.State() != StateStarted {
		t.Errorf("expected started state, got %s", tx.State())
	}

	if err := tx.Validate([]Operation{{Old: "world", New: "go"}}); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if tx.State() != StateValidated {
		t.Errorf("expected validated state, got %s", tx.State())
	}

	res, err := tx.Apply()
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if tx.State() != StateCommitted {
		t.Errorf("expected committed state, got %s", tx.State())
	}
	if got := readBack(t, path); got != "hello go" {
		t.Errorf("expected 'hello go', got %q", got)
	}
	if res.TotalReplacements() != 1 {
		t.Errorf("expected 1 replacement, got %d", res.TotalReplacements())
	}
}

func TestSequentialFirstOccurrence(t *testing.T) {
	// Two first-occurrence edits on "foo foo": the second resolves against
	// the result of the first, yielding "bar baz".
	path := writeTemp(t, "foo foo")

	tx, err := Begin(path)
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	ops := []Operation{
		{Old: "foo", New: "bar", Occurrence: OccurrenceFirst},
		{Old: "foo", New: "baz", Occurrence: OccurrenceFirst},
	}
	if err := tx.Validate(ops); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if _, err := tx.Apply(); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if got := readBack(t, path); got != "bar baz" {
		t.Errorf("expected 'bar baz', got %q", got)
	}
}

func TestNoMatchRejectsWholeTransaction(t *testing.T) {
	original := "alpha beta gamma"
	path := writeTemp(t, original)

	tx, err := Begin(path)
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	ops := []Operation{
		{Old: "alpha", New: "ALPHA", Occurrence: OccurrenceFirst},
		{Old: "qux", New: "quux"},
	}
	err = tx.Validate(ops)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, ErrNoMatch) {
		t.Errorf("expected ErrNoMatch, got %v", err)
	}
	if tx.State() != StateRejected {
		t.Errorf("expected rejected state, got %s", tx.State())
	}
	if got := readBack(t, path); got != original {
		t.Errorf("file mutated on rejected transaction: %q", got)
	}
}

func TestAmbiguousMatchRejects(t *testing.T) {
	original := "dup dup dup"
	path := writeTemp(t, original)

	tx, _ := Begin(path)
	err := tx.Validate([]Operation{{Old: "dup", New: "uniq"}})
	if !errors.Is(err, ErrAmbiguousMatch) {
		t.Errorf("expected ErrAmbiguousMatch, got %v", err)
	}
	if got := readBack(t, path); got != original {
		t.Errorf("file mutated on rejected transaction: %q", got)
	}
}

func TestReplaceAll(t *testing.T) {
	path := writeTemp(t, "x x x x")

	tx, _ := Begin(path)
	if err := tx.Validate([]Operation{{Old: "x", New: "y", Occurrence: OccurrenceAll}}); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	res, err := tx.Apply()
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if res.Replacements[0] != 4 {
		t.Errorf("expected 4 replacements, got %d", res.Replacements[0])
	}
	if got := readBack(t, path); got != "y y y y" {
		t.Errorf("expected 'y y y y', got %q", got)
	}
}

func TestLaterEditSeesEarlierResult(t *testing.T) {
	// The second edit targets text created by the first. Both resolve
	// against the evolving in-memory copy.
	path := writeTemp(t, "start")

	tx, _ := Begin(path)
	ops := []Operation{
		{Old: "start", New: "middle"},
		{Old: "middle", New: "end"},
	}
	if err := tx.Validate(ops); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if _, err := tx.Apply(); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if got := readBack(t, path); got != "end" {
		t.Errorf("expected 'end', got %q", got)
	}
}

func TestValidateStaticChecks(t *testing.T) {
	path := writeTemp(t, "content")

	cases := []struct {
		name string
		ops  []Operation
	}{
		{"empty_sequence", nil},
		{"empty_old", []Operation{{Old: "", New: "x"}}},
		{"identical", []Operation{{Old: "content", New: "content"}}},
		{"too_many", make([]Operation, MaxOperations+1)},
	}
	for i := range cases[3].ops {
		cases[3].ops[i] = Operation{Old: "content", New: "c"}
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx, err := Begin(path)
			if err != nil {
				t.Fatalf("begin failed: %v", err)
			}
			if err := tx.Validate(tc.ops); err == nil {
				t.Error("expected validation error")
			}
			if tx.State() != StateRejected {
				t.Errorf("expected rejected state, got %s", tx.State())
			}
		})
	}
}

func TestBeginMissingFile(t *testing.T) {
	_, err := Begin(filepath.Join(t.TempDir(), "nope.txt"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestBeginDirectory(t *testing.T) {
	_, err := Begin(t.TempDir())
	if err == nil {
		t.Fatal("expected error for directory path")
	}
}

func TestAbortLeavesFileUntouched(t *testing.T) {
	original := "untouched"
	path := writeTemp(t, original)

	tx, _ := Begin(path)
	if err := tx.Validate([]Operation{{Old: "untouched", New: "touched"}}); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	tx.Abort()
	if tx.State() != StateRolledBack {
		t.Errorf("expected rolled_back state, got %s", tx.State())
	}
	if got := readBack(t, path); got != original {
		t.Errorf("abort mutated the file: %q", got)
	}
}

func TestApplyRequiresValidation(t *testing.T) {
	path := writeTemp(t, "content")
	tx, _ := Begin(path)
	if _, err := tx.Apply(); err == nil {
		t.Error("expected error applying unvalidated transaction")
	}
}

func TestApplyCommitIsAtomic(t *testing.T) {
	// The commit renames a fully written temp file over the target: the
	// original mode survives and no temp file is left behind.
	path := writeTemp(t, "hello world")
	if err := os.Chmod(path, 0600); err != nil {
		t.Fatalf("chmod failed: %v", err)
	}

	tx, err := Begin(path)
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	if err := tx.Validate([]Operation{{Old: "world", New: "go"}}); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if _, err := tx.Apply(); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	if got := readBack(t, path); got != "hello go" {
		t.Errorf("expected 'hello go', got %q", got)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected mode 0600 preserved, got %v", info.Mode().Perm())
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("readdir failed: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind after commit: %s", e.Name())
		}
	}
}

func TestAtomicWriteFailureLeavesTarget(t *testing.T) {
	// A commit that cannot create its temp file must not touch the target.
	dir := t.TempDir()
	path := filepath.Join(dir, "missing", "target.txt")
	if err := atomicWrite(path, "new content", 0644); err == nil {
		t.Fatal("expected error writing into a missing directory")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("target should not exist after failed write, got %v", err)
	}
}

func TestResultSummary(t *testing.T) {
	path := writeTemp(t, "one\ntwo\nthree\n")

	tx, _ := Begin(path)
	if err := tx.Validate([]Operation{{Old: "two", New: "deux"}}); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	res, err := tx.Apply()
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	summary := res.Summary()
	if !strings.Contains(summary, "Applied 1 edit(s)") {
		t.Errorf("summary missing edit count: %q", summary)
	}
	if !strings.Contains(summary, "- two") || !strings.Contains(summary, "+ deux") {
		t.Errorf("summary missing change preview: %q", summary)
	}
}
