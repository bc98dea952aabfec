// Package textedit applies an ordered sequence of text substitutions to one
// file as an all-or-nothing transaction.
//
// A transaction captures the file's pre-image at Begin, validates and applies
// every operation against an in-memory copy, and writes the file exactly once
// after the whole sequence has succeeded. Rollback therefore means "no write
// ever happened": the on-disk file is either the pre-image or the fully
// applied result, never anything in between.
package textedit

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// MaxOperations bounds the number of edits in one transaction.
const MaxOperations = 50

// Sentinel errors for validation outcomes. Both guarantee zero file mutation.
var (
	// ErrNoMatch means an operation's old text was not found in the
	// current in-memory content.
	ErrNoMatch = errors.New("no match")

	// ErrAmbiguousMatch means an operation requiring a unique location
	// matched more than once.
	ErrAmbiguousMatch = errors.New("ambiguous match")
)

// Occurrence selects which matches of an operation's old text are replaced.
type Occurrence int

const (
	// OccurrenceUnique requires the old text (with whatever surrounding
	// context the caller included) to match exactly once.
	OccurrenceUnique Occurrence = iota
	// OccurrenceFirst replaces the first match.
	OccurrenceFirst
	// OccurrenceAll replaces every match.
	OccurrenceAll
)

// String returns the occurrence name.
func (o Occurrence) String() string {
	switch o {
	case OccurrenceFirst:
		return "first"
	case OccurrenceAll:
		return "all"
	default:
		return "unique"
	}
}

// ParseOccurrence parses an occurrence name. The empty string defaults to
// "unique", the safest mode.
func ParseOccurrence(s string) (Occurrence, error) {
	switch s {
	case "", "unique":
		return OccurrenceUnique, nil
	case "first":
		return OccurrenceFirst, nil
	case "all":
		return OccurrenceAll, nil
	default:
		return 0, fmt.Errorf("unknown occurrence %q (want unique, first, or all)", s)
	}
}

// Operation is a single text substitution within a transaction.
type Operation struct {
	Old        string
	New        string
	Occurrence Occurrence
}

// State tracks a transaction through its lifecycle.
type State int

const (
	StateStarted State = iota
	StateValidated
	StateApplying
	StateCommitted
	StateRolledBack
	StateRejected
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStarted:
		return "started"
	case StateValidated:
		return "validated"
	case StateApplying:
		return "applying"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled_back"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Transaction owns the pre-image of one file for the duration of an edit
// sequence. Not safe for concurrent use; callers serialize transactions per
// path (the dispatcher's conflict rule does this for batch execution).
type Transaction struct {
	path     string
	preimage string
	mode     fs.FileMode
	state    State
	ops      []Operation
	counts   []int
	result   string
}

// Begin reads the target file and captures its pre-image.
func Begin(path string) (*Transaction, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file does not exist: %s", path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory: %s", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return &Transaction{
		path:     path,
		preimage: string(content),
		mode:     info.Mode().Perm(),
		state:    StateStarted,
	}, nil
}

// State returns the transaction's current state.
func (t *Transaction) State() State {
	return t.state
}

// Path returns the target file path.
func (t *Transaction) Path() string {
	return t.path
}

// Validate dry-runs the operation sequence against the in-memory copy.
// Each operation resolves against the content produced by its predecessors,
// not against the file on disk. Any zero-match or ambiguous operation
// rejects the whole transaction; the file is untouched.
func (t *Transaction) Validate(ops []Operation) error {
	if t.state != StateStarted {
		return fmt.Errorf("validate called in state %s", t.state)
	}

	if err := checkOperations(ops); err != nil {
		t.reject()
		return err
	}

	current := t.preimage
	counts := make([]int, len(ops))
	for i, op := range ops {
		next, n, err := applyOperation(current, op)
		if err != nil {
			t.reject()
			return fmt.Errorf("edit #%d: %w", i+1, err)
		}
		current = next
		counts[i] = n
	}

	t.ops = ops
	t.counts = counts
	t.result = current
	t.state = StateValidated
	return nil
}

// Apply writes the fully edited content to a temp file in the target's
// directory and renames it over the target, so the commit is atomic at the
// file-system boundary. On any failure the disk file is left exactly as
// the pre-image and the transaction rolls back. The pre-image buffer is
// released on both paths.
func (t *Transaction) Apply() (Result, error) {
	if t.state != StateValidated {
		return Result{}, fmt.Errorf("apply called in state %s", t.state)
	}
	t.state = StateApplying

	if err := atomicWrite(t.path, t.result, t.mode); err != nil {
		t.rollback()
		return Result{}, fmt.Errorf("write %s: %w", t.path, err)
	}

	res := Result{
		Path:         t.path,
		Edits:        len(t.ops),
		Replacements: t.counts,
		Preview:      previewChanges(t.preimage, t.result),
		LinesBefore:  countLines(t.preimage),
		LinesAfter:   countLines(t.result),
		BytesBefore:  len(t.preimage),
		BytesAfter:   len(t.result),
	}

	t.release()
	t.state = StateCommitted
	return res, nil
}

// Abort discards the transaction without touching the file. Used when a
// batch is cancelled mid-flight; since no write has happened yet this is
// equivalent to the rollback path.
func (t *Transaction) Abort() {
	if t.state == StateCommitted || t.state == StateRejected {
		return
	}
	t.rollback()
}

func (t *Transaction) reject() {
	t.release()
	t.state = StateRejected
}

func (t *Transaction) rollback() {
	t.release()
	t.state = StateRolledBack
}

// release drops the buffers deterministically on every terminal path.
func (t *Transaction) release() {
	t.preimage = ""
	t.result = ""
}

// atomicWrite replaces path with content via a same-directory temp file and
// rename. A mid-write failure leaves the temp file, never a partial target.
func atomicWrite(path, content string, mode fs.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.WriteString(content); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// checkOperations validates the static shape of the sequence.
func checkOperations(ops []Operation) error {
	if len(ops) == 0 {
		return errors.New("no edits provided")
	}
	if len(ops) > MaxOperations {
		return fmt.Errorf("too many edits (%d, max %d)", len(ops), MaxOperations)
	}
	for i, op := range ops {
		if op.Old == "" {
			return fmt.Errorf("edit #%d: old text cannot be empty", i+1)
		}
		if op.Old == op.New {
			return fmt.Errorf("edit #%d: old and new text are identical", i+1)
		}
	}
	return nil
}

// applyOperation performs one substitution, returning the new content and
// the number of replacements made.
func applyOperation(content string, op Operation) (string, int, error) {
	n := strings.Count(content, op.Old)
	if n == 0 {
		return "", 0, fmt.Errorf("%w: %q not found", ErrNoMatch, clip(op.Old, 80))
	}

	switch op.Occurrence {
	case OccurrenceAll:
		return strings.ReplaceAll(content, op.Old, op.New), n, nil
	case OccurrenceFirst:
		return strings.Replace(content, op.Old, op.New, 1), 1, nil
	default:
		if n > 1 {
			return "", 0, fmt.Errorf("%w: %q matches %d times; add surrounding context or use occurrence \"all\"",
				ErrAmbiguousMatch, clip(op.Old, 80), n)
		}
		return strings.Replace(content, op.Old, op.New, 1), 1, nil
	}
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}
