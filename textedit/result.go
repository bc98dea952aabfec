package textedit

import (
	"fmt"
	"strings"
)

// Result summarizes a committed transaction.
type Result struct {
	Path         string
	Edits        int
	Replacements []int // per-operation replacement counts, in sequence order
	Preview      string
	LinesBefore  int
	LinesAfter   int
	BytesBefore  int
	BytesAfter   int
}

// TotalReplacements sums the per-operation counts.
func (r Result) TotalReplacements() int {
	total := 0
	for _, n := range r.Replacements {
		total += n
	}
	return total
}

// Summary renders the commit report returned to the controller.
func (r Result) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Applied %d edit(s) to %s (%d replacement(s))\n",
		r.Edits, r.Path, r.TotalReplacements())
	for i, n := range r.Replacements {
		fmt.Fprintf(&b, "  edit #%d: %d replacement(s)\n", i+1, n)
	}
	if r.Preview != "" {
		b.WriteString("\n")
		b.WriteString(r.Preview)
	}
	fmt.Fprintf(&b, "\nLines: %d -> %d (%+d), bytes: %d -> %d (%+d)",
		r.LinesBefore, r.LinesAfter, r.LinesAfter-r.LinesBefore,
		r.BytesBefore, r.BytesAfter, r.BytesAfter-r.BytesBefore)
	return b.String()
}

// maxPreviewChanges bounds the line diff shown in the commit report.
const maxPreviewChanges = 10

// previewChanges renders a short line-level diff of the edit.
func previewChanges(before, after string) string {
	beforeLines := strings.Split(before, "\n")
	afterLines := strings.Split(after, "\n")

	n := len(beforeLines)
	if len(afterLines) < n {
		n = len(afterLines)
	}

	var b strings.Builder
	shown := 0
	for i := 0; i < n && shown < maxPreviewChanges; i++ {
		if beforeLines[i] != afterLines[i] {
			fmt.Fprintf(&b, "  line %d:\n  - %s\n  + %s\n", i+1,
				clip(beforeLines[i], 200), clip(afterLines[i], 200))
			shown++
		}
	}
	if shown == maxPreviewChanges {
		b.WriteString("  ... (additional changes not shown)\n")
	}
	if b.Len() == 0 {
		return ""
	}
	return "Changes:\n" + b.String()
}
