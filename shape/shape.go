// Package shape bounds raw tool output so it fits in an LLM context window.
//
// Shaping is pure and deterministic: the same raw output, kind, and limits
// always produce the same result, and the result never exceeds the
// character budget. Shaped-ness is carried in Output, never inferred from
// the text itself; raw output that happens to contain marker-like text is
// shaped like any other. Every truncation leaves an explicit omission
// marker telling the model how much was dropped and how to retrieve it
// with a narrower follow-up call.
package shape

import (
	"fmt"
	"strings"
)

// Default shaping thresholds.
const (
	DefaultGrepTruncateThreshold = 30
	DefaultReadTruncateThreshold = 2000
	DefaultLineCharLimit         = 2000
	DefaultToolOutputLimit       = 30000

	// listingTruncateThreshold applies to directory and glob listings.
	listingTruncateThreshold = 100
	listingHeadLines         = 50
	listingTailLines         = 10

	// Interval sampling of large reads: evenly spaced ranges across the file.
	sampleRangeCount = 10
	sampleRangeLines = 40
)

// Kind classifies raw output so the right shaping policy applies.
type Kind int

const (
	// KindGeneric gets only the final character cap.
	KindGeneric Kind = iota
	// KindSearch is many-matched-lines output (grep and friends).
	KindSearch
	// KindRead is full-file content.
	KindRead
	// KindListing is a directory or glob listing.
	KindListing
)

// Strategy records which sampling policy produced a shaped output.
type Strategy int

const (
	StrategyNone Strategy = iota
	StrategyHeadTail
	StrategyInterval
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case StrategyHeadTail:
		return "head_tail"
	case StrategyInterval:
		return "interval"
	default:
		return "none"
	}
}

// Limits holds the shaping thresholds.
type Limits struct {
	GrepTruncateThreshold int
	ReadTruncateThreshold int
	LineCharLimit         int
	ToolOutputLimit       int
}

// DefaultLimits returns the standard thresholds.
func DefaultLimits() Limits {
	return Limits{
		GrepTruncateThreshold: DefaultGrepTruncateThreshold,
		ReadTruncateThreshold: DefaultReadTruncateThreshold,
		LineCharLimit:         DefaultLineCharLimit,
		ToolOutputLimit:       DefaultToolOutputLimit,
	}
}

// Output is a size-bounded representation of raw tool output.
// Invariant: len(Text) <= Limits.ToolOutputLimit, and Truncated is true
// exactly when Text differs from the raw output.
type Output struct {
	Text         string
	Truncated    bool
	OriginalSize int
	Strategy     Strategy
}

// Omission marker fragments.
const (
	lineOmissionSuffix = " lines omitted; narrow the pattern or path to see the rest]"
	charOmissionSuffix = " chars omitted]"
	lineCutMarker      = "... [line truncated]"
	intervalHeader     = "=== FILE SAMPLE: "
	listingMarker      = "... [listing truncated, "
)

// Shape bounds raw output according to its kind and the given limits.
// The character cap is unconditional: len(Output.Text) never exceeds
// limits.ToolOutputLimit regardless of what the raw text contains.
func Shape(raw string, kind Kind, limits Limits) Output {
	text, strategy := shapeLines(raw, kind, limits)

	capped, wasCapped := capChars(text, limits.ToolOutputLimit)
	if wasCapped {
		text = capped
		if strategy == StrategyNone {
			strategy = StrategyHeadTail
		}
	}

	return Output{
		Text:         text,
		Truncated:    text != raw,
		OriginalSize: len(raw),
		Strategy:     strategy,
	}
}

// shapeLines applies the line-level policy for the output kind.
func shapeLines(raw string, kind Kind, limits Limits) (string, Strategy) {
	switch kind {
	case KindSearch:
		return shapeSearch(raw, limits)
	case KindRead:
		return shapeRead(raw, limits)
	case KindListing:
		return shapeListing(raw, limits)
	default:
		return raw, StrategyNone
	}
}

// shapeSearch keeps the first N matched lines and reports the omitted count.
func shapeSearch(raw string, limits Limits) (string, Strategy) {
	lines := splitLines(raw)
	changed := false

	for i, line := range lines {
		if cut := cutLine(line, limits.LineCharLimit); cut != line {
			lines[i] = cut
			changed = true
		}
	}

	if len(lines) <= limits.GrepTruncateThreshold {
		if !changed {
			return raw, StrategyNone
		}
		// Only individual lines were cut; no match sampling happened.
		return strings.Join(lines, "\n"), StrategyNone
	}

	kept := lines[:limits.GrepTruncateThreshold]
	omitted := len(lines) - limits.GrepTruncateThreshold
	var b strings.Builder
	b.WriteString(strings.Join(kept, "\n"))
	fmt.Fprintf(&b, "\n... [%d%s", omitted, lineOmissionSuffix)
	return b.String(), StrategyHeadTail
}

// shapeRead switches to interval sampling for large files so the whole
// file's structure stays visible instead of only its head.
func shapeRead(raw string, limits Limits) (string, Strategy) {
	lines := splitLines(raw)
	if len(lines) <= limits.ReadTruncateThreshold {
		return raw, StrategyNone
	}

	total := len(lines)

	var b strings.Builder
	fmt.Fprintf(&b, "%s%d lines total; %d evenly spaced ranges shown ===\n",
		intervalHeader, total, sampleRangeCount)

	for i := 0; i < sampleRangeCount; i++ {
		// Computed per range so the last one lands exactly on the file end.
		start := i * (total - sampleRangeLines) / (sampleRangeCount - 1)
		end := start + sampleRangeLines
		if end > total {
			end = total
		}
		fmt.Fprintf(&b, "\n--- lines %d-%d of %d ---\n", start+1, end, total)
		for _, line := range lines[start:end] {
			b.WriteString(cutLine(line, limits.LineCharLimit))
			b.WriteByte('\n')
		}
	}

	shown := sampleRangeCount * sampleRangeLines
	fmt.Fprintf(&b, "\n=== %d of %d lines shown; use offset/limit to read a specific range ===",
		shown, total)
	return b.String(), StrategyInterval
}

// shapeListing collapses long directory or glob listings to head plus tail.
func shapeListing(raw string, limits Limits) (string, Strategy) {
	lines := splitLines(raw)
	if len(lines) <= listingTruncateThreshold {
		return raw, StrategyNone
	}

	omitted := len(lines) - listingHeadLines - listingTailLines
	var b strings.Builder
	b.WriteString(strings.Join(lines[:listingHeadLines], "\n"))
	fmt.Fprintf(&b, "\n%s%d entries omitted]\n", listingMarker, omitted)
	b.WriteString(strings.Join(lines[len(lines)-listingTailLines:], "\n"))
	return b.String(), StrategyHeadTail
}

// capChars enforces the hard character budget with head+tail truncation.
func capChars(text string, limit int) (string, bool) {
	if len(text) <= limit {
		return text, false
	}

	// Reserve room for the marker itself so the result stays under budget.
	head := limit * 3 / 5
	tail := limit / 5
	omitted := len(text) - head - tail
	return fmt.Sprintf("%s\n... [%d%s ...\n%s",
		text[:head], omitted, charOmissionSuffix, text[len(text)-tail:]), true
}

// cutLine bounds a single line, marking the cut. The marker fits inside the
// limit so a cut line never needs cutting again.
func cutLine(line string, limit int) string {
	if len(line) <= limit {
		return line
	}
	return line[:limit-len(lineCutMarker)] + lineCutMarker
}

// splitLines splits on newlines without producing a trailing empty line.
func splitLines(raw string) []string {
	trimmed := strings.TrimSuffix(raw, "\n")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}
