package shape

import (
	"fmt"
	"strings"
	"testing"
)

func manyLines(n int, prefix string) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%s line %d\n", prefix, i+1)
	}
	return b.String()
}

func TestShapeSmallOutputUnchanged(t *testing.T) {
	raw := "main.go:12: TODO fix this\nmain.go:40: TODO and this"
	out := Shape(raw, KindSearch, DefaultLimits())
	if out.Text != raw {
		t.Errorf("small output should pass through unchanged, got %q", out.Text)
	}
	if out.Truncated {
		t.Error("small output should not be marked truncated")
	}
	if out.Strategy != StrategyNone {
		t.Errorf("expected StrategyNone, got %v", out.Strategy)
	}
	if out.OriginalSize != len(raw) {
		t.Errorf("expected original size %d, got %d", len(raw), out.OriginalSize)
	}
}

func TestShapeSearchTruncation(t *testing.T) {
	// 500 matching lines: keep the first 30, report 470 omitted.
	raw := manyLines(500, "match")
	out := Shape(raw, KindSearch, DefaultLimits())

	if !out.Truncated {
		t.Fatal("expected truncated output")
	}
	lines := strings.Split(out.Text, "\n")
	if len(lines) != DefaultGrepTruncateThreshold+1 {
		t.Errorf("expected %d kept lines plus marker, got %d lines",
			DefaultGrepTruncateThreshold, len(lines))
	}
	if lines[0] != "match line 1" {
		t.Errorf("expected first match retained, got %q", lines[0])
	}
	if !strings.Contains(out.Text, "470 lines omitted") {
		t.Errorf("expected '470 lines omitted' marker, got tail %q", lines[len(lines)-1])
	}
	if out.Strategy != StrategyHeadTail {
		t.Errorf("expected StrategyHeadTail, got %v", out.Strategy)
	}
}

func TestShapeSearchLongLineCut(t *testing.T) {
	raw := "short line\n" + strings.Repeat("x", 5000)
	out := Shape(raw, KindSearch, DefaultLimits())

	if !out.Truncated {
		t.Fatal("expected truncated output")
	}
	lines := strings.Split(out.Text, "\n")
	if len(lines[1]) != DefaultLineCharLimit {
		t.Errorf("cut line should be exactly %d chars, got %d",
			DefaultLineCharLimit, len(lines[1]))
	}
	if !strings.HasSuffix(lines[1], "[line truncated]") {
		t.Error("cut line should end with a truncation marker")
	}
	if lines[0] != "short line" {
		t.Errorf("short line should be untouched, got %q", lines[0])
	}
}

func TestShapeReadIntervalSampling(t *testing.T) {
	raw := manyLines(10000, "content")
	out := Shape(raw, KindRead, DefaultLimits())

	if !out.Truncated {
		t.Fatal("expected truncated output")
	}
	if out.Strategy != StrategyInterval {
		t.Errorf("expected StrategyInterval, got %v", out.Strategy)
	}
	if !strings.Contains(out.Text, "10000 lines total") {
		t.Error("sample should report the total line count")
	}
	// Ranges must span the whole file, not just its head.
	if !strings.Contains(out.Text, "--- lines 1-40 of 10000 ---") {
		t.Error("expected a labeled range at the start of the file")
	}
	if !strings.Contains(out.Text, "content line 1\n") {
		t.Error("expected content from the start of the file")
	}
	if !strings.Contains(out.Text, "content line 10000") {
		t.Error("expected content from the end of the file")
	}
	if !strings.Contains(out.Text, "offset/limit") {
		t.Error("sample should explain how to fetch a specific range")
	}
}

func TestShapeReadUnderThresholdUnchanged(t *testing.T) {
	raw := manyLines(DefaultReadTruncateThreshold, "content")
	out := Shape(raw, KindRead, DefaultLimits())
	if out.Truncated {
		t.Error("file at threshold should pass through unchanged")
	}
}

func TestShapeListingHeadTail(t *testing.T) {
	raw := manyLines(300, "entry")
	out := Shape(raw, KindListing, DefaultLimits())

	if !out.Truncated {
		t.Fatal("expected truncated listing")
	}
	if !strings.Contains(out.Text, "entry line 1\n") {
		t.Error("expected listing head retained")
	}
	if !strings.HasSuffix(out.Text, "entry line 300") {
		t.Error("expected listing tail retained")
	}
	if !strings.Contains(out.Text, "240 entries omitted") {
		t.Errorf("expected omitted-entry count, got %q", out.Text)
	}
}

func TestShapeHardCap(t *testing.T) {
	raw := strings.Repeat("abcdefghij", 10000) // 100k chars, one line
	out := Shape(raw, KindGeneric, DefaultLimits())

	if len(out.Text) > DefaultToolOutputLimit {
		t.Fatalf("shaped output exceeds hard cap: %d > %d",
			len(out.Text), DefaultToolOutputLimit)
	}
	if !out.Truncated {
		t.Error("expected truncated output")
	}
	if !strings.Contains(out.Text, "chars omitted") {
		t.Error("expected char omission marker")
	}
	if !strings.HasPrefix(out.Text, "abcdefghij") {
		t.Error("expected head of output retained")
	}
	if !strings.HasSuffix(out.Text, "abcdefghij") {
		t.Error("expected tail of output retained")
	}
}

func TestShapeHardCapAfterLineShaping(t *testing.T) {
	// 30 kept search lines that are each near the line limit still exceed
	// the overall budget, so the char cap must apply on top.
	raw := manyLines(40, strings.Repeat("y", 1900))
	out := Shape(raw, KindSearch, DefaultLimits())
	if len(out.Text) > DefaultToolOutputLimit {
		t.Fatalf("shaped output exceeds hard cap: %d", len(out.Text))
	}
	if !out.Truncated {
		t.Error("expected truncated output")
	}
}

func TestReshapeStaysBounded(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		kind Kind
	}{
		{"search", manyLines(500, "match"), KindSearch},
		{"read", manyLines(9000, "content"), KindRead},
		{"listing", manyLines(250, "entry"), KindListing},
		{"generic_cap", strings.Repeat("z", 80000), KindGeneric},
		{"long_line", strings.Repeat("q", 6000), KindSearch},
		{"untouched", "just a few lines\nof output", KindSearch},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			once := Shape(tc.raw, tc.kind, DefaultLimits())
			twice := Shape(once.Text, tc.kind, DefaultLimits())
			if len(once.Text) > DefaultToolOutputLimit {
				t.Fatalf("shaped output exceeds hard cap: %d", len(once.Text))
			}
			if len(twice.Text) > len(once.Text) {
				t.Errorf("reshaping grew the text: len %d -> %d",
					len(once.Text), len(twice.Text))
			}
			if !once.Truncated && twice.Text != once.Text {
				t.Error("reshaping changed text that fit within every limit")
			}
		})
	}
}

func TestShapeCapsOutputContainingMarkerText(t *testing.T) {
	// Raw output whose every line looks like one of our own omission
	// markers must still be bounded like any other output.
	raw := manyLines(1000, "log: dropped [12 chars omitted] ... [line truncated]")
	out := Shape(raw, KindSearch, DefaultLimits())

	if len(out.Text) > DefaultToolOutputLimit {
		t.Fatalf("marker-bearing output escaped the hard cap: %d > %d",
			len(out.Text), DefaultToolOutputLimit)
	}
	if !out.Truncated {
		t.Error("expected truncated output")
	}
	lines := strings.Split(out.Text, "\n")
	if len(lines) != DefaultGrepTruncateThreshold+1 {
		t.Errorf("expected %d kept lines plus marker, got %d",
			DefaultGrepTruncateThreshold, len(lines))
	}
}

func TestShapeLineCutOnlyStrategy(t *testing.T) {
	// A search output changed only by a long-line cut did no head/tail
	// sampling, so the strategy stays none while truncated is set.
	raw := "short line\n" + strings.Repeat("x", 5000)
	out := Shape(raw, KindSearch, DefaultLimits())

	if !out.Truncated {
		t.Fatal("expected truncated output")
	}
	if out.Strategy != StrategyNone {
		t.Errorf("expected StrategyNone for a line cut, got %v", out.Strategy)
	}
}

func TestTruncatedImpliesMarker(t *testing.T) {
	inputs := []struct {
		raw  string
		kind Kind
	}{
		{manyLines(5, "a"), KindSearch},
		{manyLines(5000, "b"), KindRead},
		{manyLines(120, "c"), KindListing},
		{strings.Repeat("d", 50000), KindGeneric},
	}
	for _, in := range inputs {
		out := Shape(in.raw, in.kind, DefaultLimits())
		hasMarker := strings.Contains(out.Text, "omitted") ||
			strings.Contains(out.Text, "truncated") ||
			strings.Contains(out.Text, "FILE SAMPLE")
		if out.Truncated != hasMarker {
			t.Errorf("kind %v: truncated=%v but marker present=%v",
				in.kind, out.Truncated, hasMarker)
		}
	}
}

func TestShapeCustomLimits(t *testing.T) {
	limits := Limits{
		GrepTruncateThreshold: 5,
		ReadTruncateThreshold: 10,
		LineCharLimit:         100,
		ToolOutputLimit:       1000,
	}
	out := Shape(manyLines(20, "hit"), KindSearch, limits)
	lines := strings.Split(out.Text, "\n")
	if len(lines) != 6 {
		t.Errorf("expected 5 kept lines plus marker, got %d", len(lines))
	}
	if !strings.Contains(out.Text, "15 lines omitted") {
		t.Errorf("expected '15 lines omitted', got %q", lines[len(lines)-1])
	}
}
