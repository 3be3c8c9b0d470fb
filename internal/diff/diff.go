// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package diff computes line diffs between two versions of a document, used
// to preview proposed edits before they are applied.
package diff

import (
	"fmt"
	"strings"
)

// =============================================================================
// TYPES
// =============================================================================

// LineType classifies a diff line.
type LineType int

const (
	Context LineType = iota
	Added
	Removed
)

// String returns the name of the line type.
func (t LineType) String() string {
	switch t {
	case Context:
		return "context"
	case Added:
		return "added"
	case Removed:
		return "removed"
	}
	return "unknown"
}

// Prefix returns the unified-diff marker for the line type.
func (t LineType) Prefix() string {
	switch t {
	case Added:
		return "+"
	case Removed:
		return "-"
	}
	return " "
}

// Line is one line of a diff. OldLine and NewLine are 1-based and zero when
// the line does not exist on that side.
type Line struct {
	Type    LineType
	Content string
	OldLine int
	NewLine int
}

// Hunk is a contiguous run of changes with surrounding context.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []Line
}

// Diff is the comparison of two texts.
type Diff struct {
	Path      string
	Hunks     []Hunk
	Additions int
	Deletions int
}

// DefaultContext is the number of unchanged lines kept around each change.
const DefaultContext = 3

// =============================================================================
// COMPUTATION
// =============================================================================

// Compute diffs oldText against newText keeping context unchanged lines
// around each change.
func Compute(path, oldText, newText string, context int) *Diff {
	lines := Lines(splitLines(oldText), splitLines(newText))

	d := &Diff{Path: path, Hunks: group(lines, context)}
	for _, l := range lines {
		switch l.Type {
		case Added:
			d.Additions++
		case Removed:
			d.Deletions++
		}
	}
	return d
}

// Empty reports whether the two texts had identical lines.
func (d *Diff) Empty() bool {
	return len(d.Hunks) == 0
}

// splitLines splits text into lines; a final newline does not start a new
// line.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}

// Lines aligns a and b on their longest common subsequence.
func Lines(a, b []string) []Line {
	m, n := len(a), len(b)

	// lcs[i][j] is the LCS length of a[i:] and b[j:].
	lcs := make([][]int, m+1)
	for i := range lcs {
		lcs[i] = make([]int, n+1)
	}
	for i := m - 1; i >= 0; i-- {
		for j := n - 1; j >= 0; j-- {
			if a[i] == b[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else {
				lcs[i][j] = max(lcs[i+1][j], lcs[i][j+1])
			}
		}
	}

	out := make([]Line, 0, max(m, n))
	i, j := 0, 0
	for i < m || j < n {
		switch {
		case i < m && j < n && a[i] == b[j]:
			out = append(out, Line{Type: Context, Content: a[i], OldLine: i + 1, NewLine: j + 1})
			i++
			j++
		case j >= n || (i < m && lcs[i+1][j] >= lcs[i][j+1]):
			out = append(out, Line{Type: Removed, Content: a[i], OldLine: i + 1})
			i++
		default:
			out = append(out, Line{Type: Added, Content: b[j], NewLine: j + 1})
			j++
		}
	}
	return out
}

// group cuts lines into hunks. Changes separated by at most 2*context
// unchanged lines share a hunk.
func group(lines []Line, context int) []Hunk {
	var changes []int
	for i, l := range lines {
		if l.Type != Context {
			changes = append(changes, i)
		}
	}
	if len(changes) == 0 {
		return nil
	}

	var hunks []Hunk
	start := changes[0]
	end := changes[0]
	for _, c := range changes[1:] {
		if c-end-1 > 2*context {
			hunks = append(hunks, makeHunk(lines, start-context, end+context))
			start = c
		}
		end = c
	}
	return append(hunks, makeHunk(lines, start-context, end+context))
}

// makeHunk builds the hunk covering lines[from..to], clamped.
func makeHunk(lines []Line, from, to int) Hunk {
	from = max(from, 0)
	to = min(to, len(lines)-1)

	h := Hunk{Lines: lines[from : to+1]}
	oldBefore, newBefore := 0, 0
	for _, l := range lines[:from] {
		if l.Type != Added {
			oldBefore++
		}
		if l.Type != Removed {
			newBefore++
		}
	}
	for _, l := range h.Lines {
		if l.Type != Added {
			h.OldCount++
		}
		if l.Type != Removed {
			h.NewCount++
		}
	}

	// An empty side starts at the line before it, as in unified diffs.
	h.OldStart = oldBefore
	if h.OldCount > 0 {
		h.OldStart++
	}
	h.NewStart = newBefore
	if h.NewCount > 0 {
		h.NewStart++
	}
	return h
}

// =============================================================================
// FORMATTING
// =============================================================================

// Header returns the "@@ -a,b +c,d @@" line of a hunk.
func (h Hunk) Header() string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.OldStart, h.OldCount, h.NewStart, h.NewCount)
}

// Unified renders d in unified diff format.
func (d *Diff) Unified() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "--- a/%s\n+++ b/%s\n", d.Path, d.Path)
	for _, h := range d.Hunks {
		sb.WriteString(h.Header())
		sb.WriteByte('\n')
		for _, l := range h.Lines {
			sb.WriteString(l.Type.Prefix())
			sb.WriteString(l.Content)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// Summary returns a short description such as "+3 -1".
func (d *Diff) Summary() string {
	if d.Empty() {
		return "no changes"
	}
	return fmt.Sprintf("+%d -%d", d.Additions, d.Deletions)
}
