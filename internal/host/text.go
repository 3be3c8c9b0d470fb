// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package host

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// =============================================================================
// POSITIONS AND RANGES
// =============================================================================

// Position is a zero-based line and character offset. Characters are runes.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Before reports whether p comes strictly before other.
func (p Position) Before(other Position) bool {
	if p.Line != other.Line {
		return p.Line < other.Line
	}
	return p.Character < other.Character
}

// Range is a span between two positions. A range whose End precedes its
// Start (a backwards selection) is treated as if the two were swapped.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// NewRange builds a range from line/character pairs.
func NewRange(startLine, startChar, endLine, endChar int) Range {
	return Range{
		Start: Position{Line: startLine, Character: startChar},
		End:   Position{Line: endLine, Character: endChar},
	}
}

// Normalized returns r with Start not after End.
func (r Range) Normalized() Range {
	if r.End.Before(r.Start) {
		return Range{Start: r.End, End: r.Start}
	}
	return r
}

func (r Range) String() string {
	return fmt.Sprintf("%d:%d-%d:%d", r.Start.Line, r.Start.Character, r.End.Line, r.End.Character)
}

// =============================================================================
// DOCUMENTS
// =============================================================================

// TextDocument is an immutable snapshot of a document's text.
type TextDocument struct {
	URI  string
	Text string
}

// LineCount returns the number of lines in the document.
func (d *TextDocument) LineCount() int {
	return strings.Count(d.Text, "\n") + 1
}

// OffsetAt converts a position to a byte offset, clamping positions that
// fall outside the document the way editors validate positions.
func (d *TextDocument) OffsetAt(pos Position) int {
	if pos.Line < 0 {
		return 0
	}
	offset := 0
	for line := 0; line < pos.Line; line++ {
		nl := strings.IndexByte(d.Text[offset:], '\n')
		if nl < 0 {
			return len(d.Text)
		}
		offset += nl + 1
	}

	end := len(d.Text)
	if nl := strings.IndexByte(d.Text[offset:], '\n'); nl >= 0 {
		end = offset + nl
	}
	for i := 0; i < pos.Character && offset < end; i++ {
		_, size := utf8.DecodeRuneInString(d.Text[offset:end])
		offset += size
	}
	return offset
}

// GetText returns the text covered by r.
func (d *TextDocument) GetText(r Range) string {
	r = r.Normalized()
	return d.Text[d.OffsetAt(r.Start):d.OffsetAt(r.End)]
}

// =============================================================================
// EDITS
// =============================================================================

// TextEdit replaces the text in Range with NewText.
type TextEdit struct {
	Range   Range  `json:"range"`
	NewText string `json:"newText"`
}

// Replace builds an edit that replaces r with text.
func Replace(r Range, text string) TextEdit {
	return TextEdit{Range: r, NewText: text}
}

// ApplyEdits applies edits computed against the original document text and
// returns the new text. Edits may be given in any order but must not overlap.
func ApplyEdits(doc *TextDocument, edits []TextEdit) (string, error) {
	type span struct {
		start, end int
		text       string
	}

	spans := make([]span, 0, len(edits))
	for _, e := range edits {
		r := e.Range.Normalized()
		spans = append(spans, span{
			start: doc.OffsetAt(r.Start),
			end:   doc.OffsetAt(r.End),
			text:  e.NewText,
		})
	}
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	var sb strings.Builder
	last := 0
	for _, s := range spans {
		if s.start < last {
			return "", ErrOverlappingEdits
		}
		sb.WriteString(doc.Text[last:s.start])
		sb.WriteString(s.text)
		last = s.end
	}
	sb.WriteString(doc.Text[last:])
	return sb.String(), nil
}
