// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package diff

import (
	"strings"
	"testing"
)

func TestLineType(t *testing.T) {
	tests := []struct {
		typ    LineType
		name   string
		prefix string
	}{
		{Context, "context", " "},
		{Added, "added", "+"},
		{Removed, "removed", "-"},
		{LineType(99), "unknown", " "},
	}
	for _, tc := range tests {
		if tc.typ.String() != tc.name || tc.typ.Prefix() != tc.prefix {
			t.Errorf("%d: got %q/%q, want %q/%q", tc.typ, tc.typ.String(), tc.typ.Prefix(), tc.name, tc.prefix)
		}
	}
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"a\n", 1},
		{"a\n\nb\n", 3},
	}
	for _, tc := range tests {
		if got := len(splitLines(tc.in)); got != tc.want {
			t.Errorf("splitLines(%q) = %d lines, want %d", tc.in, got, tc.want)
		}
	}
}

func TestLines(t *testing.T) {
	got := Lines([]string{"a", "b", "c"}, []string{"a", "B", "c", "d"})

	want := []Line{
		{Context, "a", 1, 1},
		{Removed, "b", 2, 0},
		{Added, "B", 0, 2},
		{Context, "c", 3, 3},
		{Added, "d", 0, 4},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d lines, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestCompute_NoChanges(t *testing.T) {
	d := Compute("x.go", "a\nb\n", "a\nb\n", DefaultContext)
	if !d.Empty() || d.Summary() != "no changes" {
		t.Errorf("diff = %+v", d)
	}
}

func TestCompute_Modified(t *testing.T) {
	d := Compute("x.go", "a\nb\nc\n", "a\nB\nc\n", 1)

	if d.Additions != 1 || d.Deletions != 1 {
		t.Errorf("stats = +%d -%d", d.Additions, d.Deletions)
	}
	want := "--- a/x.go\n+++ b/x.go\n@@ -1,3 +1,3 @@\n a\n-b\n+B\n c\n"
	if got := d.Unified(); got != want {
		t.Errorf("Unified =\n%s\nwant\n%s", got, want)
	}
}

func TestCompute_NewFile(t *testing.T) {
	d := Compute("n.go", "", "x\ny\n", DefaultContext)
	if len(d.Hunks) != 1 {
		t.Fatalf("hunks = %d", len(d.Hunks))
	}
	if h := d.Hunks[0].Header(); h != "@@ -0,0 +1,2 @@" {
		t.Errorf("header = %q", h)
	}
}

func TestCompute_DeletedFile(t *testing.T) {
	d := Compute("n.go", "x\ny\n", "", DefaultContext)
	if h := d.Hunks[0].Header(); h != "@@ -1,2 +0,0 @@" {
		t.Errorf("header = %q", h)
	}
	if d.Summary() != "+0 -2" {
		t.Errorf("summary = %q", d.Summary())
	}
}

func TestCompute_SplitsDistantHunks(t *testing.T) {
	var old, cur []string
	for i := 0; i < 20; i++ {
		line := string(rune('a' + i))
		old = append(old, line)
		cur = append(cur, line)
	}
	cur[1] = "X"
	cur[18] = "Y"

	d := Compute("f", strings.Join(old, "\n"), strings.Join(cur, "\n"), 2)
	if len(d.Hunks) != 2 {
		t.Fatalf("hunks = %d, want 2", len(d.Hunks))
	}
	if h := d.Hunks[0].Header(); h != "@@ -1,4 +1,4 @@" {
		t.Errorf("first header = %q", h)
	}
	if h := d.Hunks[1].Header(); h != "@@ -17,4 +17,4 @@" {
		t.Errorf("second header = %q", h)
	}
}

func TestCompute_MergesNearbyChanges(t *testing.T) {
	d := Compute("f", "a\nb\nc\nd\ne\n", "A\nb\nc\nd\nE\n", 2)
	if len(d.Hunks) != 1 {
		t.Errorf("hunks = %d, want 1", len(d.Hunks))
	}
}
