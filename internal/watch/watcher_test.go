// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package watch

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) handle(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collector) has(path string, op Op) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ev := range c.events {
		if ev.Path == path && ev.Op.Has(op) {
			return true
		}
	}
	return false
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

// =============================================================================
// MATCHING
// =============================================================================

func TestMatcher(t *testing.T) {
	m := matcher{pattern: "*.md"}

	tests := []struct {
		path string
		want bool
	}{
		{"/w/.config/pal/review.md", true},
		{"review.md", true},
		{"/w/.config/pal/review.txt", false},
		{"/w/.config/pal/review.md.swp", false},
		{"/w/.config/pal", false},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, tc.want, m.match(tc.path))
		})
	}
}

func TestTranslate(t *testing.T) {
	assert.Equal(t, Create, translate(fsnotify.Create))
	assert.Equal(t, Remove|Rename, translate(fsnotify.Remove|fsnotify.Rename))
	assert.Equal(t, Op(0), translate(fsnotify.Chmod))
	assert.Equal(t, "create", Create.String())
	assert.Equal(t, "unknown", Op(0).String())
}

// =============================================================================
// FSNOTIFY WATCHER
// =============================================================================

func TestFsnotifyWatcher_CreateAndRemove(t *testing.T) {
	dir := t.TempDir()
	c := &collector{}

	w, err := NewFsnotifyWatcher(dir, "*.md", c.handle)
	require.NoError(t, err)
	require.NoError(t, w.Watch())
	defer w.Close()

	path := filepath.Join(dir, "explain.md")
	require.NoError(t, os.WriteFile(path, []byte("Explain."), 0o644))
	require.Eventually(t, func() bool { return c.has(path, Create) }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(path))
	require.Eventually(t, func() bool { return c.has(path, Remove) }, 2*time.Second, 10*time.Millisecond)
}

func TestFsnotifyWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	c := &collector{}

	w, err := NewFsnotifyWatcher(dir, "*.md", c.handle)
	require.NoError(t, err)
	require.NoError(t, w.Watch())
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	marker := filepath.Join(dir, "marker.md")
	require.NoError(t, os.WriteFile(marker, []byte("x"), 0o644))

	require.Eventually(t, func() bool { return c.has(marker, Create) }, 2*time.Second, 10*time.Millisecond)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ev := range c.events {
		assert.Equal(t, marker, ev.Path)
	}
}

func TestFsnotifyWatcher_CloseIsIdempotent(t *testing.T) {
	w, err := NewFsnotifyWatcher(t.TempDir(), "*.md", func(Event) {})
	require.NoError(t, err)
	require.NoError(t, w.Watch())
	assert.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}

func TestFsnotifyWatcher_DirectoryRecreated(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pal")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "review.md"), []byte("x"), 0o644))
	c := &collector{}

	w, err := NewFsnotifyWatcher(dir, "*.md", c.handle)
	require.NoError(t, err)
	w.interval = 10 * time.Millisecond
	require.NoError(t, w.Watch())
	defer w.Close()

	require.NoError(t, os.RemoveAll(dir))
	require.Eventually(t, func() bool { return c.has(dir, Remove) }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, w.Polling())

	require.NoError(t, os.MkdirAll(dir, 0o755))
	explain := filepath.Join(dir, "explain.md")
	require.NoError(t, os.WriteFile(explain, []byte("x"), 0o644))
	require.Eventually(t, func() bool { return c.has(explain, Create) }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(explain))
	require.Eventually(t, func() bool { return c.has(explain, Remove) }, 2*time.Second, 10*time.Millisecond)
}

func TestFsnotifyWatcher_CloseStopsFallback(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pal")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	c := &collector{}

	w, err := NewFsnotifyWatcher(dir, "*.md", c.handle)
	require.NoError(t, err)
	w.interval = 5 * time.Millisecond
	require.NoError(t, w.Watch())

	require.NoError(t, os.RemoveAll(dir))
	require.Eventually(t, w.Polling, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, w.Close())

	before := c.count()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "late.md"), nil, 0o644))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, c.count(), "no events after Close")
}

// =============================================================================
// POLLING WATCHER
// =============================================================================

func TestPollingWatcher_DetectsChanges(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "existing.md")
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0o644))

	c := &collector{}
	pw := NewPollingWatcher(dir, "*.md", 10*time.Millisecond, c.handle)
	require.NoError(t, pw.Watch())
	defer pw.Close()

	added := filepath.Join(dir, "added.md")
	require.NoError(t, os.WriteFile(added, []byte("x"), 0o644))
	require.NoError(t, os.Remove(existing))

	require.Eventually(t, func() bool {
		return c.has(added, Create) && c.has(existing, Remove)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPollingWatcher_MissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "later")
	c := &collector{}

	pw := NewPollingWatcher(dir, "*.md", 10*time.Millisecond, c.handle)
	require.NoError(t, pw.Watch(), "a missing directory scans as empty")
	defer pw.Close()

	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "late.md")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	require.Eventually(t, func() bool { return c.has(path, Create) }, 2*time.Second, 10*time.Millisecond)
}

func TestPollingWatcher_NoEventsWhenIdle(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("x"), 0o644))

	c := &collector{}
	pw := NewPollingWatcher(dir, "*.md", 5*time.Millisecond, c.handle)
	require.NoError(t, pw.Watch())

	time.Sleep(50 * time.Millisecond)
	pw.Close()
	assert.Zero(t, c.count())
}

// =============================================================================
// FACTORY
// =============================================================================

func TestNew_FallsBackToPolling(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing")

	w, err := New(dir, "*.md", 10*time.Millisecond, func(Event) {})
	require.NoError(t, err)
	defer w.Close()

	_, ok := w.(*PollingWatcher)
	assert.True(t, ok, "expected polling fallback for a missing directory, got %T", w)
}

func TestNew_PrefersFsnotify(t *testing.T) {
	w, err := New(t.TempDir(), "*.md", 0, func(Event) {})
	require.NoError(t, err)
	defer w.Close()

	_, ok := w.(*FsnotifyWatcher)
	assert.True(t, ok, "expected fsnotify watcher, got %T", w)
}
