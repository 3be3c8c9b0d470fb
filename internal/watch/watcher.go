// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package watch reports file creation, removal and modification in a single
// directory, filtered by a glob pattern.
package watch

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultPollInterval is used by the polling fallback when none is given.
const DefaultPollInterval = 2 * time.Second

// Op describes what happened to a file.
type Op uint8

const (
	Create Op = 1 << iota
	Write
	Remove
	Rename
)

// Has reports whether op includes x.
func (op Op) Has(x Op) bool { return op&x != 0 }

func (op Op) String() string {
	switch {
	case op.Has(Create):
		return "create"
	case op.Has(Remove):
		return "remove"
	case op.Has(Rename):
		return "rename"
	case op.Has(Write):
		return "write"
	}
	return "unknown"
}

// Event is a change to one matching file.
type Event struct {
	Path string
	Op   Op
}

// Handler receives events. It is called from the watcher goroutine.
type Handler func(Event)

// =============================================================================
// FILE WATCHER INTERFACE
// =============================================================================

// Watcher is the interface for file watching implementations.
type Watcher interface {
	// Watch starts delivering events.
	Watch() error

	// Close stops watching and releases resources.
	Close() error
}

// matcher reports whether a file name matches the watch pattern.
type matcher struct {
	pattern string
}

func (m matcher) match(path string) bool {
	ok, err := filepath.Match(m.pattern, filepath.Base(path))
	return err == nil && ok
}

// =============================================================================
// FSNOTIFY WATCHER
// =============================================================================

// FsnotifyWatcher implements Watcher using fsnotify.
//
// Notifications stop when the watched directory itself is removed or
// renamed. The watcher then delivers a Remove event for the directory and
// keeps reporting changes by polling.
type FsnotifyWatcher struct {
	dir      string
	matcher  matcher
	handler  Handler
	watcher  *fsnotify.Watcher
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	once     sync.Once

	mu       sync.Mutex
	fallback *PollingWatcher
}

// NewFsnotifyWatcher creates an fsnotify-based watcher for dir.
func NewFsnotifyWatcher(dir, pattern string, fn Handler) (*FsnotifyWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &FsnotifyWatcher{
		dir:      filepath.Clean(dir),
		matcher:  matcher{pattern: pattern},
		handler:  fn,
		watcher:  w,
		interval: DefaultPollInterval,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Watch adds dir to the watch list and starts event processing.
func (fw *FsnotifyWatcher) Watch() error {
	if err := fw.watcher.Add(fw.dir); err != nil {
		return err
	}
	go fw.processEvents()
	return nil
}

func (fw *FsnotifyWatcher) processEvents() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("WATCH_PANIC | dir=%s panic=%v", fw.dir, r)
		}
	}()

	for {
		select {
		case <-fw.ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if fw.Polling() {
				continue
			}
			if filepath.Clean(event.Name) == fw.dir {
				if op := translate(event.Op) & (Remove | Rename); op != 0 {
					fw.dirLost(op)
				}
				continue
			}
			if !fw.matcher.match(event.Name) {
				continue
			}
			if op := translate(event.Op); op != 0 {
				fw.handler(Event{Path: event.Name, Op: op})
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("WATCH_ERROR | dir=%s error=%v", fw.dir, err)
		}
	}
}

// dirLost reports the directory as removed and switches to polling. The
// poller starts from an empty listing, so files present at its first scan
// are reported as created.
func (fw *FsnotifyWatcher) dirLost(op Op) {
	if fw.ctx.Err() != nil {
		return
	}
	log.Printf("WATCH_DIR_LOST | dir=%s op=%s", fw.dir, op)
	fw.handler(Event{Path: fw.dir, Op: op})

	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.ctx.Err() != nil || fw.fallback != nil {
		return
	}
	fw.fallback = NewPollingWatcher(fw.dir, fw.matcher.pattern, fw.interval, fw.handler)
	go fw.fallback.poll()
	log.Printf("WATCH_FALLBACK | dir=%s reason=directory %s", fw.dir, op)
}

// Polling reports whether the watcher has fallen back to polling.
func (fw *FsnotifyWatcher) Polling() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.fallback != nil
}

func translate(op fsnotify.Op) Op {
	var out Op
	if op.Has(fsnotify.Create) {
		out |= Create
	}
	if op.Has(fsnotify.Write) {
		out |= Write
	}
	if op.Has(fsnotify.Remove) {
		out |= Remove
	}
	if op.Has(fsnotify.Rename) {
		out |= Rename
	}
	return out
}

// Close stops watching.
func (fw *FsnotifyWatcher) Close() error {
	var err error
	fw.once.Do(func() {
		fw.mu.Lock()
		fw.cancel()
		if fw.fallback != nil {
			fw.fallback.Close()
		}
		fw.mu.Unlock()
		err = fw.watcher.Close()
	})
	return err
}

// =============================================================================
// POLLING WATCHER (FALLBACK)
// =============================================================================

// PollingWatcher implements Watcher using periodic directory scans. A missing
// directory scans as empty, so files appear once it is created.
type PollingWatcher struct {
	dir      string
	matcher  matcher
	handler  Handler
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	files    map[string]time.Time
	mu       sync.Mutex
}

// NewPollingWatcher creates a polling watcher for dir.
func NewPollingWatcher(dir, pattern string, interval time.Duration, fn Handler) *PollingWatcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &PollingWatcher{
		dir:      dir,
		matcher:  matcher{pattern: pattern},
		handler:  fn,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
		files:    make(map[string]time.Time),
	}
}

// Watch records the initial state and starts polling.
func (pw *PollingWatcher) Watch() error {
	files, err := pw.scan()
	if err != nil {
		return err
	}
	pw.mu.Lock()
	pw.files = files
	pw.mu.Unlock()

	go pw.poll()
	return nil
}

func (pw *PollingWatcher) scan() (map[string]time.Time, error) {
	entries, err := os.ReadDir(pw.dir)
	if os.IsNotExist(err) {
		return map[string]time.Time{}, nil
	}
	if err != nil {
		return nil, err
	}

	files := make(map[string]time.Time, len(entries))
	for _, e := range entries {
		if e.IsDir() || !pw.matcher.match(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files[filepath.Join(pw.dir, e.Name())] = info.ModTime()
	}
	return files, nil
}

func (pw *PollingWatcher) poll() {
	ticker := time.NewTicker(pw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-pw.ctx.Done():
			return
		case <-ticker.C:
			pw.checkChanges()
		}
	}
}

// checkChanges diffs the directory against the last scan.
func (pw *PollingWatcher) checkChanges() {
	current, err := pw.scan()
	if err != nil {
		log.Printf("WATCH_ERROR | dir=%s error=%v", pw.dir, err)
		return
	}

	pw.mu.Lock()
	previous := pw.files
	pw.files = current
	pw.mu.Unlock()

	var events []Event
	for path, modTime := range current {
		old, exists := previous[path]
		switch {
		case !exists:
			events = append(events, Event{Path: path, Op: Create})
		case !old.Equal(modTime):
			events = append(events, Event{Path: path, Op: Write})
		}
	}
	for path := range previous {
		if _, exists := current[path]; !exists {
			events = append(events, Event{Path: path, Op: Remove})
		}
	}

	for _, ev := range events {
		if pw.ctx.Err() != nil {
			return
		}
		pw.handler(ev)
	}
}

// Close stops polling.
func (pw *PollingWatcher) Close() error {
	pw.cancel()
	return nil
}

// =============================================================================
// WATCHER FACTORY
// =============================================================================

// New starts a watcher on dir, preferring fsnotify and falling back to
// polling when the directory cannot be watched (for example, it does not
// exist yet).
func New(dir, pattern string, interval time.Duration, fn Handler) (Watcher, error) {
	fw, err := NewFsnotifyWatcher(dir, pattern, fn)
	if err == nil {
		if interval > 0 {
			fw.interval = interval
		}
		if err = fw.Watch(); err == nil {
			return fw, nil
		}
		fw.Close()
	}
	log.Printf("WATCH_FALLBACK | dir=%s reason=%v", dir, err)

	pw := NewPollingWatcher(dir, pattern, interval, fn)
	if err := pw.Watch(); err != nil {
		return nil, err
	}
	return pw, nil
}
