// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pal

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/jeranaias/rigrun-pal/internal/host"
	"github.com/jeranaias/rigrun-pal/internal/watch"
)

// Options configures Activate.
type Options struct {
	Workspace host.Workspace
	Registry  host.ChatRegistry
	Tools     host.ToolRegistry

	// ConfigDir is the workspace-relative command directory.
	// Defaults to DefaultConfigDir.
	ConfigDir string

	// Debounce delays rebuilds triggered by file events. Zero rebuilds on
	// every event; a negative value selects DefaultDebounce.
	Debounce time.Duration

	// PollInterval is used when the command directory cannot be watched
	// with filesystem notifications.
	PollInterval time.Duration

	// OnRebuild runs after every rebuild attempt.
	OnRebuild func(err error)
}

// Extension is an activated Pal agent.
type Extension struct {
	Participant *Participant
	Registrar   *Registrar

	watcher watch.Watcher
	once    sync.Once
}

// Activate registers Pal immediately and keeps the registration in sync with
// the command directory until Close.
func Activate(opts Options) (*Extension, error) {
	if opts.Registry == nil {
		return nil, errors.New("pal: chat registry is required")
	}
	if opts.Debounce < 0 {
		opts.Debounce = DefaultDebounce
	}

	p := NewParticipant(opts.Workspace, opts.ConfigDir, opts.Tools)
	dir, err := p.Dir()
	if err != nil {
		return nil, err
	}

	r := NewRegistrar(p, opts.Registry)
	r.OnRebuild = opts.OnRebuild
	r.Start()
	r.Schedule(0)

	debounce := opts.Debounce
	w, err := watch.New(dir, "*"+CommandExt, opts.PollInterval, func(ev watch.Event) {
		if !ev.Op.Has(watch.Create | watch.Remove | watch.Rename) {
			return
		}
		log.Printf("PAL_COMMANDS_CHANGED | op=%s path=%s", ev.Op, ev.Path)
		r.Schedule(debounce)
	})
	if err != nil {
		r.Close()
		return nil, err
	}

	log.Printf("PAL_ACTIVATED | dir=%s debounce=%s", dir, debounce)
	return &Extension{Participant: p, Registrar: r, watcher: w}, nil
}

// Close stops watching, cancels any pending rebuild and disposes every
// registration.
func (e *Extension) Close() error {
	var err error
	e.once.Do(func() {
		err = e.watcher.Close()
		e.Registrar.Close()
	})
	return err
}
