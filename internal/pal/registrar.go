// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pal

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jeranaias/rigrun-pal/internal/host"
)

// DefaultDebounce is the delay applied to file-event driven rebuilds.
const DefaultDebounce = 500 * time.Millisecond

// RegistrarStats is a snapshot of registrar activity.
type RegistrarStats struct {
	Rebuilds    int
	Failures    int
	LiveHandles int
	Commands    int
	LastRebuild time.Time
	LastError   error
}

// Registrar keeps Pal's host registration in sync with its command files.
//
// A single goroutine owns the pending timer and the live handles. Schedule
// restarts the timer, so a burst of calls collapses into one rebuild that
// runs once the burst has been quiet for the last delay given.
type Registrar struct {
	participant *Participant
	registry    host.ChatRegistry

	// OnRebuild, if set before Start, runs on the registrar goroutine after
	// every rebuild attempt.
	OnRebuild func(err error)

	schedule chan time.Duration
	quit     chan struct{}
	done     chan struct{}

	startOnce sync.Once
	closeOnce sync.Once

	mu      sync.RWMutex
	handles []host.Disposable
	stats   RegistrarStats
}

// NewRegistrar creates a registrar. Schedule starts it if Start was not called.
func NewRegistrar(p *Participant, registry host.ChatRegistry) *Registrar {
	return &Registrar{
		participant: p,
		registry:    registry,
		schedule:    make(chan time.Duration),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Start launches the registrar goroutine. Subsequent calls are no-ops.
func (r *Registrar) Start() {
	r.startOnce.Do(func() {
		go r.run()
	})
}

// Schedule requests a rebuild after delay, replacing any pending one.
// It returns false once the registrar is closed.
func (r *Registrar) Schedule(delay time.Duration) bool {
	if delay < 0 {
		delay = 0
	}
	r.Start()
	select {
	case r.schedule <- delay:
		return true
	case <-r.quit:
		return false
	}
}

// Close cancels any pending rebuild and disposes every live handle.
func (r *Registrar) Close() {
	r.closeOnce.Do(func() {
		close(r.quit)
	})
	r.Start()
	<-r.done
}

// Stats returns a snapshot of registrar activity.
func (r *Registrar) Stats() RegistrarStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.stats
	s.LiveHandles = len(r.handles)
	return s
}

func (r *Registrar) run() {
	defer close(r.done)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-r.quit:
			if timer != nil {
				timer.Stop()
			}
			r.mu.Lock()
			r.handles = host.DisposeAll(r.handles)
			r.mu.Unlock()
			log.Printf("PAL_CLOSED | rebuilds=%d", r.Stats().Rebuilds)
			return

		case d := <-r.schedule:
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(d)
			fire = timer.C

		case <-fire:
			timer, fire = nil, nil
			err := r.rebuild()
			if r.OnRebuild != nil {
				r.OnRebuild(err)
			}
		}
	}
}

// rebuild replaces the live registration. Enumeration happens first so a
// failure leaves the previous registration in place.
func (r *Registrar) rebuild() error {
	data, err := r.participant.AgentData()
	if err != nil {
		r.fail(err)
		return err
	}

	r.mu.Lock()
	r.handles = host.DisposeAll(r.handles)
	r.mu.Unlock()

	agent, err := r.registry.RegisterChatAgent(data)
	if err != nil {
		err = fmt.Errorf("register agent %s: %w", data.ID, err)
		r.fail(err)
		return err
	}
	r.keep(agent)

	participant, err := r.registry.CreateChatParticipant(r.participant.ID(), r.participant.HandleRequest)
	if err != nil {
		err = fmt.Errorf("create participant %s: %w", data.ID, err)
		r.fail(err)
		return err
	}
	participant.SetIconPath(Icon)
	r.keep(participant)

	r.mu.Lock()
	r.stats.Rebuilds++
	r.stats.Commands = len(data.SlashCommands)
	r.stats.LastRebuild = time.Now()
	r.stats.LastError = nil
	r.mu.Unlock()

	log.Printf("PAL_REBUILD | commands=%d", len(data.SlashCommands))
	return nil
}

func (r *Registrar) keep(d host.Disposable) {
	r.mu.Lock()
	r.handles = append(r.handles, d)
	r.mu.Unlock()
}

func (r *Registrar) fail(err error) {
	r.mu.Lock()
	r.stats.Failures++
	r.stats.LastError = err
	r.mu.Unlock()
	log.Printf("PAL_REBUILD_FAILED | error=%v", err)
}
