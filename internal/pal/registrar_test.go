// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigrun-pal/internal/host"
	"github.com/jeranaias/rigrun-pal/internal/host/hosttest"
)

// rebuildCounter counts rebuild attempts and forwards their results.
type rebuildCounter struct {
	n       atomic.Int32
	results chan error
}

func newRebuildCounter() *rebuildCounter {
	return &rebuildCounter{results: make(chan error, 64)}
}

func (c *rebuildCounter) hook(err error) {
	c.n.Add(1)
	c.results <- err
}

func (c *rebuildCounter) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-c.results:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for rebuild")
		return nil
	}
}

func startRegistrar(t *testing.T, ws host.Workspace, reg host.ChatRegistry) (*Registrar, *rebuildCounter) {
	t.Helper()
	counter := newRebuildCounter()
	r := NewRegistrar(NewParticipant(ws, "", nil), reg)
	r.OnRebuild = counter.hook
	r.Start()
	t.Cleanup(r.Close)
	return r, counter
}

// =============================================================================
// REBUILD
// =============================================================================

func TestRegistrar_InitialRebuild(t *testing.T) {
	root := writeCommands(t, map[string]string{"review.md": "Review."})
	reg := hosttest.NewRegistry()
	r, counter := startRegistrar(t, host.Folders{root}, reg)

	require.True(t, r.Schedule(0))
	require.NoError(t, counter.wait(t))

	agent, ok := reg.Agent(ParticipantID)
	require.True(t, ok)
	assert.True(t, agent.HasCommand("review"))

	participant, ok := reg.Participant(ParticipantID)
	require.True(t, ok)
	assert.Equal(t, Icon, participant.Icon())
	assert.Equal(t, 2, reg.Live())

	stats := r.Stats()
	assert.Equal(t, 1, stats.Rebuilds)
	assert.Equal(t, 1, stats.Commands)
	assert.Equal(t, 2, stats.LiveHandles)
	assert.NoError(t, stats.LastError)
}

func TestRegistrar_ParticipantServesRequests(t *testing.T) {
	root := writeCommands(t, map[string]string{"review.md": "Review."})
	reg := hosttest.NewRegistry()
	r, counter := startRegistrar(t, host.Folders{root}, reg)

	r.Schedule(0)
	require.NoError(t, counter.wait(t))

	participant, ok := reg.Participant(ParticipantID)
	require.True(t, ok)

	model := &hosttest.Model{Parts: []host.Part{host.TextPart{Value: "ok"}}}
	rec := &hosttest.Recorder{}
	require.NoError(t, participant.Handle(context.Background(), &host.ChatRequest{Command: "review", Model: model}, rec))
	assert.Equal(t, []string{"ok"}, rec.MarkdownValues())
}

func TestRegistrar_DebouncesBurst(t *testing.T) {
	root := writeCommands(t, map[string]string{"a.md": ""})
	reg := hosttest.NewRegistry()
	r, counter := startRegistrar(t, host.Folders{root}, reg)

	for i := 0; i < 10; i++ {
		require.True(t, r.Schedule(50*time.Millisecond))
		time.Sleep(5 * time.Millisecond)
	}
	require.NoError(t, counter.wait(t))

	time.Sleep(150 * time.Millisecond)
	assert.EqualValues(t, 1, counter.n.Load(), "a burst within the debounce window rebuilds once")
	assert.Equal(t, 2, reg.Registered())
}

func TestRegistrar_NoDuplicateRegistrations(t *testing.T) {
	root := writeCommands(t, nil)
	dir := filepath.Join(root, ".config", "pal")
	reg := hosttest.NewRegistry()
	r, counter := startRegistrar(t, host.Folders{root}, reg)

	for i, name := range []string{"one.md", "two.md", "three.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
		r.Schedule(0)
		require.NoError(t, counter.wait(t), "rebuild %d", i)
		assert.Equal(t, 2, reg.Live(), "exactly one agent and one participant are live")
	}

	agent, ok := reg.Agent(ParticipantID)
	require.True(t, ok)
	assert.Len(t, agent.SlashCommands, 3)
	assert.Equal(t, 6, reg.Registered())
	assert.Equal(t, 4, reg.Disposed())
}

func TestRegistrar_EnumerationFailureKeepsRegistration(t *testing.T) {
	root := writeCommands(t, map[string]string{"a.md": ""})
	ws := &mutableWorkspace{}
	ws.set(root)
	reg := hosttest.NewRegistry()
	r, counter := startRegistrar(t, ws, reg)

	r.Schedule(0)
	require.NoError(t, counter.wait(t))

	ws.set()
	r.Schedule(0)
	err := counter.wait(t)
	assert.ErrorIs(t, err, host.ErrNoWorkspace)

	assert.Equal(t, 2, reg.Live(), "previous registration stays live")
	stats := r.Stats()
	assert.Equal(t, 1, stats.Failures)
	assert.ErrorIs(t, stats.LastError, host.ErrNoWorkspace)
}

func TestRegistrar_RegisterFailure(t *testing.T) {
	root := writeCommands(t, map[string]string{"a.md": ""})
	reg := hosttest.NewRegistry()
	reg.FailRegister = errors.New("host unavailable")
	r, counter := startRegistrar(t, host.Folders{root}, reg)

	r.Schedule(0)
	err := counter.wait(t)
	assert.ErrorIs(t, err, reg.FailRegister)
	assert.Zero(t, reg.Live())
	assert.Zero(t, r.Stats().Rebuilds)
}

// =============================================================================
// CLOSE
// =============================================================================

func TestRegistrar_CloseDisposesEverything(t *testing.T) {
	root := writeCommands(t, map[string]string{"a.md": ""})
	reg := hosttest.NewRegistry()
	r, counter := startRegistrar(t, host.Folders{root}, reg)

	r.Schedule(0)
	require.NoError(t, counter.wait(t))
	require.Equal(t, 2, reg.Live())

	r.Close()
	assert.Zero(t, reg.Live())
	assert.Zero(t, r.Stats().LiveHandles)
	assert.False(t, r.Schedule(0), "schedule after close is refused")
}

func TestRegistrar_CloseCancelsPending(t *testing.T) {
	root := writeCommands(t, map[string]string{"a.md": ""})
	reg := hosttest.NewRegistry()
	r, counter := startRegistrar(t, host.Folders{root}, reg)

	r.Schedule(time.Hour)
	r.Close()

	assert.Zero(t, counter.n.Load())
	assert.Zero(t, reg.Registered())
}

func TestRegistrar_CloseWithoutStart(t *testing.T) {
	r := NewRegistrar(NewParticipant(host.Folders{t.TempDir()}, "", nil), hosttest.NewRegistry())
	done := make(chan struct{})
	go func() {
		r.Close()
		r.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close blocked")
	}
}

func TestRegistrar_ScheduleWithoutStart(t *testing.T) {
	root := writeCommands(t, map[string]string{"review.md": "Review."})
	reg := hosttest.NewRegistry()
	counter := newRebuildCounter()
	r := NewRegistrar(NewParticipant(host.Folders{root}, "", nil), reg)
	r.OnRebuild = counter.hook
	t.Cleanup(r.Close)

	scheduled := make(chan bool, 1)
	go func() { scheduled <- r.Schedule(0) }()

	select {
	case ok := <-scheduled:
		require.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Schedule blocked without Start")
	}
	require.NoError(t, counter.wait(t))

	agent, ok := reg.Agent(ParticipantID)
	require.True(t, ok)
	assert.True(t, agent.HasCommand("review"))
}
