// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/jeranaias/rigrun-pal/internal/host"
)

// SSE event names.
const (
	EventMarkdown = "markdown"
	EventEdit     = "edit"
	EventError    = "error"
	EventDone     = "done"
)

// sseStream is a host.ResponseStream that writes each part as a server-sent
// event. Headers are written lazily on the first event, so a handler that
// fails before producing output can still be answered with a plain status.
type sseStream struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	id      string
	started bool
	parts   int
	err     error
}

func newSSEStream(w http.ResponseWriter, flusher http.Flusher) *sseStream {
	return &sseStream{w: w, flusher: flusher, id: uuid.NewString()}
}

// Markdown sends a markdown event.
func (s *sseStream) Markdown(value string) {
	s.Push(host.MarkdownPart{Value: value})
}

// Push sends part as a markdown or edit event.
func (s *sseStream) Push(part host.ResponsePart) {
	switch p := part.(type) {
	case host.MarkdownPart:
		s.send(EventMarkdown, p)
	case host.TextEditPart:
		s.send(EventEdit, p)
	}
}

// Started reports whether any event has been written.
func (s *sseStream) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// fail sends an error event.
func (s *sseStream) fail(err error) {
	s.send(EventError, map[string]string{"message": err.Error()})
}

// done sends the terminating event and returns the number of parts sent.
func (s *sseStream) done() int {
	s.mu.Lock()
	parts := s.parts
	s.mu.Unlock()
	s.send(EventDone, map[string]any{"id": s.id, "parts": parts})
	return parts
}

// start writes the event-stream headers. Callers hold s.mu.
func (s *sseStream) start() {
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Set("X-Stream-Id", s.id)
	s.w.WriteHeader(http.StatusOK)
	s.started = true
}

func (s *sseStream) send(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// After a write error the client is gone; later events are dropped.
	if s.err != nil {
		return
	}
	if !s.started {
		s.start()
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		s.err = err
		return
	}
	if event == EventMarkdown || event == EventEdit {
		s.parts++
	}
	s.flusher.Flush()
}

var _ host.ResponseStream = (*sseStream)(nil)
