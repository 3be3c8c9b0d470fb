// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"time"
)

// =============================================================================
// STREAM READER
// =============================================================================

// StreamReader parses a newline-delimited JSON chat stream one chunk at a time.
type StreamReader struct {
	body   io.ReadCloser
	reader *bufio.Reader
	model  string
	done   bool
}

// NewStreamReader creates a stream reader over body. Close releases body.
func NewStreamReader(body io.ReadCloser) *StreamReader {
	return &StreamReader{
		body:   body,
		reader: bufio.NewReader(body),
	}
}

// Next returns the next chunk. It returns io.EOF after the final chunk or when
// the body ends.
func (s *StreamReader) Next(ctx context.Context) (*StreamChunk, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.done {
			return nil, io.EOF
		}

		chunk, err := s.readChunk()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.done = true
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, err
		}
		if chunk == nil {
			continue
		}
		if chunk.Done {
			s.done = true
		}
		return chunk, nil
	}
}

// readChunk reads and parses a single line. A nil chunk with a nil error
// means the line carried nothing.
func (s *StreamReader) readChunk() (*StreamChunk, error) {
	line, err := s.reader.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return nil, err
	}

	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, nil
	}

	var resp chatLine
	if err := json.Unmarshal(line, &resp); err != nil {
		log.Printf("OLLAMA_STREAM_SKIP | error=%v", err)
		return nil, nil
	}
	if resp.Error != "" {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: resp.Error}
	}

	if resp.Model != "" {
		s.model = resp.Model
	}

	chunk := &StreamChunk{
		Content:    resp.Message.Content,
		ToolCalls:  resp.Message.ToolCalls,
		Done:       resp.Done,
		DoneReason: resp.DoneReason,
		Model:      s.model,
	}
	if resp.Done {
		chunk.TotalDuration = time.Duration(resp.TotalDuration)
		chunk.EvalDuration = time.Duration(resp.EvalDuration)
		chunk.PromptTokens = resp.PromptEvalCount
		chunk.CompletionTokens = resp.EvalCount
	}
	return chunk, nil
}

// Close releases the underlying body.
func (s *StreamReader) Close() error {
	s.done = true
	if s.body == nil {
		return nil
	}
	err := s.body.Close()
	s.body = nil
	return err
}
