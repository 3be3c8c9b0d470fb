// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pal

import "fmt"

// PromptError is returned when a command's prompt file cannot be read.
type PromptError struct {
	Command string
	Path    string
	Cause   error
}

func (e *PromptError) Error() string {
	return fmt.Sprintf("load prompt for /%s (%s): %v", e.Command, e.Path, e.Cause)
}

func (e *PromptError) Unwrap() error {
	return e.Cause
}

// ToolInputError is returned when a tool call carries unusable input.
type ToolInputError struct {
	Tool  string
	Cause error
}

func (e *ToolInputError) Error() string {
	return fmt.Sprintf("invalid input for tool %q: %v", e.Tool, e.Cause)
}

func (e *ToolInputError) Unwrap() error {
	return e.Cause
}
