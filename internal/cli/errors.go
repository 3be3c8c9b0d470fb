// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/jeranaias/rigrun-pal/internal/config"
	"github.com/jeranaias/rigrun-pal/internal/host"
	"github.com/jeranaias/rigrun-pal/internal/ollama"
)

// Exit codes.
const (
	ExitSuccess       = 0
	ExitGeneralError  = 1
	ExitUsageError    = 2
	ExitConfigError   = 3
	ExitNetworkError  = 5
	ExitNotFoundError = 7
	ExitTimeoutError  = 8
)

// CommandError is a failed CLI command with context.
type CommandError struct {
	Command string
	Action  string
	Reason  string
	Err     error
}

func (e *CommandError) Error() string {
	msg := e.Command
	if e.Action != "" {
		msg += " " + e.Action
	}
	msg += " failed"
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// UsageError reports invalid command-line usage.
type UsageError struct {
	Message string
	Usage   string
}

func (e *UsageError) Error() string {
	if e.Usage != "" {
		return e.Message + "\nUsage: " + e.Usage
	}
	return e.Message
}

// NewCommandError wraps err with command context.
func NewCommandError(command, action, reason string, err error) *CommandError {
	return &CommandError{Command: command, Action: action, Reason: reason, Err: err}
}

// ExitCode maps an error to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usage *UsageError
	var verrs config.ValidateErrors
	switch {
	case errors.As(err, &usage):
		return ExitUsageError
	case errors.As(err, &verrs):
		return ExitConfigError
	case ollama.IsTimeout(err):
		return ExitTimeoutError
	case ollama.IsNotRunning(err):
		return ExitNetworkError
	case errors.Is(err, fs.ErrNotExist), ollama.IsModelNotFound(err), errors.Is(err, host.ErrNoWorkspace):
		return ExitNotFoundError
	}
	return ExitGeneralError
}

// PrintError writes err to w, with a hint for the common failures.
func PrintError(w io.Writer, err error) {
	fmt.Fprintln(w, errorStyle.Render("Error: ")+err.Error())

	switch {
	case ollama.IsNotRunning(err):
		fmt.Fprintln(w, dimStyle.Render("Hint: start Ollama with 'ollama serve'"))
	case ollama.IsModelNotFound(err):
		fmt.Fprintln(w, dimStyle.Render("Hint: pull the model with 'ollama pull <model>'"))
	case errors.Is(err, host.ErrNoWorkspace):
		fmt.Fprintln(w, dimStyle.Render("Hint: run inside a project or pass --workspace DIR"))
	}
}
