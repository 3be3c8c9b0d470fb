// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package host

import "errors"

// Sentinel errors shared by hosts and pal.
var (
	// ErrNoWorkspace is returned when no workspace folder is open.
	ErrNoWorkspace = errors.New("no workspace folder is open")

	// ErrNoCommand is returned when an agent is invoked without a slash-command.
	ErrNoCommand = errors.New("pals must be invoked using a command")

	// ErrNoModel is returned when a request reaches a handler without a
	// language model attached.
	ErrNoModel = errors.New("no language model selected for request")

	// ErrNoEditorContext is returned when the model asks for an edit but the
	// request carried no editor document or selection to apply it to.
	ErrNoEditorContext = errors.New("edit requested without an editor selection")

	// ErrAlreadyRegistered is returned by a ChatRegistry when an id is
	// registered while a previous registration for it is still live.
	ErrAlreadyRegistered = errors.New("agent is already registered")

	// ErrUnknownAgent is returned when a request targets an id with no live
	// participant.
	ErrUnknownAgent = errors.New("unknown agent")

	// ErrOverlappingEdits is returned by ApplyEdits when two edits touch the
	// same span of text.
	ErrOverlappingEdits = errors.New("overlapping text edits")
)
