// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package host

// Workspace exposes the folders open in the host.
type Workspace interface {
	Folders() []string
}

// Folders is a fixed list of workspace folders.
type Folders []string

// Folders returns the list itself.
func (f Folders) Folders() []string { return f }

// Root returns the first workspace folder.
func Root(ws Workspace) (string, error) {
	if ws == nil {
		return "", ErrNoWorkspace
	}
	folders := ws.Folders()
	if len(folders) == 0 || folders[0] == "" {
		return "", ErrNoWorkspace
	}
	return folders[0], nil
}
