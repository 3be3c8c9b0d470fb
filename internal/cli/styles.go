// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")) // Cyan

	commandStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82")) // Green

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")) // Light gray

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")) // Red

	removedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	addedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82"))
)

var stylesOnce sync.Once

// initStyles applies the detected color profile to lipgloss once.
func initStyles() {
	stylesOnce.Do(func() {
		lipgloss.SetColorProfile(GetColorProfile())
	})
}
