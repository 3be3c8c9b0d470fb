// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/rigrun-pal/internal/host"
	"github.com/jeranaias/rigrun-pal/internal/pal"
)

// CommandInfo is one row of "pal commands".
type CommandInfo struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Summary string `json:"summary"`
}

// HandleCommands handles "pal commands".
func HandleCommands(args *ArgParser, w io.Writer) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	root, err := cfg.WorkspaceRoot()
	if err != nil {
		return err
	}

	p := pal.NewParticipant(host.Folders{root}, cfg.Pal.ConfigDir, nil)
	infos, err := listCommands(p)
	if err != nil {
		return NewCommandError("commands", "list", "", err)
	}

	if args.BoolFlag("json") {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	dir, _ := p.Dir()
	writeCommandTable(w, dir, infos, GetTerminalWidth())
	return nil
}

func listCommands(p *pal.Participant) ([]CommandInfo, error) {
	cmds, err := p.Commands()
	if err != nil {
		return nil, err
	}

	infos := make([]CommandInfo, 0, len(cmds))
	for _, c := range cmds {
		info := CommandInfo{Name: c.Name}
		info.Path, _ = p.PromptPath(c.Name)
		if prompt, err := p.LoadPrompt(c.Name); err == nil {
			info.Summary = summarize(prompt)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// summarize returns the first non-blank line of a prompt without markdown
// heading markers.
func summarize(prompt string) string {
	for _, line := range strings.Split(prompt, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
		if line != "" {
			return line
		}
	}
	return ""
}

func writeCommandTable(w io.Writer, dir string, infos []CommandInfo, width int) {
	fmt.Fprintln(w, titleStyle.Render("Pal commands")+" "+dimStyle.Render(dir))
	if len(infos) == 0 {
		fmt.Fprintln(w, dimStyle.Render("  (none) add a Markdown file to the directory above"))
		return
	}

	nameWidth := 0
	for _, info := range infos {
		nameWidth = max(nameWidth, runewidth.StringWidth("/"+info.Name))
	}

	for _, info := range infos {
		name := runewidth.FillRight("/"+info.Name, nameWidth)
		summary := truncate(info.Summary, width-nameWidth-4)
		fmt.Fprintf(w, "  %s  %s\n", commandStyle.Render(name), summary)
	}
}
