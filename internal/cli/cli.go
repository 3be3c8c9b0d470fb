// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the pal command line: a long-running chat host
// (serve) and a terminal host for one-shot requests (ask).
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/jeranaias/rigrun-pal/internal/config"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command is the CLI command to execute.
type Command int

const (
	CmdHelp Command = iota
	CmdServe
	CmdAsk
	CmdCommands
	CmdConfig
	CmdVersion
	CmdUnknown
)

const usageText = `pal - workspace slash-commands backed by a local model

Each Markdown file in <workspace>/.config/pal becomes a slash-command whose
file content is the system prompt.

Usage:
  pal serve                       Run the HTTP chat host
  pal ask /<command> [prompt]     Run one command in the terminal
  pal commands                    List the workspace's commands
  pal config [show|get <key>|path|init]
                                  Inspect or create configuration
  pal version                     Show version information
  pal help                        Show this help

Ask flags:
  -f, --file FILE       Document to operate on (enables edits)
  -l, --lines A-B       Select lines A through B of FILE (default: whole file)
  --apply               Write proposed edits back to FILE
  --raw                 Do not render markdown

Serve flags:
  --addr HOST:PORT      Listen address (default from config)

Common flags:
  -w, --workspace DIR   Workspace root (default: current directory)
  -m, --model NAME      Ollama model (overrides config)
  -c, --config FILE     Load configuration from FILE
  -v, --verbose         Log diagnostics to stderr

Examples:
  pal commands
  pal ask /explain --file main.go --lines 10-24
  pal ask /refactor "use early returns" -f main.go -l 40-80 --apply
  pal serve --addr 127.0.0.1:8788
`

// Parse maps argv (without the program name) to a command and its
// arguments.
func Parse(argv []string) (Command, *ArgParser) {
	if len(argv) == 0 {
		return CmdHelp, NewArgParser(nil)
	}

	rest := NewArgParser(argv[1:])
	switch strings.ToLower(argv[0]) {
	case "serve", "server":
		return CmdServe, rest
	case "ask":
		return CmdAsk, rest
	case "commands", "ls":
		return CmdCommands, rest
	case "config":
		return CmdConfig, rest
	case "version", "--version", "-V":
		return CmdVersion, rest
	case "help", "--help", "-h":
		return CmdHelp, rest
	}
	return CmdUnknown, rest
}

// Run executes argv and returns the process exit code.
func Run(argv []string, stdout, stderr io.Writer) int {
	initStyles()

	cmd, args := Parse(argv)
	var err error
	switch cmd {
	case CmdServe:
		err = HandleServe(args, stderr)
	case CmdAsk:
		err = HandleAsk(args, stdout, stderr)
	case CmdCommands:
		err = HandleCommands(args, stdout)
	case CmdConfig:
		err = HandleConfig(args, stdout)
	case CmdVersion:
		err = HandleVersion(args, stdout)
	case CmdHelp:
		HandleHelp(stdout)
	default:
		err = &UsageError{Message: fmt.Sprintf("unknown command %q", argv[0]), Usage: "pal help"}
	}

	if err != nil {
		PrintError(stderr, err)
	}
	return ExitCode(err)
}

// HandleHelp prints usage.
func HandleHelp(w io.Writer) {
	fmt.Fprint(w, usageText)
}

// VersionInfo is the --json output of pal version.
type VersionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// HandleVersion prints version information.
func HandleVersion(args *ArgParser, w io.Writer) error {
	info := VersionInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if args.BoolFlag("json") {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	fmt.Fprintf(w, "%s %s\n", titleStyle.Render("pal"), info.Version)
	fmt.Fprintf(w, "  %s %s\n", labelStyle.Render("Commit:"), info.GitCommit)
	fmt.Fprintf(w, "  %s %s\n", labelStyle.Render("Built: "), info.BuildDate)
	fmt.Fprintf(w, "  %s %s (%s)\n", labelStyle.Render("Go:    "), info.GoVersion, info.Platform)
	return nil
}

// loadConfig loads configuration and applies command-line overrides.
func loadConfig(args *ArgParser) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path := args.FirstFlag("config", "c"); path != "" {
		cfg, err = config.LoadFromPath(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if ws := args.FirstFlag("workspace", "w"); ws != "" {
		cfg.Workspace = ws
	}
	if m := args.FirstFlag("model", "m"); m != "" {
		cfg.Ollama.Model = m
	}
	if addr := args.Flag("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
