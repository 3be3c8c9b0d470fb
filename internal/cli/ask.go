// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/rigrun-pal/internal/diff"
	"github.com/jeranaias/rigrun-pal/internal/host"
	"github.com/jeranaias/rigrun-pal/internal/ollama"
	"github.com/jeranaias/rigrun-pal/internal/pal"
	"github.com/jeranaias/rigrun-pal/internal/tools"
)

// MaxFileSize is the largest document ask will send (1MB).
const MaxFileSize = 1 << 20

// previewContext is the number of unchanged lines shown around an edit.
const previewContext = 2

const askUsage = "pal ask /<command> [prompt] [--file FILE [--lines A-B] [--apply]]"

// askRequest is a parsed "pal ask" invocation.
type askRequest struct {
	Command string
	Prompt  string
	File    string
	Lines   *LineRange
	Apply   bool
	Raw     bool
}

func parseAsk(args *ArgParser) (askRequest, error) {
	var req askRequest

	first := args.Positional(0)
	if !strings.HasPrefix(first, "/") || len(first) < 2 {
		return req, &UsageError{Message: "a /command is required", Usage: askUsage}
	}
	req.Command = strings.TrimPrefix(first, "/")
	req.Prompt = strings.Join(args.PositionalFrom(1), " ")
	req.File = args.FirstFlag("file", "f")
	req.Apply = args.BoolFlag("apply")
	req.Raw = args.BoolFlag("raw")

	if lines := args.FirstFlag("lines", "l"); lines != "" {
		if req.File == "" {
			return req, &UsageError{Message: "--lines requires --file", Usage: askUsage}
		}
		lr, err := ParseLineRange(lines)
		if err != nil {
			return req, &UsageError{Message: err.Error(), Usage: askUsage}
		}
		req.Lines = &lr
	}
	if req.Apply && req.File == "" {
		return req, &UsageError{Message: "--apply requires --file", Usage: askUsage}
	}
	return req, nil
}

// askEnv is everything runAsk needs from the outside world.
type askEnv struct {
	Workspace host.Workspace
	ConfigDir string
	Model     host.LanguageModel
	Out       io.Writer
	Render    bool
	Width     int
}

// HandleAsk handles "pal ask".
func HandleAsk(args *ArgParser, stdout, stderr io.Writer) error {
	req, err := parseAsk(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	if args.BoolFlag("verbose", "v") {
		log.SetOutput(stderr)
	} else {
		log.SetOutput(io.Discard)
	}

	root, err := cfg.WorkspaceRoot()
	if err != nil {
		return err
	}

	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:      cfg.Ollama.URL,
		Timeout:      cfg.OllamaTimeout(),
		DefaultModel: cfg.Ollama.Model,
	})
	model := ollama.NewModel(client, cfg.Ollama.Model, &ollama.Options{Temperature: cfg.Ollama.Temperature})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return runAsk(ctx, askEnv{
		Workspace: host.Folders{root},
		ConfigDir: cfg.Pal.ConfigDir,
		Model:     model,
		Out:       stdout,
		Render:    !req.Raw && isTerminal(stdout),
		Width:     GetTerminalWidth(),
	}, req)
}

func runAsk(ctx context.Context, env askEnv, req askRequest) error {
	p := pal.NewParticipant(env.Workspace, env.ConfigDir, tools.NewRegistry(tools.Edit()))

	agent, err := p.AgentData()
	if err != nil {
		return err
	}
	if !agent.HasCommand(req.Command) {
		return NewCommandError("ask", "/"+req.Command, "no such command (available: "+commandList(agent.SlashCommands)+")", fs.ErrNotExist)
	}

	chatReq := &host.ChatRequest{
		Command:  req.Command,
		Prompt:   req.Prompt,
		Location: host.LocationTerminal,
		Model:    env.Model,
	}

	var doc *host.TextDocument
	if req.File != "" {
		doc, err = readDocument(req.File)
		if err != nil {
			return NewCommandError("ask", "read", req.File, err)
		}
		sel, err := selectLines(doc, req.Lines)
		if err != nil {
			return &UsageError{Message: err.Error(), Usage: askUsage}
		}
		chatReq.Location = host.LocationEditor
		chatReq.Editor = &host.EditorData{Document: doc, Selection: sel}
	}

	stream := newTermStream(env.Out, env.Render, env.Width)
	err = p.HandleRequest(ctx, chatReq, stream)
	stream.Flush()
	if err != nil {
		return err
	}

	edits := stream.Edits()
	if len(edits) == 0 || doc == nil {
		return nil
	}
	return finishEdits(env, req, doc, edits)
}

// finishEdits previews the proposed edits or, with --apply, writes them.
func finishEdits(env askEnv, req askRequest, doc *host.TextDocument, parts []host.TextEditPart) error {
	var edits []host.TextEdit
	for _, part := range parts {
		if part.URI != doc.URI {
			continue
		}
		edits = append(edits, part.Edits...)
	}
	if len(edits) == 0 {
		return nil
	}

	updated, err := host.ApplyEdits(doc, edits)
	if err != nil {
		return NewCommandError("ask", "edit", req.File, err)
	}

	if !req.Apply {
		d := diff.Compute(req.File, doc.Text, updated, previewContext)
		fmt.Fprintln(env.Out)
		fmt.Fprintln(env.Out, titleStyle.Render("Proposed edit to "+req.File)+" "+dimStyle.Render(d.Summary()))
		writePreview(env.Out, d, env.Width)
		fmt.Fprintln(env.Out, dimStyle.Render("Re-run with --apply to write the change."))
		return nil
	}

	mode := os.FileMode(0o644)
	if info, err := os.Stat(req.File); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(req.File, []byte(updated), mode); err != nil {
		return NewCommandError("ask", "apply", req.File, err)
	}
	fmt.Fprintln(env.Out, commandStyle.Render(fmt.Sprintf("Applied %d edit(s) to %s", len(edits), req.File)))
	return nil
}

// writePreview prints the hunks of d, each line truncated to width.
func writePreview(w io.Writer, d *diff.Diff, width int) {
	for _, h := range d.Hunks {
		fmt.Fprintln(w, labelStyle.Render(h.Header()))
		for _, l := range h.Lines {
			line := truncate(l.Type.Prefix()+l.Content, width)
			switch l.Type {
			case diff.Added:
				line = addedStyle.Render(line)
			case diff.Removed:
				line = removedStyle.Render(line)
			}
			fmt.Fprintln(w, line)
		}
	}
}

func readDocument(path string) (*host.TextDocument, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("file is larger than %d bytes", MaxFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return &host.TextDocument{URI: "file://" + filepath.ToSlash(abs), Text: string(data)}, nil
}

// selectLines returns the range covering lines (1-based, inclusive), or the
// whole document when lines is nil.
func selectLines(doc *host.TextDocument, lines *LineRange) (host.Range, error) {
	all := strings.Split(doc.Text, "\n")
	lineEnd := func(i int) host.Position {
		return host.Position{Line: i, Character: utf8.RuneCountInString(all[i])}
	}

	if lines == nil {
		return host.Range{End: lineEnd(len(all) - 1)}, nil
	}
	if lines.Start > len(all) {
		return host.Range{}, fmt.Errorf("line %d is past the end of the file (%d lines)", lines.Start, len(all))
	}
	end := min(lines.End, len(all))
	return host.Range{
		Start: host.Position{Line: lines.Start - 1},
		End:   lineEnd(end - 1),
	}, nil
}

func commandList(cmds []host.SlashCommand) string {
	if len(cmds) == 0 {
		return "none"
	}
	names := make([]string, len(cmds))
	for i, c := range cmds {
		names[i] = "/" + c.Name
	}
	return strings.Join(names, ", ")
}

// =============================================================================
// TERMINAL RESPONSE STREAM
// =============================================================================

// termStream is a host.ResponseStream for the terminal. Plain output is
// written as it arrives; rendered output is buffered and rendered with
// glamour on Flush. Edits are collected for the caller.
type termStream struct {
	mu     sync.Mutex
	w      io.Writer
	render bool
	width  int
	md     strings.Builder
	last   byte
	edits  []host.TextEditPart
}

func newTermStream(w io.Writer, render bool, width int) *termStream {
	return &termStream{w: w, render: render, width: width}
}

func (s *termStream) Markdown(value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if value == "" {
		return
	}
	if s.render {
		s.md.WriteString(value)
		return
	}
	fmt.Fprint(s.w, value)
	s.last = value[len(value)-1]
}

func (s *termStream) Push(part host.ResponsePart) {
	switch p := part.(type) {
	case host.MarkdownPart:
		s.Markdown(p.Value)
	case host.TextEditPart:
		s.mu.Lock()
		s.edits = append(s.edits, p)
		s.mu.Unlock()
	}
}

// Flush renders buffered markdown and terminates the output line.
func (s *termStream) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.render {
		if s.last != 0 && s.last != '\n' {
			fmt.Fprintln(s.w)
		}
		return
	}
	if s.md.Len() == 0 {
		return
	}
	fmt.Fprint(s.w, renderMarkdown(s.md.String(), s.width))
	s.md.Reset()
}

// Edits returns the collected edit parts.
func (s *termStream) Edits() []host.TextEditPart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]host.TextEditPart(nil), s.edits...)
}

// renderMarkdown renders content for the terminal, falling back to the
// raw text if glamour fails.
func renderMarkdown(content string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(max(width-2, MinTerminalWidth)),
	)
	if err != nil {
		return content
	}
	out, err := r.Render(content)
	if err != nil {
		return content
	}
	return out
}

var _ host.ResponseStream = (*termStream)(nil)
