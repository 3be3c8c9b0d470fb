// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jeranaias/rigrun-pal/internal/config"
	"github.com/jeranaias/rigrun-pal/internal/host"
	"github.com/jeranaias/rigrun-pal/internal/host/hosttest"
	"github.com/jeranaias/rigrun-pal/internal/ollama"
	"github.com/jeranaias/rigrun-pal/internal/pal"
	"github.com/jeranaias/rigrun-pal/internal/tools"
)

// =============================================================================
// ARG PARSER TESTS (args.go)
// =============================================================================

func TestArgParser(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		positional []string
		flags      map[string]string
		bools      []string
	}{
		{
			name:       "slash command and prompt",
			args:       []string{"/review", "be", "brief"},
			positional: []string{"/review", "be", "brief"},
		},
		{
			name:       "flag with value",
			args:       []string{"/fix", "--file", "main.go", "-l", "3-9"},
			positional: []string{"/fix"},
			flags:      map[string]string{"file": "main.go", "l": "3-9"},
		},
		{
			name:       "inline value and bool",
			args:       []string{"--lines=1-2", "--apply", "/x"},
			positional: []string{"/x"},
			flags:      map[string]string{"lines": "1-2"},
			bools:      []string{"apply"},
		},
		{
			name:  "explicit bool",
			args:  []string{"--json=true"},
			bools: []string{"json"},
		},
		{
			name:       "double dash",
			args:       []string{"/x", "--", "--not-a-flag"},
			positional: []string{"/x", "--not-a-flag"},
		},
		{
			name:  "trailing flag is bool",
			args:  []string{"--verbose"},
			bools: []string{"verbose"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := NewArgParser(tc.args)

			if p.PositionalCount() != len(tc.positional) {
				t.Fatalf("positional = %v, want %v", p.PositionalFrom(0), tc.positional)
			}
			for i, want := range tc.positional {
				if got := p.Positional(i); got != want {
					t.Errorf("Positional(%d) = %q, want %q", i, got, want)
				}
			}
			for k, want := range tc.flags {
				if got := p.Flag(k); got != want {
					t.Errorf("Flag(%q) = %q, want %q", k, got, want)
				}
			}
			for _, k := range tc.bools {
				if !p.BoolFlag(k) {
					t.Errorf("BoolFlag(%q) = false", k)
				}
			}
		})
	}
}

func TestArgParser_FirstFlag(t *testing.T) {
	p := NewArgParser([]string{"-f", "a.go"})
	if got := p.FirstFlag("file", "f"); got != "a.go" {
		t.Errorf("FirstFlag = %q", got)
	}
	if got := p.FlagOrDefault("model", "m1"); got != "m1" {
		t.Errorf("FlagOrDefault = %q", got)
	}
	if !p.HasFlag("--f") || p.HasFlag("file") {
		t.Error("HasFlag mismatch")
	}
}

func TestParseLineRange(t *testing.T) {
	tests := []struct {
		in      string
		want    LineRange
		wantErr bool
	}{
		{"3-9", LineRange{3, 9}, false},
		{"7", LineRange{7, 7}, false},
		{" 2-2 ", LineRange{2, 2}, false},
		{"9-3", LineRange{}, true},
		{"0-3", LineRange{}, true},
		{"a-b", LineRange{}, true},
		{"", LineRange{}, true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseLineRange(tc.in)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

// =============================================================================
// COMMAND DISPATCH
// =============================================================================

func TestParse(t *testing.T) {
	tests := []struct {
		argv []string
		want Command
	}{
		{nil, CmdHelp},
		{[]string{"serve"}, CmdServe},
		{[]string{"ask", "/x"}, CmdAsk},
		{[]string{"commands"}, CmdCommands},
		{[]string{"ls"}, CmdCommands},
		{[]string{"config", "get", "ollama.model"}, CmdConfig},
		{[]string{"--version"}, CmdVersion},
		{[]string{"-h"}, CmdHelp},
		{[]string{"frobnicate"}, CmdUnknown},
	}

	for _, tc := range tests {
		if got, _ := Parse(tc.argv); got != tc.want {
			t.Errorf("Parse(%v) = %v, want %v", tc.argv, got, tc.want)
		}
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"frobnicate"}, &stdout, &stderr)
	if code != ExitUsageError {
		t.Errorf("exit = %d, want %d", code, ExitUsageError)
	}
	if !strings.Contains(stderr.String(), "frobnicate") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestRun_Help(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := Run(nil, &stdout, &stderr); code != ExitSuccess {
		t.Errorf("exit = %d", code)
	}
	if !strings.Contains(stdout.String(), "pal ask /<command>") {
		t.Errorf("help output missing ask usage")
	}
}

func TestHandleVersion_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := HandleVersion(NewArgParser([]string{"--json"}), &buf); err != nil {
		t.Fatal(err)
	}
	var info VersionInfo
	if err := json.Unmarshal(buf.Bytes(), &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Version != Version || info.GoVersion == "" {
		t.Errorf("info = %+v", info)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"usage", &UsageError{Message: "x"}, ExitUsageError},
		{"config", config.ValidateErrors{{Field: "a", Message: "b"}}, ExitConfigError},
		{"not running", &ollama.ClientError{Type: ollama.ErrTypeNotRunning}, ExitNetworkError},
		{"timeout", &ollama.ClientError{Type: ollama.ErrTypeTimeout}, ExitTimeoutError},
		{"missing", NewCommandError("ask", "/x", "", os.ErrNotExist), ExitNotFoundError},
		{"no workspace", host.ErrNoWorkspace, ExitNotFoundError},
		{"other", errors.New("boom"), ExitGeneralError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExitCode(tc.err); got != tc.want {
				t.Errorf("ExitCode = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestCommandError(t *testing.T) {
	err := NewCommandError("ask", "read", "main.go", os.ErrNotExist)
	if !errors.Is(err, os.ErrNotExist) {
		t.Error("CommandError should unwrap to its cause")
	}
	if got := err.Error(); !strings.HasPrefix(got, "ask read failed: main.go") {
		t.Errorf("Error() = %q", got)
	}
}

// =============================================================================
// ASK
// =============================================================================

// workspace creates a workspace with the given pal commands.
func workspace(t *testing.T, commands map[string]string) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, pal.DefaultConfigDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, body := range commands {
		if err := os.WriteFile(filepath.Join(dir, name+".md"), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func writeSource(t *testing.T, dir, text string) string {
	t.Helper()
	path := filepath.Join(dir, "main.go")
	if err := os.WriteFile(path, []byte(text), 0o640); err != nil {
		t.Fatal(err)
	}
	return path
}

func editCall(code string) host.Part {
	return host.ToolCallPart{CallID: "1", Name: tools.EditName, Input: map[string]any{tools.EditCodeArg: code}}
}

func TestParseAsk(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
		check   func(*testing.T, askRequest)
	}{
		{"no command", []string{"hello"}, true, nil},
		{"bare slash", []string{"/"}, true, nil},
		{"lines without file", []string{"/x", "--lines", "1-2"}, true, nil},
		{"apply without file", []string{"/x", "--apply"}, true, nil},
		{"bad lines", []string{"/x", "-f", "a.go", "-l", "z"}, true, nil},
		{"full", []string{"/fix", "use", "errors", "-f", "a.go", "-l", "2-4", "--apply"}, false, func(t *testing.T, r askRequest) {
			if r.Command != "fix" || r.Prompt != "use errors" || r.File != "a.go" || !r.Apply {
				t.Errorf("req = %+v", r)
			}
			if r.Lines == nil || *r.Lines != (LineRange{2, 4}) {
				t.Errorf("Lines = %v", r.Lines)
			}
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req, err := parseAsk(NewArgParser(tc.args))
			if tc.wantErr {
				var usage *UsageError
				if !errors.As(err, &usage) {
					t.Errorf("err = %v, want UsageError", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			tc.check(t, req)
		})
	}
}

func TestSelectLines(t *testing.T) {
	doc := &host.TextDocument{Text: "one\ntwo\nthree\n"}

	tests := []struct {
		name  string
		lines *LineRange
		want  string
	}{
		{"whole document", nil, "one\ntwo\nthree\n"},
		{"single line", &LineRange{2, 2}, "two"},
		{"span", &LineRange{1, 2}, "one\ntwo"},
		{"clamped end", &LineRange{3, 99}, "three\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, err := selectLines(doc, tc.lines)
			if err != nil {
				t.Fatal(err)
			}
			if got := doc.GetText(r); got != tc.want {
				t.Errorf("selected %q, want %q", got, tc.want)
			}
		})
	}

	if _, err := selectLines(doc, &LineRange{9, 9}); err == nil {
		t.Error("selection past the end should fail")
	}
}

func TestRunAsk_PanelAnswer(t *testing.T) {
	root := workspace(t, map[string]string{"explain": "Explain code."})
	model := &hosttest.Model{Parts: []host.Part{
		host.TextPart{Value: "It prints "},
		host.TextPart{Value: "hello."},
	}}
	var out bytes.Buffer

	err := runAsk(context.Background(), askEnv{
		Workspace: host.Folders{root},
		Model:     model,
		Out:       &out,
		Width:     80,
	}, askRequest{Command: "explain", Prompt: "briefly"})
	if err != nil {
		t.Fatalf("runAsk: %v", err)
	}
	if out.String() != "It prints hello.\n" {
		t.Errorf("output = %q", out.String())
	}

	reqs := model.Requests()
	if len(reqs) != 1 || reqs[0].Options.System != "Explain code." {
		t.Fatalf("requests = %+v", reqs)
	}
	last := reqs[0].Messages[len(reqs[0].Messages)-1]
	if last.Content != "briefly" {
		t.Errorf("last message = %+v, want the typed prompt", last)
	}
}

func TestRunAsk_UnknownCommand(t *testing.T) {
	root := workspace(t, map[string]string{"explain": "x", "fix": "y"})

	err := runAsk(context.Background(), askEnv{
		Workspace: host.Folders{root},
		Model:     &hosttest.Model{},
		Out:       &bytes.Buffer{},
	}, askRequest{Command: "nope"})

	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want not-exist", err)
	}
	if !strings.Contains(err.Error(), "/explain, /fix") {
		t.Errorf("error should list commands: %v", err)
	}
}

func TestRunAsk_PreviewEdit(t *testing.T) {
	root := workspace(t, map[string]string{"upper": "Uppercase it."})
	src := writeSource(t, t.TempDir(), "a\nb\nc\n")
	model := &hosttest.Model{Parts: []host.Part{host.TextPart{Value: "Done."}, editCall("B")}}
	var out bytes.Buffer

	err := runAsk(context.Background(), askEnv{
		Workspace: host.Folders{root},
		Model:     model,
		Out:       &out,
		Width:     80,
	}, askRequest{Command: "upper", File: src, Lines: &LineRange{2, 2}})
	if err != nil {
		t.Fatalf("runAsk: %v", err)
	}

	got := out.String()
	for _, want := range []string{"Done.", "Proposed edit", "@@ -1,3 +1,3 @@", "-b", "+B", "--apply"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}

	data, _ := os.ReadFile(src)
	if string(data) != "a\nb\nc\n" {
		t.Errorf("file changed without --apply: %q", data)
	}

	sys := model.Requests()[0].Options.System
	if !strings.HasPrefix(sys, "Uppercase it.") || len(sys) == len("Uppercase it.") {
		t.Errorf("editor request should append edit instructions, system = %q", sys)
	}
}

func TestRunAsk_ApplyEdit(t *testing.T) {
	root := workspace(t, map[string]string{"upper": "Uppercase it."})
	src := writeSource(t, t.TempDir(), "a\nb\nc\n")
	model := &hosttest.Model{Parts: []host.Part{editCall("B\nBB")}}
	var out bytes.Buffer

	err := runAsk(context.Background(), askEnv{
		Workspace: host.Folders{root},
		Model:     model,
		Out:       &out,
		Width:     80,
	}, askRequest{Command: "upper", File: src, Lines: &LineRange{2, 2}, Apply: true})
	if err != nil {
		t.Fatalf("runAsk: %v", err)
	}

	data, _ := os.ReadFile(src)
	if string(data) != "a\nB\nBB\nc\n" {
		t.Errorf("file = %q", data)
	}
	if info, _ := os.Stat(src); os.PathSeparator == '/' && info.Mode().Perm() != 0o640 {
		t.Errorf("mode = %o, want preserved 640", info.Mode().Perm())
	}
	if !strings.Contains(out.String(), "Applied 1 edit(s)") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRunAsk_MissingFile(t *testing.T) {
	root := workspace(t, map[string]string{"x": "y"})
	err := runAsk(context.Background(), askEnv{
		Workspace: host.Folders{root},
		Model:     &hosttest.Model{},
		Out:       &bytes.Buffer{},
	}, askRequest{Command: "x", File: filepath.Join(root, "absent.go")})

	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want CommandError wrapping not-exist", err)
	}
}

func TestTermStream_Plain(t *testing.T) {
	var out bytes.Buffer
	s := newTermStream(&out, false, 80)
	s.Markdown("a")
	s.Push(host.MarkdownPart{Value: "b\n"})
	s.Push(host.TextEditPart{URI: "file:///x"})
	s.Flush()

	if out.String() != "ab\n" {
		t.Errorf("output = %q, no extra newline after one already written", out.String())
	}
	if len(s.Edits()) != 1 {
		t.Errorf("Edits = %v", s.Edits())
	}
}

func TestTermStream_RenderBuffersUntilFlush(t *testing.T) {
	var out bytes.Buffer
	s := newTermStream(&out, true, 80)
	s.Markdown("# Title\n\nbody text")

	if out.Len() != 0 {
		t.Fatalf("rendered output must wait for Flush, got %q", out.String())
	}
	s.Flush()
	if !strings.Contains(out.String(), "body text") {
		t.Errorf("rendered = %q", out.String())
	}
}

// =============================================================================
// COMMANDS / CONFIG
// =============================================================================

func isolateHome(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	for _, k := range []string{"PAL_WORKSPACE", "PAL_OLLAMA_URL", "PAL_MODEL", "PAL_SERVER_ADDR", "PAL_DEBOUNCE_MS"} {
		t.Setenv(k, "")
	}
}

func TestHandleCommands_JSON(t *testing.T) {
	isolateHome(t)
	root := workspace(t, map[string]string{
		"review":  "# Review the code\nBe strict.",
		"explain": "\n\nExplain it simply.",
	})

	var out bytes.Buffer
	if err := HandleCommands(NewArgParser([]string{"--workspace", root, "--json"}), &out); err != nil {
		t.Fatalf("HandleCommands: %v", err)
	}

	var infos []CommandInfo
	if err := json.Unmarshal(out.Bytes(), &infos); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(infos) != 2 || infos[0].Name != "explain" || infos[1].Name != "review" {
		t.Fatalf("infos = %+v", infos)
	}
	if infos[0].Summary != "Explain it simply." || infos[1].Summary != "Review the code" {
		t.Errorf("summaries = %q, %q", infos[0].Summary, infos[1].Summary)
	}
}

func TestHandleCommands_Table(t *testing.T) {
	isolateHome(t)
	root := workspace(t, map[string]string{"review": "Review"})

	var out bytes.Buffer
	if err := HandleCommands(NewArgParser([]string{"-w", root}), &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "/review") {
		t.Errorf("table = %q", out.String())
	}
}

func TestHandleConfig(t *testing.T) {
	isolateHome(t)

	var out bytes.Buffer
	if err := HandleConfig(NewArgParser([]string{"get", "ollama.model", "--model", "tiny"}), &out); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out.String()) != "tiny" {
		t.Errorf("get = %q, --model should override", out.String())
	}

	out.Reset()
	if err := HandleConfig(NewArgParser([]string{"init"}), &out); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := HandleConfig(NewArgParser([]string{"init"}), &out); err == nil {
		t.Error("second init without --force should fail")
	}

	var usage *UsageError
	if err := HandleConfig(NewArgParser([]string{"get"}), &out); !errors.As(err, &usage) {
		t.Errorf("get without key err = %v", err)
	}
	if err := HandleConfig(NewArgParser([]string{"bogus"}), &out); !errors.As(err, &usage) {
		t.Errorf("bogus err = %v", err)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("hello world", 6); got != "hello…" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("日本語テキスト", 7); got != "日本語…" {
		t.Errorf("wide truncate = %q", got)
	}
	if got := truncate("x", 0); got != "" {
		t.Errorf("zero width = %q", got)
	}
}
