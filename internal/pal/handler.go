// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/jeranaias/rigrun-pal/internal/host"
	"github.com/jeranaias/rigrun-pal/internal/tools"
)

// editInstructions is appended to the system prompt for editor requests.
const editInstructions = "When you have finished responding, you can choose to output a revised " +
	"version of the selection provided by the user if required. Also include the user's " +
	"original selection when using this tool. Never mention the name of the function, just use it."

// HandleRequest answers a chat request bound to one of Pal's commands.
//
// Model text is streamed as markdown. An edit tool call becomes a text edit
// replacing the captured selection. Cancellation of ctx ends the stream
// without error; parts already pushed stay pushed.
func (p *Participant) HandleRequest(ctx context.Context, req *host.ChatRequest, stream host.ResponseStream) error {
	if req == nil || req.Command == "" {
		return host.ErrNoCommand
	}

	system, err := p.LoadPrompt(req.Command)
	if err != nil {
		return err
	}

	var messages []host.Message
	editor := req.Editor
	if editor != nil && editor.Document == nil {
		editor = nil
	}
	if editor != nil {
		system += "\n\n" + editInstructions
		selected := editor.Document.GetText(editor.Selection)
		messages = append(messages,
			host.UserMessage("The user has selected the following text: "+selected),
			host.AssistantMessage("Acknowledged."),
		)
	}
	if req.Prompt != "" {
		messages = append(messages, host.UserMessage(req.Prompt))
	}

	if req.Model == nil {
		return host.ErrNoModel
	}

	resp, err := req.Model.SendRequest(ctx, messages, host.RequestOptions{
		Tools:  host.ToolsNamed(p.tools, tools.EditName),
		System: system,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("send request for /%s: %w", req.Command, err)
	}
	defer resp.Close()

	for {
		part, err := resp.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("model stream for /%s: %w", req.Command, err)
		}
		if ctx.Err() != nil {
			return nil
		}

		switch part := part.(type) {
		case host.TextPart:
			stream.Markdown(part.Value)
		case host.ToolCallPart:
			if err := pushEdit(stream, editor, part); err != nil {
				return err
			}
		}
	}
}

func pushEdit(stream host.ResponseStream, editor *host.EditorData, call host.ToolCallPart) error {
	if call.Name != tools.EditName {
		log.Printf("PAL_TOOL_IGNORED | name=%s call_id=%s", call.Name, call.CallID)
		return nil
	}
	if editor == nil {
		return host.ErrNoEditorContext
	}

	code, err := tools.EditCode(call.Input)
	if err != nil {
		return &ToolInputError{Tool: call.Name, Cause: err}
	}

	stream.Push(host.TextEditPart{
		URI:   editor.Document.URI,
		Edits: []host.TextEdit{host.Replace(editor.Selection, code)},
	})
	return nil
}
