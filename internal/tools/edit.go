// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import "fmt"

const (
	// EditName is the name of the selection-replacement tool.
	EditName = "edit"

	// EditCodeArg is the argument carrying the replacement text.
	EditCodeArg = "code"
)

// Edit returns the definition of the edit tool.
func Edit() Definition {
	return Definition{
		Name: EditName,
		Description: "Replace the text the user selected with a revised version. " +
			"Call this at most once, after you have finished responding.",
		Parameters: []Parameter{
			{
				Name:        EditCodeArg,
				Type:        "string",
				Description: "The complete replacement for the selected text",
				Required:    true,
			},
		},
	}
}

// EditCode extracts the replacement text from an edit tool input.
func EditCode(input map[string]any) (string, error) {
	raw, ok := input[EditCodeArg]
	if !ok {
		return "", fmt.Errorf("missing %q argument", EditCodeArg)
	}
	code, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%q argument must be a string, got %T", EditCodeArg, raw)
	}
	return code, nil
}
