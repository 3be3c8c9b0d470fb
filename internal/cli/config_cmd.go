// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jeranaias/rigrun-pal/internal/config"
)

const configUsage = "pal config [show|get <key>|path|init]"

// HandleConfig handles "pal config".
func HandleConfig(args *ArgParser, w io.Writer) error {
	switch sub := args.Subcommand(); sub {
	case "", "show":
		cfg, err := loadConfig(args)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, cfg.String())
		return nil

	case "get":
		key := args.Positional(1)
		if key == "" {
			return &UsageError{Message: "config get requires a key", Usage: configUsage}
		}
		cfg, err := loadConfig(args)
		if err != nil {
			return err
		}
		v, err := cfg.Get(key)
		if err != nil {
			return NewCommandError("config", "get", key, err)
		}
		fmt.Fprintln(w, v)
		return nil

	case "keys":
		for _, k := range config.GetAllKeys() {
			fmt.Fprintln(w, k)
		}
		return nil

	case "path":
		path, err := config.ConfigPathTOML()
		if err != nil {
			return err
		}
		fmt.Fprintln(w, path)
		return nil

	case "init":
		path, err := config.ConfigPathTOML()
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil && !args.BoolFlag("force") {
			return NewCommandError("config", "init", path+" already exists (use --force)", nil)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if err := config.SaveTOML(config.Default(), path); err != nil {
			return NewCommandError("config", "init", "", err)
		}
		fmt.Fprintln(w, "Wrote "+path)
		return nil

	default:
		return &UsageError{Message: fmt.Sprintf("unknown config subcommand %q", sub), Usage: configUsage}
	}
}
