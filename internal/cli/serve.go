// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeranaias/rigrun-pal/internal/host"
	"github.com/jeranaias/rigrun-pal/internal/ollama"
	"github.com/jeranaias/rigrun-pal/internal/pal"
	"github.com/jeranaias/rigrun-pal/internal/server"
	"github.com/jeranaias/rigrun-pal/internal/tools"
)

// HandleServe handles "pal serve". It blocks until SIGINT or SIGTERM.
func HandleServe(args *ArgParser, stderr io.Writer) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	log.SetOutput(stderr)

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

	registry := server.NewRegistry()
	server.Version = Version
	srv := server.New(registry, server.Options{
		Addr:       cfg.Server.Addr,
		Model:      model,
		ModelCheck: func(ctx context.Context) error { return client.CheckModel(ctx, model.Name()) },
		RateLimit:  cfg.Server.RateLimit,
		RateBurst:  cfg.Server.RateBurst,
		Logger:     log.New(stderr, "", log.LstdFlags),
	})

	ext, err := pal.Activate(pal.Options{
		Workspace:    host.Folders{root},
		Registry:     registry,
		Tools:        tools.NewRegistry(tools.Edit()),
		ConfigDir:    cfg.Pal.ConfigDir,
		Debounce:     cfg.Debounce(),
		PollInterval: cfg.PollInterval(),
	})
	if err != nil {
		return NewCommandError("serve", "activate", root, err)
	}
	defer ext.Close()

	log.Printf("PAL_SERVE | workspace=%s model=%s addr=%s", root, model.Name(), srv.Addr())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		if err != nil {
			return NewCommandError("serve", "listen", srv.Addr(), err)
		}
		return nil
	case sig := <-sigCh:
		log.Printf("PAL_SIGNAL | signal=%s", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
