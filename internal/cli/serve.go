// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// serve.go - Proxy gateway command handler.
//
// Command: serve [--port N]
//
// Starts the local gateway that relays the Ollama API and the Gemini API
// to the browser client and serves the built client. With the file
// backend the settings file is watched and reloaded on external edits.

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/omnitool/internal/config"
	"github.com/jeranaias/omnitool/internal/server"
	"github.com/jeranaias/omnitool/internal/storage"
)

// HandleServe runs the gateway until interrupted.
func (a *App) HandleServe(ctx context.Context, args Args) error {
	cfg := a.AppConfig.Gateway
	if args.Port > 0 {
		cfg.Port = args.Port
	}

	srv, err := server.New(cfg, server.WithLogger(a.Log.Logger))
	if err != nil {
		return NewCommandError("serve", "", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	if a.watchSettings() {
		w := config.NewWatcher(a.Store, a.SettingsPath, config.WithWatcherLogger(a.Log.Logger))
		g.Go(func() error {
			if err := w.Run(gctx); err != nil {
				// the gateway keeps running without live reload
				a.Log.Errorf("WATCH_FAILED | path=%s err=%v", a.SettingsPath, err)
			}
			return nil
		})
	}

	if !args.Quiet {
		fmt.Fprintf(a.Out, "%s Gateway listening on http://%s\n", a.Theme.Success.Render("[OK]"), srv.Addr())
		fmt.Fprintf(a.Out, "%s\n", a.Theme.Muted.Render(fmt.Sprintf("Ollama: %s  Static: %s  (Ctrl+C to stop)", cfg.OllamaHost, cfg.StaticDir)))
	}

	if err := g.Wait(); err != nil {
		return NewCommandError("serve", "", err)
	}
	return nil
}

// watchSettings reports whether the settings live in a watchable file.
func (a *App) watchSettings() bool {
	if a.Store == nil || a.SettingsPath == "" {
		return false
	}
	backend, err := storage.ParseBackend(a.AppConfig.Storage.Backend)
	return err == nil && backend == storage.BackendFile
}
