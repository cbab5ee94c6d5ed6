// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - Wiring of the command handlers.

package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jeranaias/omnitool/internal/config"
	"github.com/jeranaias/omnitool/internal/discovery"
	"github.com/jeranaias/omnitool/internal/logging"
	"github.com/jeranaias/omnitool/internal/provider"
	"github.com/jeranaias/omnitool/internal/ui/styles"
)

// LocalChecker reports whether the local daemon answers.
type LocalChecker interface {
	CheckRunning(ctx context.Context, endpoint string) error
}

// App holds everything the command handlers need. main builds one per
// process; tests build one around fakes.
type App struct {
	Store     *config.Store
	AppConfig *config.AppConfig
	Router    provider.Client
	Discovery *discovery.Manager
	Local     LocalChecker
	Log       *logging.Logger

	// SettingsPath is the storage location, empty for the memory backend.
	SettingsPath string
	// ConfigPath is the operator config file that was loaded, if any.
	ConfigPath string

	In          io.Reader
	Out         io.Writer
	Err         io.Writer
	Theme       *styles.Theme
	Interactive bool // stdin and stdout are terminals

	markdown *MarkdownRenderer
}

// Run executes cmd.
func (a *App) Run(ctx context.Context, cmd Command, args Args) error {
	a.defaults()

	switch cmd {
	case CmdChat:
		return a.HandleChat(ctx, args)
	case CmdAsk:
		return a.HandleAsk(ctx, args)
	case CmdVision:
		return a.HandleVision(ctx, args)
	case CmdModels:
		return a.HandleModels(ctx, args)
	case CmdConfig:
		return a.HandleConfig(ctx, args)
	case CmdServe:
		return a.HandleServe(ctx, args)
	case CmdStatus:
		return a.HandleStatus(ctx, args)
	case CmdVersion:
		return a.HandleVersion(args)
	case CmdHelp:
		PrintUsage(a.Out)
		return nil
	}
	return &UsageError{Message: fmt.Sprintf("unsupported command %s", cmd)}
}

func (a *App) defaults() {
	if a.In == nil {
		a.In = os.Stdin
	}
	if a.Out == nil {
		a.Out = os.Stdout
	}
	if a.Err == nil {
		a.Err = os.Stderr
	}
	if a.Theme == nil {
		a.Theme = styles.NewPlainTheme()
	}
	if a.Log == nil {
		a.Log = logging.Discard()
	}
	if a.AppConfig == nil {
		a.AppConfig = config.DefaultApp()
	}
	if a.markdown == nil {
		a.markdown = NewMarkdownRenderer(a.Interactive, min(GetTerminalWidth(), 100)-4)
	}
}

// sessionSettings returns the current settings with the command-line
// overrides applied. The result is never persisted.
func (a *App) sessionSettings(args Args) config.Settings {
	s := a.Store.Current()
	switch {
	case args.Local:
		s.ActiveProvider = config.ProviderLocal
	case args.Cloud:
		s.ActiveProvider = config.ProviderCloud
	}
	if args.Model != "" {
		s = s.WithModel(s.ActiveProvider, args.Model)
	}
	return s
}

// targetProvider is the provider a models command acts on.
func (a *App) targetProvider(args Args) config.Provider {
	return a.sessionSettings(args).ActiveProvider
}

// HandleVersion prints build information.
func (a *App) HandleVersion(args Args) error {
	info := CurrentVersion()
	if args.JSON {
		return writeJSON(a.Out, NewJSONResponse("version", info))
	}
	fmt.Fprintf(a.Out, "omnitool %s\n", info.Version)
	if !args.Quiet {
		keyValue(a.Out, a.Theme, [][2]string{
			{"Commit", info.GitCommit},
			{"Built", info.BuildDate},
			{"Go", info.GoVersion},
			{"Platform", info.Platform},
		})
	}
	return nil
}
