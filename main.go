// omnitool - Chat with Gemini or a local Ollama model from the terminal.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jeranaias/omnitool/internal/cli"
	"github.com/jeranaias/omnitool/internal/cloud"
	"github.com/jeranaias/omnitool/internal/config"
	"github.com/jeranaias/omnitool/internal/discovery"
	"github.com/jeranaias/omnitool/internal/logging"
	"github.com/jeranaias/omnitool/internal/ollama"
	"github.com/jeranaias/omnitool/internal/router"
	"github.com/jeranaias/omnitool/internal/storage"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run wires the application and executes one command. It returns the
// process exit code.
func run(argv []string) int {
	theme := cli.DetectTheme()

	cmd, args, err := cli.Parse(argv)
	if err != nil {
		cli.DisplayError(os.Stderr, theme, err, false)
		return cli.ExitCode(err)
	}

	// Help and version never need settings or providers
	if cmd == cli.CmdHelp {
		cli.PrintUsage(os.Stdout)
		return cli.ExitSuccess
	}

	app, cleanup, err := newApp(args)
	if err != nil {
		cli.DisplayError(os.Stderr, theme, err, args.JSON)
		return cli.ExitCode(err)
	}
	defer cleanup()
	app.Theme = theme

	if err := app.Run(context.Background(), cmd, args); err != nil {
		cli.DisplayError(os.Stderr, theme, err, args.JSON)
		return cli.ExitCode(err)
	}
	return cli.ExitSuccess
}

// newApp builds the App from the operator config and the settings store.
func newApp(args cli.Args) (*cli.App, func(), error) {
	cfg, loadErr := config.LoadApp()
	if cfg == nil {
		return nil, nil, loadErr
	}
	if args.Verbose {
		cfg.Log.Verbose = true
	}

	var fallback io.Writer = io.Discard
	if cfg.Log.Verbose {
		fallback = os.Stderr
	}
	logger, err := logging.Setup(cfg.Log, fallback)
	if err != nil {
		return nil, nil, err
	}
	if loadErr != nil {
		// defaults are in effect
		fmt.Fprintf(os.Stderr, "[WARN] %v\n", loadErr)
	}

	backend, err := storage.ParseBackend(cfg.Storage.Backend)
	if err != nil {
		logger.Close()
		return nil, nil, err
	}
	settingsPath, err := cfg.StoragePath()
	if err != nil {
		logger.Close()
		return nil, nil, err
	}
	kv, err := storage.Open(backend, settingsPath)
	if err != nil {
		logger.Close()
		return nil, nil, fmt.Errorf("failed to open %s storage: %w", backend, err)
	}
	store := config.NewStore(kv,
		config.WithEnvOverrides(true),
		config.WithStoreLogger(logger.Logger))

	cloudClient := cloud.NewClient(
		cloud.WithBaseURL(cfg.Cloud.BaseURL),
		cloud.WithTimeout(time.Duration(cfg.Cloud.TimeoutSecs)*time.Second),
		cloud.WithLogger(logger.Logger))
	localClient := ollama.NewClientWithConfig(&ollama.ClientConfig{
		Timeout: time.Duration(cfg.Local.TimeoutSecs) * time.Second,
		Logger:  logger.Logger,
	})
	rt := router.New(cloudClient, localClient, router.WithLogger(logger.Logger))

	ordering, err := discovery.ParseOrdering(cfg.Discovery.Ordering)
	if err != nil {
		logger.Printf("CONFIG_WARNING | %v", err)
	}
	disc := discovery.New(rt.Lister(), store,
		discovery.WithFallback(config.ProviderCloud, cloud.DefaultModels()),
		discovery.WithValidator(cloudClient),
		discovery.WithOrdering(ordering),
		discovery.WithLogger(logger.Logger))

	app := &cli.App{
		Store:        store,
		AppConfig:    cfg,
		Router:       rt,
		Discovery:    disc,
		Local:        localClient,
		Log:          logger,
		SettingsPath: settingsPath,
		ConfigPath:   loadedConfigPath(),
		Interactive:  cli.IsTTY() && cli.IsStdoutTTY(),
	}

	cleanup := func() {
		disc.Wait()
		if err := kv.Close(); err != nil {
			logger.Printf("STORAGE_CLOSE | err=%v", err)
		}
		logger.Close()
	}
	return app, cleanup, nil
}

// loadedConfigPath returns the operator config file LoadApp reads, if any.
func loadedConfigPath() string {
	for _, fn := range []func() (string, error){config.AppConfigPathTOML, config.AppConfigPathJSON} {
		if path, err := fn(); err == nil {
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}
