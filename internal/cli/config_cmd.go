// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - Settings command handler.
//
// Command: config [subcommand]
//
// Subcommands:
//   show (default)            Show settings (credential masked)
//   get <key>                 Print one setting
//   set <key> <value>         Change one setting
//   provider <cloud|local|toggle>
//                             Switch the active provider
//   set-key [key]             Store the Gemini API key
//   check-key [key]           Validate a Gemini API key
//   path                      Print configuration file locations
//   init                      Write a default config.toml
//
// Examples:
//   omnitool config set local_endpoint http://gpu-box:11434
//   omnitool config provider local
//   echo "$KEY" | omnitool config set-key

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jeranaias/omnitool/internal/cloud"
	"github.com/jeranaias/omnitool/internal/config"
	"github.com/jeranaias/omnitool/internal/discovery"
)

// HandleConfig dispatches the config subcommands.
func (a *App) HandleConfig(ctx context.Context, args Args) error {
	switch strings.ToLower(args.Subcommand) {
	case "", "show", "list":
		return a.showConfig(args)
	case "get":
		return a.getConfig(args)
	case "set":
		return a.setConfig(args)
	case "provider":
		return a.setProvider(ctx, args)
	case "set-key", "setkey", "key":
		return a.setKey(ctx, args)
	case "check-key", "checkkey", "validate":
		return a.checkKey(ctx, args)
	case "path", "paths":
		return a.configPaths(args)
	case "init":
		return a.initConfig(args)
	}
	return &UsageError{
		Message: fmt.Sprintf("unknown config subcommand %q", args.Subcommand),
		Usage:   "omnitool config [show|get|set|provider|set-key|check-key|path|init]",
	}
}

func (a *App) showConfig(args Args) error {
	s := a.Store.Current()
	if args.JSON {
		return writeJSON(a.Out, NewJSONResponse("config", ConfigData{
			Settings:     s.Redacted(),
			SettingsPath: a.SettingsPath,
			Backend:      a.AppConfig.Storage.Backend,
			ConfigPath:   a.ConfigPath,
		}))
	}

	credential := a.Theme.Muted.Render("(not set)")
	if s.CloudCredential != "" {
		credential = maskCredential(s.CloudCredential)
	} else if s.HasCredential() {
		credential = a.Theme.Muted.Render("(from API_KEY)")
	}

	pairs := [][2]string{
		{"active_provider", s.ActiveProvider.String()},
		{"local_endpoint", s.LocalEndpoint},
		{"local_model_id", s.LocalModelID},
		{"cloud_credential", credential},
		{"cloud_model_id", s.CloudModelID},
	}
	if !args.Quiet {
		pairs = append(pairs, [2]string{"storage", a.AppConfig.Storage.Backend + " " + a.SettingsPath})
	}
	keyValue(a.Out, a.Theme, pairs)
	return nil
}

// maskCredential keeps the last four characters of key.
func maskCredential(key string) string {
	r := []rune(key)
	if len(r) <= 8 {
		return strings.Repeat("*", len(r))
	}
	return strings.Repeat("*", 8) + string(r[len(r)-4:])
}

func (a *App) getConfig(args Args) error {
	if args.ConfigKey == "" {
		return ErrMissingArgument("key", "omnitool config get <key>  (keys: "+strings.Join(config.SettingsKeys, ", ")+")")
	}
	s := a.Store.Current()
	v, err := s.Get(args.ConfigKey)
	if err != nil {
		return &UsageError{Message: err.Error(), Usage: "keys: " + strings.Join(config.SettingsKeys, ", ")}
	}
	if normalizeKeyName(args.ConfigKey) == "cloudcredential" && v != "" {
		v = maskCredential(v)
	}
	fmt.Fprintln(a.Out, v)
	return nil
}

func normalizeKeyName(k string) string {
	return strings.NewReplacer("_", "", "-", "", ".", "").Replace(strings.ToLower(strings.TrimSpace(k)))
}

func (a *App) setConfig(args Args) error {
	if args.ConfigKey == "" {
		return ErrMissingArgument("key", "omnitool config set <key> <value>")
	}

	var setErr error
	err := a.update(func(s *config.Settings) {
		setErr = s.Set(args.ConfigKey, args.ConfigVal)
	})
	if setErr != nil {
		return &UsageError{Message: setErr.Error(), Usage: "keys: " + strings.Join(config.SettingsKeys, ", ")}
	}
	if err != nil {
		return NewCommandError("config", "set", err)
	}
	if !args.Quiet {
		fmt.Fprintf(a.Out, "%s %s updated\n", a.Theme.Success.Render("[OK]"), args.ConfigKey)
	}
	return nil
}

// setProvider switches the active provider and rediscovers its catalog.
func (a *App) setProvider(ctx context.Context, args Args) error {
	if args.ConfigKey == "" {
		fmt.Fprintln(a.Out, a.Store.Current().ActiveProvider)
		return nil
	}
	p, err := resolveProvider(args.ConfigKey, a.Store.Current().ActiveProvider)
	if err != nil {
		return &UsageError{Message: err.Error(), Usage: "omnitool config provider <cloud|local|toggle>"}
	}
	if err := a.update(func(s *config.Settings) { s.ActiveProvider = p }); err != nil {
		return NewCommandError("config", "provider", err)
	}

	s := a.Store.Current()
	fmt.Fprintf(a.Out, "%s Provider set to %s (%s)\n", a.Theme.Success.Render("[OK]"), p.Label(), s.ActiveModel())
	a.reportDiscovery(ctx, p, args)
	return nil
}

// resolveProvider parses name, where "toggle" selects the provider that is
// not current.
func resolveProvider(name string, current config.Provider) (config.Provider, error) {
	if strings.EqualFold(strings.TrimSpace(name), "toggle") {
		return current.Other(), nil
	}
	return config.ParseProvider(name)
}

// reportDiscovery refreshes p's catalog and prints the outcome. Cloud
// discovery needs a credential.
func (a *App) reportDiscovery(ctx context.Context, p config.Provider, args Args) {
	if a.Discovery == nil || args.Quiet {
		return
	}
	if p == config.ProviderCloud && !a.Store.Current().HasCredential() {
		fmt.Fprintln(a.Err, a.Theme.Muted.Render("No Gemini API key set. Run: omnitool config set-key"))
		return
	}
	snap := a.Discovery.Refresh(ctx, p)
	fmt.Fprintf(a.Out, "%s  %s  (%d models)\n", a.Theme.ProviderBadge(p), a.Theme.RenderStatus(snap.Status), len(snap.Catalog))
}

// setKey stores the cloud credential. The key comes from the argument, a
// hidden prompt on a terminal, or the first line of stdin.
func (a *App) setKey(ctx context.Context, args Args) error {
	key := strings.TrimSpace(args.ConfigKey)
	if key == "" {
		var err error
		key, err = a.readKey()
		if err != nil {
			return NewCommandError("config", "read key", err)
		}
	}
	if key == "" {
		return ErrMissingArgument("API key", "omnitool config set-key [key]")
	}

	if err := a.update(func(s *config.Settings) { s.CloudCredential = key }); err != nil {
		return NewCommandError("config", "set-key", err)
	}
	a.Log.Printf("CREDENTIAL_SET | key=%s", cloud.KeyFingerprint(key))
	fmt.Fprintf(a.Out, "%s Gemini API key saved (%s)\n", a.Theme.Success.Render("[OK]"), maskCredential(key))
	a.reportDiscovery(ctx, config.ProviderCloud, args)
	return nil
}

func (a *App) readKey() (string, error) {
	if a.Interactive {
		fmt.Fprint(a.Err, "Gemini API key: ")
		key, err := readSecret()
		fmt.Fprintln(a.Err)
		return key, err
	}
	line, err := bufio.NewReader(io.LimitReader(a.In, 64*1024)).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// checkKey validates key, or the stored credential, against the cloud API.
func (a *App) checkKey(ctx context.Context, args Args) error {
	if a.Discovery == nil {
		return NewCommandError("config", "check-key", fmt.Errorf("credential validation is not available"))
	}
	key := strings.TrimSpace(args.ConfigKey)
	if key == "" {
		key = a.Store.Current().Credential()
	}
	if key == "" {
		return ErrMissingArgument("API key", "omnitool config check-key [key]")
	}

	valid, err := a.Discovery.ValidateCredential(ctx, key)
	if args.JSON {
		data := map[string]any{"valid": valid, "key_id": cloud.KeyFingerprint(key)}
		if err != nil {
			data["error"] = err.Error()
		}
		return writeJSON(a.Out, NewJSONResponse("config", data))
	}
	switch {
	case valid:
		fmt.Fprintf(a.Out, "%s API key is valid\n", a.Theme.Success.Render("[OK]"))
	case err != nil:
		fmt.Fprintf(a.Out, "%s %s (%v)\n", a.Theme.Error.Render("[X]"), discovery.CloudCredentialMessage, err)
	default:
		fmt.Fprintf(a.Out, "%s API key was rejected\n", a.Theme.Error.Render("[X]"))
	}
	return nil
}

func (a *App) configPaths(args Args) error {
	dir, _ := config.ConfigDir()
	tomlPath, _ := config.AppConfigPathTOML()
	settingsPath := a.SettingsPath
	if settingsPath == "" {
		settingsPath = "(memory)"
	}
	if args.JSON {
		return writeJSON(a.Out, NewJSONResponse("config", map[string]string{
			"config_dir":    dir,
			"config_file":   tomlPath,
			"settings_path": settingsPath,
		}))
	}
	keyValue(a.Out, a.Theme, [][2]string{
		{"Config dir", dir},
		{"Config file", tomlPath},
		{"Settings", settingsPath},
	})
	return nil
}

// initConfig writes the default operator config. An existing file is never
// overwritten.
func (a *App) initConfig(args Args) error {
	path, err := config.AppConfigPathTOML()
	if err != nil {
		return NewCommandError("config", "init", err)
	}
	if _, err := os.Stat(path); err == nil {
		return NewCommandError("config", "init", fmt.Errorf("%s already exists", path))
	}
	if err := config.SaveApp(config.DefaultApp(), path); err != nil {
		return NewCommandError("config", "init", err)
	}
	a.Log.Printf("CONFIG_INIT | path=%s", path)
	if !args.Quiet {
		fmt.Fprintf(a.Out, "%s Wrote %s\n", a.Theme.Success.Render("[OK]"), path)
	}
	return nil
}
