// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config holds omnitool's two layers of configuration.
//
// # Key Types
//
//   - Settings: the user's provider choice, endpoints, models and credential
//   - Store: owns the current Settings, persists it, notifies subscribers
//   - AppConfig: operator settings (storage backend, gateway, logging)
//   - Watcher: reloads a Store when its settings file changes on disk
//
// # Configuration Precedence
//
// AppConfig is loaded from (in order of precedence):
//   - Environment variables (OMNITOOL_*, PORT, OLLAMA_HOST)
//   - ~/.omnitool/config.toml
//   - ~/.omnitool/config.json
//   - Built-in defaults
//
// Settings are read from the storage backend under the "appSettings" key.
// A missing or corrupt record falls back to DefaultSettings.
//
// # Usage
//
//	kv, _ := storage.Open(storage.BackendFile, path)
//	store := config.NewStore(kv)
//	cancel := store.Subscribe(func(prev, next config.Settings) {
//	    // react to provider or credential changes
//	})
//	defer cancel()
//
//	next := store.Current()
//	next.ActiveProvider = config.ProviderLocal
//	if err := store.Update(next); err != nil && !config.IsPersistError(err) {
//	    return err
//	}
package config
