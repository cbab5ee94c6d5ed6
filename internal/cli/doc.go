// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the omnitool command line.
//
// # Commands
//
//   - chat: interactive conversation with the active provider (default)
//   - ask, vision: single-turn question or image analysis
//   - models: list, refresh and select models
//   - config: show and change settings, store the API key
//   - serve: run the proxy gateway for the browser client
//   - status, version, help
//
// Parse turns argv into a Command and Args. App.Run executes it. Handlers
// return errors; main prints them with DisplayError and exits with
// ExitCode.
//
// --local, --cloud and -m apply to one invocation only and are never
// written to the settings store.
package cli
