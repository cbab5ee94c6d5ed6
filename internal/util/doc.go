// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the omnitool packages.
//
// # Key Functions
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync, used by the
//     settings file backend and the app config writer
//
// String Utilities:
//   - TruncateRunes: UTF-8 safe truncation with ellipsis
//   - TruncateWidth, PadRight: terminal-cell aware truncation and padding
//     for catalog tables
//
// # Usage
//
//	err := util.AtomicWriteFile(path, data, 0600)
//	row := util.PadRight(entry.Label, 32)
package util
