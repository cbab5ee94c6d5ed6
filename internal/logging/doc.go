// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging sets up the process logger.
//
// Lines use the EVENT | key=value format, for example:
//
//	ROUTING | kind=chat provider=local model=llama3
//
// A configured log file is rotated by size.
package logging
