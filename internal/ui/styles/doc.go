// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the colors and Lip Gloss styles shared by the CLI and
the model picker.

All colors are lipgloss.AdaptiveColor values so they follow the terminal's
light or dark background. NewTheme detects the color profile with termenv;
NewPlainTheme renders undecorated text for pipes, --json output and tests.

# Provider colors

	Emerald - local provider (Ollama)
	Amber   - cloud provider (Gemini)

# Status indicators

Discovery states are rendered with a shape as well as a color so they stay
readable without color support:

	[OK] success   [X] error   [..] discovering   [ ] idle
*/
package styles
