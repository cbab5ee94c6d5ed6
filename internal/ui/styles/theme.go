// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jeranaias/omnitool/internal/config"
	"github.com/jeranaias/omnitool/internal/discovery"
)

// Theme holds the styles shared by the CLI and the model picker.
// It detects the terminal's color capability on creation.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	// ==========================================================================
	// HEADER
	// ==========================================================================

	Title    lipgloss.Style
	Subtitle lipgloss.Style

	// ==========================================================================
	// CONVERSATION
	// ==========================================================================

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	FailedTurn     lipgloss.Style
	Prompt         lipgloss.Style

	// ==========================================================================
	// STATUS
	// ==========================================================================

	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style
	Muted   lipgloss.Style
	Spinner lipgloss.Style

	// ==========================================================================
	// TABLES AND LISTS
	// ==========================================================================

	TableHeader  lipgloss.Style
	Selected     lipgloss.Style
	SelectedDesc lipgloss.Style
	Key          lipgloss.Style
	Value        lipgloss.Style
	Box          lipgloss.Style
}

// NewTheme creates a theme for the current terminal.
func NewTheme() *Theme {
	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		ColorProfile: termenv.ColorProfile(),
	}
	t.initStyles()
	return t
}

// NewPlainTheme creates a theme that renders no color or decoration.
// Used for non-interactive output and tests.
func NewPlainTheme() *Theme {
	t := &Theme{IsDark: true, ColorProfile: termenv.Ascii}
	t.initPlain()
	return t
}

func (t *Theme) initStyles() {
	t.Title = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.Subtitle = lipgloss.NewStyle().Foreground(TextSecondary).Italic(true)

	t.UserLabel = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.AssistantLabel = lipgloss.NewStyle().Bold(true).Foreground(Purple)
	t.FailedTurn = lipgloss.NewStyle().Foreground(Rose)
	t.Prompt = lipgloss.NewStyle().Bold(true).Foreground(Cyan)

	t.Success = lipgloss.NewStyle().Foreground(Emerald)
	t.Error = lipgloss.NewStyle().Bold(true).Foreground(Rose)
	t.Warning = lipgloss.NewStyle().Foreground(Amber)
	t.Info = lipgloss.NewStyle().Foreground(Cyan)
	t.Muted = lipgloss.NewStyle().Foreground(TextMuted)
	t.Spinner = lipgloss.NewStyle().Foreground(Purple)

	t.TableHeader = lipgloss.NewStyle().Bold(true).Foreground(TextSecondary)
	t.Selected = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(Purple).
		PaddingLeft(1)
	t.SelectedDesc = t.Selected.Copy().Bold(false).Foreground(TextSecondary)
	t.Key = lipgloss.NewStyle().Foreground(TextSecondary)
	t.Value = lipgloss.NewStyle().Foreground(TextPrimary)
	t.Box = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)
}

func (t *Theme) initPlain() {
	plain := lipgloss.NewStyle()
	t.Title, t.Subtitle = plain, plain
	t.UserLabel, t.AssistantLabel, t.FailedTurn, t.Prompt = plain, plain, plain, plain
	t.Success, t.Error, t.Warning, t.Info, t.Muted, t.Spinner = plain, plain, plain, plain, plain, plain
	t.TableHeader, t.Key, t.Value, t.Box = plain, plain, plain, plain
	t.Selected = plain.Copy().PaddingLeft(2)
	t.SelectedDesc = t.Selected
}

// =============================================================================
// INDICATORS
// =============================================================================

// ProviderBadge renders the provider's backend label in its color.
func (t *Theme) ProviderBadge(p config.Provider) string {
	if t.ColorProfile == termenv.Ascii {
		return p.Label()
	}
	return lipgloss.NewStyle().Bold(true).Foreground(ProviderColor(p)).Render(p.Label())
}

// StatusIcon returns the shape indicator for a discovery state. Shapes
// carry the meaning without color.
func StatusIcon(s discovery.State) string {
	switch s {
	case discovery.Success:
		return "[OK]"
	case discovery.Error:
		return "[X]"
	case discovery.Discovering:
		return "[..]"
	}
	return "[ ]"
}

// RenderStatus renders a discovery status line.
func (t *Theme) RenderStatus(st discovery.Status) string {
	line := StatusIcon(st.State) + " " + st.State.String()
	if st.Message != "" {
		line += ": " + st.Message
	}
	switch st.State {
	case discovery.Success:
		return t.Success.Render(line)
	case discovery.Error:
		return t.Error.Render(line)
	case discovery.Discovering:
		return t.Info.Render(line)
	}
	return t.Muted.Render(line)
}
