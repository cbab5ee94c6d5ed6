// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"

	"github.com/muesli/termenv"

	"github.com/jeranaias/omnitool/internal/config"
	"github.com/jeranaias/omnitool/internal/discovery"
)

// =============================================================================
// THEME CREATION TESTS
// =============================================================================

func TestNewTheme(t *testing.T) {
	theme := NewTheme()
	if theme == nil {
		t.Fatal("NewTheme() returned nil")
	}
	if got := theme.Title.Render("test"); !strings.Contains(got, "test") {
		t.Errorf("Title.Render() = %q, want it to contain the text", got)
	}
}

func TestNewPlainTheme(t *testing.T) {
	theme := NewPlainTheme()
	if theme.ColorProfile != termenv.Ascii {
		t.Errorf("ColorProfile = %v, want Ascii", theme.ColorProfile)
	}
	if got := theme.Error.Render("boom"); got != "boom" {
		t.Errorf("plain Error.Render() = %q, want %q", got, "boom")
	}
	if got := theme.ProviderBadge(config.ProviderLocal); got != "Ollama" {
		t.Errorf("ProviderBadge(local) = %q", got)
	}
}

// =============================================================================
// INDICATOR TESTS
// =============================================================================

func TestProviderColor(t *testing.T) {
	if ProviderColor(config.ProviderLocal) != Emerald {
		t.Error("local provider should be emerald")
	}
	if ProviderColor(config.ProviderCloud) != Amber {
		t.Error("cloud provider should be amber")
	}
}

func TestStatusIcon(t *testing.T) {
	tests := []struct {
		state discovery.State
		want  string
	}{
		{discovery.Idle, "[ ]"},
		{discovery.Discovering, "[..]"},
		{discovery.Success, "[OK]"},
		{discovery.Error, "[X]"},
	}
	for _, tt := range tests {
		if got := StatusIcon(tt.state); got != tt.want {
			t.Errorf("StatusIcon(%v) = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestRenderStatus(t *testing.T) {
	theme := NewPlainTheme()

	got := theme.RenderStatus(discovery.Status{State: discovery.Error, Message: discovery.LocalUnreachableMessage})
	want := "[X] error: " + discovery.LocalUnreachableMessage
	if got != want {
		t.Errorf("RenderStatus() = %q, want %q", got, want)
	}

	if got := theme.RenderStatus(discovery.Status{State: discovery.Success}); got != "[OK] success" {
		t.Errorf("RenderStatus(success) = %q", got)
	}
}
