// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - Output styling for omnitool commands.
//
// Styles come from the shared ui/styles theme. When colors are disabled
// every style renders plain text and markdown is printed verbatim.

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jeranaias/omnitool/internal/ui/styles"
	"github.com/jeranaias/omnitool/internal/util"
)

// DetectTheme configures lipgloss for the terminal and returns the theme
// to render with.
func DetectTheme() *styles.Theme {
	profile := GetColorProfile()
	lipgloss.SetColorProfile(profile)
	if profile == termenv.Ascii {
		return styles.NewPlainTheme()
	}
	return styles.NewTheme()
}

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// MarkdownRenderer renders answers for the terminal.
type MarkdownRenderer struct {
	term *glamour.TermRenderer
}

// NewMarkdownRenderer creates a renderer wrapping at width. With enabled
// false, or if glamour cannot initialise, content is returned unchanged.
func NewMarkdownRenderer(enabled bool, width int) *MarkdownRenderer {
	if !enabled {
		return &MarkdownRenderer{}
	}
	tr, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return &MarkdownRenderer{}
	}
	return &MarkdownRenderer{term: tr}
}

// Render returns content formatted for display.
func (r *MarkdownRenderer) Render(content string) string {
	if r == nil || r.term == nil {
		return content
	}
	out, err := r.term.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(out, "\n")
}

// =============================================================================
// TABLES
// =============================================================================

// table renders aligned columns. Cell widths are measured in display cells
// so wide model names stay aligned.
type table struct {
	headers []string
	rows    [][]string
	maxCol  int
}

func newTable(headers ...string) *table {
	return &table{headers: headers, maxCol: 48}
}

func (t *table) add(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *table) widths() []int {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = util.StringWidth(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], min(util.StringWidth(cell), t.maxCol))
			}
		}
	}
	return widths
}

func (t *table) render(w io.Writer, theme *styles.Theme) {
	widths := t.widths()
	line := func(cells []string) string {
		parts := make([]string, len(widths))
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			if i == len(widths)-1 {
				parts[i] = util.TruncateWidth(cell, t.maxCol)
			} else {
				parts[i] = util.PadRight(cell, widths[i])
			}
		}
		return strings.TrimRight(strings.Join(parts, "  "), " ")
	}

	fmt.Fprintln(w, theme.TableHeader.Render(line(t.headers)))
	for _, row := range t.rows {
		fmt.Fprintln(w, line(row))
	}
}

// keyValue renders "label: value" lines with aligned labels.
func keyValue(w io.Writer, theme *styles.Theme, pairs [][2]string) {
	width := 0
	for _, p := range pairs {
		width = max(width, util.StringWidth(p[0]))
	}
	for _, p := range pairs {
		fmt.Fprintf(w, "%s  %s\n", theme.Key.Render(util.PadRight(p[0], width)), theme.Value.Render(p[1]))
	}
}
