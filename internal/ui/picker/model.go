// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package picker

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/omnitool/internal/config"
	"github.com/jeranaias/omnitool/internal/discovery"
	"github.com/jeranaias/omnitool/internal/provider"
	"github.com/jeranaias/omnitool/internal/ui/styles"
)

// Default list dimensions before the first WindowSizeMsg.
const (
	defaultWidth  = 80
	defaultHeight = 20
	footerHeight  = 2
)

// Refresher rediscovers the provider's catalog.
type Refresher func(ctx context.Context) discovery.Snapshot

// =============================================================================
// LIST ITEMS
// =============================================================================

// item adapts a catalog entry to list.DefaultItem.
type item struct {
	entry   provider.ModelEntry
	current bool
}

func (i item) Title() string {
	title := i.entry.Label
	if title == "" {
		title = i.entry.ID
	}
	if i.current {
		title += " (current)"
	}
	return title
}

func (i item) Description() string {
	parts := []string{i.entry.ID}
	if i.entry.SizeHint != "" {
		parts = append(parts, i.entry.SizeHint)
	}
	if i.entry.Description != "" {
		parts = append(parts, i.entry.Description)
	}
	return strings.Join(parts, " · ")
}

func (i item) FilterValue() string {
	return i.entry.ID + " " + i.entry.Label
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the picker's Bubble Tea model.
type Model struct {
	ctx       context.Context
	theme     *styles.Theme
	provider  config.Provider
	current   string
	refresher Refresher
	autoLoad  bool

	list    list.Model
	spinner spinner.Model
	status  discovery.Status
	loading bool

	result Result
	done   bool
}

// Option configures a Model.
type Option func(*Model)

// WithRefresher enables the refresh key. With autoLoad the catalog is
// refreshed on start when it was never fetched.
func WithRefresher(fn Refresher, autoLoad bool) Option {
	return func(m *Model) {
		m.refresher = fn
		m.autoLoad = autoLoad
	}
}

// WithContext sets the context passed to the refresher.
func WithContext(ctx context.Context) Option {
	return func(m *Model) {
		if ctx != nil {
			m.ctx = ctx
		}
	}
}

// New creates a picker over snap's catalog with current highlighted.
func New(theme *styles.Theme, snap discovery.Snapshot, current string, opts ...Option) Model {
	if theme == nil {
		theme = styles.NewPlainTheme()
	}

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = theme.Selected
	delegate.Styles.SelectedDesc = theme.SelectedDesc

	l := list.New(nil, delegate, defaultWidth, defaultHeight-footerHeight)
	l.Title = snap.Provider.Label() + " models"
	l.Styles.Title = theme.Title
	l.SetStatusBarItemName("model", "models")
	l.SetShowHelp(false)

	sp := spinner.New(spinner.WithSpinner(spinner.Line), spinner.WithStyle(theme.Spinner))

	m := Model{
		ctx:      context.Background(),
		theme:    theme,
		provider: snap.Provider,
		current:  current,
		list:     l,
		spinner:  sp,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.apply(snap)
	m.loading = m.refresher != nil && m.autoLoad && !snap.Fetched
	return m
}

// apply replaces the list items and status with snap's.
func (m *Model) apply(snap discovery.Snapshot) tea.Cmd {
	m.status = snap.Status

	items := make([]list.Item, 0, len(snap.Catalog))
	selected := 0
	for i, e := range snap.Catalog {
		isCurrent := e.ID == m.current
		if isCurrent {
			selected = i
		}
		items = append(items, item{entry: e, current: isCurrent})
	}
	cmd := m.list.SetItems(items)
	if len(items) > 0 {
		m.list.Select(selected)
	}
	return cmd
}

// Result returns the outcome after the program has quit.
func (m Model) Result() Result {
	return m.result
}

// Loading reports whether a refresh is in flight.
func (m Model) Loading() bool {
	return m.loading
}

// Status returns the discovery status shown in the footer.
func (m Model) Status() discovery.Status {
	return m.status
}

// Len returns the number of catalog entries shown.
func (m Model) Len() int {
	return len(m.list.Items())
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init starts the initial refresh when one is due.
func (m Model) Init() tea.Cmd {
	if m.loading {
		return tea.Batch(m.spinner.Tick, m.refresh())
	}
	return nil
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, max(1, msg.Height-footerHeight))
		return m, nil

	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "enter":
			if it, ok := m.list.SelectedItem().(item); ok {
				m.result = Result{ModelID: it.entry.ID, Selected: true}
				m.done = true
				return m, tea.Quit
			}
			return m, nil
		case "esc", "q", "ctrl+c":
			if m.list.FilterState() == list.FilterApplied && msg.String() == "esc" {
				break
			}
			m.result = Result{}
			m.done = true
			return m, tea.Quit
		case "r":
			if m.refresher != nil && !m.loading {
				m.loading = true
				m.status = discovery.Status{State: discovery.Discovering}
				return m, tea.Batch(m.spinner.Tick, m.refresh())
			}
			return m, nil
		}

	case RefreshedMsg:
		m.loading = false
		return m, m.apply(msg.Snapshot)

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the list and the status footer.
func (m Model) View() string {
	if m.done {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.list.View())
	b.WriteString("\n")
	if m.loading {
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
		b.WriteString(m.theme.Info.Render("Discovering " + m.provider.Label() + " models..."))
	} else {
		b.WriteString(m.theme.RenderStatus(m.status))
	}
	b.WriteString("\n")
	b.WriteString(m.theme.Muted.Render(m.hint()))
	return b.String()
}

func (m Model) hint() string {
	if m.refresher != nil {
		return "enter select · r refresh · / filter · esc cancel"
	}
	return "enter select · / filter · esc cancel"
}

// refresh returns a command that runs the refresher.
func (m Model) refresh() tea.Cmd {
	fn, ctx := m.refresher, m.ctx
	return func() tea.Msg {
		return RefreshedMsg{Snapshot: fn(ctx)}
	}
}

// =============================================================================
// PROGRAM
// =============================================================================

// Run shows the picker until the user selects, cancels, or ctx is done.
func Run(ctx context.Context, m Model, opts ...tea.ProgramOption) (Result, error) {
	m.ctx = ctx
	p := tea.NewProgram(m, opts...)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			p.Quit()
		case <-stop:
		}
	}()

	final, err := p.Run()
	if err != nil {
		return Result{}, err
	}
	if fm, ok := final.(Model); ok {
		return fm.Result(), nil
	}
	return Result{}, nil
}
