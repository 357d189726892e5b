package maillist

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/khsu/mailcat/internal/keys"
	"github.com/khsu/mailcat/internal/model"
	"github.com/khsu/mailcat/internal/theme"
	"github.com/khsu/mailcat/internal/view"
)

// SelectedMsg is sent when a user selects a message to read.
type SelectedMsg struct {
	Row model.CachedMessage
}

// Model is the message list view component. It owns the current cache
// rows and applies the live text filter over them.
type Model struct {
	list        list.Model
	keys        *keys.KeyMap
	rows        []model.CachedMessage
	filterText  string
	searchMode  bool
	searchInput textinput.Model
	width       int
	height      int
}

// New creates a new message list model.
func New(k *keys.KeyMap, width, height int) Model {
	delegate := ItemDelegate{}
	l := list.New([]list.Item{}, delegate, width, height-2)
	l.Title = "Inbox"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	si := textinput.New()
	si.Placeholder = "filter by sender or subject..."
	si.Prompt = "/ "
	si.Width = width - 4

	return Model{
		list:        l,
		keys:        k,
		searchInput: si,
		width:       width,
		height:      height,
	}
}

// Init satisfies tea.Model; the app pushes rows in via SetRows.
func (m Model) Init() tea.Cmd {
	return nil
}

// SetRows replaces the underlying rows and re-applies the filter.
func (m *Model) SetRows(rows []model.CachedMessage) tea.Cmd {
	m.rows = rows
	return m.applyFilter()
}

// Selected returns the currently focused row, if any.
func (m Model) Selected() (model.CachedMessage, bool) {
	item, ok := m.list.SelectedItem().(MessageItem)
	if !ok {
		return model.CachedMessage{}, false
	}
	return item.Row, true
}

// Update handles messages for the message list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		if m.searchMode {
			return m.handleSearchKeys(keyMsg)
		}
		return m.handleNormalKeys(keyMsg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// handleSearchKeys processes key input while the filter bar is focused.
// The filter applies live on every keystroke.
func (m Model) handleSearchKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchMode = false
		return m, nil

	case "esc":
		m.searchMode = false
		m.searchInput.Reset()
		m.filterText = ""
		return m, m.applyFilter()
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	m.filterText = m.searchInput.Value()
	return m, tea.Batch(cmd, m.applyFilter())
}

// handleNormalKeys processes key input in normal (non-search) mode.
func (m Model) handleNormalKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Select):
		item, ok := m.list.SelectedItem().(MessageItem)
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg {
			return SelectedMsg{Row: item.Row}
		}

	case key.Matches(msg, m.keys.Search):
		m.searchMode = true
		return m, m.searchInput.Focus()
	}

	// Delegate to the list for navigation keys (up/down/pgup/pgdn)
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// applyFilter rebuilds the visible items from the rows and filter.
func (m *Model) applyFilter() tea.Cmd {
	visible := view.Render(m.rows, m.filterText)
	items := make([]list.Item, len(visible))
	for i, row := range visible {
		items[i] = MessageItem{Row: row}
	}
	return m.list.SetItems(items)
}

// FilterText returns the active filter string.
func (m Model) FilterText() string {
	return m.filterText
}

// Searching reports whether the filter bar currently has focus.
func (m Model) Searching() bool {
	return m.searchMode
}

// View renders the message list view.
func (m Model) View() string {
	if m.searchMode || m.filterText != "" {
		searchBar := lipgloss.NewStyle().
			Foreground(theme.ColorWhite).
			Padding(0, 1).
			Render(m.searchInput.View())
		return lipgloss.JoinVertical(lipgloss.Left, searchBar, m.list.View())
	}

	if len(m.rows) == 0 {
		return m.renderEmptyState()
	}

	return m.list.View()
}

// renderEmptyState shows guidance text when the cache has no messages.
func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	return style.Render(
		"No messages cached.\n\n" +
			"Press r to fetch mail, or s to configure the account.",
	)
}

// StatusLine summarizes the list for the bottom status bar.
func (m Model) StatusLine() string {
	total := len(m.rows)
	shown := len(m.list.Items())
	if m.filterText == "" {
		return fmt.Sprintf("%d messages", total)
	}
	return fmt.Sprintf("%d/%d messages", shown, total)
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
	m.searchInput.Width = width - 4
}
