package detail

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/khsu/mailcat/internal/decode"
	"github.com/khsu/mailcat/internal/keys"
	"github.com/khsu/mailcat/internal/model"
	"github.com/khsu/mailcat/internal/theme"
)

// BackMsg signals the parent to navigate back to the list view.
type BackMsg struct{}

// ActionMsg signals the parent to execute an action on the current
// message.
type ActionMsg struct {
	Action string
	Row    model.CachedMessage
}

// Model is the message reading view component.
type Model struct {
	row      model.CachedMessage
	content  *decode.Message
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
	loading  bool
	hasMsg   bool
}

// New creates a new reading view model.
func New(keys *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     keys,
		width:    width,
		height:   height,
	}
}

// Init returns the initial command for the reading view.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the reading view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(keyMsg, m.keys.Back):
			return m, func() tea.Msg {
				return BackMsg{}
			}

		case key.Matches(keyMsg, m.keys.Reply):
			if m.hasMsg {
				return m, func() tea.Msg {
					return ActionMsg{Action: "reply", Row: m.row}
				}
			}

		case key.Matches(keyMsg, m.keys.Delete):
			if m.hasMsg {
				return m, func() tea.Msg {
					return ActionMsg{Action: "delete", Row: m.row}
				}
			}
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the reading view.
func (m Model) View() string {
	if m.loading {
		loadingStyle := lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray)
		return loadingStyle.Render("Loading message...")
	}

	if !m.hasMsg {
		emptyStyle := lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray)
		return emptyStyle.Render("No message selected")
	}

	return m.viewport.View()
}

// renderContent builds the full message content string for the viewport.
func (m Model) renderContent() string {
	if m.content == nil {
		return ""
	}

	msg := m.content
	var sections []string

	subject := msg.Subject
	if subject == "" {
		subject = "(no subject)"
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(subject))
	sections = append(sections, "")

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)

	if msg.From != "" {
		sections = append(sections, fmt.Sprintf(
			"%s  %s",
			metaStyle.Render("From:"),
			valStyle.Render(msg.From),
		))
	}
	if msg.To != "" {
		sections = append(sections, fmt.Sprintf(
			"%s    %s",
			metaStyle.Render("To:"),
			valStyle.Render(msg.To),
		))
	}
	if msg.DateStr != "" {
		sections = append(sections, fmt.Sprintf(
			"%s  %s",
			metaStyle.Render("Date:"),
			valStyle.Render(msg.DateStr),
		))
	}

	flags := m.row.Flags
	if flags != "" {
		var badges []string
		for _, f := range strings.Fields(flags) {
			badges = append(badges, theme.FlagStyle(f).Render(f))
		}
		sections = append(sections, lipgloss.JoinHorizontal(
			lipgloss.Top, badges...,
		))
	}

	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", min(m.width-4, 80)))
	sections = append(sections, "")
	sections = append(sections, separator)
	sections = append(sections, "")

	sections = append(sections, msg.Body())

	if len(msg.Attachments) > 0 {
		sections = append(sections, "")
		sections = append(sections, separator)
		sections = append(sections, "")

		attHeaderStyle := lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorWhite)
		sections = append(sections, attHeaderStyle.Render(
			fmt.Sprintf("Attachments (%d)", len(msg.Attachments)),
		))
		sections = append(sections, "")

		nameStyle := lipgloss.NewStyle().Foreground(theme.ColorBlue)
		sizeStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)

		for _, att := range msg.Attachments {
			sections = append(sections, fmt.Sprintf(
				"  %s  %s",
				nameStyle.Render(att.Filename),
				sizeStyle.Render(fmt.Sprintf(
					"%s, %d bytes", att.ContentType, len(att.Data),
				)),
			))
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetMessage updates the message being displayed and re-renders the
// content.
func (m *Model) SetMessage(row model.CachedMessage, content *decode.Message) {
	m.row = row
	m.content = content
	m.hasMsg = true
	m.loading = false
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// SetLoading sets the loading state.
func (m *Model) SetLoading(loading bool) {
	m.loading = loading
}

// SetSize updates the reading view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
}
