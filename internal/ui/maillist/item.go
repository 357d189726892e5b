package maillist

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/khsu/mailcat/internal/model"
	"github.com/khsu/mailcat/internal/theme"
)

// MessageItem wraps a cached message so it can be used in a bubbles/list.
type MessageItem struct {
	Row model.CachedMessage
}

// FilterValue returns the string used for fuzzy filtering. The list's
// own filtering is disabled; the search bar filters instead.
func (i MessageItem) FilterValue() string {
	return i.Row.FromAddr + " " + i.Row.Subject
}

// Title returns the message subject for the list.
func (i MessageItem) Title() string { return i.Row.Subject }

// Description returns a short summary line for the list.
func (i MessageItem) Description() string {
	return i.Row.FromAddr + " | " + i.Row.DateStr
}

// ItemDelegate implements list.ItemDelegate for rendering message rows.
type ItemDelegate struct {
	// fromWidth is the column width reserved for the sender.
	fromWidth int
}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused for now).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single message line: read marker, sender, subject,
// and date.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	msgItem, ok := item.(MessageItem)
	if !ok {
		return
	}

	row := msgItem.Row
	isSelected := index == m.Index()

	marker := "●"
	if row.Seen() {
		marker = " "
	}

	fromWidth := d.fromWidth
	if fromWidth <= 0 {
		fromWidth = 28
	}

	from := truncate(row.FromAddr, fromWidth)
	subject := row.Subject
	if subject == "" {
		subject = "(no subject)"
	}

	date := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Render(row.DateStr)

	line := fmt.Sprintf(
		"%s %-*s  %s  %s",
		marker, fromWidth, from, subject, date,
	)

	if row.Seen() {
		line = theme.SeenStyle.Render(line)
	} else {
		line = theme.UnreadStyle.Render(line)
	}

	if isSelected {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

// truncate shortens a string to at most n runes, with an ellipsis.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 1 {
		return string(runes[:n])
	}
	return string(runes[:n-1]) + "…"
}
