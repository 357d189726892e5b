// Package compose is the mail composition form, used both for new
// messages and replies.
package compose

import (
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/khsu/mailcat/internal/decode"
	"github.com/khsu/mailcat/internal/smtp"
	"github.com/khsu/mailcat/internal/theme"
)

// SendRequestedMsg is dispatched when the user submits the form.
type SendRequestedMsg struct {
	Message smtp.OutgoingMessage
}

// CancelMsg is dispatched when the user cancels the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's
// Value() pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	to          string
	cc          string
	subject     string
	body        string
	attachments string
}

// Model is the Bubble Tea model for the compose form.
type Model struct {
	form      *huh.Form
	fb        *formBindings
	replyMode bool
	inReplyTo string
	width     int
	height    int
}

// New creates a new compose form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// StartCompose initializes the form for a new message.
func (m *Model) StartCompose() tea.Cmd {
	m.replyMode = false
	m.inReplyTo = ""
	m.fb.to = ""
	m.fb.cc = ""
	m.fb.subject = ""
	m.fb.body = ""
	m.fb.attachments = ""
	m.form = m.buildForm()
	return m.form.Init()
}

// StartReply initializes the form for replying to a decoded message.
// The sender becomes the recipient and the original body is quoted.
func (m *Model) StartReply(original *decode.Message) tea.Cmd {
	m.replyMode = true
	m.inReplyTo = original.MessageID
	m.fb.to = bareAddress(original.From)
	m.fb.cc = ""
	m.fb.subject = smtp.ReplySubject(original.Subject)
	m.fb.body = quoteBody(original)
	m.fb.attachments = ""
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the compose form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		return m, m.handleSubmit()
	}
	if m.form.State == huh.StateAborted {
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the compose form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleText := "New Message"
	if m.replyMode {
		titleText = "Reply"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render(titleText) + "\n" + m.form.View()

	return theme.BorderStyle.
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	fields := []huh.Field{
		huh.NewInput().
			Title("To").
			Placeholder("recipient@example.com, ...").
			Value(&m.fb.to).
			Validate(validateAddresses(true)),
		huh.NewInput().
			Title("Cc").
			Placeholder("optional").
			Value(&m.fb.cc).
			Validate(validateAddresses(false)),
		huh.NewInput().
			Title("Subject").
			Value(&m.fb.subject),
		huh.NewText().
			Title("Body").
			Value(&m.fb.body),
		huh.NewInput().
			Title("Attachments").
			Placeholder("paths, comma-separated (optional)").
			Value(&m.fb.attachments).
			Validate(validateAttachments),
	}

	return huh.NewForm(
		huh.NewGroup(fields...),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) handleSubmit() tea.Cmd {
	out := smtp.OutgoingMessage{
		To:        splitAddresses(m.fb.to),
		CC:        splitAddresses(m.fb.cc),
		Subject:   m.fb.subject,
		Body:      m.fb.body,
		InReplyTo: m.inReplyTo,
	}

	for _, path := range splitAddresses(m.fb.attachments) {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		out.Attachments = append(out.Attachments, smtp.Attachment{
			Filename: filepath.Base(path),
			Data:     data,
		})
	}

	return func() tea.Msg { return SendRequestedMsg{Message: out} }
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func (m Model) formHeight() int {
	h := m.height - 4
	if h < 10 {
		h = 10
	}
	return h
}

// splitAddresses breaks a comma-separated input into trimmed parts.
func splitAddresses(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// bareAddress extracts the address from a "Name <addr>" header value.
func bareAddress(from string) string {
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return from
	}
	return addr.Address
}

// quoteBody prefixes every line of the original text body with "> ".
func quoteBody(original *decode.Message) string {
	var b strings.Builder
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "On %s, %s wrote:\n", original.DateStr, original.From)
	for _, line := range strings.Split(original.Body(), "\n") {
		b.WriteString("> ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func validateAddresses(required bool) func(string) error {
	return func(s string) error {
		parts := splitAddresses(s)
		if len(parts) == 0 {
			if required {
				return fmt.Errorf("at least one recipient is required")
			}
			return nil
		}
		for _, p := range parts {
			if _, err := mail.ParseAddress(p); err != nil {
				return fmt.Errorf("invalid address %q", p)
			}
		}
		return nil
	}
}

func validateAttachments(s string) error {
	for _, path := range splitAddresses(s) {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("cannot read %s", path)
		}
	}
	return nil
}
