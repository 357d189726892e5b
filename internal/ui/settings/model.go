// Package settings is the account and server configuration form.
package settings

import (
	"fmt"
	"net/mail"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/khsu/mailcat/internal/model"
	"github.com/khsu/mailcat/internal/theme"
)

// SavedMsg signals that the user submitted the form. The parent
// persists the config and rebuilds its mailbox and sender.
type SavedMsg struct {
	Config model.AppConfig
}

// CancelMsg signals the settings view should close without saving.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's
// Value() pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	email        string
	name         string
	password     string
	signature    string
	recvProtocol string

	smtpHost     string
	smtpPort     string
	smtpStartTLS bool
	smtpVerify   bool

	imapHost string
	imapPort string
	imapSSL  bool

	pop3Host string
	pop3Port string
	pop3SSL  bool
}

// Model is the Bubble Tea model for the settings form.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	base   model.AppConfig
	width  int
	height int
}

// New creates a new settings form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// Start initializes the form from the current config.
func (m *Model) Start(cfg model.AppConfig) tea.Cmd {
	m.base = cfg
	m.fb.email = cfg.Email
	m.fb.name = cfg.Name
	m.fb.password = cfg.Password
	m.fb.signature = cfg.Signature
	m.fb.recvProtocol = cfg.RecvProtocol
	m.fb.smtpHost = cfg.SMTP.Host
	m.fb.smtpPort = strconv.Itoa(cfg.SMTP.Port)
	m.fb.smtpStartTLS = cfg.SMTP.StartTLS
	m.fb.smtpVerify = cfg.SMTP.VerifySSL
	m.fb.imapHost = cfg.IMAP.Host
	m.fb.imapPort = strconv.Itoa(cfg.IMAP.Port)
	m.fb.imapSSL = cfg.IMAP.SSL
	m.fb.pop3Host = cfg.POP3.Host
	m.fb.pop3Port = strconv.Itoa(cfg.POP3.Port)
	m.fb.pop3SSL = cfg.POP3.SSL
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the settings form.
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

// View renders the settings form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render("Account Settings") + "\n" + m.form.View()

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
	account := huh.NewGroup(
		huh.NewInput().
			Title("Email").
			Placeholder("you@example.com").
			Value(&m.fb.email).
			Validate(validateEmail),
		huh.NewInput().
			Title("Display Name").
			Value(&m.fb.name),
		huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(&m.fb.password),
		huh.NewText().
			Title("Signature").
			Value(&m.fb.signature),
		huh.NewSelect[string]().
			Title("Receive Protocol").
			Options(
				huh.NewOption("POP3", model.ProtocolPOP3),
				huh.NewOption("IMAP", model.ProtocolIMAP),
			).
			Value(&m.fb.recvProtocol),
	)

	smtp := huh.NewGroup(
		huh.NewInput().
			Title("SMTP Host").
			Value(&m.fb.smtpHost).
			Validate(validateRequired("SMTP host")),
		huh.NewInput().
			Title("SMTP Port").
			Value(&m.fb.smtpPort).
			Validate(validatePort),
		huh.NewConfirm().
			Title("Use STARTTLS").
			Value(&m.fb.smtpStartTLS),
		huh.NewConfirm().
			Title("Verify TLS Certificates").
			Value(&m.fb.smtpVerify),
	)

	imap := huh.NewGroup(
		huh.NewInput().
			Title("IMAP Host").
			Value(&m.fb.imapHost).
			Validate(validateRequired("IMAP host")),
		huh.NewInput().
			Title("IMAP Port").
			Value(&m.fb.imapPort).
			Validate(validatePort),
		huh.NewConfirm().
			Title("IMAP over SSL").
			Value(&m.fb.imapSSL),
	)

	pop3 := huh.NewGroup(
		huh.NewInput().
			Title("POP3 Host").
			Value(&m.fb.pop3Host).
			Validate(validateRequired("POP3 host")),
		huh.NewInput().
			Title("POP3 Port").
			Value(&m.fb.pop3Port).
			Validate(validatePort),
		huh.NewConfirm().
			Title("POP3 over SSL").
			Value(&m.fb.pop3SSL),
	)

	return huh.NewForm(account, smtp, imap, pop3).
		WithWidth(m.formWidth()).
		WithHeight(m.formHeight())
}

func (m Model) handleSubmit() tea.Cmd {
	cfg := m.base
	cfg.Email = strings.TrimSpace(m.fb.email)
	cfg.Name = strings.TrimSpace(m.fb.name)
	cfg.Password = m.fb.password
	cfg.Signature = m.fb.signature
	cfg.RecvProtocol = m.fb.recvProtocol
	cfg.SMTP.Host = strings.TrimSpace(m.fb.smtpHost)
	cfg.SMTP.Port = mustPort(m.fb.smtpPort)
	cfg.SMTP.StartTLS = m.fb.smtpStartTLS
	cfg.SMTP.VerifySSL = m.fb.smtpVerify
	cfg.IMAP.Host = strings.TrimSpace(m.fb.imapHost)
	cfg.IMAP.Port = mustPort(m.fb.imapPort)
	cfg.IMAP.SSL = m.fb.imapSSL
	cfg.POP3.Host = strings.TrimSpace(m.fb.pop3Host)
	cfg.POP3.Port = mustPort(m.fb.pop3Port)
	cfg.POP3.SSL = m.fb.pop3SSL

	return func() tea.Msg { return SavedMsg{Config: cfg} }
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

// mustPort converts a validated port string. Validation ran in the
// form, so a parse failure here means zero, not a panic.
func mustPort(s string) int {
	p, _ := strconv.Atoi(strings.TrimSpace(s))
	return p
}

func validateEmail(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("email is required")
	}
	if _, err := mail.ParseAddress(s); err != nil {
		return fmt.Errorf("invalid email address")
	}
	return nil
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validatePort(s string) error {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("port must be 1-65535")
	}
	return nil
}
