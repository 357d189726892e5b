package app

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/khsu/mailcat/internal/decode"
	"github.com/khsu/mailcat/internal/model"
	"github.com/khsu/mailcat/internal/smtp"
	"github.com/khsu/mailcat/internal/store"
	mailsync "github.com/khsu/mailcat/internal/sync"
	"github.com/khsu/mailcat/internal/theme"
	"github.com/khsu/mailcat/internal/ui"
	"github.com/khsu/mailcat/internal/ui/compose"
	"github.com/khsu/mailcat/internal/ui/detail"
	helpview "github.com/khsu/mailcat/internal/ui/help"
	"github.com/khsu/mailcat/internal/ui/maillist"
	settingsview "github.com/khsu/mailcat/internal/ui/settings"
	"github.com/khsu/mailcat/internal/view"
)

// inboxFolder is the only folder synced by the TUI for now.
const inboxFolder = "INBOX"

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewList ViewState = iota
	ViewDetail
	ViewCompose
	ViewSettings
	ViewHelp
)

// rowsLoadedMsg carries cache rows loaded outside a sync.
type rowsLoadedMsg struct {
	rows []model.CachedMessage
	err  error
}

// contentLoadedMsg carries a resolved message for the reading view.
type contentLoadedMsg struct {
	row     model.CachedMessage
	content *decode.Message
	err     error
}

// sendResultMsg carries the outcome of an SMTP send.
type sendResultMsg struct {
	err error
}

// configSavedMsg carries the outcome of persisting the config.
type configSavedMsg struct {
	cfg model.AppConfig
	err error
}

// Model is the root Bubble Tea model that manages view routing,
// layout, and access to the persistence layer.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	cfg          model.AppConfig
	cfgPath      string
	store        store.Store
	reconciler   *mailsync.Reconciler
	projector    *view.Projector
	keys         *KeyMap

	mailList     maillist.Model
	detail       detail.Model
	composeView  compose.Model
	settingsView settingsview.Model
	helpView     helpview.Model

	readingContent *decode.Message
	readingRow     model.CachedMessage

	ready      bool
	syncing    bool
	statusText string
	statusErr  bool
}

// New creates a new root application model.
func New(cfg model.AppConfig, cfgPath string, s store.Store) Model {
	keys := DefaultKeyMap()

	return Model{
		currentView:  ViewList,
		cfg:          cfg,
		cfgPath:      cfgPath,
		store:        s,
		reconciler:   mailsync.New(s),
		projector:    view.New(s),
		keys:         keys,
		mailList:     maillist.New(keys, 80, 24),
		detail:       detail.New(keys, 80, 24),
		composeView:  compose.New(80, 24),
		settingsView: settingsview.New(80, 24),
		helpView:     helpview.New(keys, 80, 24),
	}
}

// Init loads the cached rows and, on first run, opens the settings
// form instead of an empty list.
func (m Model) Init() tea.Cmd {
	if m.cfg.Email == "" {
		return nil
	}
	return m.loadRows()
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		firstSize := !m.ready
		m.ready = true
		contentWidth := m.layout.ContentWidth()
		contentHeight := m.layout.ContentHeight()
		m.mailList.SetSize(contentWidth, contentHeight)
		m.detail.SetSize(contentWidth, contentHeight)
		m.composeView.SetSize(contentWidth, contentHeight)
		m.settingsView.SetSize(contentWidth, contentHeight)
		m.helpView.SetSize(contentWidth, contentHeight)
		if firstSize && m.cfg.Email == "" {
			m.currentView = ViewSettings
			return m, m.settingsView.Start(m.cfg)
		}
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case rowsLoadedMsg:
		if msg.err != nil {
			m.statusText = fmt.Sprintf("cache error: %v", msg.err)
			m.statusErr = true
			return m, nil
		}
		return m, m.mailList.SetRows(msg.rows)

	case mailsync.ResultMsg:
		m.syncing = false
		if msg.Err != nil {
			m.statusText = msg.FailureText()
			m.statusErr = true
			return m, nil
		}
		m.statusErr = false
		if msg.Skipped > 0 {
			m.statusText = fmt.Sprintf(
				"fetched %d new messages (%d skipped)",
				msg.Fetched, msg.Skipped,
			)
		} else {
			m.statusText = fmt.Sprintf("fetched %d new messages", msg.Fetched)
		}
		return m, m.mailList.SetRows(msg.Messages)

	case mailsync.DeleteResultMsg:
		if msg.Err != nil {
			m.statusText = fmt.Sprintf("delete failed: %v", msg.Err)
			m.statusErr = true
			return m, nil
		}
		m.projector.Forget(msg.Account, msg.Folder, msg.UID)
		m.statusText = "message deleted"
		m.statusErr = false
		if m.currentView == ViewDetail {
			m.currentView = ViewList
		}
		return m, m.mailList.SetRows(msg.Messages)

	case maillist.SelectedMsg:
		m.previousView = m.currentView
		m.currentView = ViewDetail
		m.detail.SetLoading(true)
		return m, m.loadContent(msg.Row)

	case contentLoadedMsg:
		m.detail.SetLoading(false)
		if msg.err != nil {
			m.statusText = fmt.Sprintf("decode error: %v", msg.err)
			m.statusErr = true
			m.currentView = ViewList
			return m, nil
		}
		m.readingRow = msg.row
		m.readingContent = msg.content
		m.detail.SetMessage(msg.row, msg.content)
		return m, nil

	case detail.BackMsg:
		m.currentView = ViewList
		return m, nil

	case detail.ActionMsg:
		switch msg.Action {
		case "reply":
			if m.readingContent == nil || view.NotCached(m.readingContent) {
				m.statusText = "cannot reply: content not cached"
				m.statusErr = true
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewCompose
			return m, m.composeView.StartReply(m.readingContent)

		case "delete":
			m.statusText = "deleting..."
			m.statusErr = false
			return m, m.reconciler.Delete(
				m.buildMailbox(), m.cfg.Email, inboxFolder, msg.Row.UID,
			)
		}
		return m, nil

	case compose.SendRequestedMsg:
		m.currentView = ViewList
		m.statusText = "sending..."
		m.statusErr = false
		return m, m.sendMessage(msg.Message)

	case compose.CancelMsg:
		m.currentView = m.previousView
		return m, nil

	case sendResultMsg:
		if msg.err != nil {
			m.statusText = fmt.Sprintf("send failed: %v", msg.err)
			m.statusErr = true
		} else {
			m.statusText = "message sent"
			m.statusErr = false
		}
		return m, nil

	case settingsview.SavedMsg:
		return m, saveConfig(m.cfgPath, msg.Config)

	case settingsview.CancelMsg:
		if m.cfg.Email == "" {
			return m, tea.Quit
		}
		m.currentView = ViewList
		return m, nil

	case configSavedMsg:
		if msg.err != nil {
			m.statusText = fmt.Sprintf("saving config: %v", msg.err)
			m.statusErr = true
			return m, nil
		}
		m.cfg = msg.cfg
		m.currentView = ViewList
		m.statusText = "settings saved"
		m.statusErr = false
		return m, tea.Batch(m.loadRows(), m.startSync())

	case tea.KeyMsg:
		// Global keys that work regardless of current view
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.currentView == ViewList && !m.mailList.Searching() {
				return m, tea.Quit
			}

		case "esc":
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}

		case "?":
			if m.formHasFocus() || m.mailList.Searching() {
				break
			}
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewHelp
			return m, nil

		case "r":
			if m.currentView == ViewList && !m.mailList.Searching() {
				return m, m.startSync()
			}

		case "c":
			if m.currentView == ViewList && !m.mailList.Searching() {
				m.previousView = m.currentView
				m.currentView = ViewCompose
				return m, m.composeView.StartCompose()
			}

		case "a":
			if m.currentView == ViewList && !m.mailList.Searching() {
				if row, ok := m.mailList.Selected(); ok {
					m.previousView = m.currentView
					m.currentView = ViewDetail
					m.detail.SetLoading(true)
					return m, m.loadContent(row)
				}
			}

		case "d":
			if m.currentView == ViewList && !m.mailList.Searching() {
				if row, ok := m.mailList.Selected(); ok {
					m.statusText = "deleting..."
					m.statusErr = false
					return m, m.reconciler.Delete(
						m.buildMailbox(), m.cfg.Email, inboxFolder, row.UID,
					)
				}
			}

		case "s":
			if m.currentView == ViewList && !m.mailList.Searching() {
				m.previousView = m.currentView
				m.currentView = ViewSettings
				return m, m.settingsView.Start(m.cfg)
			}
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// formHasFocus reports whether a text-entry view is active, so global
// shortcuts must not swallow typed characters.
func (m Model) formHasFocus() bool {
	return m.currentView == ViewCompose || m.currentView == ViewSettings
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewList:
		m.mailList, cmd = m.mailList.Update(msg)
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewCompose:
		m.composeView, cmd = m.composeView.Update(msg)
	case ViewSettings:
		m.settingsView, cmd = m.settingsView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	headerTitle := "mailcat"
	if m.cfg.Email != "" {
		headerTitle = "mailcat " + m.cfg.Email
	}
	header := m.layout.RenderHeader(headerTitle, m.syncStatus())
	content := m.renderContent()
	statusBar := m.layout.RenderStatusBar(m.statusLine())

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewList:
		return m.mailList.View()
	case ViewDetail:
		return m.detail.View()
	case ViewCompose:
		return m.composeView.View()
	case ViewSettings:
		return m.settingsView.View()
	case ViewHelp:
		return m.helpView.View()
	default:
		return ""
	}
}

// syncStatus returns a short string describing the sync state.
func (m Model) syncStatus() string {
	if m.syncing {
		return "fetching..."
	}
	return m.cfg.RecvProtocol
}

// statusLine returns the bottom status bar content: a recent outcome
// when one is pending, otherwise keyboard hints.
func (m Model) statusLine() string {
	if m.statusText != "" &&
		(m.currentView == ViewList || m.statusErr) {
		if m.statusErr {
			return theme.ErrorStyle.Render(m.statusText)
		}
		return theme.SuccessStyle.Render(m.statusText)
	}

	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewDetail:
		return "esc back | a reply | d delete | j/k scroll"
	case ViewCompose, ViewSettings:
		return "enter next | esc cancel"
	default:
		return fmt.Sprintf(
			"%s | q quit | ? help | r fetch | / filter | c compose",
			m.mailList.StatusLine(),
		)
	}
}

// loadRows reads the cached rows for the account inbox.
func (m Model) loadRows() tea.Cmd {
	s := m.store
	account := m.cfg.Email
	return func() tea.Msg {
		rows, err := s.LoadList(context.Background(), account, inboxFolder)
		return rowsLoadedMsg{rows: rows, err: err}
	}
}

// loadContent resolves a row to its decoded content in the background.
func (m Model) loadContent(row model.CachedMessage) tea.Cmd {
	p := m.projector
	return func() tea.Msg {
		content, err := p.Resolve(
			context.Background(), row.Account, row.Folder, row.UID,
		)
		return contentLoadedMsg{row: row, content: content, err: err}
	}
}

// startSync kicks off a reconciliation against the configured server.
func (m *Model) startSync() tea.Cmd {
	m.syncing = true
	m.statusText = ""
	return m.reconciler.Sync(m.buildMailbox(), m.cfg.Email, inboxFolder)
}

// sendMessage delivers a composed message in the background.
func (m Model) sendMessage(out smtp.OutgoingMessage) tea.Cmd {
	sender := smtp.New(
		m.cfg.SMTP, m.cfg.Name, m.cfg.Email,
		m.cfg.Password, m.cfg.Signature,
	)
	return func() tea.Msg {
		return sendResultMsg{err: sender.Send(context.Background(), out)}
	}
}

// saveConfig persists the config in the background.
func saveConfig(path string, cfg model.AppConfig) tea.Cmd {
	return func() tea.Msg {
		if err := model.SaveConfig(path, &cfg); err != nil {
			return configSavedMsg{err: err}
		}
		return configSavedMsg{cfg: cfg}
	}
}
