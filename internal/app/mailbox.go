package app

import (
	"github.com/khsu/mailcat/internal/mailbox"
	imapbox "github.com/khsu/mailcat/internal/mailbox/imap"
	pop3box "github.com/khsu/mailcat/internal/mailbox/pop3"
	"github.com/khsu/mailcat/internal/model"
)

// buildMailbox constructs the receive adapter for the configured
// protocol. A fresh adapter per operation keeps connection state out
// of the UI model.
func (m Model) buildMailbox() mailbox.Mailbox {
	return BuildMailbox(m.cfg)
}

// BuildMailbox selects the IMAP or POP3 adapter based on the config.
// Unknown values fall back to POP3, matching the config default.
func BuildMailbox(cfg model.AppConfig) mailbox.Mailbox {
	if cfg.RecvProtocol == model.ProtocolIMAP {
		return imapbox.New(cfg.IMAP, cfg.Email, cfg.Password)
	}
	return pop3box.New(cfg.POP3, cfg.Email, cfg.Password)
}
