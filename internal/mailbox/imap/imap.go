// Package imap implements the mailbox contract over IMAP4 using
// go-imap v2. Identifiers are server-assigned UIDs, durable for a
// given folder across sessions.
package imap

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	goimap "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/khsu/mailcat/internal/mailbox"
	"github.com/khsu/mailcat/internal/model"
)

// Mailbox holds the connection settings for one IMAP account.
type Mailbox struct {
	host     string
	port     int
	ssl      bool
	account  string
	password string
}

// New creates an IMAP mailbox from server settings and credentials.
func New(cfg model.ServerConfig, account, password string) *Mailbox {
	return &Mailbox{
		host:     cfg.Host,
		port:     cfg.Port,
		ssl:      cfg.SSL,
		account:  account,
		password: password,
	}
}

// Protocol returns the protocol identifier for IMAP.
func (m *Mailbox) Protocol() mailbox.Protocol {
	return mailbox.ProtocolIMAP
}

// Connect dials the server (implicit TLS or STARTTLS per config) and
// authenticates. The caller owns the returned session and must close it
// on every path.
func (m *Mailbox) Connect(_ context.Context) (mailbox.Session, error) {
	addr := net.JoinHostPort(m.host, strconv.Itoa(m.port))

	var client *imapclient.Client
	var err error
	if m.ssl {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, &mailbox.ConnectError{
			Protocol: mailbox.ProtocolIMAP,
			Addr:     addr,
			Err:      err,
		}
	}

	if err := client.Login(m.account, m.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &mailbox.AuthError{
			Protocol: mailbox.ProtocolIMAP,
			Account:  m.account,
			Message:  err.Error(),
		}
	}

	return &session{client: client}, nil
}

// session is one authenticated IMAP connection.
type session struct {
	client   *imapclient.Client
	selected string
}

// selectFolder selects the given folder, falling back to INBOX when the
// folder does not exist on the server.
func (s *session) selectFolder(folder string) error {
	if s.selected == folder {
		return nil
	}
	if _, err := s.client.Select(folder, nil).Wait(); err != nil {
		if folder != "INBOX" {
			if _, inboxErr := s.client.Select("INBOX", nil).Wait(); inboxErr == nil {
				s.selected = "INBOX"
				return nil
			}
		}
		return fmt.Errorf("selecting folder %s: %w", folder, err)
	}
	s.selected = folder
	return nil
}

// ListUIDs searches the folder for all messages and returns the UIDs of
// the newest limit of them, oldest first. UID order follows arrival
// order within a folder, so the tail of the search result is the
// newest subset.
func (s *session) ListUIDs(
	_ context.Context, folder string, limit int,
) ([]string, error) {
	if err := s.selectFolder(folder); err != nil {
		return nil, err
	}

	searchData, err := s.client.UIDSearch(&goimap.SearchCriteria{}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}

	uids := searchData.AllUIDs()
	if limit > 0 && len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}

	out := make([]string, len(uids))
	for i, uid := range uids {
		out[i] = strconv.FormatUint(uint64(uid), 10)
	}
	return out, nil
}

// FetchBatch retrieves flags and full bodies for the given UIDs in a
// single round trip. A message that fails to collect is skipped; the
// rest of the batch is returned.
func (s *session) FetchBatch(
	_ context.Context, folder string, uids []string,
) ([]mailbox.FetchedMessage, error) {
	if err := s.selectFolder(folder); err != nil {
		return nil, err
	}
	if len(uids) == 0 {
		return nil, nil
	}

	nums := make([]goimap.UID, 0, len(uids))
	for _, uid := range uids {
		n, err := strconv.ParseUint(uid, 10, 32)
		if err != nil {
			// Not a server UID; nothing to fetch for it.
			continue
		}
		nums = append(nums, goimap.UID(n))
	}
	if len(nums) == 0 {
		return nil, nil
	}

	bodySection := &goimap.FetchItemBodySection{Peek: true}
	fetchOpts := &goimap.FetchOptions{
		Flags:       true,
		UID:         true,
		BodySection: []*goimap.FetchItemBodySection{bodySection},
	}

	fetchCmd := s.client.Fetch(goimap.UIDSetNum(nums...), fetchOpts)
	defer fetchCmd.Close()

	var msgs []mailbox.FetchedMessage
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			continue
		}

		raw := buf.FindBodySection(bodySection)
		if raw == nil {
			continue
		}

		flags := make([]string, 0, len(buf.Flags))
		for _, f := range buf.Flags {
			flags = append(flags, string(f))
		}

		msgs = append(msgs, mailbox.FetchedMessage{
			UID:   strconv.FormatUint(uint64(buf.UID), 10),
			Flags: strings.Join(flags, " "),
			Raw:   raw,
		})
	}

	if err := fetchCmd.Close(); err != nil {
		return msgs, fmt.Errorf("fetching messages: %w", err)
	}
	return msgs, nil
}

// Delete marks the message deleted and expunges the folder.
func (s *session) Delete(_ context.Context, folder, uid string) error {
	if err := s.selectFolder(folder); err != nil {
		return err
	}

	n, err := strconv.ParseUint(uid, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid IMAP uid %q: %w", uid, err)
	}
	uidSet := goimap.UIDSetNum(goimap.UID(n))

	storeCmd := s.client.Store(uidSet, &goimap.StoreFlags{
		Op:     goimap.StoreFlagsAdd,
		Silent: true,
		Flags:  []goimap.Flag{goimap.FlagDeleted},
	}, nil)
	if err := storeCmd.Close(); err != nil {
		return fmt.Errorf("marking message %s deleted: %w", uid, err)
	}

	if err := s.client.Expunge().Close(); err != nil {
		return fmt.Errorf("expunging folder %s: %w", folder, err)
	}
	return nil
}

// Close logs out of the server.
func (s *session) Close() error {
	return s.client.Logout().Wait()
}
