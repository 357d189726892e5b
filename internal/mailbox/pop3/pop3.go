// Package pop3 implements the mailbox contract over POP3 using
// knadh/go-pop3. POP3 has no durable server identifier, so uids are
// synthesized: the UIDL value when the server supports it, otherwise
// the positional sequence number. The sequence-number fallback is not
// stable when another client deletes messages between sessions; that
// is a known limitation of the protocol, not corrected here.
package pop3

import (
	"context"
	"fmt"
	"strconv"

	gopop3 "github.com/knadh/go-pop3"

	"github.com/khsu/mailcat/internal/mailbox"
	"github.com/khsu/mailcat/internal/model"
)

// Mailbox holds the connection settings for one POP3 account.
type Mailbox struct {
	client   *gopop3.Client
	addr     string
	account  string
	password string
}

// New creates a POP3 mailbox from server settings and credentials.
func New(cfg model.ServerConfig, account, password string) *Mailbox {
	return &Mailbox{
		client: gopop3.New(gopop3.Opt{
			Host:       cfg.Host,
			Port:       cfg.Port,
			TLSEnabled: cfg.SSL,
		}),
		addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		account:  account,
		password: password,
	}
}

// Protocol returns the protocol identifier for POP3.
func (m *Mailbox) Protocol() mailbox.Protocol {
	return mailbox.ProtocolPOP3
}

// Connect dials the server and authenticates with USER/PASS.
func (m *Mailbox) Connect(_ context.Context) (mailbox.Session, error) {
	conn, err := m.client.NewConn()
	if err != nil {
		return nil, &mailbox.ConnectError{
			Protocol: mailbox.ProtocolPOP3,
			Addr:     m.addr,
			Err:      err,
		}
	}

	if err := conn.Auth(m.account, m.password); err != nil {
		_ = conn.Quit()
		return nil, &mailbox.AuthError{
			Protocol: mailbox.ProtocolPOP3,
			Account:  m.account,
			Message:  err.Error(),
		}
	}

	return &session{conn: conn, uidToSeq: make(map[string]int)}, nil
}

// session is one authenticated POP3 connection. The uid-to-sequence
// mapping built by ListUIDs is only valid within this session; POP3
// sequence numbers are reassigned on every connection.
type session struct {
	conn     *gopop3.Conn
	uidToSeq map[string]int
}

// ListUIDs lists the newest limit messages, oldest first. The folder
// argument is ignored: POP3 exposes a single mailbox. UIDL output is
// preferred for identifiers; servers without UIDL fall back to the
// sequence number.
func (s *session) ListUIDs(
	_ context.Context, _ string, limit int,
) ([]string, error) {
	count, _, err := s.conn.Stat()
	if err != nil {
		return nil, fmt.Errorf("querying mailbox size: %w", err)
	}
	if count == 0 {
		return nil, nil
	}

	var uids []string
	if ids, uidlErr := s.conn.Uidl(0); uidlErr == nil {
		uids = make([]string, 0, len(ids))
		for _, id := range ids {
			s.uidToSeq[id.UID] = id.ID
			uids = append(uids, id.UID)
		}
	} else {
		uids = make([]string, 0, count)
		for seq := 1; seq <= count; seq++ {
			uid := strconv.Itoa(seq)
			s.uidToSeq[uid] = seq
			uids = append(uids, uid)
		}
	}

	if limit > 0 && len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}
	return uids, nil
}

// FetchBatch retrieves the given messages one RETR round trip each;
// POP3 has no batched fetch and no flags. A message that fails to
// retrieve is skipped without failing the batch.
func (s *session) FetchBatch(
	_ context.Context, _ string, uids []string,
) ([]mailbox.FetchedMessage, error) {
	var msgs []mailbox.FetchedMessage
	for _, uid := range uids {
		seq, ok := s.seqFor(uid)
		if !ok {
			continue
		}

		buf, err := s.conn.RetrRaw(seq)
		if err != nil {
			continue
		}

		msgs = append(msgs, mailbox.FetchedMessage{
			UID: uid,
			Raw: buf.Bytes(),
		})
	}
	return msgs, nil
}

// Delete issues DELE for the message. The deletion is finalized by the
// QUIT in Close.
func (s *session) Delete(_ context.Context, _ string, uid string) error {
	seq, ok := s.seqFor(uid)
	if !ok {
		return fmt.Errorf("unknown POP3 message %q in this session", uid)
	}
	if err := s.conn.Dele(seq); err != nil {
		return fmt.Errorf("deleting message %s: %w", uid, err)
	}
	return nil
}

// Close ends the session with QUIT, committing any pending deletions.
func (s *session) Close() error {
	return s.conn.Quit()
}

// seqFor resolves a synthesized uid to this session's sequence number,
// accepting bare sequence numbers for servers without UIDL.
func (s *session) seqFor(uid string) (int, bool) {
	if seq, ok := s.uidToSeq[uid]; ok {
		return seq, true
	}
	seq, err := strconv.Atoi(uid)
	if err != nil || seq < 1 {
		return 0, false
	}
	return seq, true
}
