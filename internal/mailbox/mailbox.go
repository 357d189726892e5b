// Package mailbox defines the protocol-agnostic contract for remote
// mailboxes. Two implementations exist, IMAP and POP3; callers never
// branch on which one they hold.
package mailbox

import (
	"context"
	"errors"
	"fmt"
)

// Protocol identifies the kind of remote mailbox.
type Protocol string

const (
	ProtocolIMAP Protocol = "imap"
	ProtocolPOP3 Protocol = "pop3"
)

// AuthError indicates the remote server rejected the credentials.
type AuthError struct {
	Protocol Protocol
	Account  string
	Message  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s, %s): %s", e.Protocol, e.Account, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// ConnectError indicates the remote server could not be reached or did
// not respond.
type ConnectError struct {
	Protocol Protocol
	Addr     string
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect error (%s, %s): %v", e.Protocol, e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// IsConnectError reports whether err (or any error in its chain) is a
// ConnectError.
func IsConnectError(err error) bool {
	var connErr *ConnectError
	return errors.As(err, &connErr)
}

// FetchedMessage is one message pulled from the remote server. UID is
// already in the synthesized identifier space: the server UID for IMAP,
// the UIDL value or sequence number for POP3. Flags is empty when the
// protocol carries no flag information.
type FetchedMessage struct {
	UID   string
	Flags string
	Raw   []byte
}

// Session is an authenticated connection to one remote mailbox. A
// session is never shared across goroutines; each sync creates, uses,
// and tears down its own.
type Session interface {
	// ListUIDs returns the identifiers of the newest messages in the
	// folder, oldest first, at most limit of them (the last N by
	// arrival order, never an arbitrary subset). limit <= 0 means all.
	ListUIDs(ctx context.Context, folder string, limit int) ([]string, error)

	// FetchBatch retrieves the given messages. The caller requests one
	// batch; each implementation decides whether that is a single
	// round trip (IMAP) or a fan-out per identifier (POP3). A message
	// that fails to fetch or parse is skipped, not returned, and does
	// not fail the batch.
	FetchBatch(ctx context.Context, folder string, uids []string) ([]FetchedMessage, error)

	// Delete removes one message from the server. For IMAP this marks
	// the message deleted and expunges; for POP3 it issues DELE.
	Delete(ctx context.Context, folder, uid string) error

	// Close logs out and releases the connection. Safe to call after a
	// failed operation; callers defer it on every path.
	Close() error
}

// Mailbox dials and authenticates a remote mailbox, producing a Session.
type Mailbox interface {
	Protocol() Protocol
	Connect(ctx context.Context) (Session, error)
}
