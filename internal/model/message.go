package model

// Receive protocol identifiers selectable per account.
const (
	ProtocolIMAP = "imap"
	ProtocolPOP3 = "pop3"
)

// CachedMessage is one locally cached mail message. The triple
// (Account, Folder, UID) uniquely identifies a row; once stored, a row
// is never rewritten.
type CachedMessage struct {
	// Account is the authenticated mailbox identity (the login email).
	Account string `db:"account"`

	// Folder is the remote mailbox folder name (e.g., "INBOX").
	Folder string `db:"folder"`

	// UID is the protocol-derived message identifier. For IMAP this is
	// the server UID, durable per folder. For POP3 it is a synthesized
	// identifier: the UIDL value when the server supports UIDL, else the
	// positional sequence number, which is not stable if another client
	// deletes messages between sessions.
	UID string `db:"uid"`

	// Flags is the raw flag string from the server ("\Seen ..."), or ""
	// when the protocol carries no flag information (POP3).
	Flags string `db:"flags"`

	// FromAddr, Subject, and DateStr are header fields extracted at
	// fetch time so listing never requires decoding Raw.
	FromAddr string `db:"from_addr"`
	Subject  string `db:"subject"`
	DateStr  string `db:"date_str"`

	// Raw is the full original message, or nil if the content was never
	// downloaded.
	Raw []byte `db:"raw"`
}

// Seen reports whether the \Seen flag is present in the flag string.
func (m CachedMessage) Seen() bool {
	return containsFlag(m.Flags, `\Seen`)
}

func containsFlag(flags, want string) bool {
	start := 0
	for start < len(flags) {
		end := start
		for end < len(flags) && flags[end] != ' ' {
			end++
		}
		if flags[start:end] == want {
			return true
		}
		start = end + 1
	}
	return false
}
