// Package decode parses raw RFC 822 bytes into the header fields,
// bodies, and attachment metadata the rest of the client consumes.
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message/mail"
)

// DecodeError indicates raw bytes could not be parsed as a mail
// message. Callers skip the message rather than aborting the batch it
// arrived in.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsDecodeError reports whether err (or any error in its chain) is a
// DecodeError.
func IsDecodeError(err error) bool {
	var decErr *DecodeError
	return errors.As(err, &decErr)
}

// Message is the decoded form of one raw mail message.
type Message struct {
	From    string
	To      string
	Subject string

	// MessageID is the bare Message-Id value without angle brackets,
	// or "" when the header is absent. Used for reply threading.
	MessageID string

	// DateStr is the raw Date header value, kept as the server sent it.
	DateStr string

	TextBody    string
	HTMLBody    string
	Attachments []Attachment
}

// Attachment holds one decoded attachment.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Body returns the best displayable body: plain text, else HTML, else a
// placeholder.
func (m *Message) Body() string {
	if m.TextBody != "" {
		return m.TextBody
	}
	if m.HTMLBody != "" {
		return m.HTMLBody
	}
	return "(no content)"
}

// Headers extracts the from, subject, and date header fields without
// reading the message body. Used at fetch time to denormalize the
// fields stored in the cache.
func Headers(raw []byte) (from, subject, date string, err error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && mr == nil {
		return "", "", "", &DecodeError{Err: err}
	}
	defer mr.Close()

	h := mr.Header
	from = formatFrom(h)
	subject, _ = h.Subject()
	date = h.Get("Date")
	return from, subject, date, nil
}

// Parse fully decodes a raw message: headers, text and HTML bodies, and
// attachments.
func Parse(raw []byte) (*Message, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && mr == nil {
		return nil, &DecodeError{Err: err}
	}
	defer mr.Close()

	h := mr.Header
	msg := &Message{
		From:    formatFrom(h),
		To:      h.Get("To"),
		Subject: "",
		DateStr: h.Get("Date"),
	}
	msg.Subject, _ = h.Subject()
	msg.MessageID, _ = h.MessageID()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		switch ph := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := ph.ContentType()
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}
			switch {
			case strings.HasPrefix(contentType, "text/plain") && msg.TextBody == "":
				msg.TextBody = string(body)
			case strings.HasPrefix(contentType, "text/html") && msg.HTMLBody == "":
				msg.HTMLBody = string(body)
			}

		case *mail.AttachmentHeader:
			filename, _ := ph.Filename()
			if filename == "" {
				continue
			}
			contentType, _, _ := ph.ContentType()
			data, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}
			msg.Attachments = append(msg.Attachments, Attachment{
				Filename:    filename,
				ContentType: contentType,
				Data:        data,
			})
		}
	}

	return msg, nil
}

// formatFrom renders the From header as "Name <addr>" when a display
// name is present, otherwise the bare address.
func formatFrom(h mail.Header) string {
	addrs, err := h.AddressList("From")
	if err != nil || len(addrs) == 0 {
		return h.Get("From")
	}
	a := addrs[0]
	if a.Name != "" {
		return fmt.Sprintf("%s <%s>", a.Name, a.Address)
	}
	return a.Address
}
