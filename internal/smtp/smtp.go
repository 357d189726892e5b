// Package smtp sends composed mail over SMTP with either implicit TLS
// or STARTTLS, matching how most hosted mail servers are deployed.
package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/khsu/mailcat/internal/model"
)

const dialTimeout = 30 * time.Second

// Attachment is a file to include with an outgoing message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// OutgoingMessage is a fully specified message ready to send.
type OutgoingMessage struct {
	To          []string
	CC          []string
	Subject     string
	Body        string
	InReplyTo   string
	Attachments []Attachment
}

// Sender composes and delivers mail for one account.
type Sender struct {
	cfg       model.SMTPConfig
	fromName  string
	fromAddr  string
	password  string
	signature string
}

// New creates a Sender for the given account.
func New(
	cfg model.SMTPConfig,
	fromName, fromAddr, password, signature string,
) *Sender {
	return &Sender{
		cfg:       cfg,
		fromName:  fromName,
		fromAddr:  fromAddr,
		password:  password,
		signature: signature,
	}
}

// ReplySubject prefixes a subject with "Re: " unless it already
// carries one.
func ReplySubject(subject string) string {
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}

// Send composes the message and delivers it to every To and CC
// recipient in a single SMTP transaction.
func (s *Sender) Send(_ context.Context, msg OutgoingMessage) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("no recipients")
	}

	body, err := s.compose(msg)
	if err != nil {
		return fmt.Errorf("composing message: %w", err)
	}

	recipients := make([]string, 0, len(msg.To)+len(msg.CC))
	recipients = append(recipients, msg.To...)
	recipients = append(recipients, msg.CC...)

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	if s.cfg.StartTLS {
		return s.sendWithStartTLS(addr, recipients, body)
	}
	return s.sendWithTLS(addr, recipients, body)
}

// compose builds the full RFC 2822 message, appending the account
// signature to the text body when one is configured.
func (s *Sender) compose(msg OutgoingMessage) ([]byte, error) {
	var header mail.Header
	header.SetDate(time.Now())
	header.SetAddressList("From", []*mail.Address{
		{Name: s.fromName, Address: s.fromAddr},
	})
	header.SetAddressList("To", parseAddresses(msg.To))
	if len(msg.CC) > 0 {
		header.SetAddressList("Cc", parseAddresses(msg.CC))
	}
	header.SetSubject(msg.Subject)
	if msg.InReplyTo != "" {
		header.SetMsgIDList("In-Reply-To", []string{msg.InReplyTo})
		header.SetMsgIDList("References", []string{msg.InReplyTo})
	}

	body := msg.Body
	if s.signature != "" {
		body = body + "\n\n" + s.signature
	}

	var buf bytes.Buffer

	mw, err := mail.CreateWriter(&buf, header)
	if err != nil {
		return nil, fmt.Errorf("creating message writer: %w", err)
	}

	var inlineHeader mail.InlineHeader
	inlineHeader.SetContentType("text/plain", map[string]string{
		"charset": "utf-8",
	})

	tw, err := mw.CreateSingleInline(inlineHeader)
	if err != nil {
		return nil, fmt.Errorf("creating text part: %w", err)
	}
	if _, err := io.WriteString(tw, body); err != nil {
		return nil, fmt.Errorf("writing text part: %w", err)
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("closing text part: %w", err)
	}

	for _, att := range msg.Attachments {
		var ah mail.AttachmentHeader
		ah.SetFilename(att.Filename)
		if att.ContentType != "" {
			ah.SetContentType(att.ContentType, nil)
		}

		aw, err := mw.CreateAttachment(ah)
		if err != nil {
			return nil, fmt.Errorf(
				"creating attachment %s: %w", att.Filename, err,
			)
		}
		if _, err := aw.Write(att.Data); err != nil {
			return nil, fmt.Errorf(
				"writing attachment %s: %w", att.Filename, err,
			)
		}
		if err := aw.Close(); err != nil {
			return nil, fmt.Errorf(
				"closing attachment %s: %w", att.Filename, err,
			)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing message writer: %w", err)
	}

	return buf.Bytes(), nil
}

// sendWithTLS delivers over an implicit TLS connection.
func (s *Sender) sendWithTLS(
	addr string, recipients []string, body []byte,
) error {
	conn, err := tls.Dial("tcp", addr, s.tlsConfig())
	if err != nil {
		return fmt.Errorf("TLS dial to %s: %w", addr, err)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	if err := s.authenticate(client); err != nil {
		return err
	}

	return s.deliver(client, recipients, body)
}

// sendWithStartTLS delivers over a plain connection upgraded with
// STARTTLS when the server offers it.
func (s *Sender) sendWithStartTLS(
	addr string, recipients []string, body []byte,
) error {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return fmt.Errorf("dial to %s: %w", addr, err)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(s.tlsConfig()); err != nil {
			return fmt.Errorf("SMTP STARTTLS: %w", err)
		}
	}

	if err := s.authenticate(client); err != nil {
		return err
	}

	return s.deliver(client, recipients, body)
}

func (s *Sender) tlsConfig() *tls.Config {
	return &tls.Config{
		ServerName:         s.cfg.Host,
		InsecureSkipVerify: !s.cfg.VerifySSL,
	}
}

// authenticate runs AUTH PLAIN when credentials are configured and the
// server advertises AUTH. Port-25 relays commonly accept mail without
// authentication.
func (s *Sender) authenticate(client *smtp.Client) error {
	if s.password == "" {
		return nil
	}
	if ok, _ := client.Extension("AUTH"); !ok {
		return nil
	}

	auth := smtp.PlainAuth("", s.fromAddr, s.password, s.cfg.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP auth: %w", err)
	}
	return nil
}

// deliver runs the MAIL/RCPT/DATA transaction on an established
// client.
func (s *Sender) deliver(
	client *smtp.Client, recipients []string, body []byte,
) error {
	if err := client.Mail(s.fromAddr); err != nil {
		return fmt.Errorf("SMTP MAIL FROM: %w", err)
	}

	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("SMTP RCPT TO %s: %w", rcpt, err)
		}
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA: %w", err)
	}

	if _, err := writer.Write(body); err != nil {
		return fmt.Errorf("writing message body: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing message body: %w", err)
	}

	return client.Quit()
}

// parseAddresses converts bare address strings to header addresses.
func parseAddresses(addrs []string) []*mail.Address {
	out := make([]*mail.Address, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, &mail.Address{Address: strings.TrimSpace(a)})
	}
	return out
}
