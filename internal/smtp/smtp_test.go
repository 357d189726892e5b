package smtp

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/emersion/go-message/mail"

	"github.com/khsu/mailcat/internal/model"
)

func testSender(signature string) *Sender {
	return New(
		model.SMTPConfig{Host: "smtp.example.com", Port: 587, StartTLS: true},
		"Kai Hsu", "kai@example.com", "secret", signature,
	)
}

func TestReplySubject(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Hello", "Re: Hello"},
		{"Re: Hello", "Re: Hello"},
		{"RE: Hello", "RE: Hello"},
		{"", "Re: "},
	}
	for _, c := range cases {
		if got := ReplySubject(c.in); got != c.want {
			t.Errorf("ReplySubject(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestComposeRoundTrips(t *testing.T) {
	s := testSender("")

	raw, err := s.compose(OutgoingMessage{
		To:      []string{"bob@example.com"},
		CC:      []string{"carol@example.com"},
		Subject: "Status",
		Body:    "All good.",
	})
	if err != nil {
		t.Fatalf("composing: %v", err)
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("reading composed message: %v", err)
	}
	defer mr.Close()

	if subj, _ := mr.Header.Subject(); subj != "Status" {
		t.Errorf("expected subject Status, got %q", subj)
	}
	from, err := mr.Header.AddressList("From")
	if err != nil || len(from) != 1 {
		t.Fatalf("bad From header: %v %v", from, err)
	}
	if from[0].Address != "kai@example.com" || from[0].Name != "Kai Hsu" {
		t.Errorf("unexpected From %+v", from[0])
	}
	cc, err := mr.Header.AddressList("Cc")
	if err != nil || len(cc) != 1 || cc[0].Address != "carol@example.com" {
		t.Errorf("unexpected Cc %v %v", cc, err)
	}

	part, err := mr.NextPart()
	if err != nil {
		t.Fatalf("reading body part: %v", err)
	}
	body, err := io.ReadAll(part.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if string(body) != "All good." {
		t.Errorf("unexpected body %q", body)
	}
}

func TestComposeAppendsSignature(t *testing.T) {
	s := testSender("Kai\nHurricanesoft")

	raw, err := s.compose(OutgoingMessage{
		To:      []string{"bob@example.com"},
		Subject: "Hi",
		Body:    "Short note.",
	})
	if err != nil {
		t.Fatalf("composing: %v", err)
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("reading composed message: %v", err)
	}
	defer mr.Close()

	part, err := mr.NextPart()
	if err != nil {
		t.Fatalf("reading body part: %v", err)
	}
	body, err := io.ReadAll(part.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if !strings.Contains(string(body), "Short note.\n\nKai\nHurricanesoft") {
		t.Errorf("signature missing from body %q", body)
	}
}

func TestComposeReplyHeaders(t *testing.T) {
	s := testSender("")

	raw, err := s.compose(OutgoingMessage{
		To:        []string{"bob@example.com"},
		Subject:   "Re: Status",
		Body:      "Replying.",
		InReplyTo: "abc123@example.com",
	})
	if err != nil {
		t.Fatalf("composing: %v", err)
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("reading composed message: %v", err)
	}
	defer mr.Close()

	ids, err := mr.Header.MsgIDList("In-Reply-To")
	if err != nil || len(ids) != 1 || ids[0] != "abc123@example.com" {
		t.Errorf("unexpected In-Reply-To %v %v", ids, err)
	}
	refs, err := mr.Header.MsgIDList("References")
	if err != nil || len(refs) != 1 || refs[0] != "abc123@example.com" {
		t.Errorf("unexpected References %v %v", refs, err)
	}
}

func TestComposeAttachment(t *testing.T) {
	s := testSender("")

	raw, err := s.compose(OutgoingMessage{
		To:      []string{"bob@example.com"},
		Subject: "Report attached",
		Body:    "See attached.",
		Attachments: []Attachment{
			{
				Filename:    "report.txt",
				ContentType: "text/plain",
				Data:        []byte("quarterly numbers"),
			},
		},
	})
	if err != nil {
		t.Fatalf("composing: %v", err)
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("reading composed message: %v", err)
	}
	defer mr.Close()

	var sawAttachment bool
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("reading part: %v", err)
		}
		if h, ok := part.Header.(*mail.AttachmentHeader); ok {
			sawAttachment = true
			if name, _ := h.Filename(); name != "report.txt" {
				t.Errorf("unexpected filename %q", name)
			}
			data, err := io.ReadAll(part.Body)
			if err != nil {
				t.Fatalf("reading attachment: %v", err)
			}
			if string(data) != "quarterly numbers" {
				t.Errorf("unexpected attachment data %q", data)
			}
		}
	}
	if !sawAttachment {
		t.Fatal("expected an attachment part")
	}
}

func TestSendRequiresRecipients(t *testing.T) {
	s := testSender("")
	if err := s.Send(context.Background(), OutgoingMessage{Subject: "x"}); err == nil {
		t.Fatal("expected an error with no recipients")
	}
}
