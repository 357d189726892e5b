package view_test

import (
	"context"
	"testing"

	"github.com/khsu/mailcat/internal/model"
	"github.com/khsu/mailcat/internal/store"
	"github.com/khsu/mailcat/internal/view"
	"github.com/khsu/mailcat/tests/testutil"
)

func sampleRows() []model.CachedMessage {
	return []model.CachedMessage{
		{Account: "a", Folder: "INBOX", UID: "1", FromAddr: "Alice <alice@example.com>", Subject: "Quarterly report"},
		{Account: "a", Folder: "INBOX", UID: "2", FromAddr: "Bob <bob@example.com>", Subject: "Lunch?"},
		{Account: "a", Folder: "INBOX", UID: "3", FromAddr: "alice@example.com", Subject: "Re: Lunch?"},
	}
}

func TestRenderEmptyFilterShowsAll(t *testing.T) {
	rows := sampleRows()
	got := view.Render(rows, "")
	if len(got) != len(rows) {
		t.Fatalf("expected %d rows, got %d", len(rows), len(got))
	}
}

func TestRenderFiltersCaseInsensitively(t *testing.T) {
	got := view.Render(sampleRows(), "ALICE")
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if got[0].UID != "1" || got[1].UID != "3" {
		t.Fatalf("unexpected rows: %q %q", got[0].UID, got[1].UID)
	}
}

func TestRenderMatchesSubject(t *testing.T) {
	got := view.Render(sampleRows(), "lunch")
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
}

func TestRenderNoMatches(t *testing.T) {
	if got := view.Render(sampleRows(), "zzz"); len(got) != 0 {
		t.Fatalf("expected no rows, got %d", len(got))
	}
}

func TestRowAtMapsFilteredIndex(t *testing.T) {
	row, ok := view.RowAt(sampleRows(), "lunch", 1)
	if !ok {
		t.Fatal("expected a row")
	}
	if row.UID != "3" {
		t.Fatalf("expected uid 3, got %q", row.UID)
	}
}

func TestRowAtOutOfRange(t *testing.T) {
	if _, ok := view.RowAt(sampleRows(), "lunch", 2); ok {
		t.Fatal("expected no row past the filtered range")
	}
	if _, ok := view.RowAt(sampleRows(), "", -1); ok {
		t.Fatal("expected no row for a negative index")
	}
}

func testProjector(t *testing.T) (*view.Projector, store.Store) {
	t.Helper()
	s := testutil.NewTestStore(t)
	return view.New(s), s
}

const rawMessage = "From: Alice <alice@example.com>\r\n" +
	"To: bob@example.com\r\n" +
	"Subject: Hello\r\n" +
	"Date: Mon, 02 Jan 2006 15:04:05 -0700\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"Hi Bob.\r\n"

func TestResolveDecodesStoredContent(t *testing.T) {
	p, s := testProjector(t)
	ctx := context.Background()

	err := s.StoreBatch(ctx, "a", "INBOX", []model.CachedMessage{
		{Account: "a", Folder: "INBOX", UID: "1", Raw: []byte(rawMessage)},
	})
	if err != nil {
		t.Fatalf("storing: %v", err)
	}

	msg, err := p.Resolve(ctx, "a", "INBOX", "1")
	if err != nil {
		t.Fatalf("resolving: %v", err)
	}
	if msg.Subject != "Hello" {
		t.Fatalf("expected subject Hello, got %q", msg.Subject)
	}
	if msg.Body() != "Hi Bob.\r\n" {
		t.Fatalf("unexpected body %q", msg.Body())
	}
}

func TestResolveCachesDecodedMessage(t *testing.T) {
	p, s := testProjector(t)
	ctx := context.Background()

	err := s.StoreBatch(ctx, "a", "INBOX", []model.CachedMessage{
		{Account: "a", Folder: "INBOX", UID: "1", Raw: []byte(rawMessage)},
	})
	if err != nil {
		t.Fatalf("storing: %v", err)
	}

	first, err := p.Resolve(ctx, "a", "INBOX", "1")
	if err != nil {
		t.Fatalf("resolving: %v", err)
	}
	second, err := p.Resolve(ctx, "a", "INBOX", "1")
	if err != nil {
		t.Fatalf("resolving again: %v", err)
	}
	if first != second {
		t.Fatal("expected the cached message on the second resolve")
	}
}

func TestResolveMissingContentReturnsPlaceholder(t *testing.T) {
	p, _ := testProjector(t)

	msg, err := p.Resolve(context.Background(), "a", "INBOX", "42")
	if err != nil {
		t.Fatalf("resolving: %v", err)
	}
	if !view.NotCached(msg) {
		t.Fatalf("expected the not-cached placeholder, got %+v", msg)
	}
}

func TestForgetDropsCacheEntry(t *testing.T) {
	p, s := testProjector(t)
	ctx := context.Background()

	err := s.StoreBatch(ctx, "a", "INBOX", []model.CachedMessage{
		{Account: "a", Folder: "INBOX", UID: "1", Raw: []byte(rawMessage)},
	})
	if err != nil {
		t.Fatalf("storing: %v", err)
	}

	first, err := p.Resolve(ctx, "a", "INBOX", "1")
	if err != nil {
		t.Fatalf("resolving: %v", err)
	}
	p.Forget("a", "INBOX", "1")
	second, err := p.Resolve(ctx, "a", "INBOX", "1")
	if err != nil {
		t.Fatalf("resolving after forget: %v", err)
	}
	if first == second {
		t.Fatal("expected a fresh decode after Forget")
	}
}
