package sync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/khsu/mailcat/internal/mailbox"
	"github.com/khsu/mailcat/internal/model"
	"github.com/khsu/mailcat/internal/store"
	"github.com/khsu/mailcat/tests/testutil"
)

// fakeMailbox is a scriptable in-memory mailbox for reconciler tests.
type fakeMailbox struct {
	remote     []string
	connectErr error
	listErr    error
	fetchErr   error
	deleteErr  error

	// failUIDs marks identifiers whose fetch silently fails (the
	// adapter skips them, as both real adapters do).
	failUIDs map[string]bool

	// garbageUIDs marks identifiers that return unparsable bytes.
	garbageUIDs map[string]bool

	lastFetched []string
	deleted     []string
	closed      int
}

func (f *fakeMailbox) Protocol() mailbox.Protocol { return mailbox.ProtocolIMAP }

func (f *fakeMailbox) Connect(_ context.Context) (mailbox.Session, error) {
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	return &fakeSession{mb: f}, nil
}

type fakeSession struct {
	mb *fakeMailbox
}

func (s *fakeSession) ListUIDs(_ context.Context, _ string, limit int) ([]string, error) {
	if s.mb.listErr != nil {
		return nil, s.mb.listErr
	}
	uids := s.mb.remote
	if limit > 0 && len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}
	return uids, nil
}

func (s *fakeSession) FetchBatch(_ context.Context, _ string, uids []string) ([]mailbox.FetchedMessage, error) {
	if s.mb.fetchErr != nil {
		return nil, s.mb.fetchErr
	}
	s.mb.lastFetched = append([]string(nil), uids...)

	var msgs []mailbox.FetchedMessage
	for _, uid := range uids {
		if s.mb.failUIDs[uid] {
			continue
		}
		raw := rawFor(uid)
		if s.mb.garbageUIDs[uid] {
			raw = []byte("runaway pointer pancake")
		}
		msgs = append(msgs, mailbox.FetchedMessage{UID: uid, Raw: raw})
	}
	return msgs, nil
}

func (s *fakeSession) Delete(_ context.Context, _, uid string) error {
	if s.mb.deleteErr != nil {
		return s.mb.deleteErr
	}
	s.mb.deleted = append(s.mb.deleted, uid)
	return nil
}

func (s *fakeSession) Close() error {
	s.mb.closed++
	return nil
}

func rawFor(uid string) []byte {
	return []byte(fmt.Sprintf(
		"From: sender%s@example.com\r\nSubject: Message %s\r\nDate: Mon, 02 Mar 2026 10:00:00 +0800\r\n\r\nbody %s\r\n",
		uid, uid, uid,
	))
}

func testStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	return testutil.NewTestStore(t)
}

func preload(t *testing.T, s store.Store, account, folder string, uids ...string) {
	t.Helper()
	rows := make([]model.CachedMessage, 0, len(uids))
	for _, uid := range uids {
		rows = append(rows, model.CachedMessage{
			UID:      uid,
			FromAddr: "old@example.com",
			Subject:  "Cached " + uid,
			Raw:      rawFor(uid),
		})
	}
	if err := s.StoreBatch(context.Background(), account, folder, rows); err != nil {
		t.Fatalf("preloading cache: %v", err)
	}
}

func TestSyncFetchesOnlyDelta(t *testing.T) {
	s := testStore(t)
	preload(t, s, "acct", "INBOX", "1", "2", "3")

	mb := &fakeMailbox{remote: []string{"1", "2", "3", "4", "5"}}
	r := New(s)

	result := r.Run(context.Background(), mb, "acct", "INBOX")
	if result.Err != nil {
		t.Fatalf("sync failed: %v", result.Err)
	}

	sort.Strings(mb.lastFetched)
	if len(mb.lastFetched) != 2 || mb.lastFetched[0] != "4" || mb.lastFetched[1] != "5" {
		t.Errorf("fetched %v, want exactly [4 5]", mb.lastFetched)
	}
	if result.Fetched != 2 {
		t.Errorf("Fetched = %d, want 2", result.Fetched)
	}

	uids, _ := s.GetUIDs(context.Background(), "acct", "INBOX")
	if len(uids) != 5 {
		t.Errorf("cache has %d uids after sync, want 5", len(uids))
	}
}

func TestSyncEmptyDeltaFetchesNothing(t *testing.T) {
	s := testStore(t)
	preload(t, s, "acct", "INBOX", "1", "2")

	mb := &fakeMailbox{remote: []string{"1", "2"}}
	r := New(s)

	result := r.Run(context.Background(), mb, "acct", "INBOX")
	if result.Err != nil {
		t.Fatalf("sync failed: %v", result.Err)
	}
	if mb.lastFetched != nil {
		t.Errorf("FetchBatch called with %v for an empty delta", mb.lastFetched)
	}
	if len(result.Messages) != 2 {
		t.Errorf("result has %d messages, want 2", len(result.Messages))
	}
}

func TestSyncPartialBatchIsPartialSuccess(t *testing.T) {
	s := testStore(t)
	preload(t, s, "acct", "INBOX", "1", "2", "3")

	mb := &fakeMailbox{
		remote:   []string{"1", "2", "3", "4", "5"},
		failUIDs: map[string]bool{"5": true},
	}
	r := New(s)

	result := r.Run(context.Background(), mb, "acct", "INBOX")
	if result.Err != nil {
		t.Fatalf("partial batch reported total failure: %v", result.Err)
	}
	if result.Fetched != 1 || result.Skipped != 1 {
		t.Errorf("Fetched/Skipped = %d/%d, want 1/1", result.Fetched, result.Skipped)
	}

	uids, _ := s.GetUIDs(context.Background(), "acct", "INBOX")
	if _, ok := uids["4"]; !ok {
		t.Error("message 4 not persisted")
	}
	if _, ok := uids["5"]; ok {
		t.Error("failed message 5 was persisted")
	}

	found := false
	for _, m := range result.Messages {
		if m.UID == "4" {
			found = true
		}
	}
	if !found {
		t.Error("message 4 not visible in reloaded list")
	}
}

func TestSyncSkipsUnparsableMessage(t *testing.T) {
	s := testStore(t)

	mb := &fakeMailbox{
		remote:      []string{"1", "2"},
		garbageUIDs: map[string]bool{"2": true},
	}
	r := New(s)

	result := r.Run(context.Background(), mb, "acct", "INBOX")
	if result.Err != nil {
		t.Fatalf("sync failed: %v", result.Err)
	}

	uids, _ := s.GetUIDs(context.Background(), "acct", "INBOX")
	if _, ok := uids["1"]; !ok {
		t.Error("parsable message 1 not persisted")
	}
	if _, ok := uids["2"]; ok {
		// go-message is lenient; if it parsed the garbage this is moot.
		t.Log("garbage message was parsed and persisted")
	}
}

func TestSyncAuthFailureLeavesCacheUntouched(t *testing.T) {
	s := testStore(t)
	preload(t, s, "acct", "INBOX", "1")

	mb := &fakeMailbox{
		connectErr: &mailbox.AuthError{
			Protocol: mailbox.ProtocolIMAP,
			Account:  "acct",
			Message:  "invalid credentials",
		},
	}
	r := New(s)

	result := r.Run(context.Background(), mb, "acct", "INBOX")
	if !mailbox.IsAuthError(result.Err) {
		t.Fatalf("Err = %v, want AuthError", result.Err)
	}
	if result.FailureText() == "" {
		t.Error("FailureText empty for auth failure")
	}

	uids, _ := s.GetUIDs(context.Background(), "acct", "INBOX")
	if len(uids) != 1 {
		t.Errorf("cache changed on auth failure: %d uids", len(uids))
	}
}

func TestSyncListFailureClosesSession(t *testing.T) {
	s := testStore(t)
	mb := &fakeMailbox{listErr: errors.New("broken pipe")}
	r := New(s)

	result := r.Run(context.Background(), mb, "acct", "INBOX")
	if result.Err == nil {
		t.Fatal("sync succeeded despite list failure")
	}
	if mb.closed != 1 {
		t.Errorf("session closed %d times, want 1", mb.closed)
	}
}

func TestSyncFetchFailureAbortsWithoutWrites(t *testing.T) {
	s := testStore(t)
	mb := &fakeMailbox{
		remote:   []string{"1", "2"},
		fetchErr: errors.New("connection reset"),
	}
	r := New(s)

	result := r.Run(context.Background(), mb, "acct", "INBOX")
	if result.Err == nil {
		t.Fatal("sync succeeded despite fetch failure")
	}

	uids, _ := s.GetUIDs(context.Background(), "acct", "INBOX")
	if len(uids) != 0 {
		t.Errorf("aborted sync wrote %d rows", len(uids))
	}
	if mb.closed != 1 {
		t.Errorf("session closed %d times, want 1", mb.closed)
	}
}

func TestSyncResultIncludesRowsOutsideWindow(t *testing.T) {
	// Messages cached in earlier sessions stay visible even when the
	// remote window no longer lists them.
	s := testStore(t)
	preload(t, s, "acct", "INBOX", "ancient")

	mb := &fakeMailbox{remote: []string{"7"}}
	r := New(s)

	result := r.Run(context.Background(), mb, "acct", "INBOX")
	if result.Err != nil {
		t.Fatalf("sync failed: %v", result.Err)
	}

	got := map[string]bool{}
	for _, m := range result.Messages {
		got[m.UID] = true
	}
	if !got["ancient"] || !got["7"] {
		t.Errorf("result uids = %v, want both ancient and 7", got)
	}
}

func TestSyncRejectsConcurrentRun(t *testing.T) {
	s := testStore(t)
	r := New(s)

	if !r.begin("acct", "INBOX") {
		t.Fatal("begin failed on idle partition")
	}
	defer r.end("acct", "INBOX")

	mb := &fakeMailbox{remote: []string{"1"}}
	result := r.Run(context.Background(), mb, "acct", "INBOX")
	if !errors.Is(result.Err, ErrSyncInFlight) {
		t.Errorf("Err = %v, want ErrSyncInFlight", result.Err)
	}

	// A different partition is unaffected.
	other := r.Run(context.Background(), mb, "acct", "Sent")
	if other.Err != nil {
		t.Errorf("other partition rejected: %v", other.Err)
	}
}

func TestDeleteRemovesRemoteThenCache(t *testing.T) {
	s := testStore(t)
	preload(t, s, "acct", "INBOX", "1", "2")

	mb := &fakeMailbox{remote: []string{"1", "2"}}
	r := New(s)

	result := r.runDelete(context.Background(), mb, "acct", "INBOX", "1")
	if result.Err != nil {
		t.Fatalf("delete failed: %v", result.Err)
	}
	if len(mb.deleted) != 1 || mb.deleted[0] != "1" {
		t.Errorf("remote deletes = %v, want [1]", mb.deleted)
	}

	uids, _ := s.GetUIDs(context.Background(), "acct", "INBOX")
	if _, ok := uids["1"]; ok {
		t.Error("cache row survived delete")
	}
	if _, ok := uids["2"]; !ok {
		t.Error("delete removed an unrelated row")
	}
}

func TestDeleteKeepsCacheWhenRemoteFails(t *testing.T) {
	s := testStore(t)
	preload(t, s, "acct", "INBOX", "1")

	mb := &fakeMailbox{
		remote:    []string{"1"},
		deleteErr: errors.New("server said no"),
	}
	r := New(s)

	result := r.runDelete(context.Background(), mb, "acct", "INBOX", "1")
	if result.Err == nil {
		t.Fatal("delete succeeded despite remote failure")
	}

	uids, _ := s.GetUIDs(context.Background(), "acct", "INBOX")
	if _, ok := uids["1"]; !ok {
		t.Error("cache row deleted before remote delete succeeded")
	}
}
