// Package sync reconciles a remote mailbox with the local cache: it
// lists remote identifiers, diffs them against cached uids, fetches
// only the delta, and persists the result in one batch.
package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/khsu/mailcat/internal/decode"
	"github.com/khsu/mailcat/internal/mailbox"
	"github.com/khsu/mailcat/internal/model"
	"github.com/khsu/mailcat/internal/store"
)

// FetchWindow bounds how many most-recent messages one sync ever
// considers, independent of total mailbox size. Older mail already
// cached stays visible; older mail never cached is not fetched until
// the window moves.
const FetchWindow = 50

// syncTimeout is the maximum time allowed for a single sync.
const syncTimeout = 60 * time.Second

// ErrSyncInFlight is returned when a sync is requested for a partition
// that already has one running. Concurrent remote sessions against the
// same account are not guaranteed safe by the servers, so a second
// request is rejected, never interleaved.
var ErrSyncInFlight = errors.New("sync already in progress for this folder")

// ResultMsg is a tea.Msg delivered when a sync finishes. On success,
// Messages is the full partition reloaded from the store, so the view
// always reflects durable state rather than this sync's in-memory
// delta. On failure, Err is set and the cache is exactly as it was
// before the attempt, beyond batches already committed whole.
type ResultMsg struct {
	Account string
	Folder  string

	Messages []model.CachedMessage

	// Fetched is how many new messages this sync persisted.
	Fetched int

	// Skipped counts messages in the delta that could not be fetched
	// or decoded. Skips do not fail the sync.
	Skipped int

	Err error
}

// FailureText renders a user-facing cause string for a failed sync.
func (m ResultMsg) FailureText() string {
	switch {
	case m.Err == nil:
		return ""
	case mailbox.IsAuthError(m.Err):
		return fmt.Sprintf("login rejected: %v", m.Err)
	case mailbox.IsConnectError(m.Err):
		return fmt.Sprintf("cannot reach server: %v", m.Err)
	case store.IsStoreError(m.Err):
		return fmt.Sprintf("local cache failure: %v", m.Err)
	default:
		return m.Err.Error()
	}
}

// Reconciler runs cache reconciliation syncs. At most one sync per
// (account, folder) partition is in flight at any time.
type Reconciler struct {
	store store.Store

	mu       gosync.Mutex
	inFlight map[string]bool
}

// New creates a Reconciler backed by the given store.
func New(s store.Store) *Reconciler {
	return &Reconciler{
		store:    s,
		inFlight: make(map[string]bool),
	}
}

// Sync returns a tea.Cmd that performs one reconciliation on a
// background goroutine and delivers a ResultMsg to the program.
func (r *Reconciler) Sync(mb mailbox.Mailbox, account, folder string) tea.Cmd {
	return func() tea.Msg {
		return r.Run(context.Background(), mb, account, folder)
	}
}

// Run performs one reconciliation synchronously:
// connect, list, diff, fetch the delta, store it in a single batch,
// close the session, and reload the partition from the store.
func (r *Reconciler) Run(
	ctx context.Context,
	mb mailbox.Mailbox,
	account, folder string,
) ResultMsg {
	return r.RunWindow(ctx, mb, account, folder, FetchWindow)
}

// RunWindow is Run with an explicit fetch window. window <= 0 means
// unbounded.
func (r *Reconciler) RunWindow(
	ctx context.Context,
	mb mailbox.Mailbox,
	account, folder string,
	window int,
) ResultMsg {
	result := ResultMsg{Account: account, Folder: folder}

	if !r.begin(account, folder) {
		result.Err = ErrSyncInFlight
		return result
	}
	defer r.end(account, folder)

	ctx, cancel := context.WithTimeout(ctx, syncTimeout)
	defer cancel()

	session, err := mb.Connect(ctx)
	if err != nil {
		result.Err = err
		return result
	}
	defer session.Close()

	remote, err := session.ListUIDs(ctx, folder, window)
	if err != nil {
		result.Err = fmt.Errorf("listing remote messages: %w", err)
		return result
	}

	cached, err := r.store.GetUIDs(ctx, account, folder)
	if err != nil {
		result.Err = fmt.Errorf("reading cached uids: %w", err)
		return result
	}

	delta := make([]string, 0, len(remote))
	for _, uid := range remote {
		if _, ok := cached[uid]; !ok {
			delta = append(delta, uid)
		}
	}

	if len(delta) > 0 {
		fetched, err := session.FetchBatch(ctx, folder, delta)
		if err != nil {
			result.Err = fmt.Errorf("fetching messages: %w", err)
			return result
		}

		rows := make([]model.CachedMessage, 0, len(fetched))
		for _, fm := range fetched {
			from, subject, date, decErr := decode.Headers(fm.Raw)
			if decErr != nil {
				result.Skipped++
				continue
			}
			rows = append(rows, model.CachedMessage{
				Account:  account,
				Folder:   folder,
				UID:      fm.UID,
				Flags:    fm.Flags,
				FromAddr: from,
				Subject:  subject,
				DateStr:  date,
				Raw:      fm.Raw,
			})
		}
		result.Skipped += len(delta) - len(fetched)

		if err := r.store.StoreBatch(ctx, account, folder, rows); err != nil {
			result.Err = fmt.Errorf("persisting fetched messages: %w", err)
			return result
		}
		result.Fetched = len(rows)
	}

	msgs, err := r.store.LoadList(ctx, account, folder)
	if err != nil {
		result.Err = fmt.Errorf("reloading message list: %w", err)
		return result
	}
	result.Messages = msgs
	return result
}

// Busy reports whether a sync is currently running for the partition.
func (r *Reconciler) Busy(account, folder string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inFlight[partitionKey(account, folder)]
}

func (r *Reconciler) begin(account, folder string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := partitionKey(account, folder)
	if r.inFlight[key] {
		return false
	}
	r.inFlight[key] = true
	return true
}

func (r *Reconciler) end(account, folder string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, partitionKey(account, folder))
}

func partitionKey(account, folder string) string {
	return account + "\x00" + folder
}
