package sync

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/khsu/mailcat/internal/mailbox"
	"github.com/khsu/mailcat/internal/model"
)

// DeleteResultMsg is a tea.Msg delivered when a delete finishes. On
// success, Messages is the partition reloaded after the cache row was
// removed.
type DeleteResultMsg struct {
	Account  string
	Folder   string
	UID      string
	Messages []model.CachedMessage
	Err      error
}

// Delete returns a tea.Cmd that deletes one message remotely and, only
// after the remote delete succeeded, removes the cached row. A failed
// remote delete leaves the cache untouched so the local copy is never
// the casualty of a lost connection.
func (r *Reconciler) Delete(
	mb mailbox.Mailbox, account, folder, uid string,
) tea.Cmd {
	return func() tea.Msg {
		return r.runDelete(context.Background(), mb, account, folder, uid)
	}
}

func (r *Reconciler) runDelete(
	ctx context.Context,
	mb mailbox.Mailbox,
	account, folder, uid string,
) DeleteResultMsg {
	result := DeleteResultMsg{Account: account, Folder: folder, UID: uid}

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

	// List first so identifier mapping is established for protocols
	// whose uids are only resolvable within a session.
	if _, err := session.ListUIDs(ctx, folder, 0); err != nil {
		result.Err = fmt.Errorf("listing remote messages: %w", err)
		return result
	}

	if err := session.Delete(ctx, folder, uid); err != nil {
		result.Err = fmt.Errorf("deleting remote message: %w", err)
		return result
	}

	if err := r.store.Delete(ctx, account, folder, uid); err != nil {
		result.Err = fmt.Errorf("removing cached message: %w", err)
		return result
	}

	msgs, err := r.store.LoadList(ctx, account, folder)
	if err != nil {
		result.Err = fmt.Errorf("reloading message list: %w", err)
		return result
	}
	result.Messages = msgs
	return result
}
