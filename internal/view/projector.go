// Package view turns cache rows into what the user sees: live text
// filtering over the listed fields and on-demand resolution of a row to
// its decoded content.
package view

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/khsu/mailcat/internal/decode"
	"github.com/khsu/mailcat/internal/model"
	"github.com/khsu/mailcat/internal/store"
)

// Render returns the rows visible under the filter, in input order. A
// row is visible iff the filter is empty or a case-insensitive
// substring of its from address or subject. Purely a view transform.
func Render(rows []model.CachedMessage, filterText string) []model.CachedMessage {
	if filterText == "" {
		return rows
	}

	needle := strings.ToLower(filterText)
	visible := make([]model.CachedMessage, 0, len(rows))
	for _, row := range rows {
		if strings.Contains(strings.ToLower(row.FromAddr), needle) ||
			strings.Contains(strings.ToLower(row.Subject), needle) {
			visible = append(visible, row)
		}
	}
	return visible
}

// RowAt maps the nth visible row under the filter back to its
// underlying cache row.
func RowAt(rows []model.CachedMessage, filterText string, n int) (model.CachedMessage, bool) {
	visible := Render(rows, filterText)
	if n < 0 || n >= len(visible) {
		return model.CachedMessage{}, false
	}
	return visible[n], true
}

// Projector resolves display rows to decoded message content, keeping
// a per-session decode cache. The cache is purely a latency
// optimization; a miss and a hit produce the same Message.
type Projector struct {
	store store.Store

	mu      sync.Mutex
	decoded map[string]*decode.Message
}

// New creates a Projector reading from the given store.
func New(s store.Store) *Projector {
	return &Projector{
		store:   s,
		decoded: make(map[string]*decode.Message),
	}
}

// NotCached reports whether a resolved message is the placeholder for
// content that was never downloaded.
func NotCached(msg *decode.Message) bool {
	return msg != nil && msg.Subject == notCachedSubject
}

const notCachedSubject = "(content not cached)"

// notCachedMessage is returned when metadata is known but the raw bytes
// were never stored; a resync is the remedy, not an error dialog.
func notCachedMessage(uid string) *decode.Message {
	return &decode.Message{
		Subject:  notCachedSubject,
		TextBody: fmt.Sprintf("Message %s has no cached content. Fetch mail to download it.", uid),
	}
}

// Resolve returns the decoded content for one message: decode cache
// first, then raw bytes from the store, decoded and cached. Absent raw
// content yields the not-cached placeholder rather than an error.
func (p *Projector) Resolve(
	ctx context.Context,
	account, folder, uid string,
) (*decode.Message, error) {
	key := account + "\x00" + folder + "\x00" + uid

	p.mu.Lock()
	if msg, ok := p.decoded[key]; ok {
		p.mu.Unlock()
		return msg, nil
	}
	p.mu.Unlock()

	raw, err := p.store.LoadRaw(ctx, account, folder, uid)
	if err != nil {
		return nil, fmt.Errorf("loading message %s: %w", uid, err)
	}
	if raw == nil {
		return notCachedMessage(uid), nil
	}

	msg, err := decode.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding message %s: %w", uid, err)
	}

	p.mu.Lock()
	p.decoded[key] = msg
	p.mu.Unlock()

	return msg, nil
}

// Forget drops one entry from the decode cache, used after a message
// is deleted.
func (p *Projector) Forget(account, folder, uid string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.decoded, account+"\x00"+folder+"\x00"+uid)
}
