package store

import (
	"context"

	"github.com/khsu/mailcat/internal/model"
)

// Store defines the persistence interface for the local mail cache.
// Rows are partitioned by (account, folder) and keyed by uid within a
// partition. Implementations must be safe for concurrent use from the
// sync goroutine and the UI.
type Store interface {
	// LoadList returns the cached message metadata for one partition,
	// newest insertion first, without raw content. An empty partition
	// returns an empty slice, never an error.
	LoadList(ctx context.Context, account, folder string) ([]model.CachedMessage, error)

	// LoadRaw returns the raw bytes for one message, or nil when the
	// row is unknown or its content was never downloaded.
	LoadRaw(ctx context.Context, account, folder, uid string) ([]byte, error)

	// GetUIDs returns the set of cached uids for one partition. Called
	// before every sync, so it is index-backed and cheap.
	GetUIDs(ctx context.Context, account, folder string) (map[string]struct{}, error)

	// StoreBatch inserts a batch of messages in a single transaction.
	// A uid already present in the partition is silently kept as-is;
	// overlapping batches are safe to replay. The batch commits
	// all-or-nothing.
	StoreBatch(ctx context.Context, account, folder string, msgs []model.CachedMessage) error

	// Delete removes one row if present; an absent row is not an error.
	Delete(ctx context.Context, account, folder, uid string) error

	Close() error
}
