package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/khsu/mailcat/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite
// database. A single mutex serializes all operations: the handle is
// shared between the foreground UI and background sync goroutines, and
// nothing here performs remote I/O while holding the lock.
type SQLiteStore struct {
	mu sync.Mutex
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// LoadList retrieves all cached metadata rows for one (account, folder)
// partition, newest insertion first. Raw content is not loaded.
func (s *SQLiteStore) LoadList(
	ctx context.Context,
	account, folder string,
) ([]model.CachedMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryxContext(ctx, `
		SELECT account, folder, uid, flags, from_addr, subject, date_str
		FROM emails
		WHERE account = ? AND folder = ?
		ORDER BY rowid DESC`,
		account, folder,
	)
	if err != nil {
		return nil, storeError("querying cached messages", err)
	}
	defer rows.Close()

	msgs := []model.CachedMessage{}
	for rows.Next() {
		var m model.CachedMessage
		if err := rows.StructScan(&m); err != nil {
			return nil, storeError("scanning cached message", err)
		}
		msgs = append(msgs, m)
	}

	if err := rows.Err(); err != nil {
		return nil, storeError("reading cached messages", err)
	}
	return msgs, nil
}

// LoadRaw retrieves the raw message bytes for one uid. It returns
// (nil, nil) when the row does not exist or has no downloaded content.
func (s *SQLiteStore) LoadRaw(
	ctx context.Context,
	account, folder, uid string,
) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var raw []byte
	err := s.db.GetContext(ctx, &raw, `
		SELECT raw FROM emails
		WHERE account = ? AND folder = ? AND uid = ?`,
		account, folder, uid,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError(fmt.Sprintf("loading raw message %s", uid), err)
	}

	return raw, nil
}

// GetUIDs retrieves the set of cached uids for one partition.
func (s *SQLiteStore) GetUIDs(
	ctx context.Context,
	account, folder string,
) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var uids []string
	err := s.db.SelectContext(ctx, &uids, `
		SELECT uid FROM emails
		WHERE account = ? AND folder = ?`,
		account, folder,
	)
	if err != nil {
		return nil, storeError("querying cached uids", err)
	}

	set := make(map[string]struct{}, len(uids))
	for _, uid := range uids {
		set[uid] = struct{}{}
	}
	return set, nil
}

// StoreBatch inserts a batch of messages in a single transaction with
// insert-or-ignore semantics per key. The account and folder arguments
// override whatever partition the rows carry.
func (s *SQLiteStore) StoreBatch(
	ctx context.Context,
	account, folder string,
	msgs []model.CachedMessage,
) error {
	if len(msgs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return storeError("beginning transaction", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT OR IGNORE INTO emails (
			account, folder, uid, flags, from_addr, subject, date_str, raw
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return storeError("preparing insert statement", err)
	}
	defer stmt.Close()

	for _, m := range msgs {
		_, err = stmt.ExecContext(ctx,
			account, folder, m.UID,
			m.Flags, m.FromAddr, m.Subject, m.DateStr, m.Raw,
		)
		if err != nil {
			return storeError(fmt.Sprintf("inserting message %s", m.UID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storeError("committing batch", err)
	}
	return nil
}

// Delete removes one cached row. Deleting an absent row is a no-op.
func (s *SQLiteStore) Delete(
	ctx context.Context,
	account, folder, uid string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		DELETE FROM emails
		WHERE account = ? AND folder = ? AND uid = ?`,
		account, folder, uid,
	)
	if err != nil {
		return storeError(fmt.Sprintf("deleting message %s", uid), err)
	}
	return nil
}
