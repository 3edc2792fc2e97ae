// Package localstore is the local fallback key-value store. It keeps
// the day documents the remote store could not take, keyed
// "<namespace>-<date>" (bare "<namespace>" for the singleton key), as
// JSON text in a single SQLite table.
package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"badminton-expense-bot/internal/model"
)

// ErrNotFound is returned when no value is stored under a key.
var ErrNotFound = errors.New("local record not found")

// Store is a SQLite-backed string key-value store.
type Store struct {
	db        *sql.DB
	namespace string
}

// Open opens (or creates) the store at path. The namespace prefixes
// every key so multiple deployments can share one cache file.
func Open(path, namespace string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS kv (
			id TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init local store schema: %w", err)
	}

	log.Info().Str("path", path).Str("namespace", namespace).Msg("Local fallback store ready")

	return &Store{db: db, namespace: namespace}, nil
}

// Get retrieves the value stored under the logical key.
// Returns ErrNotFound if absent.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE id = ?`, s.storageKey(key)).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read local record %s: %w", key, err)
	}
	return []byte(value), nil
}

// Put stores value under the logical key, replacing any prior value.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	const query = `
		INSERT INTO kv (id, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.db.ExecContext(ctx, query, s.storageKey(key), string(value)); err != nil {
		return fmt.Errorf("failed to write local record %s: %w", key, err)
	}
	return nil
}

// Delete removes the value stored under the logical key, if any.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE id = ?`, s.storageKey(key)); err != nil {
		return fmt.Errorf("failed to delete local record %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// storageKey maps a logical day key onto the namespaced store key.
func (s *Store) storageKey(key string) string {
	if key == model.SingletonKey {
		return s.namespace
	}
	return s.namespace + "-" + key
}
