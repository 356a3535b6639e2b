package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ledgerly/backend/migrations"
)

// KVStore is a namespaced key/value store on the local database. It backs guest
// sessions, one namespace per session.
type KVStore struct {
	db *LocalDB
}

// NewKVStore returns a KVStore on db.
func NewKVStore(db *LocalDB) *KVStore {
	return &KVStore{db: db}
}

// Get returns the value under key. ok is false when the key is absent.
func (s *KVStore) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	return s.get(ctx, s.db.DB, namespace, key)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *KVStore) get(ctx context.Context, q queryRower, namespace, key string) (string, bool, error) {
	var value string
	err := q.QueryRowContext(ctx,
		s.db.Rebind("SELECT value FROM local_storage WHERE namespace = ? AND storage_key = ?"),
		namespace, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s/%s: %w", namespace, key, err)
	}
	return value, true, nil
}

// Set stores value under key.
func (s *KVStore) Set(ctx context.Context, namespace, key, value string) error {
	return s.set(ctx, s.db.DB, namespace, key, value)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *KVStore) set(ctx context.Context, e execer, namespace, key, value string) error {
	_, err := e.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO local_storage (namespace, storage_key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (namespace, storage_key)
		DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`),
		namespace, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Update runs a read-modify-write of key inside one transaction.
func (s *KVStore) Update(ctx context.Context, namespace, key string, fn func(current string, ok bool) (string, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if s.db.Dialect() == migrations.Postgres {
		// row locks cannot cover a key that does not exist yet
		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", namespace+"/"+key); err != nil {
			return fmt.Errorf("failed to lock %s/%s: %w", namespace, key, err)
		}
	}

	current, ok, err := s.get(ctx, tx, namespace, key)
	if err != nil {
		return err
	}
	next, err := fn(current, ok)
	if err != nil {
		return err
	}
	if err := s.set(ctx, tx, namespace, key, next); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes key.
func (s *KVStore) Delete(ctx context.Context, namespace, key string) error {
	_, err := s.db.ExecContext(ctx,
		s.db.Rebind("DELETE FROM local_storage WHERE namespace = ? AND storage_key = ?"),
		namespace, key)
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Clear removes every key of namespace.
func (s *KVStore) Clear(ctx context.Context, namespace string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM local_storage WHERE namespace = ?"), namespace)
	if err != nil {
		return fmt.Errorf("failed to clear %s: %w", namespace, err)
	}
	return nil
}

// PurgeIdle removes namespaces untouched since before cutoff and returns how many
// rows were deleted.
func (s *KVStore) PurgeIdle(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		DELETE FROM local_storage WHERE namespace IN (
			SELECT namespace FROM local_storage GROUP BY namespace HAVING MAX(updated_at) < ?
		)`), cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge idle guest sessions: %w", err)
	}
	return res.RowsAffected()
}
