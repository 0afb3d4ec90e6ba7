package datastore

import (
	"context"
	"database/sql"
	"time"
)

// SetFlagTx sets a process-wide flag within an existing transaction, used
// by send() to flip moon_crash/stand_down atomically with the message
// insert (spec.md §4.D step 2).
func SetFlagTx(tx *sql.Tx, key, value, setBy string) error {
	now := time.Now().UnixMilli()
	_, err := tx.Exec(`
		INSERT INTO flags (key, value, set_by, set_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, set_by = excluded.set_by, set_at = excluded.set_at
	`, key, value, setBy, now)
	return err
}

// ClearFlag removes a process-wide flag.
func (s *Store) ClearFlag(ctx context.Context, key string) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM flags WHERE key = ?`, key)
		return err
	})
}

// FlagSet reports whether a flag is currently present.
func (s *Store) FlagSet(ctx context.Context, key string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM flags WHERE key = ?`, key).Scan(&count)
	return count > 0, err
}
