// Package datastore is the durable store for the coordination kernel: a
// single SQLite file holding agents, messages, tasks, claims, plans, log
// entries, process-wide flags, and fenix records. Every multi-row mutation
// runs in one transaction; the store is a rebuildable index over the
// filesystem content it references (message bodies, task specs, results).
package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"minionkernel/internal/kernelerr"
	"minionkernel/internal/logging"
)

// Store wraps the SQLite connection and its schema.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates the directory for path if needed, opens the SQLite database,
// enables WAL mode, and applies the schema. Mirrors the fail-fast-on-
// critical / non-fatal-on-maintenance pattern used for datastore
// construction throughout this codebase.
func Open(path string) (*Store, error) {
	done := logging.StartTimer(logging.CategoryDatastore, "Open")
	defer done()

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create datastore dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open datastore: %w", err)
	}
	db.SetMaxOpenConns(1) // single-writer cgo driver; transactions serialize here.

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate datastore: %w", err)
	}
	logging.Get(logging.CategoryDatastore).Info("datastore opened", map[string]interface{}{"path": path})
	return s, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the raw *sql.DB for packages that need read-only convenience
// queries outside a transaction (e.g. list/get operations).
func (s *Store) DB() *sql.DB { return s.db }

const maxConflictRetries = 3

// WithTx runs fn inside a transaction, retrying up to 3 times with jitter on
// SQLITE_BUSY/locked errors (classified as kernelerr.Conflict), matching
// spec.md §7's datastore failure policy. fn must not retain tx beyond
// return.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt <= maxConflictRetries; attempt++ {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			if isBusy(err) {
				lastErr = kernelerr.New(kernelerr.Conflict, "datastore busy", err.Error(), "retried automatically")
				time.Sleep(jitterBackoff(attempt))
				continue
			}
			return err
		}
		if err := tx.Commit(); err != nil {
			if isBusy(err) {
				lastErr = kernelerr.New(kernelerr.Conflict, "commit contended", err.Error(), "retried automatically")
				time.Sleep(jitterBackoff(attempt))
				continue
			}
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	}
	return lastErr
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func jitterBackoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * 10 * time.Millisecond
	return base + time.Duration(rand.Intn(20))*time.Millisecond
}

var errNotFound = errors.New("datastore: not found")

// ErrNotFound is returned by single-row lookups that find no matching row.
func ErrNotFound() error { return errNotFound }
