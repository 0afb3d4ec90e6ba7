// Package fileclaim implements the cooperative exclusive file-locking
// service: a single holder per path plus a FIFO waitlist, with atomic
// handoff on release and lead-only forced release of stale holders
// (spec.md §4.E).
package fileclaim

import (
	"context"
	"database/sql"
	"time"

	"minionkernel/internal/datastore"
	"minionkernel/internal/kernelerr"
)

// Service wraps the datastore for claim operations.
type Service struct {
	store *datastore.Store
}

// New builds a Service over store.
func New(store *datastore.Store) *Service {
	return &Service{store: store}
}

// ClaimResult reports the outcome of a claim attempt.
type ClaimResult struct {
	Granted  bool
	Holder   string
	Position int // 1-based waitlist position when not granted.
}

// Claim grants the file to agent if unheld, refreshes the claim if agent
// already holds it (idempotent), or enqueues agent on the waitlist.
func (s *Service) Claim(ctx context.Context, agent, path string) (*ClaimResult, error) {
	var result ClaimResult
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UnixMilli()
		var holder string
		err := tx.QueryRow(`SELECT holder FROM file_claims WHERE file_path = ?`, path).Scan(&holder)
		switch {
		case err == sql.ErrNoRows:
			if _, err := tx.Exec(`INSERT INTO file_claims (file_path, holder, acquired_at) VALUES (?, ?, ?)`, path, agent, now); err != nil {
				return err
			}
			result = ClaimResult{Granted: true, Holder: agent}
			return nil
		case err != nil:
			return err
		case holder == agent:
			if _, err := tx.Exec(`UPDATE file_claims SET acquired_at = ? WHERE file_path = ?`, now, path); err != nil {
				return err
			}
			result = ClaimResult{Granted: true, Holder: agent}
			return nil
		default:
			var exists int
			if err := tx.QueryRow(`SELECT COUNT(*) FROM file_waitlist WHERE file_path = ? AND agent = ?`, path, agent).Scan(&exists); err != nil {
				return err
			}
			if exists == 0 {
				if _, err := tx.Exec(`INSERT INTO file_waitlist (file_path, agent, requested_at) VALUES (?, ?, ?)`, path, agent, now); err != nil {
					return err
				}
			}
			position, err := waitlistPositionTx(tx, path, agent)
			if err != nil {
				return err
			}
			result = ClaimResult{Granted: false, Holder: holder, Position: position}
			return nil
		}
	})
	return &result, err
}

func waitlistPositionTx(tx *sql.Tx, path, agent string) (int, error) {
	// seq is a monotonic insert-order column (spec.md property 5: exact
	// FIFO), rather than requested_at, which can tie within the same
	// millisecond under contention.
	rows, err := tx.Query(`SELECT agent FROM file_waitlist WHERE file_path = ? ORDER BY seq ASC`, path)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	pos := 0
	for rows.Next() {
		pos++
		var a string
		if err := rows.Scan(&a); err != nil {
			return 0, err
		}
		if a == agent {
			return pos, rows.Err()
		}
	}
	return 0, rows.Err()
}

// Release gives up agent's claim on path. If force is true (lead only, at
// the caller's discretion), any holder may be displaced. On success the
// earliest waitlisted agent (if any) is promoted atomically; otherwise the
// claim row is removed.
func (s *Service) Release(ctx context.Context, agent, path string, force bool) error {
	return s.store.WithTx(ctx, func(tx *sql.Tx) error {
		var holder string
		err := tx.QueryRow(`SELECT holder FROM file_claims WHERE file_path = ?`, path).Scan(&holder)
		if err == sql.ErrNoRows {
			return kernelerr.New(kernelerr.ClaimHeld, "release requires an existing claim", "no claim on "+path, "claim the file before releasing it")
		}
		if err != nil {
			return err
		}
		if holder != agent && !force {
			return kernelerr.New(kernelerr.ClaimHeld, "only the holder (or lead with force) may release", "held by "+holder, "ask the holder to release, or have lead force-release")
		}

		var nextAgent string
		err = tx.QueryRow(`SELECT agent FROM file_waitlist WHERE file_path = ? ORDER BY seq ASC LIMIT 1`, path).Scan(&nextAgent)
		switch {
		case err == sql.ErrNoRows:
			_, err = tx.Exec(`DELETE FROM file_claims WHERE file_path = ?`, path)
			return err
		case err != nil:
			return err
		default:
			now := time.Now().UnixMilli()
			if _, err := tx.Exec(`UPDATE file_claims SET holder = ?, acquired_at = ? WHERE file_path = ?`, nextAgent, now, path); err != nil {
				return err
			}
			_, err = tx.Exec(`DELETE FROM file_waitlist WHERE file_path = ? AND agent = ?`, path, nextAgent)
			return err
		}
	})
}

// Claim is the persisted state of one held file.
type Claim struct {
	Path       string
	Holder     string
	AcquiredAt time.Time
}

// List returns all currently held claims.
func (s *Service) List(ctx context.Context) ([]*Claim, error) {
	rows, err := s.store.DB().QueryContext(ctx, `SELECT file_path, holder, acquired_at FROM file_claims ORDER BY file_path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Claim
	for rows.Next() {
		var c Claim
		var acquired int64
		if err := rows.Scan(&c.Path, &c.Holder, &acquired); err != nil {
			return nil, err
		}
		c.AcquiredAt = time.UnixMilli(acquired)
		out = append(out, &c)
	}
	return out, rows.Err()
}

// Stale reports whether a claim has been held longer than threshold,
// the gate lead uses to decide whether a force-release is warranted
// (spec.md §4.E's "liveness via lead" invariant).
func Stale(c *Claim, threshold time.Duration, now time.Time) bool {
	return now.Sub(c.AcquiredAt) > threshold
}
