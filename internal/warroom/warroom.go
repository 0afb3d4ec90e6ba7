// Package warroom implements the active-plan gate and the append-only raid
// log (spec.md §4.F). A successful send or task creation requires an
// active plan to exist for the project.
package warroom

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"minionkernel/internal/datastore"
)

// Plan is one war-room plan record.
type Plan struct {
	ID      string
	Agent   string
	Project string
	Text    string
	Status  string
	SetAt   time.Time
}

// LogEntry is one append-only raid-log row.
type LogEntry struct {
	ID        int64
	Agent     string
	EntryFile string
	Priority  string
	CreatedAt time.Time
}

// WarRoom wraps the datastore for plan and log operations.
type WarRoom struct {
	store *datastore.Store
}

// New builds a WarRoom over store.
func New(store *datastore.Store) *WarRoom {
	return &WarRoom{store: store}
}

// SetPlan marks any prior active plan for the project completed, then
// inserts the new plan as active, in one transaction.
func (w *WarRoom) SetPlan(ctx context.Context, agent, project, text string) (*Plan, error) {
	id := uuid.NewString()
	now := time.Now()
	err := w.store.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`UPDATE plans SET status = 'completed' WHERE project = ? AND status = 'active'`, project); err != nil {
			return err
		}
		_, err := tx.Exec(`INSERT INTO plans (id, agent, project, text, status, set_at) VALUES (?, ?, ?, ?, 'active', ?)`,
			id, agent, project, text, now.UnixMilli())
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Plan{ID: id, Agent: agent, Project: project, Text: text, Status: "active", SetAt: now}, nil
}

// ActivePlan returns the current active plan for project, or
// datastore.ErrNotFound() if none exists.
func (w *WarRoom) ActivePlan(ctx context.Context, project string) (*Plan, error) {
	row := w.store.DB().QueryRowContext(ctx, `
		SELECT id, agent, project, text, status, set_at FROM plans
		WHERE project = ? AND status = 'active' ORDER BY set_at DESC LIMIT 1
	`, project)
	var p Plan
	var setAt int64
	if err := row.Scan(&p.ID, &p.Agent, &p.Project, &p.Text, &p.Status, &setAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, datastore.ErrNotFound()
		}
		return nil, err
	}
	p.SetAt = time.UnixMilli(setAt)
	return &p, nil
}

// HasActivePlan reports whether project currently has an active plan,
// used as the send()/create_task() precondition gate.
func (w *WarRoom) HasActivePlan(ctx context.Context, project string) (bool, error) {
	_, err := w.ActivePlan(ctx, project)
	if err == datastore.ErrNotFound() {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UpdatePlanStatus transitions a plan to completed or canceled.
func (w *WarRoom) UpdatePlanStatus(ctx context.Context, planID, status string) error {
	return w.store.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE plans SET status = ? WHERE id = ?`, status, planID)
		return err
	})
}

// Log appends one audit entry.
func (w *WarRoom) Log(ctx context.Context, agent, entryFile, priority string) error {
	now := time.Now().UnixMilli()
	return w.store.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO log_entries (agent, entry_file, priority, created_at) VALUES (?, ?, ?, ?)`,
			agent, entryFile, priority, now)
		return err
	})
}

// GetLog reads the most recent count entries, newest first.
func (w *WarRoom) GetLog(ctx context.Context, count int) ([]*LogEntry, error) {
	rows, err := w.store.DB().QueryContext(ctx, `
		SELECT id, agent, entry_file, priority, created_at FROM log_entries
		ORDER BY id DESC LIMIT ?
	`, count)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*LogEntry
	for rows.Next() {
		var e LogEntry
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.Agent, &e.EntryFile, &e.Priority, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt = time.UnixMilli(createdAt)
		out = append(out, &e)
	}
	return out, rows.Err()
}
