package datastore

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// Task is the persisted record for one unit of work moving through a flow.
type Task struct {
	ID              string
	Title           string
	TaskFile        string
	Project         string
	Zone            string
	Status          string
	BlockedBy       []string
	AssignedTo      string
	CreatedBy       string
	Files           []string
	Progress        string
	ClassRequired   string
	TaskType        string
	ActivityCount   int
	ResultFile      string
	RequirementPath string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func joinList(items []string) string { return strings.Join(items, ",") }

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

const taskColumns = `id, title, task_file, project, zone, status, blocked_by, assigned_to,
	created_by, files, progress, class_required, task_type, activity_count, result_file,
	requirement_path, created_at, updated_at`

func scanTask(row interface {
	Scan(dest ...interface{}) error
}) (*Task, error) {
	var t Task
	var blockedBy, files string
	var assignedTo, progress, classRequired, resultFile, reqPath, zone, taskFile sql.NullString
	var createdAt, updatedAt int64
	if err := row.Scan(&t.ID, &t.Title, &taskFile, &t.Project, &zone, &t.Status, &blockedBy,
		&assignedTo, &t.CreatedBy, &files, &progress, &classRequired, &t.TaskType,
		&t.ActivityCount, &resultFile, &reqPath, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	t.TaskFile = taskFile.String
	t.Zone = zone.String
	t.BlockedBy = splitList(blockedBy)
	t.AssignedTo = assignedTo.String
	t.Files = splitList(files)
	t.Progress = progress.String
	t.ClassRequired = classRequired.String
	t.ResultFile = resultFile.String
	t.RequirementPath = reqPath.String
	t.CreatedAt = time.UnixMilli(createdAt)
	t.UpdatedAt = time.UnixMilli(updatedAt)
	return &t, nil
}

// HistoryEntry is one append-only task transition row.
type HistoryEntry struct {
	ID         int64
	TaskID     string
	FromStatus string
	ToStatus   string
	Agent      string
	Timestamp  time.Time
}

// CreateTaskTx inserts a new task row within an existing transaction.
func CreateTaskTx(tx *sql.Tx, t *Task) error {
	now := time.Now().UnixMilli()
	_, err := tx.Exec(`
		INSERT INTO tasks (id, title, task_file, project, zone, status, blocked_by, assigned_to,
			created_by, files, progress, class_required, task_type, activity_count, result_file,
			requirement_path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, NULL, ?, ?, ?)
	`, t.ID, t.Title, t.TaskFile, t.Project, t.Zone, t.Status, joinList(t.BlockedBy),
		nullIfEmpty(t.AssignedTo), t.CreatedBy, joinList(t.Files), t.Progress,
		t.ClassRequired, t.TaskType, t.RequirementPath, now, now)
	return err
}

// GetTaskTx fetches a task by id within an existing transaction, locking it
// implicitly for the duration of the surrounding transaction.
func GetTaskTx(tx *sql.Tx, id string) (*Task, error) {
	row := tx.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, errNotFound
	}
	return t, err
}

// GetTask fetches a task by id outside any transaction (read path).
func (s *Store) GetTask(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, errNotFound
	}
	return t, err
}

// ListTasks returns tasks for a project, optionally filtered by status.
func (s *Store) ListTasks(ctx context.Context, project, status string) ([]*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE project = ?`
	args := []interface{}{project}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateTaskFieldsTx mutates progress/files within the current
// stage (update_task never changes status; that is complete_phase's job).
func UpdateTaskFieldsTx(tx *sql.Tx, id, progress string, files []string) error {
	now := time.Now().UnixMilli()
	_, err := tx.Exec(`UPDATE tasks SET progress = ?, files = ?, updated_at = ? WHERE id = ?`,
		progress, joinList(files), now, id)
	return err
}

// TransitionTaskTx moves a task to a new status, optionally reassigning or
// clearing assigned_to, increments activity_count, and inserts a history
// row, all within the caller's transaction.
func TransitionTaskTx(tx *sql.Tx, id, fromStatus, toStatus, agent string, assignedTo *string) error {
	now := time.Now().UnixMilli()
	if assignedTo != nil {
		if _, err := tx.Exec(`UPDATE tasks SET status = ?, assigned_to = ?, activity_count = activity_count + 1, updated_at = ? WHERE id = ?`,
			toStatus, nullIfEmpty(*assignedTo), now, id); err != nil {
			return err
		}
	} else {
		if _, err := tx.Exec(`UPDATE tasks SET status = ?, activity_count = activity_count + 1, updated_at = ? WHERE id = ?`,
			toStatus, now, id); err != nil {
			return err
		}
	}
	_, err := tx.Exec(`INSERT INTO task_history (task_id, from_status, to_status, agent, timestamp) VALUES (?, ?, ?, ?, ?)`,
		id, fromStatus, toStatus, agent, now)
	return err
}

// SetResultFileTx stores the result file path for a task.
func SetResultFileTx(tx *sql.Tx, id, resultFile string) error {
	now := time.Now().UnixMilli()
	_, err := tx.Exec(`UPDATE tasks SET result_file = ?, updated_at = ? WHERE id = ?`, resultFile, now, id)
	return err
}

// AllClosedTx reports whether every task id in ids exists and has a status
// in closedStatuses (used for the blocked_by gate). Callers supply the set
// of terminal statuses since that is flow-specific.
func AllClosedTx(tx *sql.Tx, ids []string, closedStatuses map[string]bool) (bool, error) {
	for _, id := range ids {
		if id == "" {
			continue
		}
		var status string
		if err := tx.QueryRow(`SELECT status FROM tasks WHERE id = ?`, id).Scan(&status); err != nil {
			if err == sql.ErrNoRows {
				return false, nil
			}
			return false, err
		}
		if !closedStatuses[status] {
			return false, nil
		}
	}
	return true, nil
}

// History returns the ordered transition history for a task.
func (s *Store) History(ctx context.Context, taskID string) ([]*HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, from_status, to_status, agent, timestamp FROM task_history
		WHERE task_id = ? ORDER BY id ASC
	`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*HistoryEntry
	for rows.Next() {
		var h HistoryEntry
		var ts int64
		if err := rows.Scan(&h.ID, &h.TaskID, &h.FromStatus, &h.ToStatus, &h.Agent, &ts); err != nil {
			return nil, err
		}
		h.Timestamp = time.UnixMilli(ts)
		out = append(out, &h)
	}
	return out, rows.Err()
}
