package datastore

import (
	"context"
	"database/sql"
	"time"
)

// Message is one inbox row.
type Message struct {
	ID           int64
	FromAgent    string
	ToAgent      string
	ContentPath  string
	Timestamp    time.Time
	ReadFlag     bool
	IsCC         bool
	CCOriginalTo string
}

func scanMessage(row interface {
	Scan(dest ...interface{}) error
}) (*Message, error) {
	var m Message
	var ts int64
	var readFlag, isCC int
	var ccTo sql.NullString
	if err := row.Scan(&m.ID, &m.FromAgent, &m.ToAgent, &m.ContentPath, &ts, &readFlag, &isCC, &ccTo); err != nil {
		return nil, err
	}
	m.Timestamp = time.UnixMilli(ts)
	m.ReadFlag = readFlag != 0
	m.IsCC = isCC != 0
	m.CCOriginalTo = ccTo.String
	return &m, nil
}

const messageColumns = `id, from_agent, to_agent, content_path, timestamp, read_flag, is_cc, cc_original_to`

// InsertMessage appends one row inside an existing transaction (send()
// inserts one row per literal recipient, possibly several per call, plus an
// auto-CC row; all in one transaction per spec.md §5).
func InsertMessage(tx *sql.Tx, from, to, contentPath string, isCC bool, ccOriginalTo string) (int64, error) {
	now := time.Now().UnixMilli()
	res, err := tx.Exec(`INSERT INTO messages (from_agent, to_agent, content_path, timestamp, read_flag, is_cc, cc_original_to)
		VALUES (?, ?, ?, ?, 0, ?, ?)`, from, to, contentPath, now, boolToInt(isCC), nullIfEmpty(ccOriginalTo))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// SetMessageContentPathTx updates the content_path for one message row,
// used when the path is derived from the row's own id (spec.md §6
// inbox/<agent>/<msg-id>.md layout).
func SetMessageContentPathTx(tx *sql.Tx, id int64, path string) error {
	_, err := tx.Exec(`UPDATE messages SET content_path = ? WHERE id = ?`, path, id)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// CheckInboxPeek counts unread messages for name without marking them read,
// used by send()'s "inbox empty of unread" precondition.
func (s *Store) CheckInboxPeek(ctx context.Context, name string) (int, error) {
	var directUnread int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE to_agent = ? AND read_flag = 0`, name).Scan(&directUnread); err != nil {
		return 0, err
	}
	var broadcastUnread int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages m
		WHERE m.to_agent = 'all'
		AND NOT EXISTS (SELECT 1 FROM broadcast_reads br WHERE br.agent_name = ? AND br.message_id = m.id)
	`, name).Scan(&broadcastUnread); err != nil {
		return 0, err
	}
	return directUnread + broadcastUnread, nil
}

// CheckInbox returns all unread messages addressed to name (direct, class,
// or not-yet-observed broadcast), ordered (timestamp ASC, id ASC), and
// atomically marks them read / records broadcast reads, in one transaction.
func (s *Store) CheckInbox(ctx context.Context, name string) ([]*Message, error) {
	var out []*Message
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.Query(`
			SELECT `+messageColumns+` FROM messages
			WHERE to_agent = ? AND read_flag = 0
			ORDER BY timestamp ASC, id ASC
		`, name)
		if err != nil {
			return err
		}
		var direct []*Message
		for rows.Next() {
			m, err := scanMessage(rows)
			if err != nil {
				rows.Close()
				return err
			}
			direct = append(direct, m)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		broadcastRows, err := tx.Query(`
			SELECT `+messageColumns+` FROM messages m
			WHERE m.to_agent = 'all'
			AND NOT EXISTS (SELECT 1 FROM broadcast_reads br WHERE br.agent_name = ? AND br.message_id = m.id)
			ORDER BY timestamp ASC, id ASC
		`, name)
		if err != nil {
			return err
		}
		var broadcasts []*Message
		for broadcastRows.Next() {
			m, err := scanMessage(broadcastRows)
			if err != nil {
				broadcastRows.Close()
				return err
			}
			broadcasts = append(broadcasts, m)
		}
		broadcastRows.Close()
		if err := broadcastRows.Err(); err != nil {
			return err
		}

		merged := mergeByTimestamp(direct, broadcasts)

		for _, m := range direct {
			if _, err := tx.Exec(`UPDATE messages SET read_flag = 1 WHERE id = ?`, m.ID); err != nil {
				return err
			}
		}
		for _, m := range broadcasts {
			if _, err := tx.Exec(`INSERT OR IGNORE INTO broadcast_reads (agent_name, message_id) VALUES (?, ?)`, name, m.ID); err != nil {
				return err
			}
		}
		out = merged
		return nil
	})
	return out, err
}

// mergeByTimestamp merges two already-sorted slices preserving the
// (timestamp ASC, id ASC) total order across direct and broadcast messages.
func mergeByTimestamp(a, b []*Message) []*Message {
	out := make([]*Message, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i].Timestamp.Before(b[j].Timestamp) || (a[i].Timestamp.Equal(b[j].Timestamp) && a[i].ID < b[j].ID) {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

// PurgeInbox deletes read messages older than olderThan for name, leaving
// unread messages untouched.
func (s *Store) PurgeInbox(ctx context.Context, name string, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).UnixMilli()
	var affected int64
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM messages WHERE to_agent = ? AND read_flag = 1 AND timestamp < ?`, name, cutoff)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected, err
}

// GetHistory returns the most recent messages involving name (sent or
// received), newest first, bounded by limit.
func (s *Store) GetHistory(ctx context.Context, name string, limit int) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE from_agent = ? OR to_agent = ?
		ORDER BY timestamp DESC, id DESC LIMIT ?
	`, name, name, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
