package datastore

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"
)

// Agent is the persisted record for one registered participant.
type Agent struct {
	Name             string
	Class            string
	Model            string
	Transport        string
	Status           string
	ContextSummary   string
	LastSeen         time.Time
	ContextUpdatedAt time.Time
	HPInputTokens    int64
	HPOutputTokens   int64
	HPTurnInput      int64
	HPTurnOutput     int64
	HPTokensLimit    int64
	HPMode           string
	HPAlertsFired    map[int]bool
	CurrentZone      string
	CurrentRole      string
	RegisteredAt     time.Time
	Retired          bool
}

func encodeAlerts(fired map[int]bool) string {
	parts := make([]string, 0, len(fired))
	for k, v := range fired {
		if v {
			parts = append(parts, strconv.Itoa(k))
		}
	}
	return strings.Join(parts, ",")
}

func decodeAlerts(s string) map[int]bool {
	out := map[int]bool{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if n, err := strconv.Atoi(p); err == nil {
			out[n] = true
		}
	}
	return out
}

func scanAgent(row interface {
	Scan(dest ...interface{}) error
}) (*Agent, error) {
	var a Agent
	var lastSeen, ctxUpdated, registeredAt int64
	var alerts string
	var retired int
	var model, status, summary, zone, role sql.NullString
	if err := row.Scan(&a.Name, &a.Class, &model, &a.Transport, &status, &summary,
		&lastSeen, &ctxUpdated, &a.HPInputTokens, &a.HPOutputTokens, &a.HPTurnInput,
		&a.HPTurnOutput, &a.HPTokensLimit, &a.HPMode, &alerts, &zone, &role,
		&registeredAt, &retired); err != nil {
		return nil, err
	}
	a.Model = model.String
	a.Status = status.String
	a.ContextSummary = summary.String
	a.CurrentZone = zone.String
	a.CurrentRole = role.String
	a.LastSeen = time.UnixMilli(lastSeen)
	a.ContextUpdatedAt = time.UnixMilli(ctxUpdated)
	a.RegisteredAt = time.UnixMilli(registeredAt)
	a.HPAlertsFired = decodeAlerts(alerts)
	a.Retired = retired != 0
	return &a, nil
}

const agentColumns = `name, class, model, transport, status, context_summary,
	last_seen, context_updated_at, hp_input_tokens, hp_output_tokens, hp_turn_input,
	hp_turn_output, hp_tokens_limit, hp_mode, hp_alerts_fired, current_zone, current_role,
	registered_at, retired`

// Register is idempotent on name: insert on first call, update class/model/
// transport/last_seen on subsequent calls, per spec.md §4.C.
func (s *Store) Register(ctx context.Context, name, class, model, transport string) (*Agent, error) {
	now := time.Now().UnixMilli()
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO agents (name, class, model, transport, status, context_summary,
				last_seen, context_updated_at, hp_mode, current_zone, current_role, registered_at)
			VALUES (?, ?, ?, ?, '', '', ?, ?, 'none', '', '', ?)
			ON CONFLICT(name) DO UPDATE SET
				class = excluded.class,
				model = excluded.model,
				transport = excluded.transport,
				last_seen = excluded.last_seen,
				retired = 0
		`, name, class, model, transport, now, now, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.GetAgent(ctx, name)
}

// Deregister removes an agent's record entirely.
func (s *Store) Deregister(ctx context.Context, name string) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM agents WHERE name = ?`, name)
		return err
	})
}

// Rename changes an agent's primary key, carrying forward all FK-less state.
func (s *Store) Rename(ctx context.Context, oldName, newName string) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE agents SET name = ? WHERE name = ?`, newName, oldName)
		return err
	})
}

// GetAgent fetches one agent by name, returning ErrNotFound if absent.
func (s *Store) GetAgent(ctx context.Context, name string) (*Agent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM agents WHERE name = ?`, name)
	a, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, errNotFound
	}
	return a, err
}

// ListAgents returns all registered (non-retired) agents.
func (s *Store) ListAgents(ctx context.Context) ([]*Agent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+agentColumns+` FROM agents WHERE retired = 0 ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListAgentsByClass returns all registered agents of a given class.
func (s *Store) ListAgentsByClass(ctx context.Context, class string) ([]*Agent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+agentColumns+` FROM agents WHERE class = ? AND retired = 0 ORDER BY name`, class)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CurrentLead returns the first registered agent of class "lead", if any.
func (s *Store) CurrentLead(ctx context.Context) (*Agent, error) {
	leads, err := s.ListAgentsByClass(ctx, "lead")
	if err != nil {
		return nil, err
	}
	if len(leads) == 0 {
		return nil, errNotFound
	}
	return leads[0], nil
}

// SetContext updates context_summary, context_updated_at, and last_seen. If
// hpMode is non-empty it also updates hp_mode (used when an agent supplies
// --hp, switching to self-reported mode per spec.md §4.C).
func (s *Store) SetContext(ctx context.Context, name, summary string, hpMode string) error {
	now := time.Now().UnixMilli()
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if hpMode != "" {
			_, err := tx.Exec(`UPDATE agents SET context_summary = ?, context_updated_at = ?, last_seen = ?, hp_mode = ? WHERE name = ?`,
				summary, now, now, hpMode, name)
			return err
		}
		_, err := tx.Exec(`UPDATE agents SET context_summary = ?, context_updated_at = ?, last_seen = ? WHERE name = ?`,
			summary, now, now, name)
		return err
	})
}

// SetStatus updates an agent's free-text status and touches last_seen.
func (s *Store) SetStatus(ctx context.Context, name, status string) error {
	now := time.Now().UnixMilli()
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE agents SET status = ?, last_seen = ? WHERE name = ?`, status, now, name)
		return err
	})
}

// TouchLastSeen records daemon activity without altering context.
func (s *Store) TouchLastSeen(ctx context.Context, name string) error {
	now := time.Now().UnixMilli()
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE agents SET last_seen = ? WHERE name = ?`, now, name)
		return err
	})
}

// Retire marks an agent retired; daemons observe this on the next poll and
// exit gracefully (spec.md §5 "retire_agent(name)").
func (s *Store) Retire(ctx context.Context, name string) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE agents SET retired = 1 WHERE name = ?`, name)
		return err
	})
}

// UpdateHP writes per-turn token telemetry and cumulative counters. Callers
// must hold CapHPWrite, never by promoting the agent's class to lead
// (spec.md §9 "privilege leakage").
func (s *Store) UpdateHP(ctx context.Context, name string, turnInput, turnOutput, tokensLimit int64, mode string) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			UPDATE agents SET
				hp_turn_input = ?, hp_turn_output = ?,
				hp_input_tokens = hp_input_tokens + ?, hp_output_tokens = hp_output_tokens + ?,
				hp_tokens_limit = ?, hp_mode = ?
			WHERE name = ?
		`, turnInput, turnOutput, turnInput, turnOutput, tokensLimit, mode, name)
		return err
	})
}

// AgentExistsTx reports whether name is a registered (non-retired) agent,
// within an existing transaction.
func AgentExistsTx(tx *sql.Tx, name string) (bool, error) {
	var count int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM agents WHERE name = ? AND retired = 0`, name).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// AgentClassTx returns the class of a registered agent within an existing
// transaction.
func AgentClassTx(tx *sql.Tx, name string) (string, error) {
	var class string
	err := tx.QueryRow(`SELECT class FROM agents WHERE name = ? AND retired = 0`, name).Scan(&class)
	if err == sql.ErrNoRows {
		return "", errNotFound
	}
	return class, err
}

// AgentNamesByClassTx lists registered agent names of a class within an
// existing transaction.
func AgentNamesByClassTx(tx *sql.Tx, class string) ([]string, error) {
	rows, err := tx.Query(`SELECT name FROM agents WHERE class = ? AND retired = 0 ORDER BY name`, class)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// CurrentLeadTx returns the name of the first registered lead, within an
// existing transaction.
func CurrentLeadTx(tx *sql.Tx) (string, error) {
	names, err := AgentNamesByClassTx(tx, "lead")
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", errNotFound
	}
	return names[0], nil
}

// SetAlertsFired overwrites the hp_alerts_fired set for an agent.
func (s *Store) SetAlertsFired(ctx context.Context, name string, fired map[int]bool) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE agents SET hp_alerts_fired = ? WHERE name = ?`, encodeAlerts(fired), name)
		return err
	})
}
