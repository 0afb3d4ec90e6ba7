// Package fenix implements pre-death knowledge dumps and post-restart cold
// starts: fenix_down always accepted even with a stale context, cold_start
// atomically consumes pending records and assembles a recovery briefing
// (spec.md §4.M).
package fenix

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"minionkernel/internal/datastore"
	"minionkernel/internal/health"
	"minionkernel/internal/warroom"
)

// Record is one knowledge-dump marker.
type Record struct {
	ID         string
	Agent      string
	Files      []string
	Manifest   string
	CreatedAt  time.Time
	ConsumedAt *time.Time
}

// Service wires the datastore, war-room, and health monitor for cold-start
// briefings.
type Service struct {
	store *datastore.Store
	room  *warroom.WarRoom
	hp    *health.Monitor
}

// New builds a Service.
func New(store *datastore.Store, room *warroom.WarRoom, hp *health.Monitor) *Service {
	return &Service{store: store, room: room, hp: hp}
}

// FenixDown records a knowledge-dump marker. This must always be accepted
// even if the agent's context is stale (spec.md §4.M).
func (s *Service) FenixDown(ctx context.Context, agent string, files []string, manifest string) (*Record, error) {
	id := uuid.NewString()
	now := time.Now()
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO fenix_records (id, agent, files, manifest, created_at) VALUES (?, ?, ?, ?, ?)`,
			id, agent, joinFiles(files), manifest, now.UnixMilli())
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Record{ID: id, Agent: agent, Files: files, Manifest: manifest, CreatedAt: now}, nil
}

func joinFiles(files []string) string { return strings.Join(files, ",") }

// Briefing is the recovery payload returned by ColdStart.
type Briefing struct {
	Records     []*Record
	ActivePlan  *warroom.Plan
	OpenTasks   []*datastore.Task
	LastHPPct   int
	LastHPKnown bool
	RecentLog   []*warroom.LogEntry
}

// ColdStart returns all unconsumed fenix records for agent, atomically
// marking them consumed, plus the recovery briefing: active plan, the
// project's tasks assigned to agent (in any status, closed ones included),
// last HP, and recent log entries.
func (s *Service) ColdStart(ctx context.Context, agent, project string) (*Briefing, error) {
	var records []*Record
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.Query(`SELECT id, files, manifest, created_at FROM fenix_records WHERE agent = ? AND consumed_at IS NULL`, agent)
		if err != nil {
			return err
		}
		var ids []string
		for rows.Next() {
			var id, files, manifest string
			var createdAt int64
			if err := rows.Scan(&id, &files, &manifest, &createdAt); err != nil {
				rows.Close()
				return err
			}
			records = append(records, &Record{ID: id, Agent: agent, Files: splitFiles(files), Manifest: manifest, CreatedAt: time.UnixMilli(createdAt)})
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		now := time.Now().UnixMilli()
		for _, id := range ids {
			if _, err := tx.Exec(`UPDATE fenix_records SET consumed_at = ? WHERE id = ?`, now, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	briefing := &Briefing{Records: records}

	if plan, perr := s.room.ActivePlan(ctx, project); perr == nil {
		briefing.ActivePlan = plan
	}

	openTasks, terr := s.store.ListTasks(ctx, project, "")
	if terr == nil {
		for _, t := range openTasks {
			if t.AssignedTo == agent {
				briefing.OpenTasks = append(briefing.OpenTasks, t)
			}
		}
	}

	if s.hp != nil {
		if _, pct, ok, herr := s.hp.ZoneFor(ctx, agent); herr == nil && ok {
			briefing.LastHPPct = pct
			briefing.LastHPKnown = true
		}
	}

	if log, lerr := s.room.GetLog(ctx, 20); lerr == nil {
		briefing.RecentLog = log
	}

	return briefing, nil
}

func splitFiles(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
