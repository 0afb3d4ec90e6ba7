// Package messaging implements send/check_inbox/purge: per-recipient
// inboxes, CC auto-fan-out to lead, broadcast delivery with per-agent
// dedup, and trigger scanning that flips emergency flags atomically with
// the message insert (spec.md §4.D).
package messaging

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"minionkernel/internal/authz"
	"minionkernel/internal/datastore"
	"minionkernel/internal/kernelerr"
	"minionkernel/internal/logging"
	"minionkernel/internal/registry"
	"minionkernel/internal/triggers"
	"minionkernel/internal/warroom"
)

// Messenger wires the datastore, registry, and war-room together to
// implement the send contract.
type Messenger struct {
	store   *datastore.Store
	reg     *registry.Registry
	room    *warroom.WarRoom
	project string
	inboxDir string
}

// New builds a Messenger. inboxDir is the root under which message content
// files are written (spec.md §6: inbox/<agent>/<msg-id>.md).
func New(store *datastore.Store, reg *registry.Registry, room *warroom.WarRoom, project, inboxDir string) *Messenger {
	return &Messenger{store: store, reg: reg, room: room, project: project, inboxDir: inboxDir}
}

// SendResult reports what a send produced, including any triggers
// detected.
type SendResult struct {
	RecipientCount int
	Triggers       []triggers.Trigger
}

// Send implements the full send contract: preconditions, trigger scan and
// flag flip, per-recipient insert, and auto-CC. The preconditions are
// checked before the transaction opens and are not re-checked inside it;
// the writes that follow run in one transaction.
func (m *Messenger) Send(ctx context.Context, from, to, content string, cc []string) (*SendResult, error) {
	fromClass, err := m.classOf(ctx, from)
	if err != nil {
		return nil, err
	}

	detected := triggers.Scan(content)
	bearsFenix := containsTrigger(detected, triggers.FenixDown)

	if err := m.checkPreconditions(ctx, from, fromClass, bearsFenix); err != nil {
		return nil, err
	}

	var count int
	var contentPath string
	writeOnce := func(id int64) (string, error) {
		if contentPath != "" {
			return contentPath, nil
		}
		p, err := m.writeContent(from, id, content)
		if err != nil {
			return "", err
		}
		contentPath = p
		return p, nil
	}

	err = m.store.WithTx(ctx, func(tx *sql.Tx) error {
		for _, t := range detected {
			if triggers.IsActive(t) {
				if err := datastore.SetFlagTx(tx, string(t), "set", from); err != nil {
					return err
				}
			}
		}

		recipients, err := resolveRecipients(tx, to)
		if err != nil {
			return err
		}

		for _, r := range recipients {
			id, err := datastore.InsertMessage(tx, from, r, "", false, "")
			if err != nil {
				return err
			}
			path, err := writeOnce(id)
			if err != nil {
				return err
			}
			if err := datastore.SetMessageContentPathTx(tx, id, path); err != nil {
				return err
			}
			count++
		}

		return m.autoCC(tx, from, fromClass, to, writeOnce)
	})
	if err != nil {
		return nil, err
	}

	logging.Get(logging.CategoryMessaging).Info("message sent", map[string]interface{}{
		"from": from, "to": to, "recipients": count, "triggers": detected,
	})
	return &SendResult{RecipientCount: count, Triggers: detected}, nil
}

func (m *Messenger) classOf(ctx context.Context, name string) (string, error) {
	a, err := m.store.GetAgent(ctx, name)
	if err != nil {
		return "", err
	}
	return a.Class, nil
}

func (m *Messenger) checkPreconditions(ctx context.Context, from, fromClass string, bearsFenix bool) error {
	if err := m.reg.CheckFreshness(ctx, from); err != nil {
		return err
	}

	unread, err := m.store.CheckInboxPeek(ctx, from)
	if err != nil {
		return err
	}
	if unread > 0 {
		return kernelerr.New(kernelerr.UnreadInbox, "sender must clear their inbox before sending",
			fmt.Sprintf("%d unread", unread), "call check_inbox before sending")
	}

	hasPlan, err := m.room.HasActivePlan(ctx, m.project)
	if err != nil {
		return err
	}
	if !hasPlan {
		return kernelerr.New(kernelerr.NoActivePlan, "a send requires an active war-room plan", "no active plan", "call set_plan before sending")
	}

	crashed, err := m.store.FlagSet(ctx, "moon_crash")
	if err != nil {
		return err
	}
	if crashed && fromClass != string(authz.ClassLead) && !bearsFenix {
		return kernelerr.New(kernelerr.MoonCrash, "moon_crash blocks sends except from lead or fenix_down-bearing messages",
			"moon_crash flag set", "lead must clear_moon_crash before normal sends resume")
	}
	return nil
}

func (m *Messenger) autoCC(tx *sql.Tx, from, fromClass, to string, writeOnce func(int64) (string, error)) error {
	if fromClass == string(authz.ClassLead) || to == string(authz.ClassLead) {
		return nil
	}
	lead, err := datastore.CurrentLeadTx(tx)
	if err != nil {
		return nil // no lead registered yet: no CC to send.
	}
	if lead == from {
		return nil
	}
	id, err := datastore.InsertMessage(tx, from, lead, "", true, to)
	if err != nil {
		return err
	}
	path, err := writeOnce(id)
	if err != nil {
		return err
	}
	return datastore.SetMessageContentPathTx(tx, id, path)
}

func containsTrigger(found []triggers.Trigger, want triggers.Trigger) bool {
	for _, t := range found {
		if t == want {
			return true
		}
	}
	return false
}

// resolveRecipients expands "to" into the literal set of agent names a
// message row is addressed to. "all" stays as a single literal row
// (broadcast semantics handled at read time by CheckInbox); a class name
// expands to one row per registered agent of that class; anything else
// must be a registered agent name.
func resolveRecipients(tx *sql.Tx, to string) ([]string, error) {
	if to == "all" {
		return []string{"all"}, nil
	}
	if authz.ValidClasses[authz.Class(to)] {
		names, err := datastore.AgentNamesByClassTx(tx, to)
		if err != nil {
			return nil, err
		}
		return names, nil // zero registered agents in a class is not a failure (spec.md boundary behavior 14).
	}
	exists, err := datastore.AgentExistsTx(tx, to)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, kernelerr.New(kernelerr.UnknownRecipient, "recipient must be a registered agent, \"all\", or a class name", to, "register the agent or check the recipient spelling")
	}
	return []string{to}, nil
}

// writeContent writes a message's content under dir/<id>.md, where id is
// the content-owning row's own database id (spec.md §6:
// inbox/<agent>/<msg-id>.md).
func (m *Messenger) writeContent(dir string, id int64, content string) (string, error) {
	full := filepath.Join(m.inboxDir, dir)
	if err := os.MkdirAll(full, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(full, fmt.Sprintf("%d.md", id))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// CheckInbox returns unread messages for name, atomically marking them
// read.
func (m *Messenger) CheckInbox(ctx context.Context, name string) ([]*datastore.Message, error) {
	return m.store.CheckInbox(ctx, name)
}

// Purge deletes read messages older than olderThan for name.
func (m *Messenger) Purge(ctx context.Context, name string, olderThan time.Duration) (int64, error) {
	return m.store.PurgeInbox(ctx, name, olderThan)
}

// GetHistory returns recent messages involving name.
func (m *Messenger) GetHistory(ctx context.Context, name string, limit int) ([]*datastore.Message, error) {
	return m.store.GetHistory(ctx, name, limit)
}

// ListTriggers returns the fixed trigger vocabulary.
func ListTriggers() []triggers.Trigger { return triggers.All }

// ClearMoonCrash removes the moon_crash flag; callers must hold CapManage
// (enforced by the caller via authz.Check before invoking this).
func (m *Messenger) ClearMoonCrash(ctx context.Context) error {
	return m.store.ClearFlag(ctx, string(triggers.MoonCrash))
}

// NotifyLead implements health.Notifier: it delivers a system message to
// the current lead outside the normal send() precondition chain, since HP
// alerts must reach lead even when the agent whose HP crossed a threshold
// is itself stale or mid-failure.
func (m *Messenger) NotifyLead(ctx context.Context, text string) error {
	lead, err := m.store.CurrentLead(ctx)
	if err != nil {
		return nil // no lead registered: nothing to notify.
	}
	return m.store.WithTx(ctx, func(tx *sql.Tx) error {
		id, err := datastore.InsertMessage(tx, "system", lead.Name, "", false, "")
		if err != nil {
			return err
		}
		path, err := m.writeContent("system", id, text)
		if err != nil {
			return err
		}
		return datastore.SetMessageContentPathTx(tx, id, path)
	})
}
